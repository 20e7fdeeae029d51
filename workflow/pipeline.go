package workflow

import (
	"fmt"
	"time"

	"github.com/forgeflow/forgeflow/graph"
	"github.com/forgeflow/forgeflow/graph/emit"
	"github.com/forgeflow/forgeflow/graph/store"
)

// Steps groups the collaborator implementations behind each pipeline step.
// Build wires them into the graph; tests substitute fakes.
type Steps struct {
	CheckRemoteRepo  graph.Step[State]
	CreateRemoteRepo graph.Step[State]
	CloneNewRepo     graph.Step[State]
	GenerateCode     graph.Step[State]
	GenerateTests    graph.Step[State]
	CheckCoverage    graph.Step[State]
	GenerateReadme   graph.Step[State]
	GitCommitPush    graph.Step[State]
}

// Options tune the pipeline wiring.
type Options struct {
	// CoverageRetry loops check_coverage back to generate_tests while
	// coverage is below the threshold or measurement fails. Off by
	// default: the plain pipeline records the shortfall and moves on.
	CoverageRetry bool

	// RetryAttempts and RetryDelay configure the supervisors around the
	// two generation steps. Zero values take the graph defaults.
	RetryAttempts int
	RetryDelay    time.Duration

	// MaxSteps bounds a single run. Zero takes the engine default, which
	// comfortably covers both the linear pipeline and a few coverage
	// retry rounds.
	MaxSteps int

	Emitter emit.Emitter
	Metrics *graph.Metrics
}

// Build assembles the repository-bootstrap pipeline into a runnable engine:
//
//	check_remote_repo ──(branch found)──────────────► clone_new_repo
//	        │ (missing or failed)                          │
//	        └────────► create_remote_repo ────────────────┘
//	                                                       ▼
//	  generate_code ► generate_tests ► check_coverage ► generate_readme ► git_commit_push
//
// The two generation steps run under retry supervision. With CoverageRetry
// enabled, check_coverage routes back to generate_tests until coverage
// clears the threshold.
func Build(st store.Store[State], steps Steps, opts Options) (*graph.Engine[State], error) {
	emitter := opts.Emitter
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		// Eight steps linear; leave generous headroom for coverage loops.
		maxSteps = 50
	}
	engineOpts := []graph.Option{graph.WithMaxSteps(maxSteps)}
	if opts.Metrics != nil {
		engineOpts = append(engineOpts, graph.WithMetrics(opts.Metrics))
	}
	eng := graph.New[State](st, emitter, engineOpts...)

	retryCfg := graph.RetryConfig{
		MaxAttempts: opts.RetryAttempts,
		Delay:       opts.RetryDelay,
		Emitter:     emitter,
		Metrics:     opts.Metrics,
	}
	codeCfg := retryCfg
	codeCfg.StatusKey = DomainCodeGeneration.StatusKey()
	testCfg := retryCfg
	testCfg.StatusKey = DomainTestGeneration.StatusKey()

	add := []struct {
		name string
		step graph.Step[State]
	}{
		{StepCheckRemoteRepo, steps.CheckRemoteRepo},
		{StepCreateRemoteRepo, steps.CreateRemoteRepo},
		{StepCloneNewRepo, steps.CloneNewRepo},
		{StepGenerateCode, graph.NewRetry[State]("retry_generate_code", steps.GenerateCode, codeCfg)},
		{StepGenerateTests, graph.NewRetry[State]("retry_generate_tests", steps.GenerateTests, testCfg)},
		{StepCheckCoverage, steps.CheckCoverage},
		{StepGenerateReadme, steps.GenerateReadme},
		{StepGitCommitPush, steps.GitCommitPush},
	}
	for _, a := range add {
		if a.step == nil {
			return nil, fmt.Errorf("pipeline: step %s has no implementation", a.name)
		}
		if err := eng.Add(a.name, a.step); err != nil {
			return nil, err
		}
	}

	if err := eng.Route(StepCheckRemoteRepo, RepoCheckRouter); err != nil {
		return nil, err
	}
	connections := [][2]string{
		{StepCreateRemoteRepo, StepCloneNewRepo},
		{StepCloneNewRepo, StepGenerateCode},
		{StepGenerateCode, StepGenerateTests},
		{StepGenerateTests, StepCheckCoverage},
		{StepGenerateReadme, StepGitCommitPush},
	}
	for _, c := range connections {
		if err := eng.Connect(c[0], c[1]); err != nil {
			return nil, err
		}
	}
	if opts.CoverageRetry {
		if err := eng.Route(StepCheckCoverage, CoverageRouter); err != nil {
			return nil, err
		}
	} else {
		if err := eng.Connect(StepCheckCoverage, StepGenerateReadme); err != nil {
			return nil, err
		}
	}

	if err := eng.StartAt(StepCheckRemoteRepo); err != nil {
		return nil, err
	}
	if err := eng.FinishAt(StepGitCommitPush); err != nil {
		return nil, err
	}
	return eng, nil
}
