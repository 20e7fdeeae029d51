// Command forgeflow runs the repository-bootstrap pipeline: it checks or
// creates the target GitHub repository, clones it, generates a Python
// module with tests and a README through an LLM, measures coverage, and
// pushes the result to a new branch.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/forgeflow/forgeflow/agent"
	"github.com/forgeflow/forgeflow/config"
	"github.com/forgeflow/forgeflow/graph"
	"github.com/forgeflow/forgeflow/graph/emit"
	"github.com/forgeflow/forgeflow/graph/store"
	"github.com/forgeflow/forgeflow/model"
	"github.com/forgeflow/forgeflow/model/anthropic"
	"github.com/forgeflow/forgeflow/model/google"
	"github.com/forgeflow/forgeflow/model/openai"
	"github.com/forgeflow/forgeflow/workflow"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	configPath    string
	prompt        string
	coverageRetry bool
	jsonEvents    bool
	metricsAddr   string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "forgeflow",
		Short:         "Generate a tested Python module and push it to GitHub",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "config.yaml", "path to the configuration file")
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "code requirement to implement (read from stdin when omitted)")
	cmd.Flags().BoolVar(&f.coverageRetry, "coverage-retry", false, "regenerate tests until coverage meets the threshold")
	cmd.Flags().BoolVar(&f.jsonEvents, "json-events", false, "emit step events as JSON lines")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		logger.Error("configuration", "err", err)
		return err
	}

	prompt := strings.TrimSpace(f.prompt)
	if prompt == "" {
		prompt, err = readPrompt(cmd)
		if err != nil {
			logger.Error("prompt", "err", err)
			return err
		}
	}
	if prompt == "" {
		err := fmt.Errorf("prompt cannot be empty")
		logger.Error("prompt", "err", err)
		return err
	}

	llm, err := buildModel(cfg.LLM)
	if err != nil {
		logger.Error("model provider", "provider", cfg.LLM.Provider, "err", err)
		return err
	}
	logger.Info("model ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	st, closeStore, err := buildStore(cfg.Store)
	if err != nil {
		logger.Error("state store", "err", err)
		return err
	}
	defer closeStore()

	var metrics *graph.Metrics
	if f.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics = graph.NewMetrics(registry)
		go serveMetrics(logger, f.metricsAddr, registry)
	}

	steps := workflow.Steps{
		CheckRemoteRepo:  &agent.CheckRemoteRepo{},
		CreateRemoteRepo: &agent.CreateRemoteRepo{},
		CloneNewRepo:     &agent.CloneNewRepo{},
		GenerateCode:     &agent.GenerateCode{Model: llm},
		GenerateTests:    &agent.GenerateTests{Model: llm},
		CheckCoverage:    &agent.CheckCoverage{},
		GenerateReadme:   &agent.GenerateReadme{Model: llm},
		GitCommitPush:    &agent.GitCommitPush{},
	}
	eng, err := workflow.Build(st, steps, workflow.Options{
		CoverageRetry: f.coverageRetry || cfg.Settings.CoverageRetry,
		Emitter:       emit.NewLogEmitter(os.Stderr, f.jsonEvents),
		Metrics:       metrics,
	})
	if err != nil {
		logger.Error("pipeline wiring", "err", err)
		return err
	}

	initial := workflow.NewState(workflow.Inputs{
		Username:          cfg.GitHub.Username,
		Token:             cfg.GitHub.Token,
		UserEmail:         cfg.GitHub.UserEmail,
		RepoURL:           cfg.GitHub.RepoURL,
		Branch:            cfg.GitHub.Branch,
		NewBranch:         newBranchName(cfg),
		NewRepoName:       cfg.GitHub.NewRepoName,
		RepoPath:          cfg.Project.RepoPath,
		ProjectName:       cfg.Project.ProjectName,
		ModuleName:        cfg.Project.ModuleName,
		CodePrompt:        prompt,
		BranchPrefix:      cfg.Settings.BranchPrefix,
		CoverageThreshold: cfg.Settings.TDDCoverage,
		CodeStyle:         cfg.Settings.CodeStyle,
		DiagramFormat:     cfg.Settings.DiagramFormat,
	})

	runID := uuid.NewString()
	logger.Info("starting run", "run_id", runID, "repo", cfg.GitHub.RepoURL)

	final, err := eng.Run(cmd.Context(), runID, initial)
	if err != nil {
		logger.Error("run aborted", "run_id", runID, "err", err)
		return err
	}

	return report(logger, runID, final)
}

// readPrompt consumes the code requirement from stdin when no --prompt
// flag was given.
func readPrompt(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter the code requirement: ")
	raw, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && raw == "" {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// newBranchName derives the push branch, preferring the explicit
// new_branch setting and falling back to a prefixed unique name.
func newBranchName(cfg *config.Config) string {
	if cfg.GitHub.NewBranch != "" {
		return cfg.GitHub.NewBranch
	}
	return fmt.Sprintf("%s/%s", cfg.Settings.BranchPrefix, uuid.NewString()[:8])
}

func buildModel(cfg config.LLM) (model.ChatModel, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model)
	case "openai", "chatgpt":
		return openai.New(cfg.APIKey, cfg.Model)
	case "google", "gemini":
		return google.New(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func buildStore(cfg config.Store) (store.Store[workflow.State], func(), error) {
	switch {
	case cfg.SQLitePath != "":
		s, err := store.NewSQLiteStore[workflow.State](cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case cfg.MySQLDSN != "":
		s, err := store.NewMySQLStore[workflow.State](cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return store.NewMemStore[workflow.State](), func() {}, nil
	}
}

func serveMetrics(logger *slog.Logger, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server", "err", err)
	}
}

// report logs the per-domain outcome and fails the command when any
// domain other than repo_check ended in failed. A failed repo_check is
// routine: it is what routes the pipeline into repository creation.
func report(logger *slog.Logger, runID string, final workflow.State) error {
	var failed []string
	for _, d := range workflow.Domains {
		st := final.Status(d)
		logger.Info("domain outcome", "domain", string(d), "status", string(st), "detail", final.Message(d))
		if st == workflow.StatusFailed && d != workflow.DomainRepoCheck {
			failed = append(failed, string(d))
		}
	}
	if rs := final.RetryStatus(); rs != "" {
		logger.Warn("retries exhausted", "detail", rs)
	}
	if len(failed) > 0 {
		err := fmt.Errorf("run %s finished with failures: %s", runID, strings.Join(failed, ", "))
		logger.Error("run finished", "run_id", runID, "err", err)
		return err
	}
	logger.Info("run finished", "run_id", runID, "coverage", final.CoveragePercent)
	return nil
}
