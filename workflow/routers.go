package workflow

import "github.com/forgeflow/forgeflow/graph"

// Pipeline step names. Edges and routers refer to steps by these names,
// and they appear verbatim in emitted events and persisted step records.
const (
	StepCheckRemoteRepo  = "check_remote_repo"
	StepCreateRemoteRepo = "create_remote_repo"
	StepCloneNewRepo     = "clone_new_repo"
	StepGenerateCode     = "generate_code"
	StepGenerateTests    = "generate_tests"
	StepCheckCoverage    = "check_coverage"
	StepGenerateReadme   = "generate_readme"
	StepGitCommitPush    = "git_commit_push"
)

// RepoCheckRouter decides where to go after the remote-repository check.
// An accessible branch proceeds straight to cloning; a missing branch or a
// failed check falls through to repository creation, which establishes a
// fresh remote to work against.
func RepoCheckRouter(s State) (string, error) {
	switch st := s.Status(DomainRepoCheck); st {
	case StatusSuccess:
		return StepCloneNewRepo, nil
	case StatusBranchNotFound, StatusFailed:
		return StepCreateRemoteRepo, nil
	default:
		return "", &graph.UnroutableStateError{
			Key:   DomainRepoCheck.StatusKey(),
			Value: string(st),
		}
	}
}

// CoverageRouter decides where to go after the coverage measurement when
// the coverage-retry loop is enabled. Coverage under the threshold, or a
// measurement failure, loops back to test generation for another round;
// only a passing measurement moves on to the README.
func CoverageRouter(s State) (string, error) {
	switch st := s.Status(DomainCoverage); st {
	case StatusBelowThreshold, StatusFailed:
		return StepGenerateTests, nil
	case StatusSuccess:
		return StepGenerateReadme, nil
	default:
		return "", &graph.UnroutableStateError{
			Key:   DomainCoverage.StatusKey(),
			Value: string(st),
		}
	}
}
