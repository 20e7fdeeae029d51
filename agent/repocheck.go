package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/forgeflow/forgeflow/workflow"
)

// DefaultCheckTimeout bounds the remote listing. ls-remote against an
// unreachable host can hang far longer than any caller wants to wait.
const DefaultCheckTimeout = 10 * time.Second

// CheckRemoteRepo probes whether the target repository and branch exist,
// using `git ls-remote --heads` with credentials injected into the URL.
// It distinguishes three outcomes: the branch is listed (success), the
// repository answers but the branch is absent (branch_not_found), and the
// remote is unreachable or rejects the credentials (failed).
type CheckRemoteRepo struct {
	// Timeout bounds the ls-remote call. Zero takes DefaultCheckTimeout.
	Timeout time.Duration
}

func (a *CheckRemoteRepo) Invoke(ctx context.Context, s workflow.State) (workflow.State, error) {
	in := s.Inputs
	if in.RepoURL == "" || in.Username == "" || in.Token == "" || in.Branch == "" {
		return s.WithOutcome(workflow.DomainRepoCheck, workflow.StatusFailed,
			"missing repo_url, username, token, or branch"), nil
	}

	remote, err := authURL(in.RepoURL, in.Username, in.Token)
	if err != nil {
		return s.WithOutcome(workflow.DomainRepoCheck, workflow.StatusFailed, err.Error()), nil
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := runGit(ctx, "", "ls-remote", "--heads", remote, in.Branch)
	switch {
	case err != nil:
		return s.WithOutcome(workflow.DomainRepoCheck, workflow.StatusFailed,
			redact(err.Error(), in.Token)), nil
	case out == "":
		return s.WithOutcome(workflow.DomainRepoCheck, workflow.StatusBranchNotFound,
			fmt.Sprintf("repository %s exists but branch %s was not found", in.RepoURL, in.Branch)), nil
	default:
		return s.WithOutcome(workflow.DomainRepoCheck, workflow.StatusSuccess,
			fmt.Sprintf("repository %s exists and branch %s is accessible", in.RepoURL, in.Branch)), nil
	}
}
