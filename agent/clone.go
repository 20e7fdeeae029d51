package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgeflow/forgeflow/workflow"
)

// CloneNewRepo clones the target repository into the configured local
// path. A directory that already holds a git checkout is left untouched
// and reported as already_exists, so reruns against the same workspace do
// not clobber local work.
type CloneNewRepo struct{}

func (a *CloneNewRepo) Invoke(ctx context.Context, s workflow.State) (workflow.State, error) {
	in := s.Inputs
	if in.RepoURL == "" || in.RepoPath == "" {
		return s.WithOutcome(workflow.DomainClone, workflow.StatusFailed,
			"missing repo_url or repo_path"), nil
	}

	if info, err := os.Stat(filepath.Join(in.RepoPath, ".git")); err == nil && info.IsDir() {
		return s.WithOutcome(workflow.DomainClone, workflow.StatusAlreadyExists,
			fmt.Sprintf("existing checkout at %s, skipping clone", in.RepoPath)), nil
	}

	remote, err := authURL(in.RepoURL, in.Username, in.Token)
	if err != nil {
		return s.WithOutcome(workflow.DomainClone, workflow.StatusFailed, err.Error()), nil
	}

	if _, err := runGit(ctx, "", "clone", remote, in.RepoPath); err != nil {
		return s.WithOutcome(workflow.DomainClone, workflow.StatusFailed,
			redact(err.Error(), in.Token)), nil
	}
	return s.WithOutcome(workflow.DomainClone, workflow.StatusSuccess,
		fmt.Sprintf("cloned %s into %s", in.RepoURL, in.RepoPath)), nil
}
