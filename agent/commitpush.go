package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgeflow/forgeflow/workflow"
)

// GitCommitPush commits everything the pipeline wrote into the checkout
// and pushes it to a new branch on the remote. A freshly created remote
// has no commits yet, so the step bootstraps an initial commit before the
// real one. A checkout with nothing staged reports clean and still pushes,
// covering reruns where the tree is already committed.
type GitCommitPush struct {
	// CommitMessage overrides the default commit message.
	CommitMessage string
}

const (
	defaultCommitMessage = "Add generated module, tests, and README"
	fallbackUserName     = "forgeflow-bot"
	fallbackUserEmail    = "forgeflow-bot@users.noreply.github.com"
)

func (a *GitCommitPush) Invoke(ctx context.Context, s workflow.State) (workflow.State, error) {
	in := s.Inputs
	if in.RepoPath == "" || in.NewBranch == "" {
		return s.WithOutcome(workflow.DomainGitPush, workflow.StatusFailed,
			"missing repo_path or new_branch"), nil
	}

	fail := func(err error) (workflow.State, error) {
		return s.WithOutcome(workflow.DomainGitPush, workflow.StatusFailed,
			redact(err.Error(), in.Token)), nil
	}

	remote, err := authURL(in.RepoURL, in.Username, in.Token)
	if err != nil {
		return fail(err)
	}
	if _, err := runGit(ctx, in.RepoPath, "remote", "set-url", "origin", remote); err != nil {
		return fail(err)
	}
	if err := a.configureIdentity(ctx, in); err != nil {
		return fail(err)
	}

	// A just-created remote clones with no HEAD; seed it so branching
	// and the real commit have something to stand on.
	if _, err := runGit(ctx, in.RepoPath, "rev-parse", "--verify", "HEAD"); err != nil {
		if err := a.bootstrapEmptyRepo(ctx, in); err != nil {
			return fail(err)
		}
	}

	if _, err := runGit(ctx, in.RepoPath, "checkout", "-B", in.NewBranch); err != nil {
		return fail(err)
	}
	if _, err := runGit(ctx, in.RepoPath, "add", "-A"); err != nil {
		return fail(err)
	}

	// git reports "nothing to commit" on stdout with a non-zero exit.
	if out, err := runGit(ctx, in.RepoPath, "commit", "-m", a.message()); err != nil {
		if !strings.Contains(out, "nothing to commit") && !strings.Contains(err.Error(), "nothing to commit") {
			return fail(err)
		}
		// Everything is already committed, so there is nothing to push.
		return s.WithOutcome(workflow.DomainGitPush, workflow.StatusClean,
			"nothing to commit, working tree clean"), nil
	}

	if _, err := runGit(ctx, in.RepoPath, "push", "-u", "origin", in.NewBranch); err != nil {
		return fail(err)
	}
	return s.WithOutcome(workflow.DomainGitPush, workflow.StatusSuccess,
		fmt.Sprintf("committed and pushed branch %s", in.NewBranch)), nil
}

func (a *GitCommitPush) message() string {
	if a.CommitMessage != "" {
		return a.CommitMessage
	}
	return defaultCommitMessage
}

func (a *GitCommitPush) configureIdentity(ctx context.Context, in workflow.Inputs) error {
	name := in.Username
	if name == "" {
		name = fallbackUserName
	}
	email := in.UserEmail
	if email == "" {
		email = fallbackUserEmail
	}
	if _, err := runGit(ctx, in.RepoPath, "config", "user.name", name); err != nil {
		return err
	}
	_, err := runGit(ctx, in.RepoPath, "config", "user.email", email)
	return err
}

func (a *GitCommitPush) bootstrapEmptyRepo(ctx context.Context, in workflow.Inputs) error {
	keep := filepath.Join(in.RepoPath, ".gitkeep")
	if err := os.WriteFile(keep, nil, 0o644); err != nil {
		return err
	}
	if _, err := runGit(ctx, in.RepoPath, "add", ".gitkeep"); err != nil {
		return err
	}
	_, err := runGit(ctx, in.RepoPath, "commit", "-m", "Initial commit")
	return err
}
