// Package agent implements the pipeline collaborators: the repository
// checks, the git plumbing, the LLM-backed generation steps, and the
// coverage measurement. Each collaborator converts its expected failures
// into a status on the workflow state rather than an engine fault, so the
// graph keeps control of retries and routing.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// runGit executes a git subcommand in dir and returns trimmed stdout.
// On failure the error carries stderr, which is where git writes its
// diagnostics.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return strings.TrimSpace(stdout.String()), fmt.Errorf("git %s: %s", args[0], detail)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// authURL injects basic credentials into an https repository URL so git
// can authenticate without a credential helper. Non-https URLs are
// rejected: embedding a token in any other scheme is not supported.
func authURL(repoURL, username, token string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("parse repo url: %w", err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("repo url must use https, got %q", u.Scheme)
	}
	u.User = url.UserPassword(username, token)
	return u.String(), nil
}

// redact removes the access token from a message before it reaches state,
// logs, or persisted step records.
func redact(msg, token string) string {
	if token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, token, "***")
}
