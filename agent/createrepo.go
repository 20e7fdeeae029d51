package agent

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/forgeflow/forgeflow/workflow"
)

// CreateRemoteRepo provisions a new repository on GitHub under the
// authenticated user and publishes its clone URL back into the state, so
// the rest of the pipeline works against the repository it just created.
type CreateRemoteRepo struct {
	// Private creates the repository as private.
	Private bool

	// BaseURL overrides the GitHub API endpoint, for GitHub Enterprise
	// and for tests against a local server. Empty means api.github.com.
	BaseURL string

	// Description is set on the created repository when non-empty.
	Description string
}

func (a *CreateRemoteRepo) Invoke(ctx context.Context, s workflow.State) (workflow.State, error) {
	in := s.Inputs
	if in.Token == "" || in.NewRepoName == "" {
		return s.WithOutcome(workflow.DomainRepoCreation, workflow.StatusFailed,
			"missing token or new_repo_name"), nil
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: in.Token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if a.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(a.BaseURL, a.BaseURL)
		if err != nil {
			return s.WithOutcome(workflow.DomainRepoCreation, workflow.StatusFailed,
				fmt.Sprintf("configure api endpoint: %v", err)), nil
		}
	}

	repo := &github.Repository{
		Name:     github.String(in.NewRepoName),
		Private:  github.Bool(a.Private),
		AutoInit: github.Bool(false),
	}
	if a.Description != "" {
		repo.Description = github.String(a.Description)
	}

	created, _, err := client.Repositories.Create(ctx, "", repo)
	if err != nil {
		return s.WithOutcome(workflow.DomainRepoCreation, workflow.StatusFailed,
			redact(fmt.Sprintf("create repository %s: %v", in.NewRepoName, err), in.Token)), nil
	}

	cloneURL := created.GetCloneURL()
	if cloneURL == "" {
		cloneURL = created.GetHTMLURL()
	}
	next := s.WithRepoURL(cloneURL)
	return next.WithOutcome(workflow.DomainRepoCreation, workflow.StatusSuccess,
		fmt.Sprintf("created repository %s", created.GetHTMLURL())), nil
}
