package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgeflow/forgeflow/model"
	"github.com/forgeflow/forgeflow/workflow"
)

// GenerateReadme asks the model for a project README describing the
// generated module and writes it to the repository root.
type GenerateReadme struct {
	Model model.ChatModel
}

const readmeSystemPrompt = `You are a technical writer. Produce a complete
README.md in GitHub-flavored markdown. Output the markdown only, with no
surrounding code fences or commentary.`

func (a *GenerateReadme) Invoke(ctx context.Context, s workflow.State) (workflow.State, error) {
	in := s.Inputs
	if a.Model == nil {
		return s.WithOutcome(workflow.DomainReadme, workflow.StatusFailed,
			"no model configured"), nil
	}
	if in.RepoPath == "" {
		return s.WithOutcome(workflow.DomainReadme, workflow.StatusFailed,
			"missing repo_path"), nil
	}

	prompt := a.buildPrompt(s)
	out, err := a.Model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: readmeSystemPrompt},
		{Role: model.RoleUser, Content: prompt},
	})
	if err != nil {
		return s.WithOutcome(workflow.DomainReadme, workflow.StatusFailed,
			fmt.Sprintf("model call: %v", err)), nil
	}

	readme := stripFences(out.Text)
	if readme == "" {
		return s.WithOutcome(workflow.DomainReadme, workflow.StatusFailed,
			"model returned an empty README"), nil
	}

	path := filepath.Join(in.RepoPath, "README.md")
	if err := os.WriteFile(path, []byte(readme+"\n"), 0o644); err != nil {
		return s.WithOutcome(workflow.DomainReadme, workflow.StatusFailed,
			fmt.Sprintf("write README: %v", err)), nil
	}
	return s.WithOutcome(workflow.DomainReadme, workflow.StatusSuccess,
		fmt.Sprintf("wrote %s", path)), nil
}

func (a *GenerateReadme) buildPrompt(s workflow.State) string {
	in := s.Inputs
	prompt := fmt.Sprintf(
		"Write a README.md for project %q. The project was built from this request:\n%s\n",
		in.ProjectName, in.CodePrompt)
	prompt += "\nInclude sections for overview, installation (pip install -r requirements.txt), "
	prompt += "usage with an example, and running the tests with pytest."
	if in.DiagramFormat != "" {
		prompt += fmt.Sprintf("\nInclude an architecture diagram in %s format.", in.DiagramFormat)
	}
	if s.GeneratedCode != "" {
		prompt += "\n\nThe module being documented:\n" + s.GeneratedCode
	}
	if s.CoveragePercent > 0 {
		prompt += fmt.Sprintf("\n\nMention that test coverage is %d%%.", s.CoveragePercent)
	}
	return prompt
}
