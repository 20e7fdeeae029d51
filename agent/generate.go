package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forgeflow/forgeflow/model"
	"github.com/forgeflow/forgeflow/workflow"
)

// GenerateCode asks the model for a Python module implementing the user's
// prompt, scaffolds a src layout in the checkout, validates the result,
// and writes it to src/<project>/<module>.py. Third-party imports found in
// the generated code are recorded in requirements.txt.
type GenerateCode struct {
	Model model.ChatModel

	// Python is the interpreter used for the syntax check,
	// "python3" when empty. If no interpreter is on PATH the check is
	// skipped rather than failing the step.
	Python string
}

const codeSystemPrompt = `You are a senior Python engineer. Produce complete,
runnable Python source for the requested module. Output raw Python only:
no markdown fences, no prose before or after the code. Include docstrings
and type hints. Keep all code importable, with any demo usage guarded by
if __name__ == "__main__".`

func (a *GenerateCode) Invoke(ctx context.Context, s workflow.State) (workflow.State, error) {
	in := s.Inputs
	if a.Model == nil {
		return s.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusFailed,
			"no model configured"), nil
	}
	if in.CodePrompt == "" || in.RepoPath == "" || in.ProjectName == "" || in.ModuleName == "" {
		return s.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusFailed,
			"missing code_prompt, repo_path, project_name, or module_name"), nil
	}

	if err := scaffoldProject(in.RepoPath, in.ProjectName); err != nil {
		return s.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusFailed,
			fmt.Sprintf("scaffold project: %v", err)), nil
	}

	prompt := fmt.Sprintf("Write a Python module named %s.py for project %q.\n\nTask:\n%s",
		in.ModuleName, in.ProjectName, in.CodePrompt)
	if in.CodeStyle != "" {
		prompt += "\n\nStyle requirements:\n" + in.CodeStyle
	}

	out, err := a.Model.Chat(ctx, []model.Message{
		{Role: model.RoleSystem, Content: codeSystemPrompt},
		{Role: model.RoleUser, Content: prompt},
	})
	if err != nil {
		return s.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusFailed,
			fmt.Sprintf("model call: %v", err)), nil
	}

	code := stripFences(out.Text)
	if len(strings.Split(code, "\n")) < 2 {
		return s.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusFailed,
			"model returned no usable code"), nil
	}

	if detail, ok := a.checkSyntax(ctx, code); !ok {
		return s.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusFailed,
			fmt.Sprintf("generated code failed syntax check: %s", detail)), nil
	}

	path := filepath.Join(in.RepoPath, "src", in.ProjectName, in.ModuleName+".py")
	header := fmt.Sprintf("# %s/%s.py\n\n", in.ProjectName, in.ModuleName)
	if err := os.WriteFile(path, []byte(header+code+"\n"), 0o644); err != nil {
		return s.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusFailed,
			fmt.Sprintf("write module: %v", err)), nil
	}

	if err := writeRequirements(in.RepoPath, thirdPartyImports(code, in.ProjectName)); err != nil {
		return s.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusFailed,
			fmt.Sprintf("write requirements: %v", err)), nil
	}

	next := s
	next.GeneratedCode = code
	next.GeneratedCodePath = path
	return next.WithOutcome(workflow.DomainCodeGeneration, workflow.StatusSuccess,
		fmt.Sprintf("wrote %s (%d bytes)", path, len(code))), nil
}

// checkSyntax compiles the code with py_compile. A missing interpreter
// skips the check; only an actual compile error fails it.
func (a *GenerateCode) checkSyntax(ctx context.Context, code string) (string, bool) {
	python := a.Python
	if python == "" {
		python = "python3"
	}
	if _, err := exec.LookPath(python); err != nil {
		return "", true
	}

	tmp, err := os.CreateTemp("", "genmod-*.py")
	if err != nil {
		return "", true
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return "", true
	}
	tmp.Close()

	out, err := exec.CommandContext(ctx, python, "-m", "py_compile", tmp.Name()).CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), false
	}
	return "", true
}

// scaffoldProject lays out the src/<project> and tests directories with
// package markers, creating only what is missing.
func scaffoldProject(repoPath, projectName string) error {
	dirs := []string{
		filepath.Join(repoPath, "src", projectName),
		filepath.Join(repoPath, "tests"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	markers := []string{
		filepath.Join(repoPath, "src", "__init__.py"),
		filepath.Join(repoPath, "src", projectName, "__init__.py"),
		filepath.Join(repoPath, "tests", "__init__.py"),
	}
	for _, marker := range markers {
		if _, err := os.Stat(marker); os.IsNotExist(err) {
			if err := os.WriteFile(marker, nil, 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeRequirements records the third-party dependencies of the generated
// code, always including the test tooling the coverage step needs.
func writeRequirements(repoPath string, imports []string) error {
	lines := []string{"pytest", "pytest-cov"}
	for _, name := range imports {
		if name != "pytest" {
			lines = append(lines, name)
		}
	}
	content := strings.Join(lines, "\n") + "\n"
	return os.WriteFile(filepath.Join(repoPath, "requirements.txt"), []byte(content), 0o644)
}
