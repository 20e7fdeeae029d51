package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgeflow/forgeflow/model"
	"github.com/forgeflow/forgeflow/workflow"
)

const validModule = `"""Calculator module."""

def add(a: int, b: int) -> int:
    """Return the sum of a and b."""
    return a + b

def divide(a: float, b: float) -> float:
    """Return a divided by b."""
    if b == 0:
        raise ValueError("division by zero")
    return a / b
`

func genState(t *testing.T) workflow.State {
	t.Helper()
	return workflow.NewState(workflow.Inputs{
		RepoPath:    t.TempDir(),
		ProjectName: "demo",
		ModuleName:  "calc",
		CodePrompt:  "build a calculator",
	})
}

func TestGenerateCodeWritesModule(t *testing.T) {
	mock := model.NewMockModel().QueueText("```python\n" + validModule + "```")
	a := &GenerateCode{Model: mock}

	s := genState(t)
	final, err := a.Invoke(context.Background(), s)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainCodeGeneration); got != workflow.StatusSuccess {
		t.Fatalf("status = %s, message = %s", got, final.Message(workflow.DomainCodeGeneration))
	}

	wantPath := filepath.Join(s.Inputs.RepoPath, "src", "demo", "calc.py")
	if final.GeneratedCodePath != wantPath {
		t.Errorf("path = %s, want %s", final.GeneratedCodePath, wantPath)
	}
	raw, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read module: %v", err)
	}
	if strings.Contains(string(raw), "```") {
		t.Error("fences leaked into the written module")
	}
	if !strings.Contains(string(raw), "def add") {
		t.Error("module body missing")
	}
	if !strings.Contains(final.GeneratedCode, "def add") {
		t.Error("generated code missing from state")
	}

	// Scaffolding markers.
	for _, marker := range []string{
		filepath.Join(s.Inputs.RepoPath, "src", "__init__.py"),
		filepath.Join(s.Inputs.RepoPath, "src", "demo", "__init__.py"),
		filepath.Join(s.Inputs.RepoPath, "tests", "__init__.py"),
	} {
		if _, err := os.Stat(marker); err != nil {
			t.Errorf("missing scaffold file %s", marker)
		}
	}

	reqs, err := os.ReadFile(filepath.Join(s.Inputs.RepoPath, "requirements.txt"))
	if err != nil {
		t.Fatalf("read requirements: %v", err)
	}
	if !strings.Contains(string(reqs), "pytest") {
		t.Error("requirements.txt should always include pytest")
	}
}

func TestGenerateCodeRecordsThirdPartyImports(t *testing.T) {
	code := "import requests\n\ndef fetch(url):\n    return requests.get(url)\n"
	mock := model.NewMockModel().QueueText(code)
	a := &GenerateCode{Model: mock}

	s := genState(t)
	final, err := a.Invoke(context.Background(), s)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainCodeGeneration); got != workflow.StatusSuccess {
		t.Fatalf("status = %s", got)
	}
	reqs, _ := os.ReadFile(filepath.Join(s.Inputs.RepoPath, "requirements.txt"))
	if !strings.Contains(string(reqs), "requests") {
		t.Errorf("requirements.txt = %q, want requests listed", reqs)
	}
}

func TestGenerateCodeModelFailure(t *testing.T) {
	mock := model.NewMockModel().QueueError(errors.New("rate limited"))
	a := &GenerateCode{Model: mock}

	final, err := a.Invoke(context.Background(), genState(t))
	if err != nil {
		t.Fatalf("model failure must become a status, got error %v", err)
	}
	if got := final.Status(workflow.DomainCodeGeneration); got != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
	if !strings.Contains(final.Message(workflow.DomainCodeGeneration), "rate limited") {
		t.Errorf("message = %q", final.Message(workflow.DomainCodeGeneration))
	}
}

func TestGenerateCodeEmptyReply(t *testing.T) {
	mock := model.NewMockModel().QueueText("ok")
	a := &GenerateCode{Model: mock}

	final, err := a.Invoke(context.Background(), genState(t))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainCodeGeneration); got != workflow.StatusFailed {
		t.Errorf("status = %s, want failed on unusable reply", got)
	}
}

func TestGenerateCodeMissingInputs(t *testing.T) {
	a := &GenerateCode{Model: model.NewMockModel()}
	final, err := a.Invoke(context.Background(), workflow.NewState(workflow.Inputs{}))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainCodeGeneration); got != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
}

func TestGenerateCodePromptsIncludeRequirement(t *testing.T) {
	mock := model.NewMockModel().QueueText(validModule)
	a := &GenerateCode{Model: mock}

	if _, err := a.Invoke(context.Background(), genState(t)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(calls))
	}
	msgs := calls[0]
	if msgs[0].Role != model.RoleSystem {
		t.Errorf("first message role = %s, want system", msgs[0].Role)
	}
	if !strings.Contains(msgs[1].Content, "build a calculator") {
		t.Error("user prompt should carry the code requirement")
	}
}
