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

func TestGenerateReadmeWritesFile(t *testing.T) {
	mock := model.NewMockModel().QueueText("```markdown\n# Demo\n\nA calculator.\n```")
	a := &GenerateReadme{Model: mock}

	s := workflow.NewState(workflow.Inputs{
		RepoPath:    t.TempDir(),
		ProjectName: "demo",
		CodePrompt:  "build a calculator",
	})
	s.CoveragePercent = 93

	final, err := a.Invoke(context.Background(), s)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainReadme); got != workflow.StatusSuccess {
		t.Fatalf("status = %s, message = %s", got, final.Message(workflow.DomainReadme))
	}

	raw, err := os.ReadFile(filepath.Join(s.Inputs.RepoPath, "README.md"))
	if err != nil {
		t.Fatalf("read README: %v", err)
	}
	if !strings.HasPrefix(string(raw), "# Demo") {
		t.Errorf("README starts with %q", string(raw)[:20])
	}

	prompt := mock.Calls()[0][1].Content
	if !strings.Contains(prompt, "93%") {
		t.Error("prompt should mention the measured coverage")
	}
}

func TestGenerateReadmeModelFailure(t *testing.T) {
	mock := model.NewMockModel().QueueError(errors.New("provider down"))
	a := &GenerateReadme{Model: mock}

	s := workflow.NewState(workflow.Inputs{RepoPath: t.TempDir()})
	final, err := a.Invoke(context.Background(), s)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainReadme); got != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
}

func TestGenerateReadmeEmptyReply(t *testing.T) {
	mock := model.NewMockModel().QueueText("```\n```")
	a := &GenerateReadme{Model: mock}

	s := workflow.NewState(workflow.Inputs{RepoPath: t.TempDir()})
	final, err := a.Invoke(context.Background(), s)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainReadme); got != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
}
