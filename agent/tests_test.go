package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forgeflow/forgeflow/model"
	"github.com/forgeflow/forgeflow/workflow"
)

const validSuite = `import sys, os
sys.path.insert(0, os.path.dirname(os.path.dirname(os.path.abspath(__file__))))

from src.demo.calc import add

def test_add():
    assert add(1, 2) == 3
`

func testsState(t *testing.T) workflow.State {
	t.Helper()
	s := workflow.NewState(workflow.Inputs{
		RepoPath:          t.TempDir(),
		ProjectName:       "demo",
		ModuleName:        "calc",
		CoverageThreshold: 90,
	})
	s.GeneratedCode = validModule
	return s
}

func TestGenerateTestsWritesSuite(t *testing.T) {
	mock := model.NewMockModel().QueueText("```python\n" + validSuite + "```")
	a := &GenerateTests{Model: mock}

	s := testsState(t)
	final, err := a.Invoke(context.Background(), s)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainTestGeneration); got != workflow.StatusSuccess {
		t.Fatalf("status = %s, message = %s", got, final.Message(workflow.DomainTestGeneration))
	}

	wantPath := filepath.Join(s.Inputs.RepoPath, "tests", "test_calc.py")
	if final.TestFilePath != wantPath {
		t.Errorf("path = %s, want %s", final.TestFilePath, wantPath)
	}
	raw, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read suite: %v", err)
	}
	if !strings.Contains(string(raw), "def test_add") {
		t.Error("suite body missing")
	}
	if !final.ImproveExistingTests {
		t.Error("a successful generation should arm improvement mode for reruns")
	}
}

func TestGenerateTestsRejectsSuiteWithoutTests(t *testing.T) {
	mock := model.NewMockModel().QueueText("print('hello')")
	a := &GenerateTests{Model: mock}

	final, err := a.Invoke(context.Background(), testsState(t))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainTestGeneration); got != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
}

func TestGenerateTestsRequiresGeneratedCode(t *testing.T) {
	a := &GenerateTests{Model: model.NewMockModel()}
	final, err := a.Invoke(context.Background(), workflow.NewState(workflow.Inputs{}))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got := final.Status(workflow.DomainTestGeneration); got != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
}

func TestGenerateTestsPromptNamesPublicAPI(t *testing.T) {
	mock := model.NewMockModel().QueueText(validSuite)
	a := &GenerateTests{Model: mock}

	if _, err := a.Invoke(context.Background(), testsState(t)); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	prompt := mock.Calls()[0][1].Content
	for _, name := range []string{"add", "divide", "src.demo.calc"} {
		if !strings.Contains(prompt, name) {
			t.Errorf("prompt missing %q", name)
		}
	}
}

func TestGenerateTestsImprovementMode(t *testing.T) {
	mock := model.NewMockModel().QueueText(validSuite)
	a := &GenerateTests{Model: mock}

	s := testsState(t)
	s.ImproveExistingTests = true
	s.TestsContent = "def test_add():\n    assert True\n"

	if _, err := a.Invoke(context.Background(), s); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	prompt := mock.Calls()[0][1].Content
	if !strings.Contains(prompt, "Extend it") {
		t.Error("improvement mode should ask for an extended suite")
	}
	if !strings.Contains(prompt, "def test_add():\n    assert True") {
		t.Error("improvement mode should include the current suite")
	}
}

func TestPublicTargets(t *testing.T) {
	code := "def visible():\n    pass\n\ndef _hidden():\n    pass\n\nclass Widget:\n    pass\n"
	got := publicTargets(code)
	want := []string{"visible", "Widget"}
	if len(got) != len(want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("targets[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
