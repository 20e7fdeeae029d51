package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forgeflow/forgeflow/workflow"
)

func createState() workflow.State {
	return workflow.NewState(workflow.Inputs{
		Username:    "octocat",
		Token:       "tok",
		NewRepoName: "demo",
		RepoURL:     "https://github.com/octocat/old.git",
	})
}

func TestCreateRemoteRepoSuccess(t *testing.T) {
	var gotName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v3/user/repos" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var body struct {
			Name    string `json:"name"`
			Private bool   `json:"private"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		gotName = body.Name
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"name":%q,"html_url":"https://github.com/octocat/demo","clone_url":"https://github.com/octocat/demo.git"}`, body.Name)
	}))
	defer server.Close()

	a := &CreateRemoteRepo{BaseURL: server.URL}
	final, err := a.Invoke(context.Background(), createState())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotName != "demo" {
		t.Errorf("created repo name = %q, want demo", gotName)
	}
	if got := final.Status(workflow.DomainRepoCreation); got != workflow.StatusSuccess {
		t.Fatalf("status = %s, message = %s", got, final.Message(workflow.DomainRepoCreation))
	}
	// The rest of the pipeline works against the repository just created.
	if got := final.Inputs.RepoURL; got != "https://github.com/octocat/demo.git" {
		t.Errorf("repo URL = %s, want the new clone URL", got)
	}
}

func TestCreateRemoteRepoAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"name already exists on this account"}`)
	}))
	defer server.Close()

	a := &CreateRemoteRepo{BaseURL: server.URL}
	final, err := a.Invoke(context.Background(), createState())
	if err != nil {
		t.Fatalf("API errors must become a status, got %v", err)
	}
	if got := final.Status(workflow.DomainRepoCreation); got != workflow.StatusFailed {
		t.Errorf("status = %s, want failed", got)
	}
	// The old URL stays in place when creation fails.
	if got := final.Inputs.RepoURL; got != "https://github.com/octocat/old.git" {
		t.Errorf("repo URL = %s, want unchanged", got)
	}
}
