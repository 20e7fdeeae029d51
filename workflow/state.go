// Package workflow defines the repository-bootstrap pipeline: its shared
// state, its branch routers, and the graph wiring.
package workflow

import (
	"encoding/json"
	"strings"
)

// Status is the enumerated outcome of a pipeline domain.
type Status string

// The closed status set. Every domain starts at pending; success and
// failed are common; the remaining values are step-specific.
const (
	StatusPending        Status = "pending"
	StatusSuccess        Status = "success"
	StatusFailed         Status = "failed"
	StatusBranchNotFound Status = "branch_not_found" // repo exists, branch does not
	StatusAlreadyExists  Status = "already_exists"   // local clone already present
	StatusBelowThreshold Status = "below_threshold"  // coverage under the configured bar
	StatusClean          Status = "clean"            // nothing to commit
)

// Domain identifies one pipeline concern. Each domain owns exactly one
// status field and one message field in the state; a step writes only the
// fields of its own domain.
type Domain string

const (
	DomainRepoCheck      Domain = "repo_check"
	DomainRepoCreation   Domain = "repo_creation"
	DomainClone          Domain = "clone"
	DomainCodeGeneration Domain = "code_generation"
	DomainTestGeneration Domain = "test_generation"
	DomainCoverage       Domain = "coverage"
	DomainReadme         Domain = "readme"
	DomainGitPush        Domain = "git_push"
)

// Domains lists every pipeline domain in execution order.
var Domains = []Domain{
	DomainRepoCheck,
	DomainRepoCreation,
	DomainClone,
	DomainCodeGeneration,
	DomainTestGeneration,
	DomainCoverage,
	DomainReadme,
	DomainGitPush,
}

// StatusKey returns the wire name of the domain's status field,
// e.g. "repo_check_status". These names are a stable contract with
// external consumers of persisted run state and must not change.
func (d Domain) StatusKey() string {
	return string(d) + "_status"
}

// MessageKey returns the wire name of the domain's message field.
func (d Domain) MessageKey() string {
	return string(d) + "_message"
}

// Inputs are the fields set once before the run starts. They are immutable
// by convention; the one exception is RepoURL, which the repo-creation step
// overwrites with the URL of the repository it just created.
type Inputs struct {
	Username    string
	Token       string
	UserEmail   string
	RepoURL     string
	Branch      string
	NewBranch   string
	NewRepoName string

	RepoPath    string
	ProjectName string
	ModuleName  string

	CodePrompt        string
	BranchPrefix      string
	CoverageThreshold int
	CodeStyle         string
	DiagramFormat     string
}

// State is the workflow state handed from step to step. It has value
// semantics: all setters return a modified copy, so a step cannot clobber
// the state an earlier hop already persisted.
//
// Inputs and result fields are plain struct fields; per-domain statuses and
// messages live in maps behind accessors so that reading a never-written
// domain yields the pending default instead of an error.
type State struct {
	Inputs Inputs

	// Result fields, each written by the single step that owns it.
	GeneratedCode        string
	GeneratedCodePath    string
	TestsContent         string
	TestFilePath         string
	ImproveExistingTests bool
	CoveragePercent      int

	statuses    map[Domain]Status
	messages    map[Domain]string
	retryStatus string
}

// NewState creates a State with the given inputs and every domain pending.
func NewState(inputs Inputs) State {
	return State{Inputs: inputs}
}

// Status returns the domain's status, StatusPending when never set.
func (s State) Status(d Domain) Status {
	if st, ok := s.statuses[d]; ok {
		return st
	}
	return StatusPending
}

// Message returns the domain's human-readable message, empty when unset.
func (s State) Message(d Domain) string {
	return s.messages[d]
}

// RetryStatus returns the exhaustion message set by a retry supervisor,
// empty unless some supervised step ran out of attempts.
func (s State) RetryStatus() string {
	return s.retryStatus
}

// WithOutcome returns a copy with the domain's status and message set.
func (s State) WithOutcome(d Domain, status Status, message string) State {
	next := s.cloneMaps()
	next.statuses[d] = status
	next.messages[d] = message
	return next
}

// WithRepoURL returns a copy with the repository URL replaced. Used by the
// repo-creation step to publish the address of the repository it created.
func (s State) WithRepoURL(url string) State {
	next := s
	next.Inputs.RepoURL = url
	return next
}

// StatusValue implements the graph.Failable read side: it resolves a wire
// status key ("code_generation_status") to the domain's current value.
// Unknown keys report the empty string, which no supervisor treats as
// success.
func (s State) StatusValue(key string) string {
	d, ok := domainForStatusKey(key)
	if !ok {
		return ""
	}
	return string(s.Status(d))
}

// WithFailure implements the graph.Failable write side: the retry
// supervisor forces the domain to failed and records why in retry_status.
func (s State) WithFailure(statusKey, retryMessage string) State {
	next := s.cloneMaps()
	if d, ok := domainForStatusKey(statusKey); ok {
		next.statuses[d] = StatusFailed
	}
	next.retryStatus = retryMessage
	return next
}

func (s State) cloneMaps() State {
	next := s
	next.statuses = make(map[Domain]Status, len(s.statuses)+1)
	for k, v := range s.statuses {
		next.statuses[k] = v
	}
	next.messages = make(map[Domain]string, len(s.messages)+1)
	for k, v := range s.messages {
		next.messages[k] = v
	}
	return next
}

func domainForStatusKey(key string) (Domain, bool) {
	name, ok := strings.CutSuffix(key, "_status")
	if !ok {
		return "", false
	}
	d := Domain(name)
	for _, known := range Domains {
		if d == known {
			return d, true
		}
	}
	return "", false
}

// stateWire is the persisted form of State. Status and message fields keep
// their original flat wire names so stored runs stay readable by tooling
// built against the old pipeline. The access token is never persisted.
type stateWire struct {
	Username    string `json:"username"`
	UserEmail   string `json:"user_email"`
	RepoURL     string `json:"repo_url"`
	Branch      string `json:"branch"`
	NewBranch   string `json:"new_branch"`
	NewRepoName string `json:"new_repo_name"`

	RepoPath    string `json:"repo_path"`
	ProjectName string `json:"project_name"`
	ModuleName  string `json:"module_name"`

	CodePrompt        string `json:"code_prompt"`
	BranchPrefix      string `json:"branch_prefix,omitempty"`
	CoverageThreshold int    `json:"coverage_threshold"`
	CodeStyle         string `json:"code_style,omitempty"`
	DiagramFormat     string `json:"diagram_format,omitempty"`

	GeneratedCode        string `json:"generated_code,omitempty"`
	GeneratedCodePath    string `json:"generated_code_path,omitempty"`
	TestsContent         string `json:"tests_content,omitempty"`
	TestFilePath         string `json:"test_file_path,omitempty"`
	ImproveExistingTests bool   `json:"improve_existing_tests,omitempty"`
	CoveragePercent      int    `json:"coverage_percent,omitempty"`

	RetryStatus string `json:"retry_status,omitempty"`
}

// MarshalJSON flattens the state into the original wire format: inputs and
// results under their historical names plus one `<domain>_status` and
// `<domain>_message` pair per domain.
func (s State) MarshalJSON() ([]byte, error) {
	flat := map[string]any{
		"username":           s.Inputs.Username,
		"user_email":         s.Inputs.UserEmail,
		"repo_url":           s.Inputs.RepoURL,
		"branch":             s.Inputs.Branch,
		"new_branch":         s.Inputs.NewBranch,
		"new_repo_name":      s.Inputs.NewRepoName,
		"repo_path":          s.Inputs.RepoPath,
		"project_name":       s.Inputs.ProjectName,
		"module_name":        s.Inputs.ModuleName,
		"code_prompt":        s.Inputs.CodePrompt,
		"coverage_threshold": s.Inputs.CoverageThreshold,
	}
	setIf := func(key, value string) {
		if value != "" {
			flat[key] = value
		}
	}
	setIf("branch_prefix", s.Inputs.BranchPrefix)
	setIf("code_style", s.Inputs.CodeStyle)
	setIf("diagram_format", s.Inputs.DiagramFormat)
	setIf("generated_code", s.GeneratedCode)
	setIf("generated_code_path", s.GeneratedCodePath)
	setIf("tests_content", s.TestsContent)
	setIf("test_file_path", s.TestFilePath)
	setIf("retry_status", s.retryStatus)
	if s.ImproveExistingTests {
		flat["improve_existing_tests"] = true
	}
	if s.CoveragePercent != 0 {
		flat["coverage_percent"] = s.CoveragePercent
	}

	for _, d := range Domains {
		flat[d.StatusKey()] = string(s.Status(d))
		if msg := s.Message(d); msg != "" {
			flat[d.MessageKey()] = msg
		}
	}

	return json.Marshal(flat)
}

// UnmarshalJSON restores a persisted state. The token field is absent from
// the wire form, so restored states cannot authenticate; they exist for
// inspection, not resumption.
func (s *State) UnmarshalJSON(data []byte) error {
	var wire stateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	*s = State{
		Inputs: Inputs{
			Username:          wire.Username,
			UserEmail:         wire.UserEmail,
			RepoURL:           wire.RepoURL,
			Branch:            wire.Branch,
			NewBranch:         wire.NewBranch,
			NewRepoName:       wire.NewRepoName,
			RepoPath:          wire.RepoPath,
			ProjectName:       wire.ProjectName,
			ModuleName:        wire.ModuleName,
			CodePrompt:        wire.CodePrompt,
			BranchPrefix:      wire.BranchPrefix,
			CoverageThreshold: wire.CoverageThreshold,
			CodeStyle:         wire.CodeStyle,
			DiagramFormat:     wire.DiagramFormat,
		},
		GeneratedCode:        wire.GeneratedCode,
		GeneratedCodePath:    wire.GeneratedCodePath,
		TestsContent:         wire.TestsContent,
		TestFilePath:         wire.TestFilePath,
		ImproveExistingTests: wire.ImproveExistingTests,
		CoveragePercent:      wire.CoveragePercent,
		retryStatus:          wire.RetryStatus,
	}

	for _, d := range Domains {
		if raw, ok := flat[d.StatusKey()]; ok {
			var st string
			if err := json.Unmarshal(raw, &st); err != nil {
				return err
			}
			if st != string(StatusPending) {
				*s = s.WithOutcome(d, Status(st), s.Message(d))
			}
		}
		if raw, ok := flat[d.MessageKey()]; ok {
			var msg string
			if err := json.Unmarshal(raw, &msg); err != nil {
				return err
			}
			*s = s.WithOutcome(d, s.Status(d), msg)
		}
	}
	return nil
}
