// Package config loads the pipeline configuration from YAML. Values may
// reference environment variables with $NAME or ${NAME} syntax, which keeps
// tokens and API keys out of the file itself.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	GitHub   GitHub   `yaml:"github"`
	Project  Project  `yaml:"project"`
	Settings Settings `yaml:"settings"`
	LLM      LLM      `yaml:"llm"`
	Store    Store    `yaml:"store"`
}

// GitHub holds the remote repository coordinates and credentials.
type GitHub struct {
	Username    string `yaml:"username"`
	Token       string `yaml:"token"`
	UserEmail   string `yaml:"user_email"`
	RepoURL     string `yaml:"repo_url"`
	Branch      string `yaml:"branch"`
	NewBranch   string `yaml:"new_branch"`
	NewRepoName string `yaml:"new_repo_name"`
}

// Project locates the local checkout and names the generated module.
type Project struct {
	RepoPath    string `yaml:"repo_path"`
	ProjectName string `yaml:"project_name"`
	ModuleName  string `yaml:"module_name"`
}

// Settings tune generation behavior.
type Settings struct {
	BranchPrefix  string `yaml:"branch_prefix"`
	TDDCoverage   int    `yaml:"tdd_coverage"`
	DiagramFormat string `yaml:"diagram_format"`
	CodeStyle     string `yaml:"code_style"`
	CoverageRetry bool   `yaml:"coverage_retry"`
}

// LLM selects the model provider.
type LLM struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// Store selects where run state is persisted. Exactly one backend should
// be configured; with neither set, state stays in memory.
type Store struct {
	SQLitePath string `yaml:"sqlite_path"`
	MySQLDSN   string `yaml:"mysql_dsn"`
}

// Load reads, expands, and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes configuration bytes, expanding environment references
// before unmarshaling.
func Parse(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.GitHub.Branch == "" {
		c.GitHub.Branch = "main"
	}
	if c.Settings.TDDCoverage <= 0 {
		c.Settings.TDDCoverage = 90
	}
	if c.Settings.BranchPrefix == "" {
		c.Settings.BranchPrefix = "feature"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
}

// Validate checks the fields every run needs. Provider credentials are
// checked by the provider constructors, not here.
func (c *Config) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("github.username", c.GitHub.Username)
	check("github.token", c.GitHub.Token)
	check("github.repo_url", c.GitHub.RepoURL)
	check("github.new_branch", c.GitHub.NewBranch)
	check("project.repo_path", c.Project.RepoPath)
	check("project.project_name", c.Project.ProjectName)
	check("project.module_name", c.Project.ModuleName)
	check("llm.provider", c.LLM.Provider)
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "openai", "chatgpt", "google", "gemini":
	default:
		return fmt.Errorf("config: unsupported llm provider %q", c.LLM.Provider)
	}
	if c.Store.SQLitePath != "" && c.Store.MySQLDSN != "" {
		return fmt.Errorf("config: choose one store backend, not both")
	}
	return nil
}
