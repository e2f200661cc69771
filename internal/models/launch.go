package models

import "time"

// AgentModel is the short alias users pick a Claude model by.
type AgentModel string

const (
	ModelSonnet AgentModel = "sonnet"
	ModelOpus   AgentModel = "opus"
	ModelFlash  AgentModel = "flash"
)

// Valid reports whether m is a known model alias.
func (m AgentModel) Valid() bool {
	switch m {
	case ModelSonnet, ModelOpus, ModelFlash:
		return true
	}
	return false
}

// FullName returns the concrete model identifier passed to the claude
// CLI and recorded on launch records.
func (m AgentModel) FullName() string {
	switch m {
	case ModelOpus:
		return "claude-opus-4-5-20251101"
	case ModelFlash:
		return "claude-haiku-4-5-20251001"
	default:
		return "claude-sonnet-4-5-20250929"
	}
}

// Launch records one agent subprocess execution against an issue.
// CompletedAt and ExitCode stay null until the process exits.
type Launch struct {
	ID          string     `yaml:"id"`
	IssueID     string     `yaml:"issue_id"`
	Model       string     `yaml:"model"`
	StartedAt   time.Time  `yaml:"started_at"`
	CompletedAt *time.Time `yaml:"completed_at"`
	ExitCode    *int       `yaml:"exit_code"`
	LogFile     string     `yaml:"log_file"`
}
