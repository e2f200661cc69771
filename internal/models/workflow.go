package models

import "time"

// WorkflowStep is one templated issue within a workflow. DependsOn
// names other steps by title; the references are resolved to issue ids
// when the workflow is executed.
type WorkflowStep struct {
	Title       string   `yaml:"title"`
	Type        Type     `yaml:"type"`
	Priority    int      `yaml:"priority"`
	Description string   `yaml:"description,omitempty"`
	Labels      []string `yaml:"labels,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
}

// Workflow is a named template expanded into a linked issue graph.
type Workflow struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Steps       []WorkflowStep `yaml:"steps"`
	CreatedAt   time.Time      `yaml:"created_at"`
	UpdatedAt   time.Time      `yaml:"updated_at"`
}
