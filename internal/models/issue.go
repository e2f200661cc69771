// Package models defines the records persisted in a weaver workspace.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status is an issue lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
)

// Statuses lists all valid statuses in lifecycle order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusBlocked, StatusClosed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed:
		return true
	}
	return false
}

// Type classifies an issue.
type Type string

const (
	TypeTask    Type = "task"
	TypeBug     Type = "bug"
	TypeFeature Type = "feature"
	TypeEpic    Type = "epic"
	TypeChore   Type = "chore"
)

// Types lists all valid issue types.
var Types = []Type{TypeTask, TypeBug, TypeFeature, TypeEpic, TypeChore}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeTask, TypeBug, TypeFeature, TypeEpic, TypeChore:
		return true
	}
	return false
}

// Issue is the core work item in weaver. Frontmatter fields carry yaml
// tags; Description, DesignNotes and AcceptanceCriteria live in the
// markdown body instead.
type Issue struct {
	ID                 string     `yaml:"id"`
	Title              string     `yaml:"title"`
	Type               Type       `yaml:"type"`
	Status             Status     `yaml:"status"`
	Priority           int        `yaml:"priority"`
	Labels             []string   `yaml:"labels"`
	BlockedBy          []string   `yaml:"blocked_by"`
	Parent             string     `yaml:"parent,omitempty"`
	CreatedAt          time.Time  `yaml:"created_at"`
	UpdatedAt          time.Time  `yaml:"updated_at"`
	ClosedAt           *time.Time `yaml:"closed_at,omitempty"`
	Description        string     `yaml:"-"`
	DesignNotes        string     `yaml:"-"`
	AcceptanceCriteria []string   `yaml:"-"`
}

// IsOpen reports whether the issue still blocks its dependents: any
// status other than closed counts as open for readiness purposes.
func (i *Issue) IsOpen() bool {
	return i.Status != StatusClosed
}

// ContentHash derives a short fingerprint of the issue's text content
// for duplicate detection. It is recomputed on demand and never
// persisted.
func (i *Issue) ContentHash() string {
	sum := sha256.Sum256([]byte(i.Title + "|" + i.Description + "|" + i.DesignNotes))
	return hex.EncodeToString(sum[:])[:12]
}

// HasLabel reports whether the issue carries the given label.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// BlockedByID reports whether id is among the issue's direct blockers.
func (i *Issue) BlockedByID(id string) bool {
	for _, b := range i.BlockedBy {
		if b == id {
			return true
		}
	}
	return false
}
