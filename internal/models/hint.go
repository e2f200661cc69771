package models

import "time"

// Hint is a titled free-text note surfaced to launched agents when its
// title matches one of the issue's labels.
type Hint struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Labels    []string  `yaml:"labels"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
	Content   string    `yaml:"-"`
}
