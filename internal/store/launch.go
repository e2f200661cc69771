package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rjpower/weaver/internal/models"
	"gopkg.in/yaml.v3"
)

// LaunchStore persists agent launch records, one YAML file per launch
// under .weaver/launches/, with subprocess logs in launches/logs/.
type LaunchStore struct {
	dir string
}

// NewLaunchStore returns a LaunchStore rooted at the workspace's
// launches directory.
func NewLaunchStore(root string) *LaunchStore {
	return &LaunchStore{dir: filepath.Join(WeaverDir(root), "launches")}
}

// Init idempotently ensures the launches and logs directories exist.
func (s *LaunchStore) Init() error {
	if err := os.MkdirAll(s.LogsDir(), 0o755); err != nil {
		return fmt.Errorf("store: init launches dir: %w", err)
	}
	return nil
}

// LogsDir returns the directory launch logs are written to.
func (s *LaunchStore) LogsDir() string {
	return filepath.Join(s.dir, "logs")
}

// LogPath returns the log file path for a launch id.
func (s *LaunchStore) LogPath(id string) string {
	return filepath.Join(s.LogsDir(), id+".log")
}

// ContextPath returns the agent context document path for a launch id.
func (s *LaunchStore) ContextPath(id string) string {
	return filepath.Join(s.LogsDir(), id+"-context.md")
}

func (s *LaunchStore) path(id string) string {
	return filepath.Join(s.dir, id+".yml")
}

// Read loads one launch record by id.
func (s *LaunchStore) Read(id string) (models.Launch, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return models.Launch{}, fmt.Errorf("store: launch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Launch{}, fmt.Errorf("store: read launch %s: %w", id, err)
	}
	var l models.Launch
	if err := yaml.Unmarshal(data, &l); err != nil {
		return models.Launch{}, fmt.Errorf("store: launch %s: %w: %v", id, ErrParse, err)
	}
	if l.ID == "" {
		return models.Launch{}, fmt.Errorf("store: launch %s: %w: missing id", id, ErrParse)
	}
	return l, nil
}

// Write persists the launch record atomically.
func (s *LaunchStore) Write(l models.Launch) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("store: encode launch %s: %w", l.ID, err)
	}
	if err := writeAtomic(s.path(l.ID), data); err != nil {
		return fmt.Errorf("store: write launch %s: %w", l.ID, err)
	}
	return nil
}

// List loads every launch record sorted by start time. Corrupt records
// are skipped and logged.
func (s *LaunchStore) List() ([]models.Launch, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list launches: %w", err)
	}
	launches := make([]models.Launch, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yml") {
			continue
		}
		l, err := s.Read(strings.TrimSuffix(name, ".yml"))
		if err != nil {
			log.Printf("store: skipping launch %s: %v", name, err)
			continue
		}
		launches = append(launches, l)
	}
	sort.Slice(launches, func(i, j int) bool {
		return launches[i].StartedAt.Before(launches[j].StartedAt)
	})
	return launches, nil
}

// ListForIssue returns the launch records for one issue in start
// order.
func (s *LaunchStore) ListForIssue(issueID string) ([]models.Launch, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	matches := []models.Launch{}
	for _, l := range all {
		if l.IssueID == issueID {
			matches = append(matches, l)
		}
	}
	return matches, nil
}
