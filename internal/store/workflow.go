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

// WorkflowStore persists workflow templates, one YAML file per
// workflow under .weaver/workflows/.
type WorkflowStore struct {
	dir string
}

// NewWorkflowStore returns a WorkflowStore rooted at the workspace's
// workflows directory.
func NewWorkflowStore(root string) *WorkflowStore {
	return &WorkflowStore{dir: filepath.Join(WeaverDir(root), "workflows")}
}

// Init idempotently ensures the workflows directory exists.
func (s *WorkflowStore) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: init workflows dir: %w", err)
	}
	return nil
}

func (s *WorkflowStore) path(id string) string {
	return filepath.Join(s.dir, id+".yml")
}

// Read loads one workflow by id.
func (s *WorkflowStore) Read(id string) (models.Workflow, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return models.Workflow{}, fmt.Errorf("store: workflow %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Workflow{}, fmt.Errorf("store: read workflow %s: %w", id, err)
	}
	var wf models.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return models.Workflow{}, fmt.Errorf("store: workflow %s: %w: %v", id, ErrParse, err)
	}
	if wf.ID == "" || wf.Name == "" {
		return models.Workflow{}, fmt.Errorf("store: workflow %s: %w: missing id or name", id, ErrParse)
	}
	return wf, nil
}

// Write persists the workflow atomically.
func (s *WorkflowStore) Write(wf models.Workflow) error {
	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("store: encode workflow %s: %w", wf.ID, err)
	}
	if err := writeAtomic(s.path(wf.ID), data); err != nil {
		return fmt.Errorf("store: write workflow %s: %w", wf.ID, err)
	}
	return nil
}

// List loads every workflow, sorted by lowercased name. Corrupt
// records are skipped and logged.
func (s *WorkflowStore) List() ([]models.Workflow, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list workflows: %w", err)
	}
	workflows := make([]models.Workflow, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yml") {
			continue
		}
		wf, err := s.Read(strings.TrimSuffix(name, ".yml"))
		if err != nil {
			log.Printf("store: skipping workflow %s: %v", name, err)
			continue
		}
		workflows = append(workflows, wf)
	}
	sort.Slice(workflows, func(i, j int) bool {
		return strings.ToLower(workflows[i].Name) < strings.ToLower(workflows[j].Name)
	})
	return workflows, nil
}

// FindByName returns the workflow whose name matches
// (case-insensitive).
func (s *WorkflowStore) FindByName(name string) (models.Workflow, error) {
	workflows, err := s.List()
	if err != nil {
		return models.Workflow{}, err
	}
	for _, wf := range workflows {
		if strings.EqualFold(wf.Name, name) {
			return wf, nil
		}
	}
	return models.Workflow{}, fmt.Errorf("store: workflow named %q: %w", name, ErrNotFound)
}
