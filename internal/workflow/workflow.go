// Package workflow expands YAML templates into dependency-wired
// issue graphs.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/store"
	"gopkg.in/yaml.v3"
)

const (
	idPrefix   = "wv-workflow"
	idAttempts = 3
)

// Service manages workflow templates and materializes them into
// issues.
type Service struct {
	store  *store.WorkflowStore
	issues *issue.Service
}

// New returns a Service over the given stores.
func New(ws *store.WorkflowStore, issues *issue.Service) *Service {
	return &Service{store: ws, issues: issues}
}

// workflowInput is the user-supplied template schema. Priority is a
// pointer so an explicit 0 survives defaulting.
type workflowInput struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Steps       []stepInput `yaml:"steps"`
}

type stepInput struct {
	Title       string   `yaml:"title"`
	Type        string   `yaml:"type"`
	Priority    *int     `yaml:"priority"`
	Description string   `yaml:"description"`
	Labels      []string `yaml:"labels"`
	DependsOn   []string `yaml:"depends_on"`
}

// Parse unmarshals and validates a workflow template. The returned
// Workflow carries no id or timestamps; CreateOrUpdate assigns those.
func Parse(data []byte) (models.Workflow, error) {
	var in workflowInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return models.Workflow{}, fmt.Errorf("workflow: parse: %w", err)
	}

	var errs []string
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, "name is required")
	}
	if len(in.Steps) == 0 {
		errs = append(errs, "at least one step is required")
	}

	titles := make(map[string]int, len(in.Steps))
	steps := make([]models.WorkflowStep, 0, len(in.Steps))
	for i, s := range in.Steps {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			errs = append(errs, fmt.Sprintf("steps[%d].title is required", i))
			continue
		}
		if _, dup := titles[title]; dup {
			errs = append(errs, fmt.Sprintf("duplicate step title %q", title))
		}
		titles[title] = i

		typ := models.Type(s.Type)
		if s.Type == "" {
			typ = models.TypeTask
		}
		if !typ.Valid() {
			errs = append(errs, fmt.Sprintf("steps[%d]: unknown type %q", i, s.Type))
		}
		priority := 2
		if s.Priority != nil {
			priority = *s.Priority
		}
		if priority < 0 || priority > 4 {
			errs = append(errs, fmt.Sprintf("steps[%d]: priority %d out of range 0-4", i, priority))
		}
		steps = append(steps, models.WorkflowStep{
			Title:       title,
			Type:        typ,
			Priority:    priority,
			Description: s.Description,
			Labels:      s.Labels,
			DependsOn:   s.DependsOn,
		})
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := titles[dep]; !ok {
				errs = append(errs, fmt.Sprintf("step %q depends on unknown step %q", s.Title, dep))
			}
		}
	}
	if len(errs) == 0 && hasStepCycle(steps) {
		errs = append(errs, "steps contain a dependency cycle")
	}

	if len(errs) > 0 {
		return models.Workflow{}, fmt.Errorf("workflow: invalid template: %s", strings.Join(errs, "; "))
	}
	return models.Workflow{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Steps:       steps,
	}, nil
}

// hasStepCycle reports whether depends_on edges loop. Unknown titles
// are reported separately and ignored here.
func hasStepCycle(steps []models.WorkflowStep) bool {
	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		deps[s.Title] = s.DependsOn
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(steps))
	var visit func(title string) bool
	visit = func(title string) bool {
		switch state[title] {
		case visiting:
			return true
		case done:
			return false
		}
		state[title] = visiting
		for _, dep := range deps[title] {
			if _, ok := deps[dep]; !ok {
				continue
			}
			if visit(dep) {
				return true
			}
		}
		state[title] = done
		return false
	}
	for _, s := range steps {
		if visit(s.Title) {
			return true
		}
	}
	return false
}

// CreateOrUpdate parses a template and saves it. An existing workflow
// with the same name (case-insensitive) is updated in place, keeping
// its id and created_at. The bool reports whether a new workflow was
// created.
func (s *Service) CreateOrUpdate(data []byte) (models.Workflow, bool, error) {
	wf, err := Parse(data)
	if err != nil {
		return models.Workflow{}, false, err
	}
	now := time.Now().UTC()

	existing, err := s.store.FindByName(wf.Name)
	switch {
	case err == nil:
		wf.ID = existing.ID
		wf.CreatedAt = existing.CreatedAt
		wf.UpdatedAt = now
		if err := s.store.Write(wf); err != nil {
			return models.Workflow{}, false, err
		}
		return wf, false, nil
	case errors.Is(err, store.ErrNotFound):
		id, err := s.newID()
		if err != nil {
			return models.Workflow{}, false, err
		}
		wf.ID = id
		wf.CreatedAt = now
		wf.UpdatedAt = now
		if err := s.store.Write(wf); err != nil {
			return models.Workflow{}, false, err
		}
		return wf, true, nil
	default:
		return models.Workflow{}, false, err
	}
}

// Get resolves a workflow by id first, then by case-insensitive name.
func (s *Service) Get(nameOrID string) (models.Workflow, error) {
	wf, err := s.store.Read(nameOrID)
	if err == nil {
		return wf, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Workflow{}, err
	}
	return s.store.FindByName(nameOrID)
}

// List returns all workflows sorted by name.
func (s *Service) List() ([]models.Workflow, error) {
	return s.store.List()
}

// Execute materializes a workflow into issues. Each step becomes one
// issue tagged workflow:<name> (or workflow:<labelPrefix> when given),
// then depends_on titles are wired as dependencies in a second pass so
// forward references resolve. Returns the created issues in step
// order.
func (s *Service) Execute(nameOrID, labelPrefix string) ([]models.Issue, error) {
	wf, err := s.Get(nameOrID)
	if err != nil {
		return nil, err
	}

	marker := "workflow:" + wf.Name
	if labelPrefix != "" {
		marker = "workflow:" + labelPrefix
	}

	idByTitle := make(map[string]string, len(wf.Steps))
	ids := make([]string, 0, len(wf.Steps))
	for _, step := range wf.Steps {
		created, err := s.issues.Create(issue.CreateOpts{
			Title:       step.Title,
			Description: step.Description,
			Type:        step.Type,
			Priority:    step.Priority,
			Labels:      append(append([]string{}, step.Labels...), marker),
		})
		if err != nil {
			return nil, fmt.Errorf("workflow: step %q: %w", step.Title, err)
		}
		idByTitle[step.Title] = created.ID
		ids = append(ids, created.ID)
	}

	for _, step := range wf.Steps {
		for _, dep := range step.DependsOn {
			blockerID, ok := idByTitle[dep]
			if !ok {
				return nil, fmt.Errorf("workflow: step %q depends on unknown step %q", step.Title, dep)
			}
			if err := s.issues.AddDependency(idByTitle[step.Title], blockerID); err != nil {
				return nil, fmt.Errorf("workflow: step %q: %w", step.Title, err)
			}
		}
	}

	created := make([]models.Issue, 0, len(ids))
	for _, id := range ids {
		iss, err := s.issues.Get(id)
		if err != nil {
			return nil, err
		}
		created = append(created, iss)
	}
	return created, nil
}

func (s *Service) newID() (string, error) {
	existing, err := s.store.List()
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(existing))
	for _, wf := range existing {
		taken[wf.ID] = true
	}
	for range idAttempts {
		id, err := issue.GenerateID(idPrefix)
		if err != nil {
			return "", err
		}
		if !taken[id] {
			return id, nil
		}
	}
	return "", fmt.Errorf("workflow: no unique id after %d attempts: %w", idAttempts, issue.ErrCollision)
}
