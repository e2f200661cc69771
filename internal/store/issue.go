package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rjpower/weaver/internal/models"
	"gopkg.in/yaml.v3"
)

// Store is the durable mapping from issue id to record, one markdown
// file per issue under .weaver/issues/.
type Store struct {
	dir string
}

// New returns a Store rooted at the workspace's issues directory.
func New(root string) *Store {
	return &Store{dir: filepath.Join(WeaverDir(root), "issues")}
}

// Dir returns the directory issue files live in.
func (s *Store) Dir() string { return s.dir }

// Init idempotently ensures the issues directory exists.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: init issues dir: %w", err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".md")
}

// Read loads one issue. Absent records fail with ErrNotFound; records
// whose header cannot be decoded fail with ErrParse.
func (s *Store) Read(id string) (models.Issue, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return models.Issue{}, fmt.Errorf("store: issue %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Issue{}, fmt.Errorf("store: read issue %s: %w", id, err)
	}
	issue, err := decodeIssue(data)
	if err != nil {
		return models.Issue{}, fmt.Errorf("store: issue %s: %w: %v", id, ErrParse, err)
	}
	return issue, nil
}

// Write persists the full record atomically.
func (s *Store) Write(issue models.Issue) error {
	data, err := encodeIssue(issue)
	if err != nil {
		return fmt.Errorf("store: encode issue %s: %w", issue.ID, err)
	}
	if err := writeAtomic(s.path(issue.ID), data); err != nil {
		return fmt.Errorf("store: write issue %s: %w", issue.ID, err)
	}
	return nil
}

// Delete removes the record and reports whether one existed.
func (s *Store) Delete(id string) (bool, error) {
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: delete issue %s: %w", id, err)
	}
	return true, nil
}

// ListIDs enumerates all persisted issue ids.
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list issues: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".md"))
	}
	return ids, nil
}

// ReadAll loads every issue. A record that fails to read is skipped
// and logged so one corrupt file cannot block all queries.
func (s *Store) ReadAll() ([]models.Issue, error) {
	ids, err := s.ListIDs()
	if err != nil {
		return nil, err
	}
	issues := make([]models.Issue, 0, len(ids))
	for _, id := range ids {
		issue, err := s.Read(id)
		if err != nil {
			log.Printf("store: skipping issue %s: %v", id, err)
			continue
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// issueHeader is the decode-side view of the frontmatter. Priority is
// a pointer so an absent field can default to 2 without shadowing an
// explicit 0.
type issueHeader struct {
	ID        string     `yaml:"id"`
	Title     string     `yaml:"title"`
	Type      string     `yaml:"type"`
	Status    string     `yaml:"status"`
	Priority  *int       `yaml:"priority"`
	Labels    []string   `yaml:"labels"`
	BlockedBy []string   `yaml:"blocked_by"`
	Parent    string     `yaml:"parent"`
	CreatedAt time.Time  `yaml:"created_at"`
	UpdatedAt time.Time  `yaml:"updated_at"`
	ClosedAt  *time.Time `yaml:"closed_at"`
}

var checkboxRe = regexp.MustCompile(`^\s*-\s*\[[ x]\]\s*(.+)$`)

func encodeIssue(issue models.Issue) ([]byte, error) {
	if issue.Labels == nil {
		issue.Labels = []string{}
	}
	if issue.BlockedBy == nil {
		issue.BlockedBy = []string{}
	}

	var parts []string
	if issue.Description != "" {
		parts = append(parts, issue.Description)
	}
	if issue.DesignNotes != "" {
		parts = append(parts, "## Design Notes\n\n"+issue.DesignNotes)
	}
	if len(issue.AcceptanceCriteria) > 0 {
		lines := []string{"## Acceptance Criteria", ""}
		for _, c := range issue.AcceptanceCriteria {
			lines = append(lines, "- [ ] "+c)
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return renderFrontmatter(issue, strings.Join(parts, "\n\n"))
}

func decodeIssue(data []byte) (models.Issue, error) {
	header, body, err := splitFrontmatter(data)
	if err != nil {
		return models.Issue{}, err
	}
	var h issueHeader
	if err := yaml.Unmarshal(header, &h); err != nil {
		return models.Issue{}, err
	}
	if h.ID == "" {
		return models.Issue{}, errors.New("missing id")
	}
	if h.Title == "" {
		return models.Issue{}, errors.New("missing title")
	}

	issue := models.Issue{
		ID:        h.ID,
		Title:     h.Title,
		Type:      models.TypeTask,
		Status:    models.StatusOpen,
		Priority:  2,
		Labels:    h.Labels,
		BlockedBy: h.BlockedBy,
		Parent:    h.Parent,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
		ClosedAt:  h.ClosedAt,
	}
	if h.Type != "" {
		issue.Type = models.Type(h.Type)
		if !issue.Type.Valid() {
			return models.Issue{}, fmt.Errorf("unknown type %q", h.Type)
		}
	}
	if h.Status != "" {
		issue.Status = models.Status(h.Status)
		if !issue.Status.Valid() {
			return models.Issue{}, fmt.Errorf("unknown status %q", h.Status)
		}
	}
	if h.Priority != nil {
		issue.Priority = *h.Priority
	}
	if issue.Labels == nil {
		issue.Labels = []string{}
	}
	if issue.BlockedBy == nil {
		issue.BlockedBy = []string{}
	}

	issue.Description, issue.DesignNotes, issue.AcceptanceCriteria = parseBody(body)
	return issue, nil
}

// parseBody splits the markdown body into the description, the Design
// Notes section, and the Acceptance Criteria checkbox items. Unknown
// sections are ignored.
func parseBody(body string) (string, string, []string) {
	var descLines, noteLines []string
	criteria := []string{}
	section := "description"
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "## Design Notes":
			section = "notes"
			continue
		case trimmed == "## Acceptance Criteria":
			section = "criteria"
			continue
		case strings.HasPrefix(trimmed, "## "):
			section = "other"
			continue
		}
		switch section {
		case "description":
			descLines = append(descLines, line)
		case "notes":
			noteLines = append(noteLines, line)
		case "criteria":
			if m := checkboxRe.FindStringSubmatch(line); m != nil {
				criteria = append(criteria, m[1])
			}
		}
	}
	description := strings.TrimSpace(strings.Join(descLines, "\n"))
	notes := strings.TrimSpace(strings.Join(noteLines, "\n"))
	return description, notes, criteria
}
