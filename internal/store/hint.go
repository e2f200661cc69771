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

// HintStore persists hints, one markdown file per hint under
// .weaver/hints/. The frontmatter carries the metadata; the body is
// the hint content.
type HintStore struct {
	dir string
}

// NewHintStore returns a HintStore rooted at the workspace's hints
// directory.
func NewHintStore(root string) *HintStore {
	return &HintStore{dir: filepath.Join(WeaverDir(root), "hints")}
}

// Init idempotently ensures the hints directory exists.
func (s *HintStore) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: init hints dir: %w", err)
	}
	return nil
}

func (s *HintStore) path(id string) string {
	return filepath.Join(s.dir, id+".md")
}

// Read loads one hint by id.
func (s *HintStore) Read(id string) (models.Hint, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return models.Hint{}, fmt.Errorf("store: hint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Hint{}, fmt.Errorf("store: read hint %s: %w", id, err)
	}
	hint, err := decodeHint(data)
	if err != nil {
		return models.Hint{}, fmt.Errorf("store: hint %s: %w: %v", id, ErrParse, err)
	}
	return hint, nil
}

// Write persists the hint atomically.
func (s *HintStore) Write(hint models.Hint) error {
	if hint.Labels == nil {
		hint.Labels = []string{}
	}
	data, err := renderFrontmatter(hint, hint.Content)
	if err != nil {
		return fmt.Errorf("store: encode hint %s: %w", hint.ID, err)
	}
	if err := writeAtomic(s.path(hint.ID), data); err != nil {
		return fmt.Errorf("store: write hint %s: %w", hint.ID, err)
	}
	return nil
}

// Delete removes a hint and reports whether one existed.
func (s *HintStore) Delete(id string) (bool, error) {
	err := os.Remove(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: delete hint %s: %w", id, err)
	}
	return true, nil
}

// List loads every hint, sorted by lowercased title. Corrupt records
// are skipped and logged.
func (s *HintStore) List() ([]models.Hint, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list hints: %w", err)
	}
	hints := make([]models.Hint, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		hint, err := s.Read(strings.TrimSuffix(name, ".md"))
		if err != nil {
			log.Printf("store: skipping hint %s: %v", name, err)
			continue
		}
		hints = append(hints, hint)
	}
	sort.Slice(hints, func(i, j int) bool {
		return strings.ToLower(hints[i].Title) < strings.ToLower(hints[j].Title)
	})
	return hints, nil
}

// FindByTitle returns the hint whose title matches (case-insensitive).
func (s *HintStore) FindByTitle(title string) (models.Hint, error) {
	hints, err := s.List()
	if err != nil {
		return models.Hint{}, err
	}
	for _, h := range hints {
		if strings.EqualFold(h.Title, title) {
			return h, nil
		}
	}
	return models.Hint{}, fmt.Errorf("store: hint titled %q: %w", title, ErrNotFound)
}

// Search returns hints whose title or content contains the query,
// case-insensitive, in List order.
func (s *HintStore) Search(query string) ([]models.Hint, error) {
	hints, err := s.List()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	matches := []models.Hint{}
	for _, h := range hints {
		if strings.Contains(strings.ToLower(h.Title), q) || strings.Contains(strings.ToLower(h.Content), q) {
			matches = append(matches, h)
		}
	}
	return matches, nil
}

func decodeHint(data []byte) (models.Hint, error) {
	header, body, err := splitFrontmatter(data)
	if err != nil {
		return models.Hint{}, err
	}
	var hint models.Hint
	if err := yaml.Unmarshal(header, &hint); err != nil {
		return models.Hint{}, err
	}
	if hint.ID == "" {
		return models.Hint{}, errors.New("missing id")
	}
	if hint.Title == "" {
		return models.Hint{}, errors.New("missing title")
	}
	if hint.Labels == nil {
		hint.Labels = []string{}
	}
	hint.Content = strings.TrimSpace(body)
	return hint, nil
}
