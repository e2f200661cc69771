// Package hint manages the free-text knowledge store consulted when
// composing agent context.
package hint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/store"
)

const (
	idPrefix   = "wv-hint"
	idAttempts = 3
)

// Service manages hints.
type Service struct {
	store *store.HintStore
}

// New returns a Service over hs.
func New(hs *store.HintStore) *Service {
	return &Service{store: hs}
}

// CreateOrUpdate saves a hint. An existing hint with the same title
// (case-insensitive) is updated in place, keeping its id and
// created_at. The bool reports whether a new hint was created.
func (s *Service) CreateOrUpdate(title, content string, labels []string) (models.Hint, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Hint{}, false, errors.New("hint: title is required")
	}
	if strings.TrimSpace(content) == "" {
		return models.Hint{}, false, errors.New("hint: content is required")
	}
	now := time.Now().UTC()

	existing, err := s.store.FindByTitle(title)
	switch {
	case err == nil:
		existing.Title = title
		existing.Content = content
		existing.Labels = labels
		existing.UpdatedAt = now
		if err := s.store.Write(existing); err != nil {
			return models.Hint{}, false, err
		}
		return existing, false, nil
	case errors.Is(err, store.ErrNotFound):
		id, err := s.newID()
		if err != nil {
			return models.Hint{}, false, err
		}
		h := models.Hint{
			ID:        id,
			Title:     title,
			Labels:    labels,
			CreatedAt: now,
			UpdatedAt: now,
			Content:   content,
		}
		if err := s.store.Write(h); err != nil {
			return models.Hint{}, false, err
		}
		return h, true, nil
	default:
		return models.Hint{}, false, err
	}
}

// Get resolves a hint by id first, then by case-insensitive title.
func (s *Service) Get(titleOrID string) (models.Hint, error) {
	h, err := s.store.Read(titleOrID)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Hint{}, err
	}
	return s.store.FindByTitle(titleOrID)
}

// List returns all hints sorted by title.
func (s *Service) List() ([]models.Hint, error) {
	return s.store.List()
}

// Search returns hints whose title or content contains query,
// case-insensitive.
func (s *Service) Search(query string) ([]models.Hint, error) {
	return s.store.Search(query)
}

func (s *Service) newID() (string, error) {
	existing, err := s.store.List()
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(existing))
	for _, h := range existing {
		taken[h.ID] = true
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
	return "", fmt.Errorf("hint: no unique id after %d attempts: %w", idAttempts, issue.ErrCollision)
}
