package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rjpower/weaver/internal/models"
)

func newTestHintStore(t *testing.T) *HintStore {
	t.Helper()
	s := NewHintStore(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func writeHint(t *testing.T, s *HintStore, id, title, content string, labels ...string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.Write(models.Hint{
		ID:        id,
		Title:     title,
		Content:   content,
		Labels:    labels,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Write hint %s: %v", id, err)
	}
}

func TestHintRoundTrip(t *testing.T) {
	s := newTestHintStore(t)
	writeHint(t, s, "wv-hint-1", "Database migrations", "Always run migrations in a transaction.", "backend")

	got, err := s.Read("wv-hint-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Title != "Database migrations" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Content != "Always run migrations in a transaction." {
		t.Errorf("Content = %q", got.Content)
	}
	if len(got.Labels) != 1 || got.Labels[0] != "backend" {
		t.Errorf("Labels = %v", got.Labels)
	}
}

func TestHintReadMissing(t *testing.T) {
	s := newTestHintStore(t)
	if _, err := s.Read("wv-hint-x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHintFindByTitleCaseInsensitive(t *testing.T) {
	s := newTestHintStore(t)
	writeHint(t, s, "wv-hint-1", "Database Migrations", "content")

	got, err := s.FindByTitle("database migrations")
	if err != nil {
		t.Fatalf("FindByTitle: %v", err)
	}
	if got.ID != "wv-hint-1" {
		t.Errorf("ID = %q, want wv-hint-1", got.ID)
	}

	if _, err := s.FindByTitle("nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByTitle miss: err = %v, want ErrNotFound", err)
	}
}

func TestHintListSortedByTitle(t *testing.T) {
	s := newTestHintStore(t)
	writeHint(t, s, "wv-hint-b", "zebra topic", "z")
	writeHint(t, s, "wv-hint-a", "Alpha topic", "a")
	writeHint(t, s, "wv-hint-c", "middle topic", "m")

	hints, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(hints) != 3 {
		t.Fatalf("len = %d, want 3", len(hints))
	}
	wantOrder := []string{"Alpha topic", "middle topic", "zebra topic"}
	for i, w := range wantOrder {
		if hints[i].Title != w {
			t.Errorf("hints[%d].Title = %q, want %q", i, hints[i].Title, w)
		}
	}
}

func TestHintSearch(t *testing.T) {
	s := newTestHintStore(t)
	writeHint(t, s, "wv-hint-1", "Database migrations", "Use transactions for schema changes.")
	writeHint(t, s, "wv-hint-2", "Frontend style", "Components use CSS modules.")

	byTitle, err := s.Search("DATABASE")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(byTitle) != 1 || byTitle[0].ID != "wv-hint-1" {
		t.Errorf("title search = %v", byTitle)
	}

	byContent, err := s.Search("css modules")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(byContent) != 1 || byContent[0].ID != "wv-hint-2" {
		t.Errorf("content search = %v", byContent)
	}

	none, err := s.Search("kubernetes")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("no-match search = %v, want empty", none)
	}
}

func TestHintListSkipsCorrupt(t *testing.T) {
	s := newTestHintStore(t)
	writeHint(t, s, "wv-hint-1", "Good", "fine")
	if err := os.WriteFile(filepath.Join(s.dir, "wv-hint-bad.md"), []byte("no frontmatter"), 0o644); err != nil {
		t.Fatal(err)
	}

	hints, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(hints) != 1 {
		t.Errorf("len = %d, want 1", len(hints))
	}
}
