package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rjpower/weaver/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func sampleIssue(id string) models.Issue {
	now := time.Now().UTC()
	return models.Issue{
		ID:                 id,
		Title:              "Fix login flow",
		Type:               models.TypeBug,
		Status:             models.StatusOpen,
		Priority:           1,
		Labels:             []string{"backend", "auth"},
		BlockedBy:          []string{"wv-aaaa"},
		Parent:             "wv-epic",
		CreatedAt:          now,
		UpdatedAt:          now,
		Description:        "Users cannot log in after the session store change.",
		DesignNotes:        "Check cookie domain handling.",
		AcceptanceCriteria: []string{"login succeeds", "session persists"},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := sampleIssue("wv-0001")
	if err := s.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Read("wv-0001")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.ID != want.ID || got.Title != want.Title || got.Type != want.Type ||
		got.Status != want.Status || got.Priority != want.Priority || got.Parent != want.Parent {
		t.Errorf("header fields differ: got %+v", got)
	}
	if !reflect.DeepEqual(got.Labels, want.Labels) {
		t.Errorf("Labels = %v, want %v", got.Labels, want.Labels)
	}
	if !reflect.DeepEqual(got.BlockedBy, want.BlockedBy) {
		t.Errorf("BlockedBy = %v, want %v", got.BlockedBy, want.BlockedBy)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
	if got.Description != want.Description {
		t.Errorf("Description = %q, want %q", got.Description, want.Description)
	}
	if got.DesignNotes != want.DesignNotes {
		t.Errorf("DesignNotes = %q, want %q", got.DesignNotes, want.DesignNotes)
	}
	if !reflect.DeepEqual(got.AcceptanceCriteria, want.AcceptanceCriteria) {
		t.Errorf("AcceptanceCriteria = %v, want %v", got.AcceptanceCriteria, want.AcceptanceCriteria)
	}
	if got.ClosedAt != nil {
		t.Errorf("ClosedAt = %v, want nil", got.ClosedAt)
	}
}

func TestRoundTripClosedAt(t *testing.T) {
	s := newTestStore(t)
	issue := sampleIssue("wv-0002")
	closed := time.Now().UTC()
	issue.Status = models.StatusClosed
	issue.ClosedAt = &closed
	if err := s.Write(issue); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("wv-0002")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.ClosedAt == nil || !got.ClosedAt.Equal(closed) {
		t.Errorf("ClosedAt = %v, want %v", got.ClosedAt, closed)
	}
}

func TestReadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Read("wv-nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Read missing: err = %v, want ErrNotFound", err)
	}
}

func TestReadCorruptHeader(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), "wv-bad.md")
	if err := os.WriteFile(path, []byte("---\n: : :\n---\nbody\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Read("wv-bad")
	if !errors.Is(err, ErrParse) {
		t.Errorf("Read corrupt: err = %v, want ErrParse", err)
	}
}

func TestReadMissingFrontmatter(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), "wv-plain.md")
	if err := os.WriteFile(path, []byte("just some text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Read("wv-plain")
	if !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestReadAppliesDefaults(t *testing.T) {
	s := newTestStore(t)
	minimal := "---\nid: wv-min\ntitle: Minimal issue\n---\n"
	if err := os.WriteFile(filepath.Join(s.Dir(), "wv-min.md"), []byte(minimal), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Read("wv-min")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Type != models.TypeTask {
		t.Errorf("Type = %q, want task", got.Type)
	}
	if got.Status != models.StatusOpen {
		t.Errorf("Status = %q, want open", got.Status)
	}
	if got.Priority != 2 {
		t.Errorf("Priority = %d, want 2", got.Priority)
	}
	if len(got.Labels) != 0 || got.Labels == nil {
		t.Errorf("Labels = %v, want empty non-nil", got.Labels)
	}
	if len(got.BlockedBy) != 0 || got.BlockedBy == nil {
		t.Errorf("BlockedBy = %v, want empty non-nil", got.BlockedBy)
	}
	if got.Parent != "" {
		t.Errorf("Parent = %q, want empty", got.Parent)
	}
}

func TestReadExplicitPriorityZero(t *testing.T) {
	s := newTestStore(t)
	content := "---\nid: wv-p0\ntitle: Urgent\npriority: 0\n---\n"
	if err := os.WriteFile(filepath.Join(s.Dir(), "wv-p0.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read("wv-p0")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Priority != 0 {
		t.Errorf("Priority = %d, want 0 (explicit zero must not default)", got.Priority)
	}
}

func TestReadRejectsUnknownStatus(t *testing.T) {
	s := newTestStore(t)
	content := "---\nid: wv-x\ntitle: Bad status\nstatus: done\n---\n"
	if err := os.WriteFile(filepath.Join(s.Dir(), "wv-x.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Read("wv-x")
	if !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want ErrParse for unknown status", err)
	}
}

func TestReadRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	content := "---\nid: wv-y\ntitle: Bad type\ntype: spike\n---\n"
	if err := os.WriteFile(filepath.Join(s.Dir(), "wv-y.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Read("wv-y")
	if !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want ErrParse for unknown type", err)
	}
}

func TestReadIgnoresUnknownSections(t *testing.T) {
	s := newTestStore(t)
	content := "---\nid: wv-s\ntitle: Sections\n---\n\nThe description.\n\n## Random Section\n\nignored text\n\n## Design Notes\n\nthe notes\n"
	if err := os.WriteFile(filepath.Join(s.Dir(), "wv-s.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read("wv-s")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Description != "The description." {
		t.Errorf("Description = %q", got.Description)
	}
	if got.DesignNotes != "the notes" {
		t.Errorf("DesignNotes = %q", got.DesignNotes)
	}
	if strings.Contains(got.Description, "ignored") {
		t.Error("unknown section leaked into description")
	}
}

func TestReadCheckedCriteria(t *testing.T) {
	s := newTestStore(t)
	content := "---\nid: wv-c\ntitle: Checks\n---\n\n## Acceptance Criteria\n\n- [ ] first\n- [x] second\nnot a checkbox\n"
	if err := os.WriteFile(filepath.Join(s.Dir(), "wv-c.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Read("wv-c")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []string{"first", "second"}
	if !reflect.DeepEqual(got.AcceptanceCriteria, want) {
		t.Errorf("AcceptanceCriteria = %v, want %v", got.AcceptanceCriteria, want)
	}
}

func TestWriteOmitsEmptyOptionalFields(t *testing.T) {
	s := newTestStore(t)
	issue := sampleIssue("wv-opt")
	issue.Parent = ""
	issue.ClosedAt = nil
	if err := s.Write(issue); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir(), "wv-opt.md"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "parent:") {
		t.Error("empty parent should be omitted from frontmatter")
	}
	if strings.Contains(string(raw), "closed_at:") {
		t.Error("unset closed_at should be omitted from frontmatter")
	}
}

func TestWriteEmptyListsStayExplicit(t *testing.T) {
	s := newTestStore(t)
	issue := sampleIssue("wv-lists")
	issue.Labels = nil
	issue.BlockedBy = nil
	if err := s.Write(issue); err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir(), "wv-lists.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "labels: []") {
		t.Errorf("frontmatter missing labels: []\n%s", raw)
	}
	if !strings.Contains(string(raw), "blocked_by: []") {
		t.Errorf("frontmatter missing blocked_by: []\n%s", raw)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write(sampleIssue("wv-tmp")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestWriteOverwritesAtomically(t *testing.T) {
	s := newTestStore(t)
	issue := sampleIssue("wv-over")
	if err := s.Write(issue); err != nil {
		t.Fatalf("Write: %v", err)
	}
	issue.Title = "Updated title"
	if err := s.Write(issue); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err := s.Read("wv-over")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Title != "Updated title" {
		t.Errorf("Title = %q, want %q", got.Title, "Updated title")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write(sampleIssue("wv-del")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	existed, err := s.Delete("wv-del")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Error("Delete existing = false, want true")
	}
	existed, err = s.Delete("wv-del")
	if err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if existed {
		t.Error("Delete missing = true, want false")
	}
	if _, err := s.Read("wv-del"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read after delete: err = %v, want ErrNotFound", err)
	}
}

func TestListIDs(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"wv-a", "wv-b", "wv-c"} {
		issue := sampleIssue(id)
		if err := s.Write(issue); err != nil {
			t.Fatalf("Write %s: %v", id, err)
		}
	}
	// Files without the .md suffix are not records.
	if err := os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ListIDs()
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("len(ids) = %d, want 3: %v", len(ids), ids)
	}
}

func TestListIDsMissingDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nothere"))
	ids, err := s.ListIDs()
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want empty", ids)
	}
}

func TestReadAllSkipsCorrupt(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write(sampleIssue("wv-good1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(sampleIssue("wv-good2")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "wv-corrupt.md"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	issues, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(issues) != 2 {
		t.Errorf("len(issues) = %d, want 2 (corrupt record skipped)", len(issues))
	}
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	if _, err := InitWorkspace(root); err != nil {
		t.Fatalf("InitWorkspace: %v", err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, ok := FindRoot(nested)
	if !ok {
		t.Fatal("FindRoot from nested dir: not found")
	}
	// TempDir may traverse symlinks, compare resolved paths.
	wantReal, _ := filepath.EvalSymlinks(root)
	gotReal, _ := filepath.EvalSymlinks(found)
	if gotReal != wantReal {
		t.Errorf("FindRoot = %q, want %q", gotReal, wantReal)
	}
}

func TestFindRootNotFound(t *testing.T) {
	if _, ok := FindRoot(t.TempDir()); ok {
		t.Error("FindRoot in bare temp dir should not find a workspace")
	}
}

func TestInitWorkspaceIdempotent(t *testing.T) {
	root := t.TempDir()
	existed, err := InitWorkspace(root)
	if err != nil {
		t.Fatalf("InitWorkspace: %v", err)
	}
	if existed {
		t.Error("first InitWorkspace: existed = true, want false")
	}
	existed, err = InitWorkspace(root)
	if err != nil {
		t.Fatalf("second InitWorkspace: %v", err)
	}
	if !existed {
		t.Error("second InitWorkspace: existed = false, want true")
	}
	for _, sub := range []string{"issues", "hints", "workflows", filepath.Join("launches", "logs")} {
		if fi, err := os.Stat(filepath.Join(WeaverDir(root), sub)); err != nil || !fi.IsDir() {
			t.Errorf("missing workspace dir %s", sub)
		}
	}
}
