// Package issue implements the issue service: the single write path
// through which issues are created and mutated, with uniqueness,
// acyclicity and state-machine invariants enforced on every call.
package issue

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rjpower/weaver/internal/graph"
	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/store"
)

// idAttempts bounds id regeneration before giving up with
// ErrCollision.
const idAttempts = 3

// ValidTransitions maps each status to its allowed successors. closed
// is terminal; re-opening is not supported.
var ValidTransitions = map[models.Status][]models.Status{
	models.StatusOpen:       {models.StatusInProgress, models.StatusBlocked, models.StatusClosed},
	models.StatusInProgress: {models.StatusBlocked, models.StatusClosed},
	models.StatusBlocked:    {models.StatusOpen, models.StatusInProgress, models.StatusClosed},
	models.StatusClosed:     {},
}

// CreateOpts holds the caller-supplied fields for a new issue.
type CreateOpts struct {
	Title              string
	Description        string
	DesignNotes        string
	Type               models.Type // defaults to task
	Priority           int         // 0=most urgent .. 4
	Labels             []string
	AcceptanceCriteria []string
	BlockedBy          []string
	Parent             string
}

// ListFilters narrows List output. Zero-valued fields are ignored.
type ListFilters struct {
	Status models.Status
	Labels []string
	Type   models.Type
}

// ReadyFilters narrows Ready output. Zero-valued fields are ignored.
type ReadyFilters struct {
	Labels []string
	Type   models.Type
	Limit  int
}

// Service coordinates the store and the dependency graph. It caches a
// built graph across read-only calls and drops the cache after every
// mutation.
type Service struct {
	store  *store.Store
	prefix string

	mu    sync.Mutex
	graph *graph.Graph
}

// New returns a Service over st generating ids with the given prefix.
// An empty prefix falls back to DefaultPrefix.
func New(st *store.Store, prefix string) *Service {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Service{store: st, prefix: prefix}
}

// Store exposes the underlying issue store.
func (s *Service) Store() *store.Store { return s.store }

// Graph returns the cached dependency graph, rebuilding it from the
// store when a mutation has invalidated it.
func (s *Service) Graph() (*graph.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph != nil {
		return s.graph, nil
	}
	issues, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	s.graph = graph.Build(issues)
	return s.graph, nil
}

// freshGraph drops the cache and rebuilds from the store, shrinking
// the window between a cycle check and the write it guards.
func (s *Service) freshGraph() (*graph.Graph, error) {
	s.invalidate()
	return s.Graph()
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.graph = nil
	s.mu.Unlock()
}

// Create validates opts, persists a new issue with a fresh id, and
// returns it.
func (s *Service) Create(opts CreateOpts) (models.Issue, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return models.Issue{}, errors.New("issue: title is required")
	}
	typ := opts.Type
	if typ == "" {
		typ = models.TypeTask
	}
	if !typ.Valid() {
		return models.Issue{}, fmt.Errorf("issue: unknown type %q", opts.Type)
	}
	if opts.Priority < 0 || opts.Priority > 4 {
		return models.Issue{}, fmt.Errorf("issue: priority %d out of range 0-4", opts.Priority)
	}

	ids, err := s.store.ListIDs()
	if err != nil {
		return models.Issue{}, err
	}
	existing := make(map[string]bool, len(ids))
	for _, id := range ids {
		existing[id] = true
	}
	for _, blocker := range dedupe(opts.BlockedBy) {
		if !existing[blocker] {
			return models.Issue{}, fmt.Errorf("issue: cannot block by %s: %w", blocker, store.ErrNotFound)
		}
	}
	if opts.Parent != "" && !existing[opts.Parent] {
		return models.Issue{}, fmt.Errorf("issue: parent %s: %w", opts.Parent, store.ErrNotFound)
	}

	id, err := s.generateUniqueID(existing)
	if err != nil {
		return models.Issue{}, err
	}

	now := time.Now().UTC()
	iss := models.Issue{
		ID:                 id,
		Title:              opts.Title,
		Type:               typ,
		Status:             models.StatusOpen,
		Priority:           opts.Priority,
		Labels:             dedupe(opts.Labels),
		BlockedBy:          dedupe(opts.BlockedBy),
		Parent:             opts.Parent,
		CreatedAt:          now,
		UpdatedAt:          now,
		Description:        opts.Description,
		DesignNotes:        opts.DesignNotes,
		AcceptanceCriteria: append([]string{}, opts.AcceptanceCriteria...),
	}
	if err := s.store.Write(iss); err != nil {
		return models.Issue{}, err
	}
	s.invalidate()
	return iss, nil
}

// Get loads one issue by id.
func (s *Service) Get(id string) (models.Issue, error) {
	return s.store.Read(id)
}

// Update overwrites an existing record with the caller-supplied value,
// re-validating every invariant the change can touch: enums, priority
// range, status transitions, self-edges, and cycles from newly added
// blockers. closed_at is normalized to match the status.
func (s *Service) Update(iss models.Issue) (models.Issue, error) {
	current, err := s.store.Read(iss.ID)
	if err != nil {
		return models.Issue{}, err
	}
	if strings.TrimSpace(iss.Title) == "" {
		return models.Issue{}, errors.New("issue: title is required")
	}
	if !iss.Type.Valid() {
		return models.Issue{}, fmt.Errorf("issue: unknown type %q", iss.Type)
	}
	if !iss.Status.Valid() {
		return models.Issue{}, fmt.Errorf("issue: unknown status %q", iss.Status)
	}
	if iss.Priority < 0 || iss.Priority > 4 {
		return models.Issue{}, fmt.Errorf("issue: priority %d out of range 0-4", iss.Priority)
	}
	if iss.Status != current.Status {
		if err := checkTransition(current.Status, iss.Status); err != nil {
			return models.Issue{}, err
		}
	}

	iss.BlockedBy = dedupe(iss.BlockedBy)
	var added []string
	for _, b := range iss.BlockedBy {
		if b == iss.ID {
			return models.Issue{}, fmt.Errorf("issue: %s cannot block itself: %w", iss.ID, ErrCycle)
		}
		if !current.BlockedByID(b) {
			added = append(added, b)
		}
	}
	if len(added) > 0 {
		g, err := s.freshGraph()
		if err != nil {
			return models.Issue{}, err
		}
		for _, b := range added {
			if g.WouldCreateCycle(iss.ID, b) {
				return models.Issue{}, fmt.Errorf("issue: adding %s -> %s would create a cycle: %w", iss.ID, b, ErrCycle)
			}
		}
	}

	now := time.Now().UTC()
	iss.CreatedAt = current.CreatedAt
	iss.UpdatedAt = now
	if iss.Status == models.StatusClosed {
		if iss.ClosedAt == nil {
			iss.ClosedAt = &now
		}
	} else {
		iss.ClosedAt = nil
	}

	if err := s.store.Write(iss); err != nil {
		return models.Issue{}, err
	}
	s.invalidate()
	return iss, nil
}

// Close marks the issue closed and stamps closed_at. Valid from any
// non-closed status.
func (s *Service) Close(id string) (models.Issue, error) {
	iss, err := s.store.Read(id)
	if err != nil {
		return models.Issue{}, err
	}
	if err := checkTransition(iss.Status, models.StatusClosed); err != nil {
		return models.Issue{}, err
	}
	now := time.Now().UTC()
	iss.Status = models.StatusClosed
	iss.ClosedAt = &now
	iss.UpdatedAt = now
	if err := s.store.Write(iss); err != nil {
		return models.Issue{}, err
	}
	s.invalidate()
	return iss, nil
}

// Start moves an issue to in_progress. Valid only from open or
// blocked.
func (s *Service) Start(id string) (models.Issue, error) {
	iss, err := s.store.Read(id)
	if err != nil {
		return models.Issue{}, err
	}
	if err := checkTransition(iss.Status, models.StatusInProgress); err != nil {
		return models.Issue{}, err
	}
	iss.Status = models.StatusInProgress
	iss.UpdatedAt = time.Now().UTC()
	if err := s.store.Write(iss); err != nil {
		return models.Issue{}, err
	}
	s.invalidate()
	return iss, nil
}

// AddDependency records childID blocked_by blockerID. The graph is
// rebuilt from the store immediately before the cycle check to shrink
// the cross-process race window; a rejected edge leaves the store
// untouched. Adding an existing edge is a no-op.
func (s *Service) AddDependency(childID, blockerID string) error {
	if childID == blockerID {
		return fmt.Errorf("issue: %s cannot block itself: %w", childID, ErrCycle)
	}
	child, err := s.store.Read(childID)
	if err != nil {
		return err
	}
	if _, err := s.store.Read(blockerID); err != nil {
		return err
	}

	g, err := s.freshGraph()
	if err != nil {
		return err
	}
	if g.WouldCreateCycle(childID, blockerID) {
		return fmt.Errorf("issue: adding %s -> %s would create a cycle: %w", childID, blockerID, ErrCycle)
	}
	if child.BlockedByID(blockerID) {
		return nil
	}

	child.BlockedBy = append(child.BlockedBy, blockerID)
	child.UpdatedAt = time.Now().UTC()
	if err := s.store.Write(child); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// RemoveDependency deletes the edge childID blocked_by blockerID.
// Removing an absent edge is a no-op; removal can never create a cycle
// so no check is needed.
func (s *Service) RemoveDependency(childID, blockerID string) error {
	child, err := s.store.Read(childID)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(child.BlockedBy))
	found := false
	for _, b := range child.BlockedBy {
		if b == blockerID {
			found = true
			continue
		}
		kept = append(kept, b)
	}
	if !found {
		return nil
	}
	child.BlockedBy = kept
	child.UpdatedAt = time.Now().UTC()
	if err := s.store.Write(child); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// List returns issues matching the filters, sorted by priority then
// creation time.
func (s *Service) List(filters ListFilters) ([]models.Issue, error) {
	issues, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	out := []models.Issue{}
	for _, iss := range issues {
		if filters.Status != "" && iss.Status != filters.Status {
			continue
		}
		if filters.Type != "" && iss.Type != filters.Type {
			continue
		}
		if len(filters.Labels) > 0 && !hasAnyLabel(iss, filters.Labels) {
			continue
		}
		out = append(out, iss)
	}
	sortIssues(out)
	return out, nil
}

// Ready computes the unblocked subset of all non-closed issues,
// filtered and sorted like List, truncated to Limit when given.
func (s *Service) Ready(filters ReadyFilters) ([]models.Issue, error) {
	g, err := s.Graph()
	if err != nil {
		return nil, err
	}
	issues, err := s.store.ReadAll()
	if err != nil {
		return nil, err
	}
	open := []models.Issue{}
	for _, iss := range issues {
		if iss.IsOpen() {
			open = append(open, iss)
		}
	}

	ready := []models.Issue{}
	for _, iss := range g.Unblocked(open) {
		if filters.Type != "" && iss.Type != filters.Type {
			continue
		}
		if len(filters.Labels) > 0 && !hasAnyLabel(iss, filters.Labels) {
			continue
		}
		ready = append(ready, iss)
	}
	sortIssues(ready)
	if filters.Limit > 0 && len(ready) > filters.Limit {
		ready = ready[:filters.Limit]
	}
	return ready, nil
}

func (s *Service) generateUniqueID(existing map[string]bool) (string, error) {
	for range idAttempts {
		id, err := GenerateID(s.prefix)
		if err != nil {
			return "", err
		}
		if !existing[id] {
			return id, nil
		}
	}
	return "", fmt.Errorf("issue: no unique id after %d attempts: %w", idAttempts, ErrCollision)
}

func checkTransition(from, to models.Status) error {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("issue: %w from %q to %q; valid transitions: %v", ErrTransition, from, to, ValidTransitions[from])
}

func hasAnyLabel(iss models.Issue, labels []string) bool {
	for _, l := range labels {
		if iss.HasLabel(l) {
			return true
		}
	}
	return false
}

func sortIssues(issues []models.Issue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Priority != issues[j].Priority {
			return issues[i].Priority < issues[j].Priority
		}
		if !issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].CreatedAt.Before(issues[j].CreatedAt)
		}
		return issues[i].ID < issues[j].ID
	})
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
