// Package graph builds an in-memory view of the blocking edges across
// a set of issues and answers cycle and readiness queries over it. The
// graph is rebuilt from the store on demand and never persisted.
package graph

import (
	"sort"

	"github.com/rjpower/weaver/internal/models"
)

// Graph is a snapshot of all blocked_by edges. The inverse blocks
// mapping is derived at build time, never stored.
type Graph struct {
	blockedBy map[string]map[string]bool
	blocks    map[string]map[string]bool
	ids       map[string]bool
}

// Build constructs the adjacency maps from the full current issue set.
// Blockers referenced in blocked_by but absent from the set (dangling)
// stay in the edge maps so queries tolerate them.
func Build(issues []models.Issue) *Graph {
	g := &Graph{
		blockedBy: make(map[string]map[string]bool, len(issues)),
		blocks:    make(map[string]map[string]bool),
		ids:       make(map[string]bool, len(issues)),
	}
	for _, issue := range issues {
		g.ids[issue.ID] = true
		if g.blockedBy[issue.ID] == nil {
			g.blockedBy[issue.ID] = make(map[string]bool)
		}
		for _, blocker := range issue.BlockedBy {
			g.blockedBy[issue.ID][blocker] = true
			if g.blocks[blocker] == nil {
				g.blocks[blocker] = make(map[string]bool)
			}
			g.blocks[blocker][issue.ID] = true
		}
	}
	return g
}

// Has reports whether id was part of the issue set the graph was built
// from.
func (g *Graph) Has(id string) bool {
	return g.ids[id]
}

// WouldCreateCycle reports whether adding the edge child blocked_by
// newBlocker would close a directed loop. It searches from newBlocker
// along existing blocked_by edges looking for child; a self-edge is
// always a cycle.
func (g *Graph) WouldCreateCycle(childID, newBlockerID string) bool {
	return g.reachable(newBlockerID, childID, map[string]bool{})
}

func (g *Graph) reachable(from, to string, visited map[string]bool) bool {
	if from == to {
		return true
	}
	visited[from] = true
	for next := range g.blockedBy[from] {
		if !visited[next] && g.reachable(next, to, visited) {
			return true
		}
	}
	return false
}

// Unblocked returns the subset of open whose own status is not blocked
// and whose direct blockers are all outside the open set. Callers pass
// every non-closed issue: a blocker keeps blocking until it is closed.
// Dangling blockers never count as blocking.
func (g *Graph) Unblocked(open []models.Issue) []models.Issue {
	openIDs := make(map[string]bool, len(open))
	for _, issue := range open {
		openIDs[issue.ID] = true
	}
	ready := []models.Issue{}
	for _, issue := range open {
		if issue.Status == models.StatusBlocked {
			continue
		}
		blocked := false
		for blocker := range g.blockedBy[issue.ID] {
			if openIDs[blocker] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, issue)
		}
	}
	return ready
}

// Blockers returns the direct blockers of id, sorted.
func (g *Graph) Blockers(id string) []string {
	return sortedKeys(g.blockedBy[id])
}

// BlockedByThis returns the ids directly blocked by id, sorted.
func (g *Graph) BlockedByThis(id string) []string {
	return sortedKeys(g.blocks[id])
}

// TransitiveBlockers returns every blocker reachable from id through
// blocked_by edges, deepest dependencies first, excluding id itself.
func (g *Graph) TransitiveBlockers(id string) []string {
	visited := map[string]bool{id: true}
	var order []string
	var visit func(string)
	visit = func(cur string) {
		for _, blocker := range sortedKeys(g.blockedBy[cur]) {
			if visited[blocker] {
				continue
			}
			visited[blocker] = true
			visit(blocker)
			order = append(order, blocker)
		}
	}
	visit(id)
	return order
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
