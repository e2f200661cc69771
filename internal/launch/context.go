package launch

import (
	"fmt"
	"strings"

	"github.com/rjpower/weaver/internal/models"
)

// ContextInput holds all data needed to render the agent prompt.
type ContextInput struct {
	Issue    models.Issue
	Blockers []models.Issue
	Hints    []models.Hint
}

// BuildContext produces the full markdown prompt injected into agent
// sessions as the system prompt.
func BuildContext(in ContextInput) string {
	var w strings.Builder
	writeTask(&w, in.Issue)
	writeHints(&w, in.Hints)
	writeBlockers(&w, in.Blockers)
	writeInstructions(&w, in.Issue.ID)
	return w.String()
}

// MatchHints returns the hints whose title matches one of the issue's
// labels, case-insensitive, preserving hint order.
func MatchHints(iss models.Issue, hints []models.Hint) []models.Hint {
	var matched []models.Hint
	for _, h := range hints {
		for _, label := range iss.Labels {
			if strings.EqualFold(h.Title, label) {
				matched = append(matched, h)
				break
			}
		}
	}
	return matched
}

func writeTask(w *strings.Builder, iss models.Issue) {
	fmt.Fprintf(w, "# Task: %s\n\n", iss.Title)
	fmt.Fprintf(w, "**ID**: %s\n", iss.ID)
	fmt.Fprintf(w, "**Priority**: %d\n\n", iss.Priority)

	if iss.Description != "" {
		w.WriteString("## Description\n\n")
		w.WriteString(iss.Description)
		w.WriteString("\n\n")
	}
	if iss.DesignNotes != "" {
		w.WriteString("## Design Notes\n\n")
		w.WriteString(iss.DesignNotes)
		w.WriteString("\n\n")
	}
	if len(iss.AcceptanceCriteria) > 0 {
		w.WriteString("## Acceptance Criteria\n\n")
		for _, c := range iss.AcceptanceCriteria {
			fmt.Fprintf(w, "- [ ] %s\n", c)
		}
		w.WriteString("\n")
	}
}

func writeHints(w *strings.Builder, hints []models.Hint) {
	if len(hints) == 0 {
		return
	}
	w.WriteString("## Relevant Hints\n\n")
	for _, h := range hints {
		fmt.Fprintf(w, "### %s\n\n", h.Title)
		w.WriteString(h.Content)
		w.WriteString("\n\n")
	}
}

func writeBlockers(w *strings.Builder, blockers []models.Issue) {
	if len(blockers) == 0 {
		return
	}
	w.WriteString("## Dependencies (Blockers)\n\n")
	for _, b := range blockers {
		fmt.Fprintf(w, "- %s: %s (%s)\n", b.ID, b.Title, b.Status)
	}
	w.WriteString("\n")
}

func writeInstructions(w *strings.Builder, id string) {
	w.WriteString("## Workflow Instructions\n\n")
	w.WriteString("1. Work through the task described above\n")
	w.WriteString("2. Verify every acceptance criterion is met\n")
	w.WriteString("3. Run the project's tests and make sure they pass\n")
	fmt.Fprintf(w, "4. When everything passes, close the issue: `weaver close %s`\n", id)
}
