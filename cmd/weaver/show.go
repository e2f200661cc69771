package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/store"
)

const depTruncateWords = 200

func newShowCmd() *cobra.Command {
	var fetchDeps bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show issue details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], fetchDeps)
		},
	}

	cmd.Flags().BoolVar(&fetchDeps, "fetch-deps", false, "show transitive dependencies in topological order")
	return cmd
}

func runShow(cmd *cobra.Command, id string, fetchDeps bool) error {
	_, _, svc, err := openService()
	if err != nil {
		return err
	}
	iss, err := svc.Get(id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if fetchDeps {
		g, err := svc.Graph()
		if err != nil {
			return err
		}
		depIDs := g.TransitiveBlockers(id)
		if len(depIDs) > 0 {
			fmt.Fprintf(out, "Dependencies (deepest first):\n\n")
			for _, depID := range depIDs {
				dep, err := svc.Get(depID)
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				printDependency(out, dep)
			}
		}
		fmt.Fprintf(out, "Main issue:\n\n")
	}

	printIssue(out, iss)
	return nil
}

// printDependency renders a compact view of a blocker, truncating long
// content.
func printDependency(out io.Writer, dep models.Issue) {
	fmt.Fprintf(out, "%s: %s\n", dep.ID, dep.Title)
	fmt.Fprintf(out, "Status: %s  Priority: P%d\n", dep.Status, dep.Priority)

	content := dep.Description
	if dep.DesignNotes != "" {
		if content != "" {
			content += "\n\n"
		}
		content += dep.DesignNotes
	}
	if content != "" {
		text, truncated := truncateWords(content, depTruncateWords)
		fmt.Fprintf(out, "\n%s\n", text)
		if truncated {
			fmt.Fprintf(out, "Use 'weaver show %s' to see complete content\n", dep.ID)
		}
	}
	fmt.Fprintf(out, "%s\n\n", strings.Repeat("-", 60))
}

func printIssue(out io.Writer, iss models.Issue) {
	fmt.Fprintf(out, "%s: %s\n", iss.ID, iss.Title)
	fmt.Fprintf(out, "Status: %s  Priority: P%d  Type: %s\n", iss.Status, iss.Priority, iss.Type)
	if len(iss.Labels) > 0 {
		fmt.Fprintf(out, "Labels: %s\n", strings.Join(iss.Labels, ", "))
	}
	if len(iss.BlockedBy) > 0 {
		fmt.Fprintf(out, "Blocked by: %s\n", strings.Join(iss.BlockedBy, ", "))
	}
	if iss.Parent != "" {
		fmt.Fprintf(out, "Parent: %s\n", iss.Parent)
	}
	if iss.Description != "" {
		fmt.Fprintf(out, "\n%s\n", iss.Description)
	}
	if iss.DesignNotes != "" {
		fmt.Fprintf(out, "\nDesign Notes:\n%s\n", iss.DesignNotes)
	}
	if len(iss.AcceptanceCriteria) > 0 {
		fmt.Fprintln(out, "\nAcceptance Criteria:")
		for _, criterion := range iss.AcceptanceCriteria {
			fmt.Fprintf(out, "  - [ ] %s\n", criterion)
		}
	}
}
