package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/models"
)

func newListCmd() *cobra.Command {
	var (
		status    string
		labels    []string
		issueType string
		showAll   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Long:  "Lists issues with optional filters. Closed issues are hidden unless -a is given or a status filter names them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, status, labels, issueType, showAll)
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status (open, in_progress, blocked, closed)")
	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "filter by label (repeatable)")
	cmd.Flags().StringVarP(&issueType, "type", "t", "", "filter by type")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "show all issues including closed ones")
	return cmd
}

func runList(cmd *cobra.Command, status string, labels []string, issueType string, showAll bool) error {
	if status != "" && !models.Status(status).Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	if issueType != "" && !models.Type(issueType).Valid() {
		return fmt.Errorf("unknown type %q", issueType)
	}

	_, _, svc, err := openService()
	if err != nil {
		return err
	}
	issues, err := svc.List(issue.ListFilters{
		Status: models.Status(status),
		Labels: labels,
		Type:   models.Type(issueType),
	})
	if err != nil {
		return err
	}

	if !showAll && status == "" {
		kept := issues[:0]
		for _, iss := range issues {
			if iss.Status != models.StatusClosed {
				kept = append(kept, iss)
			}
		}
		issues = kept
	}

	out := cmd.OutOrStdout()
	if len(issues) == 0 {
		fmt.Fprintln(out, "No issues found.")
		return nil
	}
	printIssueTable(out, issues)
	return nil
}
