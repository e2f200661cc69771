package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/models"
)

func newReadyCmd() *cobra.Command {
	var (
		labels    []string
		issueType string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List unblocked issues ready for work",
		RunE: func(cmd *cobra.Command, args []string) error {
			if issueType != "" && !models.Type(issueType).Valid() {
				return fmt.Errorf("unknown type %q", issueType)
			}

			_, _, svc, err := openService()
			if err != nil {
				return err
			}
			issues, err := svc.Ready(issue.ReadyFilters{
				Labels: labels,
				Type:   models.Type(issueType),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				fmt.Fprintln(out, "No ready issues found.")
				return nil
			}
			printIssueTable(out, issues)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "filter by label (repeatable)")
	cmd.Flags().StringVarP(&issueType, "type", "t", "", "filter by type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max number of issues to show")
	return cmd
}
