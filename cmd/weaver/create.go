package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/models"
)

func newCreateCmd() *cobra.Command {
	var (
		priority    int
		labels      []string
		blockedBy   []string
		parent      string
		issueType   string
		description string
		filePath    string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new issue",
		Long:  "Creates a new issue. The description can be given inline with -d or read from a file with -f (use '-f -' for stdin).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := readContent(filePath, description, cmd.InOrStdin())
			if err != nil {
				return err
			}

			_, _, svc, err := openService()
			if err != nil {
				return err
			}
			iss, err := svc.Create(issue.CreateOpts{
				Title:       args[0],
				Type:        models.Type(issueType),
				Priority:    priority,
				Description: desc,
				Labels:      labels,
				BlockedBy:   blockedBy,
				Parent:      parent,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s\n", iss.ID, iss.Title)
			return nil
		},
	}

	cmd.Flags().IntVarP(&priority, "priority", "p", 2, "priority (0=critical, 4=low)")
	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "add label (repeatable)")
	cmd.Flags().StringArrayVarP(&blockedBy, "blocked-by", "b", nil, "block by issue ID (repeatable)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent epic ID")
	cmd.Flags().StringVarP(&issueType, "type", "t", "task", "issue type (task, bug, feature, epic, chore)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "issue description")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "read description from file (use '-' for stdin)")
	return cmd
}
