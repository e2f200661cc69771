package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage issue dependencies",
	}

	cmd.AddCommand(newDepAddCmd())
	cmd.AddCommand(newDepRmCmd())
	return cmd
}

func newDepAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <issue-id> <blocked-by-id>",
		Short: "Add a dependency",
		Long:  "Marks the first issue as blocked by the second.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, svc, err := openService()
			if err != nil {
				return err
			}
			if err := svc.AddDependency(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now blocked by %s\n", args[0], args[1])
			return nil
		},
	}
}

func newDepRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <issue-id> <blocked-by-id>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, svc, err := openService()
			if err != nil {
				return err
			}
			if err := svc.RemoveDependency(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer blocked by %s\n", args[0], args[1])
			return nil
		},
	}
}
