package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflow templates",
	}

	cmd.AddCommand(newWorkflowCreateCmd())
	cmd.AddCommand(newWorkflowExecuteCmd())
	cmd.AddCommand(newWorkflowShowCmd())
	cmd.AddCommand(newWorkflowListCmd())
	return cmd
}

func newWorkflowCreateCmd() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or update a workflow template",
		Long:  "Saves a workflow template from YAML. The template's name comes from the YAML itself; an existing workflow with the same name is updated.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				return fmt.Errorf("workflow YAML required (use -f - to read from stdin)")
			}
			data, err := readContent(filePath, "", cmd.InOrStdin())
			if err != nil {
				return err
			}

			wsvc, err := openWorkflows()
			if err != nil {
				return err
			}
			wf, created, err := wsvc.CreateOrUpdate([]byte(data))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			action := "Updated"
			if created {
				action = "Created"
			}
			fmt.Fprintf(out, "%s workflow %s (%s)\n", action, wf.Name, wf.ID)
			fmt.Fprintf(out, "Steps: %d\n", len(wf.Steps))
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "read workflow YAML from file (use '-' for stdin)")
	return cmd
}

func newWorkflowExecuteCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "execute <name>",
		Short: "Execute a workflow, creating all its issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsvc, err := openWorkflows()
			if err != nil {
				return err
			}
			issues, err := wsvc.Execute(args[0], label)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %d issues from workflow %s:\n", len(issues), args[0])
			for _, iss := range issues {
				fmt.Fprintf(out, "  %s: %s\n", iss.ID, iss.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "label prefix for created issues")
	return cmd
}

func newWorkflowShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsvc, err := openWorkflows()
			if err != nil {
				return err
			}
			wf, err := wsvc.Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", wf.Name, wf.ID)
			if wf.Description != "" {
				fmt.Fprintf(out, "%s\n", wf.Description)
			}
			fmt.Fprintf(out, "\nSteps (%d):\n", len(wf.Steps))
			for i, step := range wf.Steps {
				fmt.Fprintf(out, "\n%d. %s\n", i+1, step.Title)
				fmt.Fprintf(out, "   Priority: P%d\n", step.Priority)
				if len(step.DependsOn) > 0 {
					fmt.Fprintf(out, "   Depends on: %s\n", strings.Join(step.DependsOn, ", "))
				}
				if len(step.Labels) > 0 {
					fmt.Fprintf(out, "   Labels: %s\n", strings.Join(step.Labels, ", "))
				}
			}
			return nil
		},
	}
}

func newWorkflowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			wsvc, err := openWorkflows()
			if err != nil {
				return err
			}
			workflows, err := wsvc.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(workflows) == 0 {
				fmt.Fprintln(out, "No workflows found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tID\tSTEPS\tDESCRIPTION")
			for _, wf := range workflows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					wf.Name, wf.ID, len(wf.Steps), truncate(wf.Description, 50))
			}
			w.Flush()
			return nil
		},
	}
}
