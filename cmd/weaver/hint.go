package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const hintPreviewWords = 50

func newHintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hint",
		Short: "Manage repository knowledge hints",
	}

	cmd.AddCommand(newHintAddCmd())
	cmd.AddCommand(newHintShowCmd())
	cmd.AddCommand(newHintListCmd())
	cmd.AddCommand(newHintSearchCmd())
	return cmd
}

func newHintAddCmd() *cobra.Command {
	var (
		labels   []string
		filePath string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add or update a hint",
		Long:  "Saves a hint under the given title. An existing hint with the same title is updated. Use -f - to read content from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				return fmt.Errorf("hint content required (use -f - to read from stdin)")
			}
			content, err := readContent(filePath, "", cmd.InOrStdin())
			if err != nil {
				return err
			}

			hsvc, err := openHints()
			if err != nil {
				return err
			}
			h, created, err := hsvc.CreateOrUpdate(args[0], content, labels)
			if err != nil {
				return err
			}

			action := "Updated"
			if created {
				action = "Created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s hint %s (%s)\n", action, h.Title, h.ID)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "add label (repeatable)")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "read content from file (use '-' for stdin)")
	return cmd
}

func newHintShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <title-or-id>",
		Short: "Show a hint by title or ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hsvc, err := openHints()
			if err != nil {
				return err
			}
			h, err := hsvc.Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", h.Title, h.ID)
			if len(h.Labels) > 0 {
				fmt.Fprintf(out, "Labels: %s\n", strings.Join(h.Labels, ", "))
			}
			fmt.Fprintf(out, "\n%s\n", h.Content)
			return nil
		},
	}
}

func newHintListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all hints",
		RunE: func(cmd *cobra.Command, args []string) error {
			hsvc, err := openHints()
			if err != nil {
				return err
			}
			hints, err := hsvc.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hints) == 0 {
				fmt.Fprintln(out, "No hints found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TITLE\tID\tLABELS")
			for _, h := range hints {
				fmt.Fprintf(w, "%s\t%s\t%s\n", h.Title, h.ID, strings.Join(h.Labels, ", "))
			}
			w.Flush()
			return nil
		},
	}
}

func newHintSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search hints by title or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hsvc, err := openHints()
			if err != nil {
				return err
			}
			hints, err := hsvc.Search(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hints) == 0 {
				fmt.Fprintf(out, "No hints found matching %q\n", args[0])
				return nil
			}
			for _, h := range hints {
				preview, _ := truncateWords(h.Content, hintPreviewWords)
				fmt.Fprintf(out, "%s (%s)\n", h.Title, h.ID)
				fmt.Fprintf(out, "  %s\n\n", preview)
			}
			return nil
		},
	}
}
