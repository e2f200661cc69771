package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/gitsync"
)

func newSyncCmd() *cobra.Command {
	var (
		branch string
		doPush bool
		doPull bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Share issues through a git branch",
		Long:  "Pushes or pulls the issue records on a dedicated sync branch. Without --push or --pull, prints sync status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, branch, doPush, doPull)
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "branch to sync with (default: weaver-<username>)")
	cmd.Flags().BoolVar(&doPush, "push", false, "push local issues to the sync branch")
	cmd.Flags().BoolVar(&doPull, "pull", false, "pull issues from the sync branch")
	return cmd
}

func runSync(cmd *cobra.Command, branch string, doPush, doPull bool) error {
	root, cfg, _, err := openService()
	if err != nil {
		return err
	}
	if branch == "" {
		branch = cfg.Sync.Branch
	}
	if !gitsync.IsRepo(root) {
		return fmt.Errorf("not in a git repository (initialize git first)")
	}
	out := cmd.OutOrStdout()

	if doPull {
		fmt.Fprintf(out, "Pulling from %s...\n", branch)
		if err := gitsync.Pull(root, branch); err != nil {
			return err
		}
		fmt.Fprintf(out, "Pulled issues from origin/%s\n", branch)
	}

	if doPush {
		if err := gitsync.Push(root, branch); err != nil {
			return err
		}
		fmt.Fprintf(out, "Pushed to origin/%s\n", branch)
	}

	if !doPush && !doPull {
		st, err := gitsync.ReadStatus(root, branch)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Current branch: %s\n", st.Branch)
		fmt.Fprintf(out, "Sync branch: %s\n", st.SyncBranch)
		fmt.Fprintf(out, "Local issues: %d\n", st.IssueCount)
		fmt.Fprintln(out, "Use --pull to pull issues, --push to push issues")
	}
	return nil
}
