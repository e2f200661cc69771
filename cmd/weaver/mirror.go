package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/mirror"
)

func newMirrorCmd() *cobra.Command {
	var (
		owner string
		repo  string
		label string
	)

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Push issues to a GitHub repository",
		Long: `One-way mirror: creates or updates a GitHub issue for every open
local issue and closes mirrored issues that were closed locally.
GitHub issues without the marker label are never touched. The API
token is read from the environment variable named by
mirror.token_env (GITHUB_TOKEN by default).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(cmd, owner, repo, label)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "GitHub repository owner (default from config)")
	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository name (default from config)")
	cmd.Flags().StringVar(&label, "label", "", "marker label on mirrored issues (default from config)")
	return cmd
}

func runMirror(cmd *cobra.Command, owner, repo, label string) error {
	_, cfg, svc, err := openService()
	if err != nil {
		return err
	}

	if owner == "" {
		owner = cfg.Mirror.Owner
	}
	if repo == "" {
		repo = cfg.Mirror.Repo
	}
	if label == "" {
		label = cfg.Mirror.Label
	}
	if owner == "" || repo == "" {
		return fmt.Errorf("mirror is not configured (set mirror.owner and mirror.repo in .weaver/config.yml)")
	}

	ctx := cmd.Context()
	m, err := mirror.New(ctx, mirror.Opts{
		Owner: owner,
		Repo:  repo,
		Token: cfg.Mirror.Token(),
		Label: label,
	})
	if err != nil {
		return err
	}

	issues, err := svc.List(issue.ListFilters{})
	if err != nil {
		return err
	}

	res, err := m.Sync(ctx, issues)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Mirrored to %s/%s: %d created, %d updated, %d closed\n",
		owner, repo, res.Created, res.Updated, res.Closed)
	return nil
}
