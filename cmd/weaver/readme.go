package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const readmeText = `# Weaver

Dependency-aware issue tracking for coding agents. Issues live under
.weaver/ as markdown files with YAML frontmatter, so the tracker works
offline and every change diffs cleanly.

## Getting started

    weaver init
    weaver create "Set up CI pipeline" -p 1 -t chore
    weaver create "Add login page" -t feature -l frontend

## Working the queue

    weaver ready                 show unblocked open issues, priority first
    weaver start wv-a1b2         mark an issue in progress
    weaver close wv-a1b2         mark it done
    weaver list -s open -l api   filter by status and label
    weaver show wv-a1b2          full issue, --fetch-deps adds blockers

## Dependencies

    weaver dep add wv-c3d4 wv-a1b2    c3d4 is blocked by a1b2
    weaver dep rm wv-c3d4 wv-a1b2     remove that edge

An issue is ready when it is open and every blocker is closed. Cycles
are rejected at dep-add time.

## Agents

    weaver launch wv-a1b2 --model opus --follow
    weaver autopilot --max-agents 2

launch spawns a claude subprocess with the issue, its blockers, and
matching hints as context. autopilot keeps draining the ready queue
until interrupted.

## Knowledge hints

    weaver hint add "API conventions" -f conventions.md -l api
    weaver hint search retry

Hints matching an issue's labels (or its text) ride along in the
agent's context.

## Workflows

    weaver workflow create -f release.yml
    weaver workflow execute release --label v2

A workflow is a YAML template of steps with relative dependencies;
executing one creates the whole issue graph in one shot.

## Sharing

    weaver sync --push           push issues to the sync branch
    weaver sync --pull           merge issues from origin
    weaver mirror                one-way mirror to GitHub issues

Config lives in .weaver/config.yml (id_prefix, default_model, sync,
autopilot, notify, mirror sections). Run weaver doctor to verify the
setup.
`

func newReadmeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readme",
		Short: "Show a quick reference guide",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), readmeText)
			return nil
		},
	}
}
