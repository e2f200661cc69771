package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weaver",
		Short: "Dependency-aware issue tracking for coding agents",
		Long:  "Weaver tracks work items and their blocking dependencies in flat files, and launches Claude agents on whatever is ready.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newReadmeCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newReadyCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newCloseCmd())
	cmd.AddCommand(newDepCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newWorkflowCmd())
	cmd.AddCommand(newHintCmd())
	cmd.AddCommand(newLaunchCmd())
	cmd.AddCommand(newAutopilotCmd())
	cmd.AddCommand(newMirrorCmd())
	cmd.AddCommand(newDoctorCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "weaver %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
