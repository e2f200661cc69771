package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/launch"
	"github.com/rjpower/weaver/internal/models"
)

func newLaunchCmd() *cobra.Command {
	var (
		modelName string
		follow    bool
	)

	cmd := &cobra.Command{
		Use:   "launch <issue-id>",
		Short: "Launch a Claude agent on an issue",
		Long: `Spawns a claude subprocess against the issue. The agent receives the
issue content, its blockers, and any matching hints as context. Output
streams to a log file under .weaver/launches/logs/.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd, args[0], modelName, follow)
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "agent model: sonnet, opus, or flash (default from config)")
	cmd.Flags().BoolVar(&follow, "follow", false, "stream agent output to the console")
	return cmd
}

func runLaunch(cmd *cobra.Command, issueID, modelName string, follow bool) error {
	root, cfg, svc, err := openService()
	if err != nil {
		return err
	}

	model := cfg.Model()
	if modelName != "" {
		model = models.AgentModel(modelName)
	}
	if !model.Valid() {
		return fmt.Errorf("unknown model %q (choose sonnet, opus, or flash)", model)
	}

	iss, err := svc.Get(issueID)
	if err != nil {
		return err
	}

	launcher := newLauncher(root, svc)

	// Ctrl+C cancels the context, which tears down the agent's
	// process group.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Launching %s agent on %s: %s\n", model, iss.ID, iss.Title)

	var tee io.Writer
	if follow {
		tee = out
	}
	sess, err := launcher.Launch(ctx, iss, model, tee)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Model: %s\n", sess.Launch.Model)
	fmt.Fprintf(out, "Context: %s\n", launcher.Launches.ContextPath(sess.Launch.ID))
	fmt.Fprintf(out, "Logs: %s\n", sess.Launch.LogFile)
	if follow {
		fmt.Fprintln(out, "Streaming logs to console...")
	}

	sess.Wait()

	// The launch goroutine finalizes the record before signaling, so
	// the stored exit code is authoritative.
	rec, err := launcher.Launches.Read(sess.Launch.ID)
	if err != nil {
		rec = sess.Launch
	}
	code := 0
	if rec.ExitCode != nil {
		code = *rec.ExitCode
	}

	if code == 0 {
		fmt.Fprintln(out, "Agent completed successfully")
	} else {
		fmt.Fprintf(out, "Agent exited with code %d\n", code)
		fmt.Fprintf(out, "Check logs: %s\n", rec.LogFile)
	}

	printUsage(out, rec.LogFile)
	return nil
}

// printUsage reports token usage parsed from the launch log. Logs
// without usage data (crashed or interrupted agents) print nothing.
func printUsage(out io.Writer, logPath string) {
	stats, err := launch.Summary(logPath)
	if err != nil || stats.InputTokens+stats.OutputTokens == 0 {
		return
	}

	fmt.Fprintln(out, "\nToken Usage:")
	fmt.Fprintf(out, "  Input:     %s\n", formatTokenCount(stats.InputTokens))
	fmt.Fprintf(out, "  Output:    %s\n", formatTokenCount(stats.OutputTokens))
	if stats.Model != "" {
		fmt.Fprintf(out, "  Model:     %s\n", stats.Model)
		cost := estimateCost(stats.Model, stats.InputTokens, stats.OutputTokens)
		fmt.Fprintf(out, "  Est. Cost: $%.2f\n", cost)
	}
}
