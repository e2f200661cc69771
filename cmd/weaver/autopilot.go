package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/autopilot"
	"github.com/rjpower/weaver/internal/config"
	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/notify"
	"github.com/rjpower/weaver/internal/notify/discord"
	"github.com/rjpower/weaver/internal/notify/slack"
)

func newAutopilotCmd() *cobra.Command {
	var (
		modelName string
		maxAgents int
		poll      time.Duration
		schedule  string
		labels    []string
	)

	cmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Poll the ready queue and launch agents automatically",
		Long: `Runs until interrupted. Each poll picks unclaimed ready issues,
launches an agent on each, and marks them in progress so they are not
picked up twice. Completions and failures go to the configured
notifiers. Flags override the autopilot section of .weaver/config.yml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutopilot(cmd, modelName, maxAgents, poll, schedule, labels)
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "agent model: sonnet, opus, or flash (default from config)")
	cmd.Flags().IntVar(&maxAgents, "max-agents", 0, "maximum concurrent agents (default from config)")
	cmd.Flags().DurationVar(&poll, "poll", 0, "poll interval (default from config)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression gating launches to a time window (default from config)")
	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "only launch issues with this label (repeatable)")
	return cmd
}

func runAutopilot(cmd *cobra.Command, modelName string, maxAgents int, poll time.Duration, schedule string, labels []string) error {
	root, cfg, svc, err := openService()
	if err != nil {
		return err
	}

	model := cfg.Model()
	if modelName != "" {
		model = models.AgentModel(modelName)
	}
	if maxAgents == 0 {
		maxAgents = cfg.Autopilot.MaxAgents
	}
	if poll == 0 {
		poll = cfg.Autopilot.Interval()
	}
	if schedule == "" {
		schedule = cfg.Autopilot.Schedule
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := autopilot.Deps{
		Issues:   svc,
		Launcher: newLauncher(root, svc),
		Notifier: buildNotifier(cfg),
	}
	opts := autopilot.Opts{
		PollInterval: poll,
		MaxAgents:    maxAgents,
		Schedule:     schedule,
		Labels:       labels,
		Model:        model,
	}
	return autopilot.Run(ctx, deps, opts, cmd.OutOrStdout())
}

// buildNotifier assembles the configured notifiers into a single
// fan-out. Returns nil when nothing is configured. Assembly lives here
// rather than in the notify package so the base package does not
// import its own subpackages.
func buildNotifier(cfg *config.Config) notify.Notifier {
	var multi notify.Multi

	if cfg.Notify.Command != "" {
		multi = append(multi, &notify.Shell{Command: cfg.Notify.Command})
	}
	if cfg.Notify.Slack.Enabled() {
		n, err := slack.New(slack.Opts{
			Token:   cfg.Notify.Slack.Token,
			Channel: cfg.Notify.Slack.Channel,
		})
		if err != nil {
			log.Printf("notify: slack disabled: %v", err)
		} else {
			multi = append(multi, n)
		}
	}
	if cfg.Notify.Discord.Enabled() {
		n, err := discord.New(discord.Opts{
			Token:   cfg.Notify.Discord.Token,
			Channel: cfg.Notify.Discord.Channel,
		})
		if err != nil {
			log.Printf("notify: discord disabled: %v", err)
		} else {
			multi = append(multi, n)
		}
	}

	if len(multi) == 0 {
		return nil
	}
	return multi
}
