// Package autopilot runs the unattended loop that drains the ready
// queue by launching agents on unclaimed issues.
package autopilot

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/launch"
	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/notify"
)

const defaultPollInterval = 30 * time.Second

// cronParser accepts standard 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Deps carries the services the loop drives. Notifier may be nil.
type Deps struct {
	Issues   *issue.Service
	Launcher *launch.Launcher
	Notifier notify.Notifier
}

// Opts tunes the loop. Zero values fall back to defaults where noted.
type Opts struct {
	PollInterval time.Duration // default 30s
	MaxAgents    int           // default 1
	Schedule     string        // optional cron expression gating launches
	Labels       []string      // restrict the ready queue to these labels
	Model        models.AgentModel
}

// agent tracks one running launch.
type agent struct {
	sess  *launch.Session
	title string
}

type autopilot struct {
	issues   *issue.Service
	launcher *launch.Launcher
	notifier notify.Notifier

	maxAgents int
	labels    []string
	model     models.AgentModel

	active map[string]*agent // issue id -> running agent
}

// Run polls the ready queue until ctx is cancelled, keeping up to
// MaxAgents agents working on unclaimed issues. Launched issues are
// moved to in_progress so later polls skip them. Progress messages go
// to out; phase errors are logged and the loop continues.
func Run(ctx context.Context, deps Deps, opts Opts, out io.Writer) error {
	if deps.Issues == nil {
		return fmt.Errorf("autopilot: issue service is required")
	}
	if deps.Launcher == nil {
		return fmt.Errorf("autopilot: launcher is required")
	}
	if !opts.Model.Valid() {
		return fmt.Errorf("autopilot: unknown model %q", opts.Model)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxAgents < 1 {
		opts.MaxAgents = 1
	}
	if out == nil {
		out = io.Discard
	}

	var sched cron.Schedule
	if opts.Schedule != "" {
		var err error
		sched, err = cronParser.Parse(opts.Schedule)
		if err != nil {
			return fmt.Errorf("autopilot: parse schedule %q: %w", opts.Schedule, err)
		}
	}

	a := &autopilot{
		issues:    deps.Issues,
		launcher:  deps.Launcher,
		notifier:  deps.Notifier,
		maxAgents: opts.MaxAgents,
		labels:    opts.Labels,
		model:     opts.Model,
		active:    make(map[string]*agent),
	}

	fmt.Fprintf(out, "Autopilot starting (model %s, max %d agents, poll every %s)...\n",
		opts.Model, opts.MaxAgents, opts.PollInterval)
	if opts.Schedule != "" {
		fmt.Fprintf(out, "Schedule: %s\n", opts.Schedule)
	}
	fmt.Fprintf(out, "Press Ctrl+C to stop\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "Autopilot stopping...\n")
			a.drain(out)
			fmt.Fprintf(out, "Autopilot stopped.\n")
			return nil
		default:
		}

		a.reap(ctx, out)

		if sched != nil {
			if wait := scheduleWait(sched, time.Now()); wait > 0 {
				fmt.Fprintf(out, "Outside schedule window, next activation in %s\n", wait.Round(time.Second))
				sleepWithContext(ctx, wait)
				continue
			}
		}

		if err := a.launchReady(ctx, out); err != nil {
			log.Printf("autopilot ready error: %v", err)
		}

		sleepWithContext(ctx, opts.PollInterval)
	}
}

// launchReady fills free agent slots from the ready queue. Only issues
// still in status open are picked up: starting a launch claims the
// issue by moving it to in_progress.
func (a *autopilot) launchReady(ctx context.Context, out io.Writer) error {
	slots := a.maxAgents - len(a.active)
	if slots <= 0 {
		return nil
	}

	ready, err := a.issues.Ready(issue.ReadyFilters{Labels: a.labels})
	if err != nil {
		return err
	}

	for _, iss := range ready {
		if slots == 0 {
			break
		}
		if iss.Status != models.StatusOpen {
			continue
		}
		if _, running := a.active[iss.ID]; running {
			continue
		}

		sess, err := a.launcher.Launch(ctx, iss, a.model, nil)
		if err != nil {
			log.Printf("autopilot launch %s error: %v", iss.ID, err)
			continue
		}
		if _, err := a.issues.Start(iss.ID); err != nil {
			log.Printf("autopilot start %s error: %v", iss.ID, err)
		}
		a.active[iss.ID] = &agent{sess: sess, title: iss.Title}
		fmt.Fprintf(out, "Launched %s on %s: %s (pid %d)\n", sess.Launch.ID, iss.ID, iss.Title, sess.PID)
		slots--
	}
	return nil
}

// reap collects finished agents without blocking and reports their
// outcomes.
func (a *autopilot) reap(ctx context.Context, out io.Writer) {
	for id, ag := range a.active {
		select {
		case <-ag.sess.Done():
			delete(a.active, id)
			a.report(ctx, ag, out)
		default:
		}
	}
}

// drain waits for in-flight agents after cancellation has torn down
// their process groups.
func (a *autopilot) drain(out io.Writer) {
	for id, ag := range a.active {
		<-ag.sess.Done()
		delete(a.active, id)
		fmt.Fprintf(out, "Agent on %s stopped\n", id)
	}
}

// report re-reads the finalized launch record for its exit code and
// notifies about the outcome.
func (a *autopilot) report(ctx context.Context, ag *agent, out io.Writer) {
	rec, err := a.launcher.Launches.Read(ag.sess.Launch.ID)
	if err != nil {
		log.Printf("autopilot read launch %s error: %v", ag.sess.Launch.ID, err)
		rec = ag.sess.Launch
	}
	code := 0
	if rec.ExitCode != nil {
		code = *rec.ExitCode
	}

	evt := notify.Event{
		Title:    fmt.Sprintf("Agent finished %s", rec.IssueID),
		Body:     ag.title,
		Severity: notify.SeverityInfo,
		Fields: []notify.Field{
			{Name: "Launch", Value: rec.ID},
			{Name: "Model", Value: rec.Model},
		},
	}
	if code != 0 {
		evt.Title = fmt.Sprintf("Agent failed %s", rec.IssueID)
		evt.Body = fmt.Sprintf("%s (exit code %d)", ag.title, code)
		evt.Severity = notify.SeverityError
	}
	fmt.Fprintf(out, "%s\n", evt.Title)

	if a.notifier == nil {
		return
	}
	if err := a.notifier.Notify(ctx, evt); err != nil {
		log.Printf("autopilot notify error: %v", err)
	}
}

// scheduleWait returns how long until the schedule's next activation,
// or zero when now falls inside the current activation minute.
func scheduleWait(sched cron.Schedule, now time.Time) time.Duration {
	minute := now.Truncate(time.Minute)
	next := sched.Next(minute.Add(-time.Second))
	if !next.After(now) {
		return 0
	}
	return next.Sub(now)
}

// sleepWithContext sleeps for the given duration, returning early when
// the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
