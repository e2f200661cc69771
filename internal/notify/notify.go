// Package notify delivers best-effort outbound notifications about
// agent activity.
package notify

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

// Severity classifies an event for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Field is a short labelled value attached to an event.
type Field struct {
	Name  string
	Value string
}

// Event is one notification.
type Event struct {
	Title    string
	Body     string
	Severity Severity
	Fields   []Field
}

// Notifier delivers events to one destination.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// SeverityColor maps a severity to the hex color used by the chat
// notifiers.
func SeverityColor(s Severity) string {
	switch s {
	case SeverityWarning:
		return "#f2c744"
	case SeverityError:
		return "#d00000"
	default:
		return "#36a64f"
	}
}

// Shell runs a templated command for each event, e.g.
// "notify-send 'weaver' '{{.Title}}'". When running inside tmux, the
// event title is also shown via tmux display-message.
type Shell struct {
	Command string
}

// Notify executes the configured command with event placeholders
// substituted.
func (s *Shell) Notify(ctx context.Context, evt Event) error {
	if s.Command != "" {
		cmdStr := templateEvent(s.Command, evt)
		cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("notify: command failed: %v: %s", err, strings.TrimSpace(string(out)))
		}
	}

	// If inside tmux, also display a tmux message.
	if os.Getenv("TMUX") != "" {
		cmd := exec.CommandContext(ctx, "tmux", "display-message", evt.Title)
		if err := cmd.Run(); err != nil {
			log.Printf("notify: tmux display-message failed: %v", err)
		}
	}
	return nil
}

// templateEvent replaces placeholders in the command template with
// event values.
func templateEvent(command string, evt Event) string {
	r := strings.NewReplacer(
		"{{.Title}}", evt.Title,
		"{{.Body}}", evt.Body,
		"{{.Severity}}", string(evt.Severity),
	)
	return r.Replace(command)
}

// Multi fans an event out to several notifiers. Delivery is
// best-effort: a failing notifier is logged and never blocks the
// others or the caller.
type Multi []Notifier

// Notify delivers the event to every notifier in order.
func (m Multi) Notify(ctx context.Context, evt Event) error {
	for _, n := range m {
		if err := n.Notify(ctx, evt); err != nil {
			log.Printf("notify: %v", err)
		}
	}
	return nil
}
