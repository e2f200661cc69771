// Package slack posts weaver notifications to a Slack channel.
package slack

import (
	"context"
	"errors"
	"fmt"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/rjpower/weaver/internal/notify"
)

const maxRetries = 3

// slackClient abstracts the slack-go API for testing.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts events to a single Slack channel.
type Notifier struct {
	client  slackClient
	channel string
}

// Opts configures a Slack notifier.
type Opts struct {
	Token   string
	Channel string

	// Client overrides the real Slack API client, for testing.
	Client slackClient
}

// New creates a Slack notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}

	n := &Notifier{channel: opts.Channel}
	if opts.Client != nil {
		n.client = opts.Client
	} else {
		n.client = slackapi.New(opts.Token)
	}
	return n, nil
}

// Notify posts the event as an attachment-formatted message.
func (n *Notifier) Notify(ctx context.Context, evt notify.Event) error {
	att := eventToAttachment(evt)
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := n.client.PostMessageContext(ctx, n.channel,
			slackapi.MsgOptionText(evt.Title, false),
			slackapi.MsgOptionAttachments(att),
		)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

func eventToAttachment(evt notify.Event) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    evt.Title,
		Text:     evt.Body,
		Color:    notify.SeverityColor(evt.Severity),
		Fallback: evt.Title,
	}
	for _, f := range evt.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: true,
		})
	}
	return att
}

// retryOnRateLimit runs fn, retrying with the server-suggested delay
// when Slack rate-limits the request.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(lastErr, &rle) {
			return lastErr
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(1<<attempt) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}
