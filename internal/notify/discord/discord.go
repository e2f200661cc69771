// Package discord posts weaver notifications to a Discord channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rjpower/weaver/internal/notify"
)

const maxRetries = 3

// session abstracts *discordgo.Session for testing.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts events to a single Discord channel. Messages are
// sent over the REST API; no gateway connection is opened.
type Notifier struct {
	sess    session
	channel string
	backoff time.Duration
}

// Opts configures a Discord notifier.
type Opts struct {
	Token   string
	Channel string

	// Session overrides the real Discord session, for testing.
	Session session
}

// New creates a Discord notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.Token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}

	n := &Notifier{channel: opts.Channel, backoff: 2 * time.Second}
	if opts.Session != nil {
		n.sess = opts.Session
	} else {
		dg, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		n.sess = dg
	}
	return n, nil
}

// Notify posts the event as an embed.
func (n *Notifier) Notify(ctx context.Context, evt notify.Event) error {
	embed := eventToEmbed(evt)
	err := n.retryOnRateLimit(ctx, func() error {
		_, sendErr := n.sess.ChannelMessageSendEmbed(n.channel, embed, discordgo.WithContext(ctx))
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

func eventToEmbed(evt notify.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       parseHexColor(notify.SeverityColor(evt.Severity)),
	}
	for _, f := range evt.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}
	return embed
}

// parseHexColor converts "#36a64f" to the integer form Discord embeds
// use. Unparseable values fall back to 0 (no color bar).
func parseHexColor(s string) int {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}

// retryOnRateLimit runs fn, retrying with exponential backoff when
// Discord returns HTTP 429.
func (n *Notifier) retryOnRateLimit(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var restErr *discordgo.RESTError
		if !errors.As(lastErr, &restErr) || restErr.Response == nil || restErr.Response.StatusCode != 429 {
			return lastErr
		}

		wait := time.Duration(1<<attempt) * n.backoff
		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}
