package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/rjpower/weaver/internal/notify"
)

type sentEmbed struct {
	channel string
	embed   *discordgo.MessageEmbed
}

// fakeSession records embeds and pops one queued error per call.
type fakeSession struct {
	mu   sync.Mutex
	sent []sentEmbed
	errs []error
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.sent = append(f.sent, sentEmbed{channel: channelID, embed: embed})
	return &discordgo.Message{ID: "123"}, nil
}

func (f *fakeSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestNotifier(t *testing.T) (*Notifier, *fakeSession) {
	t.Helper()
	sess := &fakeSession{}
	n, err := New(Opts{Session: sess, Channel: "987654"})
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	n.backoff = time.Millisecond
	return n, sess
}

func rateLimitErr() *discordgo.RESTError {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: 429}}
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Opts{Channel: "987654"})
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	if !strings.Contains(err.Error(), "bot token is required") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestNew_RequiresChannel(t *testing.T) {
	_, err := New(Opts{Token: "bot-secret"})
	if err == nil {
		t.Fatal("expected error for missing channel")
	}
	if !strings.Contains(err.Error(), "channel is required") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestNotify_SendsEmbed(t *testing.T) {
	n, sess := newTestNotifier(t)

	err := n.Notify(context.Background(), notify.Event{
		Title:    "Agent finished",
		Body:     "wv-1234 closed",
		Severity: notify.SeverityInfo,
		Fields: []notify.Field{
			{Name: "Issue", Value: "wv-1234"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.sentCount() != 1 {
		t.Fatalf("expected 1 sent embed, got %d", sess.sentCount())
	}

	got := sess.sent[0]
	if got.channel != "987654" {
		t.Errorf("channel = %q, want 987654", got.channel)
	}
	if got.embed.Title != "Agent finished" {
		t.Errorf("title = %q", got.embed.Title)
	}
	if got.embed.Description != "wv-1234 closed" {
		t.Errorf("description = %q", got.embed.Description)
	}
	if got.embed.Color != 0x36a64f {
		t.Errorf("color = %#x, want 0x36a64f", got.embed.Color)
	}
	if len(got.embed.Fields) != 1 {
		t.Fatalf("fields count = %d, want 1", len(got.embed.Fields))
	}
	if got.embed.Fields[0].Name != "Issue" || got.embed.Fields[0].Value != "wv-1234" {
		t.Errorf("field[0] = %+v", got.embed.Fields[0])
	}
	if !got.embed.Fields[0].Inline {
		t.Error("field[0] should be inline")
	}
}

func TestNotify_SendError(t *testing.T) {
	n, sess := newTestNotifier(t)
	sess.errs = []error{fmt.Errorf("unknown channel")}

	err := n.Notify(context.Background(), notify.Event{Title: "x"})
	if err == nil {
		t.Fatal("expected send error")
	}
	if !strings.Contains(err.Error(), "discord: send message") {
		t.Errorf("error = %q", err.Error())
	}
	if sess.sentCount() != 0 {
		t.Errorf("expected 0 sent embeds, got %d", sess.sentCount())
	}
}

func TestNotify_RetriesOnRateLimit(t *testing.T) {
	n, sess := newTestNotifier(t)
	sess.errs = []error{rateLimitErr(), rateLimitErr()}

	err := n.Notify(context.Background(), notify.Event{Title: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.sentCount() != 1 {
		t.Errorf("expected 1 successful send after retries, got %d", sess.sentCount())
	}
}

func TestNotify_ExhaustsRetries(t *testing.T) {
	n, sess := newTestNotifier(t)
	for range maxRetries + 1 {
		sess.errs = append(sess.errs, rateLimitErr())
	}

	err := n.Notify(context.Background(), notify.Event{Title: "x"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if sess.sentCount() != 0 {
		t.Errorf("expected 0 sent embeds, got %d", sess.sentCount())
	}
}

func TestNotify_RespectsContext(t *testing.T) {
	n, sess := newTestNotifier(t)
	n.backoff = time.Second
	sess.errs = []error{rateLimitErr()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Notify(ctx, notify.Event{Title: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"36a64f", 0x36a64f},
		{"#d00000", 0xd00000},
		{"", 0},
		{"not-a-color", 0},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

var _ notify.Notifier = (*Notifier)(nil)
