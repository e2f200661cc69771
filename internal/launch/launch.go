// Package launch spawns claude subprocesses against issues and records
// each execution.
package launch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rjpower/weaver/internal/hint"
	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/store"
)

const (
	idPrefix   = "wv-launch"
	idAttempts = 3

	kickoffPrompt = "Begin working on your assigned task. Follow the instructions in the system prompt."
)

// DefaultFlushInterval is the interval between periodic log flushes.
const DefaultFlushInterval = 5 * time.Second

// Launcher spawns agent subprocesses. Hints may be nil when no hint
// store is available.
type Launcher struct {
	Issues   *issue.Service
	Hints    *hint.Service
	Launches *store.LaunchStore
	WorkDir  string // working directory for claude
	Binary   string // path to claude binary, default "claude"
}

// Session represents a running claude subprocess.
type Session struct {
	Launch models.Launch
	PID    int

	waitCh chan error // buffered(1), receives exit result
}

// Wait blocks until the subprocess exits and returns its error (if
// any).
func (s *Session) Wait() error {
	return <-s.waitCh
}

// Done returns a channel that receives the subprocess exit result.
func (s *Session) Done() <-chan error {
	return s.waitCh
}

// Launch composes the context document for iss, persists a launch
// record, and spawns a claude subprocess streaming its output to the
// launch log. The record is written before the spawn so a crash still
// leaves a trace. When follow is non-nil, output is teed to it live.
func (l *Launcher) Launch(ctx context.Context, iss models.Issue, model models.AgentModel, follow io.Writer) (*Session, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("launch: unknown model %q", model)
	}
	if err := l.Launches.Init(); err != nil {
		return nil, err
	}

	id, err := l.newID()
	if err != nil {
		return nil, err
	}

	doc, err := l.ComposeContext(iss)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(l.Launches.ContextPath(id), []byte(doc), 0644); err != nil {
		return nil, fmt.Errorf("launch: write context: %w", err)
	}

	logPath := l.Launches.LogPath(id)
	record := models.Launch{
		ID:        id,
		IssueID:   iss.ID,
		Model:     model.FullName(),
		StartedAt: time.Now().UTC(),
		LogFile:   logPath,
	}
	if err := l.Launches.Write(record); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("launch: open log: %w", err)
	}
	writer := &logWriter{out: logFile, tee: follow}

	cmd, cancel := l.buildCommand(ctx, model, doc)
	cmd.Stdout = writer
	cmd.Stderr = writer

	if err := cmd.Start(); err != nil {
		cancel()
		logFile.Close()
		l.finalize(record, -1)
		return nil, fmt.Errorf("launch: start %s: %w", l.binary(), err)
	}

	waitCh := make(chan error, 1)
	flushCtx, flushCancel := context.WithCancel(ctx)
	startFlusher(flushCtx, writer, DefaultFlushInterval)

	go func() {
		waitErr := cmd.Wait()
		cancel()
		flushCancel()
		writer.Close()
		logFile.Close()
		code := 0
		if waitErr != nil {
			code = -1
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				code = exitErr.ExitCode()
			}
		}
		if err := l.finalize(record, code); err != nil {
			log.Printf("launch: finalize %s: %v", record.ID, err)
		}
		waitCh <- waitErr
	}()

	return &Session{
		Launch: record,
		PID:    cmd.Process.Pid,
		waitCh: waitCh,
	}, nil
}

// ComposeContext gathers the issue's blockers and matching hints and
// renders the context document. Dangling blocker ids are skipped.
func (l *Launcher) ComposeContext(iss models.Issue) (string, error) {
	var blockers []models.Issue
	for _, blockerID := range iss.BlockedBy {
		b, err := l.Issues.Get(blockerID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		blockers = append(blockers, b)
	}

	var matched []models.Hint
	if l.Hints != nil {
		all, err := l.Hints.List()
		if err != nil {
			return "", err
		}
		matched = MatchHints(iss, all)
	}

	return BuildContext(ContextInput{Issue: iss, Blockers: blockers, Hints: matched}), nil
}

// buildCommand constructs the exec.Cmd for the claude CLI. The agent
// runs in its own process group so cancellation tears down the whole
// tree, and inherits the environment minus Anthropic credentials.
func (l *Launcher) buildCommand(ctx context.Context, model models.AgentModel, contextDoc string) (*exec.Cmd, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, l.binary(),
		"--model", model.FullName(),
		"--dangerously-skip-permissions",
		"--verbose",
		"--output-format", "stream-json",
		"--system-prompt", contextDoc,
		"-p", kickoffPrompt,
	)
	if l.WorkDir != "" {
		cmd.Dir = l.WorkDir
	}
	cmd.Env = filteredEnv(os.Environ())

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	return cmd, cancel
}

func (l *Launcher) binary() string {
	if l.Binary != "" {
		return l.Binary
	}
	return "claude"
}

func (l *Launcher) finalize(record models.Launch, code int) error {
	now := time.Now().UTC()
	record.CompletedAt = &now
	record.ExitCode = &code
	return l.Launches.Write(record)
}

func (l *Launcher) newID() (string, error) {
	existing, err := l.Launches.List()
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(existing))
	for _, rec := range existing {
		taken[rec.ID] = true
	}
	for range idAttempts {
		id, err := issue.GenerateID(idPrefix)
		if err != nil {
			return "", err
		}
		if !taken[id] {
			return id, nil
		}
	}
	return "", fmt.Errorf("launch: no unique id after %d attempts: %w", idAttempts, issue.ErrCollision)
}

// filteredEnv strips Anthropic credentials so the agent authenticates
// with its own subscription rather than inheriting API keys.
func filteredEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "ANTHROPIC_API_KEY=") || strings.HasPrefix(kv, "ANTHROPIC_AUTH_TOKEN=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// logWriter implements io.Writer, buffering subprocess output and
// periodically flushing it to the log file.
type logWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	out io.Writer
	tee io.Writer // optional live follow stream
}

// Write appends bytes to the internal buffer (implements io.Writer).
func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	if w.tee != nil {
		w.tee.Write(p)
	}
	return n, err
}

// Flush writes accumulated buffer contents to the log file and resets
// the buffer.
func (w *logWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.out.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

// Close performs a final flush.
func (w *logWriter) Close() error {
	return w.Flush()
}

// startFlusher launches a goroutine that periodically flushes the
// logWriter.
func startFlusher(ctx context.Context, w *logWriter, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Flush()
			}
		}
	}()
}
