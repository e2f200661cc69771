package launch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rjpower/weaver/internal/hint"
	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/models"
	"github.com/rjpower/weaver/internal/store"
)

// writeMockBinary creates a shell script that acts as a mock claude
// binary.
func writeMockBinary(t *testing.T, dir, script string) string {
	t.Helper()
	path := filepath.Join(dir, "claude")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("write mock binary: %v", err)
	}
	return path
}

func newTestLauncher(t *testing.T, script string) (*Launcher, *store.LaunchStore) {
	t.Helper()
	root := t.TempDir()
	if _, err := store.InitWorkspace(root); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	launches := store.NewLaunchStore(root)
	l := &Launcher{
		Issues:   issue.New(store.New(root), ""),
		Hints:    hint.New(store.NewHintStore(root)),
		Launches: launches,
		WorkDir:  root,
		Binary:   writeMockBinary(t, root, script),
	}
	return l, launches
}

func sampleIssue() models.Issue {
	return models.Issue{
		ID:       "wv-abcd",
		Title:    "Do the thing",
		Type:     models.TypeTask,
		Status:   models.StatusOpen,
		Priority: 2,
	}
}

// --- Command construction ---

func TestBuildCommand_Args(t *testing.T) {
	l := &Launcher{Binary: "/usr/bin/claude", WorkDir: "/tmp/work"}
	cmd, cancel := l.buildCommand(context.Background(), models.ModelOpus, "test context")
	defer cancel()

	args := cmd.Args
	if args[0] != "/usr/bin/claude" {
		t.Errorf("binary = %q, want /usr/bin/claude", args[0])
	}
	if cmd.Dir != "/tmp/work" {
		t.Errorf("Dir = %q, want /tmp/work", cmd.Dir)
	}

	var foundModel, foundSkipPerms, foundVerbose, foundFormat, foundSP, foundP bool
	for i, a := range args {
		switch a {
		case "--model":
			foundModel = true
			if i+1 >= len(args) || args[i+1] != models.ModelOpus.FullName() {
				t.Error("--model value should be the full model name")
			}
		case "--dangerously-skip-permissions":
			foundSkipPerms = true
		case "--verbose":
			foundVerbose = true
		case "--output-format":
			foundFormat = true
			if i+1 >= len(args) || args[i+1] != "stream-json" {
				t.Error("--output-format value should be stream-json")
			}
		case "--system-prompt":
			foundSP = true
			if i+1 >= len(args) || args[i+1] != "test context" {
				t.Error("--system-prompt should carry the context document")
			}
		case "-p":
			foundP = true
			if i+1 >= len(args) || args[i+1] != kickoffPrompt {
				t.Error("-p should carry the kickoff prompt")
			}
		}
	}
	for name, found := range map[string]bool{
		"--model":                        foundModel,
		"--dangerously-skip-permissions": foundSkipPerms,
		"--verbose":                      foundVerbose,
		"--output-format":                foundFormat,
		"--system-prompt":                foundSP,
		"-p":                             foundP,
	} {
		if !found {
			t.Errorf("%s flag not found in args", name)
		}
	}

	if cmd.Cancel == nil {
		t.Error("cmd.Cancel should be set (SIGTERM handler)")
	}
	if cmd.SysProcAttr == nil || !cmd.SysProcAttr.Setpgid {
		t.Error("Setpgid should be set for process group isolation")
	}
}

func TestBuildCommand_DefaultBinary(t *testing.T) {
	l := &Launcher{}
	cmd, cancel := l.buildCommand(context.Background(), models.ModelSonnet, "ctx")
	defer cancel()
	if cmd.Args[0] != "claude" {
		t.Errorf("binary = %q, want default claude", cmd.Args[0])
	}
}

func TestBuildCommand_StripsAnthropicEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-secret")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "tok-secret")
	t.Setenv("WEAVER_KEEP_ME", "yes")

	l := &Launcher{}
	cmd, cancel := l.buildCommand(context.Background(), models.ModelSonnet, "ctx")
	defer cancel()

	var keepFound bool
	for _, kv := range cmd.Env {
		if strings.HasPrefix(kv, "ANTHROPIC_API_KEY=") || strings.HasPrefix(kv, "ANTHROPIC_AUTH_TOKEN=") {
			t.Errorf("credential %q leaked into subprocess env", kv)
		}
		if kv == "WEAVER_KEEP_ME=yes" {
			keepFound = true
		}
	}
	if !keepFound {
		t.Error("unrelated env vars should be inherited")
	}
}

func TestFilteredEnv(t *testing.T) {
	got := filteredEnv([]string{
		"PATH=/usr/bin",
		"ANTHROPIC_API_KEY=sk-1",
		"HOME=/home/u",
		"ANTHROPIC_AUTH_TOKEN=t-1",
	})
	if len(got) != 2 || got[0] != "PATH=/usr/bin" || got[1] != "HOME=/home/u" {
		t.Errorf("filteredEnv = %v", got)
	}
}

// --- logWriter ---

func TestLogWriter_BuffersUntilFlush(t *testing.T) {
	var out bytes.Buffer
	w := &logWriter{out: &out}

	if _, err := w.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("world"))
	if out.Len() != 0 {
		t.Errorf("output written before flush: %q", out.String())
	}

	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello world" {
		t.Errorf("out = %q, want %q", out.String(), "hello world")
	}

	// Flushing an empty buffer writes nothing further.
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello world" {
		t.Errorf("out = %q after empty flush", out.String())
	}
}

func TestLogWriter_TeesToFollow(t *testing.T) {
	var out, follow bytes.Buffer
	w := &logWriter{out: &out, tee: &follow}

	w.Write([]byte("line\n"))
	if follow.String() != "line\n" {
		t.Errorf("follow = %q, want immediate tee", follow.String())
	}
}

// --- Launch with mock binaries ---

func TestLaunch_RecordLifecycle(t *testing.T) {
	l, launches := newTestLauncher(t, `sleep 1`)

	sess, err := l.Launch(context.Background(), sampleIssue(), models.ModelSonnet, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if !strings.HasPrefix(sess.Launch.ID, "wv-launch-") {
		t.Errorf("launch id = %q, want wv-launch- prefix", sess.Launch.ID)
	}
	if sess.PID <= 0 {
		t.Errorf("PID = %d, want > 0", sess.PID)
	}

	// Record is on disk before the process exits.
	pending, err := launches.Read(sess.Launch.ID)
	if err != nil {
		t.Fatalf("read pending record: %v", err)
	}
	if pending.CompletedAt != nil || pending.ExitCode != nil {
		t.Errorf("pending record already finalized: %+v", pending)
	}
	if pending.IssueID != "wv-abcd" {
		t.Errorf("IssueID = %q", pending.IssueID)
	}
	if pending.Model != models.ModelSonnet.FullName() {
		t.Errorf("Model = %q, want full name", pending.Model)
	}

	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	final, err := launches.Read(sess.Launch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not set after exit")
	}
	if final.ExitCode == nil || *final.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", final.ExitCode)
	}
}

func TestLaunch_WritesContextDocument(t *testing.T) {
	l, launches := newTestLauncher(t, `true`)

	sess, err := l.Launch(context.Background(), sampleIssue(), models.ModelSonnet, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer sess.Wait()

	data, err := os.ReadFile(launches.ContextPath(sess.Launch.ID))
	if err != nil {
		t.Fatalf("read context doc: %v", err)
	}
	if !strings.Contains(string(data), "# Task: Do the thing") {
		t.Errorf("context doc = %q", string(data))
	}
}

func TestLaunch_CapturesOutputToLog(t *testing.T) {
	l, _ := newTestLauncher(t, `echo "agent says hi"
echo "stderr line" >&2`)

	sess, err := l.Launch(context.Background(), sampleIssue(), models.ModelSonnet, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := sess.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	data, err := os.ReadFile(sess.Launch.LogFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "agent says hi") {
		t.Errorf("log missing stdout: %q", string(data))
	}
	if !strings.Contains(string(data), "stderr line") {
		t.Errorf("log missing stderr: %q", string(data))
	}
}

func TestLaunch_RecordsExitCode(t *testing.T) {
	l, launches := newTestLauncher(t, `exit 3`)

	sess, err := l.Launch(context.Background(), sampleIssue(), models.ModelSonnet, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := sess.Wait(); err == nil {
		t.Fatal("expected non-nil error from exit 3")
	}

	final, err := launches.Read(sess.Launch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.ExitCode == nil || *final.ExitCode != 3 {
		t.Errorf("ExitCode = %v, want 3", final.ExitCode)
	}
}

func TestLaunch_FollowReceivesOutput(t *testing.T) {
	l, _ := newTestLauncher(t, `echo "streamed"`)

	var follow bytes.Buffer
	sess, err := l.Launch(context.Background(), sampleIssue(), models.ModelSonnet, &follow)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := sess.Wait(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(follow.String(), "streamed") {
		t.Errorf("follow = %q", follow.String())
	}
}

func TestLaunch_RejectsUnknownModel(t *testing.T) {
	l, _ := newTestLauncher(t, `true`)
	if _, err := l.Launch(context.Background(), sampleIssue(), "gpt-4", nil); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestLaunch_ContextCancelTerminates(t *testing.T) {
	l, launches := newTestLauncher(t, `sleep 60`)

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := l.Launch(ctx, sampleIssue(), models.ModelSonnet, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	select {
	case err := <-sess.Done():
		if err == nil {
			t.Error("expected error after context cancel, got nil")
		}
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for process to exit after cancel")
	}

	final, err := launches.Read(sess.Launch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.CompletedAt == nil || final.ExitCode == nil {
		t.Errorf("record not finalized after cancel: %+v", final)
	}
	if *final.ExitCode == 0 {
		t.Error("ExitCode should be non-zero after SIGTERM")
	}
}

func TestLaunch_ContextIncludesBlockersAndHints(t *testing.T) {
	l, launches := newTestLauncher(t, `true`)

	blocker, err := l.Issues.Create(issue.CreateOpts{Title: "Blocker task", Priority: 2})
	if err != nil {
		t.Fatal(err)
	}
	iss, err := l.Issues.Create(issue.CreateOpts{
		Title:     "Main task",
		Priority:  2,
		Labels:    []string{"backend"},
		BlockedBy: []string{blocker.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.Hints.CreateOrUpdate("backend", "Use contexts everywhere.", nil); err != nil {
		t.Fatal(err)
	}

	sess, err := l.Launch(context.Background(), iss, models.ModelSonnet, nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer sess.Wait()

	data, err := os.ReadFile(launches.ContextPath(sess.Launch.ID))
	if err != nil {
		t.Fatal(err)
	}
	doc := string(data)
	if !strings.Contains(doc, blocker.ID+": Blocker task (open)") {
		t.Errorf("context missing blocker line: %q", doc)
	}
	if !strings.Contains(doc, "Use contexts everywhere.") {
		t.Errorf("context missing matched hint: %q", doc)
	}
}
