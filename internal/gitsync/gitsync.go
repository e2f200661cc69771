// Package gitsync shares weaver issue records through a dedicated git
// branch. All plumbing shells out to git; errors embed the trimmed
// command output.
package gitsync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rjpower/weaver/internal/store"
)

const (
	// issuesDir is the repo-relative pathspec committed to the sync
	// branch. Git pathspecs always use forward slashes.
	issuesDir = ".weaver/issues"

	commitMessage = "Sync weaver issues"
	pushAttempts  = 2
)

// Status describes where issue sync stands for a workspace.
type Status struct {
	Branch     string // branch currently checked out
	SyncBranch string // branch issues sync through
	IssueCount int    // local issue records
}

// IsRepo reports whether dir is inside a git work tree.
func IsRepo(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	return cmd.Run() == nil
}

// CurrentBranch returns the branch currently checked out in root.
func CurrentBranch(root string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("gitsync: current branch: %s", strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// EnsureIgnoreRules rewrites .gitignore so local weaver state stays out
// of git while .weaver/issues/ can still be committed. A blanket
// .weaver/ entry would hide issue records from the sync branch, so it
// is replaced by an ignore/negate pair.
func EnsureIgnoreRules(root string) error {
	path := filepath.Join(root, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("gitsync: read .gitignore: %w", err)
	}

	changed := false
	var kept []string
	hasIgnore, hasNegate := false, false
	if len(data) > 0 {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			switch strings.TrimSpace(line) {
			case ".weaver", ".weaver/":
				changed = true
				continue
			case ".weaver/*":
				hasIgnore = true
			case "!.weaver/issues/":
				hasNegate = true
			}
			kept = append(kept, line)
		}
	}

	if !hasIgnore {
		kept = append(kept, ".weaver/*")
		changed = true
	}
	if !hasNegate {
		kept = append(kept, "!.weaver/issues/")
		changed = true
	}
	if !changed {
		return nil
	}

	out := strings.Join(kept, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("gitsync: write .gitignore: %w", err)
	}
	return nil
}

// Push commits local issue records to the sync branch and pushes it to
// origin. The branch the user had checked out is restored afterwards,
// along with the working-tree issue files that switching away from the
// sync branch removes.
func Push(root, branch string) error {
	if branch == "" {
		return fmt.Errorf("gitsync: branch name is required")
	}
	if !IsRepo(root) {
		return fmt.Errorf("gitsync: %s is not inside a git repository", root)
	}

	ids, err := store.New(root).ListIDs()
	if err != nil {
		return fmt.Errorf("gitsync: list issues: %w", err)
	}

	original, err := CurrentBranch(root)
	if err != nil {
		return err
	}

	if err := checkoutSyncBranch(root, branch); err != nil {
		return err
	}
	defer func() {
		checkout(root, original)
		restoreIssues(root, branch)
	}()

	// The ignore flip lives on the sync branch only. The user's own
	// branches keep whatever .weaver entry init wrote.
	if err := EnsureIgnoreRules(root); err != nil {
		return err
	}

	// git add errors on a pathspec matching no files, so skip the
	// issues dir while it is empty.
	if len(ids) > 0 {
		add := exec.Command("git", "add", issuesDir)
		add.Dir = root
		if out, err := add.CombinedOutput(); err != nil {
			return fmt.Errorf("gitsync: stage issues: %s", strings.TrimSpace(string(out)))
		}
	}

	addIgnore := exec.Command("git", "add", ".gitignore")
	addIgnore.Dir = root
	if out, err := addIgnore.CombinedOutput(); err != nil {
		return fmt.Errorf("gitsync: stage .gitignore: %s", strings.TrimSpace(string(out)))
	}

	if hasStagedChanges(root) {
		commit := exec.Command("git", "commit", "-m", commitMessage)
		commit.Dir = root
		if out, err := commit.CombinedOutput(); err != nil {
			return fmt.Errorf("gitsync: commit: %s", strings.TrimSpace(string(out)))
		}
	}

	var lastErr error
	for attempt := range pushAttempts {
		push := exec.Command("git", "push", "-u", "origin", branch)
		push.Dir = root
		out, err := push.CombinedOutput()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("gitsync: push %q (attempt %d): %s", branch, attempt+1, strings.TrimSpace(string(out)))

		if attempt == 0 {
			time.Sleep(time.Second)
		}
	}
	return lastErr
}

// Pull fetches the sync branch from origin and checks its issue
// records out into the working tree. The records are left untracked on
// the user's branch; only the sync branch tracks them.
func Pull(root, branch string) error {
	if branch == "" {
		return fmt.Errorf("gitsync: branch name is required")
	}
	if !IsRepo(root) {
		return fmt.Errorf("gitsync: %s is not inside a git repository", root)
	}

	fetch := exec.Command("git", "fetch", "origin", branch)
	fetch.Dir = root
	if out, err := fetch.CombinedOutput(); err != nil {
		return fmt.Errorf("gitsync: fetch %q: %s", branch, strings.TrimSpace(string(out)))
	}

	co := exec.Command("git", "checkout", "origin/"+branch, "--", issuesDir)
	co.Dir = root
	if out, err := co.CombinedOutput(); err != nil {
		return fmt.Errorf("gitsync: checkout issues from %q: %s", branch, strings.TrimSpace(string(out)))
	}

	unstage := exec.Command("git", "restore", "--staged", "--", issuesDir)
	unstage.Dir = root
	unstage.CombinedOutput()
	return nil
}

// ReadStatus reports the current branch, the configured sync branch,
// and the local issue count.
func ReadStatus(root, syncBranch string) (Status, error) {
	if !IsRepo(root) {
		return Status{}, fmt.Errorf("gitsync: %s is not inside a git repository", root)
	}
	branch, err := CurrentBranch(root)
	if err != nil {
		return Status{}, err
	}
	ids, err := store.New(root).ListIDs()
	if err != nil {
		return Status{}, fmt.Errorf("gitsync: count issues: %w", err)
	}
	return Status{Branch: branch, SyncBranch: syncBranch, IssueCount: len(ids)}, nil
}

// checkoutSyncBranch checks out the sync branch, creating it from the
// current HEAD when it exists neither locally nor on origin.
func checkoutSyncBranch(root, branch string) error {
	cmd := exec.Command("git", "checkout", branch)
	cmd.Dir = root
	if _, err := cmd.CombinedOutput(); err == nil {
		pullRebase(root, branch)
		return nil
	}

	create := exec.Command("git", "checkout", "-b", branch)
	create.Dir = root
	if out, err := create.CombinedOutput(); err != nil {
		return fmt.Errorf("gitsync: create branch %q: %s", branch, strings.TrimSpace(string(out)))
	}
	return nil
}

// pullRebase picks up records other writers pushed, best effort. A
// missing remote or an offline run is not an error here; push will
// surface anything real.
func pullRebase(root, branch string) {
	cmd := exec.Command("git", "pull", "--rebase", "origin", branch)
	cmd.Dir = root
	cmd.CombinedOutput()
}

// checkout restores a branch, ignoring failure. Used to put the user
// back where they were after a sync.
func checkout(root, branch string) {
	cmd := exec.Command("git", "checkout", branch)
	cmd.Dir = root
	cmd.CombinedOutput()
}

// restoreIssues copies the sync branch's issue records back into the
// working tree. Switching away from the sync branch removes the files
// it tracks, which would otherwise wipe local issue state.
func restoreIssues(root, branch string) {
	cmd := exec.Command("git", "restore", "--source="+branch, "--worktree", "--", issuesDir)
	cmd.Dir = root
	cmd.CombinedOutput()
}

// hasStagedChanges reports whether the index differs from HEAD.
func hasStagedChanges(root string) bool {
	cmd := exec.Command("git", "diff", "--cached", "--quiet")
	cmd.Dir = root
	return cmd.Run() != nil
}
