package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/config"
	"github.com/rjpower/weaver/internal/gitsync"
	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/store"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check workspace prerequisites and configuration",
		Long:  "Runs diagnostic checks on weaver prerequisites: workspace, config, binaries, git repo, and issue store.",
		RunE:  runDoctor,
	}
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Weaver Doctor")
	fmt.Fprintln(out, "=============")

	var results []checkResult

	// 1. Workspace
	root, rootResult := checkWorkspace()
	results = append(results, rootResult)

	// 2. Config
	if root != "" {
		results = append(results, checkConfig(root))
	} else {
		results = append(results, checkResult{"Config file", "FAIL", "skipped (no workspace)"})
	}

	// 3. Binaries
	for _, bin := range []string{"git", "claude"} {
		results = append(results, checkBinary(bin))
	}

	// 4. Git repo
	if root != "" {
		results = append(results, checkGitRepo(root))
	} else {
		results = append(results, checkResult{"Git repo", "WARN", "skipped (no workspace)"})
	}

	// 5. Issue store
	if root != "" {
		results = append(results, checkIssueStore(root))
	} else {
		results = append(results, checkResult{"Issue store", "FAIL", "skipped (no workspace)"})
	}

	// Print results.
	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkWorkspace() (string, checkResult) {
	wd, err := os.Getwd()
	if err != nil {
		return "", checkResult{"Workspace", "FAIL", err.Error()}
	}
	root, ok := store.FindRoot(wd)
	if !ok {
		return "", checkResult{"Workspace", "FAIL", "not initialized (run 'weaver init')"}
	}
	return root, checkResult{"Workspace", "PASS", store.WeaverDir(root)}
}

func checkConfig(root string) checkResult {
	path := config.Path(root)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return checkResult{"Config file", "PASS", "using defaults (no config file)"}
	}
	if _, err := config.Load(path); err != nil {
		return checkResult{"Config file", "FAIL", err.Error()}
	}
	return checkResult{"Config file", "PASS", path}
}

func checkBinary(name string) checkResult {
	path, err := exec.LookPath(name)
	if err != nil {
		if name == "claude" {
			return checkResult{"Claude CLI", "WARN", "not found (launch needs this to spawn agents)"}
		}
		return checkResult{binaryLabel(name), "FAIL", "not found in PATH"}
	}

	// Try to get version.
	cmd := exec.Command(path, "--version")
	out, err := cmd.Output()
	if err != nil {
		return checkResult{binaryLabel(name), "PASS", "found (version unknown)"}
	}

	version := strings.TrimSpace(strings.Split(string(out), "\n")[0])
	return checkResult{binaryLabel(name), "PASS", version}
}

func binaryLabel(name string) string {
	switch name {
	case "git":
		return "Git"
	case "claude":
		return "Claude CLI"
	default:
		return name
	}
}

func checkGitRepo(root string) checkResult {
	if !gitsync.IsRepo(root) {
		return checkResult{"Git repo", "WARN", "not inside a git repository (sync unavailable)"}
	}
	return checkResult{"Git repo", "PASS", "valid"}
}

func checkIssueStore(root string) checkResult {
	cfg, err := config.LoadWorkspace(root)
	if err != nil {
		return checkResult{"Issue store", "FAIL", err.Error()}
	}
	svc := issue.New(store.New(root), cfg.IDPrefix)
	issues, err := svc.List(issue.ListFilters{})
	if err != nil {
		return checkResult{"Issue store", "FAIL", err.Error()}
	}
	return checkResult{"Issue store", "PASS", fmt.Sprintf("%d issues", len(issues))}
}
