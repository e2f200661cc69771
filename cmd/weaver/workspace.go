package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rjpower/weaver/internal/config"
	"github.com/rjpower/weaver/internal/hint"
	"github.com/rjpower/weaver/internal/issue"
	"github.com/rjpower/weaver/internal/launch"
	"github.com/rjpower/weaver/internal/store"
	"github.com/rjpower/weaver/internal/workflow"
)

// requireRoot walks up from the working directory to the enclosing
// workspace root.
func requireRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, ok := store.FindRoot(wd)
	if !ok {
		return "", fmt.Errorf("not in a weaver project (run 'weaver init' first)")
	}
	return root, nil
}

// openService loads the workspace config and builds the issue service.
func openService() (string, *config.Config, *issue.Service, error) {
	root, err := requireRoot()
	if err != nil {
		return "", nil, nil, err
	}
	cfg, err := config.LoadWorkspace(root)
	if err != nil {
		return "", nil, nil, err
	}
	return root, cfg, issue.New(store.New(root), cfg.IDPrefix), nil
}

// openWorkflows builds the workflow service on top of the issue
// service.
func openWorkflows() (*workflow.Service, error) {
	root, _, svc, err := openService()
	if err != nil {
		return nil, err
	}
	return workflow.New(store.NewWorkflowStore(root), svc), nil
}

// openHints builds the hint service for the enclosing workspace.
func openHints() (*hint.Service, error) {
	root, err := requireRoot()
	if err != nil {
		return nil, err
	}
	return hint.New(store.NewHintStore(root)), nil
}

// newLauncher assembles a Launcher rooted at the workspace.
func newLauncher(root string, svc *issue.Service) *launch.Launcher {
	return &launch.Launcher{
		Issues:   svc,
		Hints:    hint.New(store.NewHintStore(root)),
		Launches: store.NewLaunchStore(root),
		WorkDir:  root,
	}
}

// readContent resolves a -f flag value: "-" reads stdin, a path reads
// that file, and empty falls back to the inline flag value.
func readContent(filePath, inline string, stdin io.Reader) (string, error) {
	if filePath == "" {
		return inline, nil
	}
	if filePath == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filePath, err)
	}
	return string(data), nil
}
