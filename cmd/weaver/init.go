package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rjpower/weaver/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a weaver workspace",
		Long:  "Creates the .weaver directory tree in the current directory and adds it to .gitignore.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd)
		},
	}
}

func runInit(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	existed, err := store.InitWorkspace(wd)
	if err != nil {
		return err
	}
	if existed {
		fmt.Fprintln(out, "Weaver already initialized")
		return nil
	}

	if err := addWeaverToGitIgnore(wd, out); err != nil {
		return err
	}
	fmt.Fprintf(out, "Initialized weaver in %s\n", store.WeaverDir(wd))
	return nil
}

// addWeaverToGitIgnore ensures .gitignore hides the workspace state,
// creating the file when missing.
func addWeaverToGitIgnore(root string, out io.Writer) error {
	path := filepath.Join(root, ".gitignore")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte(".weaver/\n"), 0644); err != nil {
			return fmt.Errorf("write .gitignore: %w", err)
		}
		fmt.Fprintln(out, "Created .gitignore with .weaver/")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read .gitignore: %w", err)
	}
	if strings.Contains(string(data), ".weaver/") {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open .gitignore: %w", err)
	}
	defer f.Close()
	entry := ".weaver/\n"
	if len(data) > 0 && data[len(data)-1] != '\n' {
		entry = "\n" + entry
	}
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append .gitignore: %w", err)
	}
	fmt.Fprintln(out, "Added .weaver/ to .gitignore")
	return nil
}
