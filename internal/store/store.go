// Package store persists weaver records as individual files under a
// workspace's .weaver directory. Every write goes through a temp file
// and an atomic rename so a concurrent reader never observes a torn
// record.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrNotFound means the referenced id has no record.
	ErrNotFound = errors.New("record not found")
	// ErrParse means a persisted record is malformed. Single-record
	// reads fail with it; bulk reads skip the record and continue.
	ErrParse = errors.New("malformed record")
)

const weaverDirName = ".weaver"

// WeaverDir returns the .weaver directory under a workspace root.
func WeaverDir(root string) string {
	return filepath.Join(root, weaverDirName)
}

// FindRoot walks up from start looking for a directory that contains a
// .weaver workspace. The boolean reports whether one was found.
func FindRoot(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		if fi, err := os.Stat(filepath.Join(dir, weaverDirName)); err == nil && fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// InitWorkspace creates the full .weaver directory tree under root.
// It is idempotent; the boolean reports whether the workspace already
// existed.
func InitWorkspace(root string) (bool, error) {
	weaver := WeaverDir(root)
	_, err := os.Stat(weaver)
	existed := err == nil
	for _, dir := range []string{
		filepath.Join(weaver, "issues"),
		filepath.Join(weaver, "hints"),
		filepath.Join(weaver, "workflows"),
		filepath.Join(weaver, "launches", "logs"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return existed, fmt.Errorf("store: init workspace: %w", err)
		}
	}
	return existed, nil
}

// writeAtomic writes data to path via a temp file in the same
// directory followed by a rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// renderFrontmatter serializes header as YAML between --- markers,
// followed by the markdown body.
func renderFrontmatter(header any, body string) ([]byte, error) {
	meta, err := yaml.Marshal(header)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(meta)
	buf.WriteString("---\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// splitFrontmatter separates a record into its YAML header and
// markdown body.
func splitFrontmatter(data []byte) ([]byte, string, error) {
	s := string(data)
	if !strings.HasPrefix(s, "---\n") {
		return nil, "", errors.New("missing frontmatter delimiter")
	}
	rest := s[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, "", errors.New("unterminated frontmatter")
	}
	header := rest[:end+1]
	body := strings.TrimLeft(rest[end+len("\n---"):], "\n")
	return []byte(header), body, nil
}
