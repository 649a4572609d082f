// Package hooks installs the commit-msg hook that stamps a GG-ID on every
// new commit made on a stack branch.
package hooks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Name is the only hook gg installs
const Name = "commit-msg"

const marker = "# installed by gg"

// ErrForeignHook means a commit-msg hook that gg did not write is in the way
var ErrForeignHook = errors.New("a commit-msg hook not written by gg already exists")

func script() string {
	return fmt.Sprintf(`#!/bin/sh
%s
command -v gg >/dev/null 2>&1 || exit 0
exec gg hook %s "$@"
`, marker, Name)
}

// Install writes the hook into hooksDir. A foreign hook is only replaced
// when force is set.
func Install(hooksDir string, force bool) error {
	if err := os.MkdirAll(hooksDir, 0755); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}

	path := filepath.Join(hooksDir, Name)
	content, err := os.ReadFile(path)
	switch {
	case err == nil && !isOurs(string(content)) && !force:
		return fmt.Errorf("%w: %s (use --force to replace it)", ErrForeignHook, path)
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("failed to read hook %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(script()), 0755); err != nil {
		return fmt.Errorf("failed to write hook %s: %w", path, err)
	}
	return nil
}

// Uninstall removes the hook if gg wrote it
func Uninstall(hooksDir string) error {
	path := filepath.Join(hooksDir, Name)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read hook %s: %w", path, err)
	}
	if !isOurs(string(content)) {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove hook %s: %w", path, err)
	}
	return nil
}

// Installed reports whether the gg hook is in place
func Installed(hooksDir string) bool {
	content, err := os.ReadFile(filepath.Join(hooksDir, Name))
	return err == nil && isOurs(string(content))
}

func isOurs(content string) bool {
	return strings.Contains(content, marker)
}
