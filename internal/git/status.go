package git

import (
	"fmt"
	"strings"
)

// Status summarizes the working tree
type Status struct {
	Staged    []string
	Unstaged  []string
	Untracked []string
	Conflicts []string
}

// Clean reports whether nothing is staged, modified, or untracked
func (s Status) Clean() bool {
	return len(s.Staged) == 0 && len(s.Unstaged) == 0 && len(s.Untracked) == 0 && len(s.Conflicts) == 0
}

// Status returns the working tree status
func (c *Client) Status() (Status, error) {
	out, err := c.runRaw("status", "--porcelain=v1", "-z", "--untracked-files=all")
	if err != nil {
		return Status{}, fmt.Errorf("failed to check git status: %w", err)
	}

	var st Status
	records := strings.Split(out, "\x00")
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 4 {
			continue
		}
		x, y, path := rec[0], rec[1], rec[3:]

		// renames and copies carry the original path as an extra record
		if x == 'R' || x == 'C' {
			i++
		}

		switch {
		case x == '?' && y == '?':
			st.Untracked = append(st.Untracked, path)
		case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
			st.Conflicts = append(st.Conflicts, path)
		default:
			if x != ' ' {
				st.Staged = append(st.Staged, path)
			}
			if y != ' ' {
				st.Unstaged = append(st.Unstaged, path)
			}
		}
	}
	return st, nil
}

// HasStagedChanges reports whether the index differs from HEAD
func (c *Client) HasStagedChanges() bool {
	_, err := c.run("diff", "--cached", "--quiet")
	return err != nil
}

// HasUncommittedChanges checks if there are any uncommitted changes in the working directory
func (c *Client) HasUncommittedChanges() (bool, error) {
	st, err := c.Status()
	if err != nil {
		return false, err
	}
	return !st.Clean(), nil
}

// AddAll stages every change, including untracked files
func (c *Client) AddAll() error {
	if _, err := c.run("add", "--all"); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}

// Stash stashes working tree changes, including untracked files
func (c *Client) Stash(message string) error {
	if _, err := c.run("stash", "push", "--include-untracked", "-m", message); err != nil {
		return fmt.Errorf("failed to stash changes: %w", err)
	}
	return nil
}

// StashPop restores the most recent stash, keeping staged changes staged
// when the index allows it
func (c *Client) StashPop() error {
	if _, err := c.run("stash", "pop", "--index", "--quiet"); err == nil {
		return nil
	}
	if _, err := c.run("stash", "pop", "--quiet"); err != nil {
		return fmt.Errorf("failed to restore stashed changes: %w", err)
	}
	return nil
}

// AddTracked stages modifications and deletions of tracked files
func (c *Client) AddTracked() error {
	if _, err := c.run("add", "--update"); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}
