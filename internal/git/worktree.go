package git

import (
	"fmt"
	"strings"
)

// Worktree is a linked working tree
type Worktree struct {
	Path   string
	Head   string
	Branch string
}

// AddWorktree creates a linked worktree at path with branch checked out
func (c *Client) AddWorktree(path, branch string) error {
	if _, err := c.run("worktree", "add", "--quiet", path, branch); err != nil {
		return fmt.Errorf("failed to add worktree at %s: %w", path, err)
	}
	return nil
}

// RemoveWorktree removes a linked worktree
func (c *Client) RemoveWorktree(path string) error {
	if _, err := c.run("worktree", "remove", "--force", path); err != nil {
		return fmt.Errorf("failed to remove worktree %s: %w", path, err)
	}
	return nil
}

// ListWorktrees returns every worktree of the repository, the main one first
func (c *Client) ListWorktrees() ([]Worktree, error) {
	out, err := c.run("worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	var trees []Worktree
	var cur *Worktree
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur != nil {
				trees = append(trees, *cur)
			}
			cur = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case cur == nil:
			continue
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	if cur != nil {
		trees = append(trees, *cur)
	}
	return trees, nil
}

// WorktreeFor returns the path of the worktree that has branch checked out
func (c *Client) WorktreeFor(branch string) (string, bool) {
	trees, err := c.ListWorktrees()
	if err != nil {
		return "", false
	}
	for _, t := range trees {
		if t.Branch == branch {
			return t.Path, true
		}
	}
	return "", false
}
