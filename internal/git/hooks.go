package git

import (
	"fmt"
	"path/filepath"
)

// HooksDir returns the directory git runs hooks from, honoring
// core.hooksPath and linked worktrees
func (c *Client) HooksDir() (string, error) {
	out, err := c.run("rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", fmt.Errorf("failed to locate hooks directory: %w", err)
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(c.gitRoot, out)
	}
	return filepath.Clean(out), nil
}

// StripComments removes comment lines and surplus whitespace from a commit
// message the way git does before committing
func (c *Client) StripComments(message string) (string, error) {
	if message == "" {
		return "", nil
	}
	out, err := c.runWith(runOptions{stdin: message}, "stripspace", "--strip-comments")
	if err != nil {
		return "", fmt.Errorf("failed to strip comments: %w", err)
	}
	return out, nil
}
