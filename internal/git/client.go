package git

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// Client provides git operations for a repository
type Client struct {
	gitRoot   string
	gitDir    string
	commonDir string
}

// NewClient creates a new git client for the current directory
func NewClient() (*Client, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewClientAt(wd)
}

// NewClientAt creates a new git client for the repository containing dir
func NewClientAt(dir string) (*Client, error) {
	cmd := exec.Command("git", "rev-parse", "--path-format=absolute",
		"--show-toplevel", "--git-dir", "--git-common-dir")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("not in a git repository: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) != 3 {
		return nil, fmt.Errorf("unexpected rev-parse output: %q", string(output))
	}

	return &Client{
		gitRoot:   lines[0],
		gitDir:    lines[1],
		commonDir: lines[2],
	}, nil
}

// GitRoot returns the root directory of the working tree
func (c *Client) GitRoot() string {
	return c.gitRoot
}

// GitDir returns the git directory of the current worktree
func (c *Client) GitDir() string {
	return c.gitDir
}

// CommonDir returns the git directory shared by all worktrees
func (c *Client) CommonDir() string {
	return c.commonDir
}

type runOptions struct {
	stdin string
	env   []string
}

// run executes git in the repository root and returns trimmed stdout
func (c *Client) run(args ...string) (string, error) {
	out, err := c.runWith(runOptions{}, args...)
	return strings.TrimSpace(out), err
}

// runRaw executes git and returns stdout untouched (diffs, messages)
func (c *Client) runRaw(args ...string) (string, error) {
	return c.runWith(runOptions{}, args...)
}

func (c *Client) runWith(opts runOptions, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.gitRoot
	if len(opts.env) > 0 {
		cmd.Env = append(os.Environ(), opts.env...)
	}
	if opts.stdin != "" {
		cmd.Stdin = strings.NewReader(opts.stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("git", slog.String("args", strings.Join(args, " ")))
	if err := cmd.Run(); err != nil {
		slog.Debug("git failed", slog.String("args", strings.Join(args, " ")), slog.String("stderr", stderr.String()))
		return stdout.String(), &ggerrors.GitCommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// ResolveRef returns the commit hash for a ref
func (c *Client) ResolveRef(ref string) (string, error) {
	out, err := c.run("rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil || out == "" {
		return "", &ggerrors.RefNotFoundError{Ref: ref}
	}
	return out, nil
}

// HeadCommit returns the commit HEAD points to
func (c *Client) HeadCommit() (string, error) {
	return c.ResolveRef("HEAD")
}

// UpdateRef moves a branch to newHash. When oldHash is not empty the update
// only succeeds if the branch still points at oldHash.
func (c *Client) UpdateRef(branch, newHash, oldHash, reason string) error {
	args := []string{"update-ref", "-m", reason, "refs/heads/" + branch, newHash}
	if oldHash != "" {
		args = append(args, oldHash)
	}
	if _, err := c.run(args...); err != nil {
		return fmt.Errorf("failed to update ref %s to %s: %w", branch, newHash, err)
	}
	return nil
}

// IsAncestor reports whether ancestor is reachable from descendant
func (c *Client) IsAncestor(ancestor, descendant string) bool {
	_, err := c.run("merge-base", "--is-ancestor", ancestor, descendant)
	return err == nil
}

// MergeBase returns the best common ancestor of two refs
func (c *Client) MergeBase(a, b string) (string, error) {
	out, err := c.run("merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("failed to find merge-base of %s and %s: %w", a, b, err)
	}
	return out, nil
}

// ConfigGet reads a git config value, returning "" when unset
func (c *Client) ConfigGet(key string) string {
	out, err := c.run("config", "--get", key)
	if err != nil {
		return ""
	}
	return out
}

// RemoteName returns the remote used for stack branches (usually "origin")
func (c *Client) RemoteName() (string, error) {
	out, err := c.run("remote")
	if err != nil {
		return "", fmt.Errorf("failed to get remote: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("no git remote configured")
	}

	remotes := strings.Split(out, "\n")
	for _, r := range remotes {
		if r == "origin" {
			return r, nil
		}
	}
	return remotes[0], nil
}

// RemoteURL returns the fetch URL of a remote
func (c *Client) RemoteURL(remote string) (string, error) {
	out, err := c.run("remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("failed to get url of remote %s: %w", remote, err)
	}
	return out, nil
}

// Fetch fetches a single ref from a remote
func (c *Client) Fetch(remote, ref string) error {
	if _, err := c.run("fetch", "--quiet", remote, ref); err != nil {
		return fmt.Errorf("failed to fetch %s from %s: %w", ref, remote, err)
	}
	return nil
}

// CountCommits returns the number of commits in from..to
func (c *Client) CountCommits(from, to string) (int, error) {
	out, err := c.run("rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, fmt.Errorf("failed to count commits in %s..%s: %w", from, to, err)
	}
	var n int
	if _, err := fmt.Sscanf(out, "%d", &n); err != nil {
		return 0, fmt.Errorf("failed to parse commit count %q: %w", out, err)
	}
	return n, nil
}

// MoveHead points HEAD itself at newHash, without following a symbolic
// ref, if it still points at oldHash.
func (c *Client) MoveHead(newHash, oldHash, reason string) error {
	if _, err := c.run("update-ref", "--no-deref", "-m", reason, "HEAD", newHash, oldHash); err != nil {
		return fmt.Errorf("failed to move HEAD to %s: %w", newHash, err)
	}
	return nil
}
