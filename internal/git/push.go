package git

import (
	"errors"
	"fmt"
	"strings"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// PushOptions controls how a branch is pushed
type PushOptions struct {
	// Force uses --force-with-lease
	Force bool
	// Expect is the remote value the lease must match; empty uses the remote-tracking ref
	Expect string
}

// Push pushes a local branch to the same name on remote. Failures are
// returned as *errors.PushError.
func (c *Client) Push(remote, branch string, opts PushOptions) error {
	args := []string{"push", "--porcelain", remote, "refs/heads/" + branch + ":refs/heads/" + branch}
	if opts.Force {
		lease := "--force-with-lease=refs/heads/" + branch
		if opts.Expect != "" {
			lease += ":" + opts.Expect
		}
		args = append(args, lease)
	}

	out, err := c.runRaw(args...)
	if err != nil {
		var gitErr *ggerrors.GitCommandError
		stderr := ""
		if errors.As(err, &gitErr) {
			stderr = gitErr.Stderr
		}
		return ParsePushError(branch, out+"\n"+stderr, err)
	}
	return nil
}

// ParsePushError splits push output into remote hook output and git errors
func ParsePushError(branch, output string, cause error) *ggerrors.PushError {
	var hook, gitLines []string
	stale := false

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "Done" || strings.HasPrefix(trimmed, "To ") {
			continue
		}
		if strings.HasPrefix(trimmed, "remote:") {
			hook = append(hook, strings.TrimSpace(strings.TrimPrefix(trimmed, "remote:")))
			continue
		}
		if strings.Contains(trimmed, "stale info") {
			stale = true
		}
		gitLines = append(gitLines, trimmed)
	}

	return &ggerrors.PushError{
		Branch:     branch,
		HookOutput: strings.TrimSpace(strings.Join(hook, "\n")),
		GitOutput:  strings.Join(gitLines, "\n"),
		Stale:      stale,
		Err:        cause,
	}
}

// IsNonFastForward reports whether a push failure was a plain non-fast-forward rejection
func IsNonFastForward(err error) bool {
	var pushErr *ggerrors.PushError
	if !errors.As(err, &pushErr) {
		return false
	}
	out := pushErr.GitOutput
	return strings.Contains(out, "non-fast-forward") || strings.Contains(out, "fetch first") ||
		strings.Contains(out, "[rejected]")
}

// DeleteRemoteBranch deletes a branch on the remote
func (c *Client) DeleteRemoteBranch(remote, branch string) error {
	if _, err := c.run("push", "--quiet", remote, "--delete", branch); err != nil {
		return fmt.Errorf("failed to delete remote branch %s: %w", branch, err)
	}
	return nil
}
