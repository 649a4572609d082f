package git

import (
	"fmt"
	"strings"
)

// CurrentBranch returns the checked out branch, or "" when HEAD is detached
func (c *Client) CurrentBranch() (string, error) {
	out, err := c.run("symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		// symbolic-ref exits 1 on a detached HEAD
		if _, headErr := c.HeadCommit(); headErr == nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return out, nil
}

// BranchExists checks if a local branch exists
func (c *Client) BranchExists(name string) bool {
	_, err := c.run("show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// RemoteBranchExists checks if a remote-tracking branch exists
func (c *Client) RemoteBranchExists(remote, name string) bool {
	_, err := c.run("show-ref", "--verify", "--quiet", "refs/remotes/"+remote+"/"+name)
	return err == nil
}

// CreateBranch creates (or resets) a branch at the given commit without checking it out
func (c *Client) CreateBranch(name, commitHash string) error {
	if _, err := c.run("branch", "--force", name, commitHash); err != nil {
		return fmt.Errorf("failed to create branch %s at %s: %w", name, commitHash, err)
	}
	return nil
}

// DeleteBranch deletes a local branch
func (c *Client) DeleteBranch(name string) error {
	if _, err := c.run("branch", "-D", name); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	return nil
}

// ListBranches returns local branch names starting with prefix
func (c *Client) ListBranches(prefix string) ([]string, error) {
	out, err := c.run("for-each-ref", "--format=%(refname:short)", "refs/heads/")
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	var branches []string
	for _, b := range strings.Split(out, "\n") {
		if b != "" && strings.HasPrefix(b, prefix) {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

// Checkout checks out a branch
func (c *Client) Checkout(name string) error {
	if _, err := c.run("checkout", "--quiet", name); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", name, err)
	}
	return nil
}

// CreateAndCheckoutBranchAt creates a new branch at a commit and checks it out
func (c *Client) CreateAndCheckoutBranchAt(name, commitHash string) error {
	if _, err := c.run("checkout", "--quiet", "-b", name, commitHash); err != nil {
		return fmt.Errorf("failed to create and checkout branch %s at %s: %w", name, commitHash, err)
	}
	return nil
}

// CheckoutDetach detaches HEAD at a commit
func (c *Client) CheckoutDetach(commitHash string) error {
	if _, err := c.run("checkout", "--quiet", "--detach", commitHash); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", commitHash, err)
	}
	return nil
}
