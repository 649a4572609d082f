package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CherryPick applies a commit on top of HEAD. Commits that become empty are
// kept so that the caller decides what to do with them.
func (c *Client) CherryPick(commitHash string) error {
	if _, err := c.run("cherry-pick", "--allow-empty", "--keep-redundant-commits", commitHash); err != nil {
		return fmt.Errorf("failed to cherry-pick %s: %w", commitHash, err)
	}
	return nil
}

// CherryPickContinue finishes a cherry-pick after conflicts were resolved
func (c *Client) CherryPickContinue() error {
	opts := runOptions{env: []string{"GIT_EDITOR=true"}}
	if _, err := c.runWith(opts, "cherry-pick", "--continue"); err != nil {
		// A resolution that drops every change leaves nothing to commit;
		// record it as an empty commit so the entry keeps its identity.
		if !c.HasStagedChanges() {
			if _, commitErr := c.runWith(opts, "commit", "--allow-empty", "--no-edit", "--no-verify"); commitErr == nil {
				return nil
			}
		}
		return fmt.Errorf("failed to continue cherry-pick: %w", err)
	}
	return nil
}

// CherryPickAbort cancels an in-progress cherry-pick
func (c *Client) CherryPickAbort() error {
	if _, err := c.run("cherry-pick", "--abort"); err != nil {
		return fmt.Errorf("failed to abort cherry-pick: %w", err)
	}
	return nil
}

// IsCherryPickInProgress checks whether a cherry-pick is waiting for resolution
func (c *Client) IsCherryPickInProgress() bool {
	_, err := os.Stat(filepath.Join(c.gitDir, "CHERRY_PICK_HEAD"))
	return err == nil
}

// IsRebaseInProgress checks if a git rebase is currently in progress
func (c *Client) IsRebaseInProgress() bool {
	for _, dir := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(filepath.Join(c.gitDir, dir)); err == nil {
			return true
		}
	}
	return false
}

// ResetHard resets HEAD, index and working tree to a ref
func (c *Client) ResetHard(ref string) error {
	if _, err := c.run("reset", "--quiet", "--hard", ref); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", ref, err)
	}
	return nil
}

// ResetSoft moves HEAD to a ref keeping index and working tree
func (c *Client) ResetSoft(ref string) error {
	if _, err := c.run("reset", "--quiet", "--soft", ref); err != nil {
		return fmt.Errorf("failed to soft reset to %s: %w", ref, err)
	}
	return nil
}

// FoldHead squashes HEAD into its parent, keeping the parent's message and
// author. HEAD ends up on the folded commit.
func (c *Client) FoldHead() (string, error) {
	head, err := c.GetCommit("HEAD")
	if err != nil {
		return "", err
	}
	if len(head.Parents) != 1 {
		return "", fmt.Errorf("cannot fold %s: expected one parent", head.Hash)
	}
	target, err := c.GetCommit(head.Parents[0])
	if err != nil {
		return "", err
	}
	if len(target.Parents) != 1 {
		return "", fmt.Errorf("cannot fold into %s: expected one parent", target.Hash)
	}

	folded, err := c.CommitTree(head.Tree, target.Parents[0], target.Message, &target)
	if err != nil {
		return "", err
	}
	if err := c.ResetSoft(folded); err != nil {
		return "", err
	}
	return folded, nil
}

// HasConflicts reports whether the index has unmerged paths
func (c *Client) HasConflicts() bool {
	out, err := c.run("diff", "--name-only", "--diff-filter=U")
	return err == nil && strings.TrimSpace(out) != ""
}
