package git

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// openRepository opens the repository with go-git for read-only walks. It is
// reopened on every call so objects written by the git CLI are visible.
func (c *Client) openRepository() (*gitlib.Repository, error) {
	repo, err := gitlib.PlainOpenWithOptions(c.gitRoot, &gitlib.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

func resolveCommit(repo *gitlib.Repository, ref string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, &ggerrors.RefNotFoundError{Ref: ref}
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, &ggerrors.RefNotFoundError{Ref: ref}
	}
	return commit, nil
}

// History returns the commits between the merge-base of base and tip, and
// tip, ordered oldest to newest. It fails with NonLinearHistoryError if any
// of those commits is a merge.
func (c *Client) History(base, tip string) ([]Commit, string, error) {
	repo, err := c.openRepository()
	if err != nil {
		return nil, "", err
	}

	tipCommit, err := resolveCommit(repo, tip)
	if err != nil {
		return nil, "", err
	}
	baseCommit, err := resolveCommit(repo, base)
	if err != nil {
		return nil, "", err
	}

	bases, err := tipCommit.MergeBase(baseCommit)
	if err != nil {
		return nil, "", fmt.Errorf("failed to compute merge-base of %s and %s: %w", base, tip, err)
	}
	if len(bases) == 0 {
		return nil, "", fmt.Errorf("%s and %s have no common history", base, tip)
	}
	mergeBase := bases[0].Hash

	var reversed []Commit
	cur := tipCommit
	for cur.Hash != mergeBase {
		if cur.NumParents() > 1 {
			return nil, "", &ggerrors.NonLinearHistoryError{Commit: cur.Hash.String()}
		}
		reversed = append(reversed, fromObject(cur))

		if cur.NumParents() == 0 {
			break
		}
		parent, err := cur.Parent(0)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read parent of %s: %w", cur.Hash, err)
		}
		cur = parent
	}

	commits := make([]Commit, len(reversed))
	for i, commit := range reversed {
		commits[len(reversed)-1-i] = commit
	}

	slog.Debug("history loaded", slog.String("base", base), slog.String("tip", tip), slog.Int("commits", len(commits)))
	return commits, mergeBase.String(), nil
}

func fromObject(c *object.Commit) Commit {
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	message := strings.TrimRight(c.Message, "\n") + "\n"
	return Commit{
		Hash:          c.Hash.String(),
		Parents:       parents,
		Tree:          c.TreeHash.String(),
		AuthorName:    c.Author.Name,
		AuthorEmail:   c.Author.Email,
		AuthorDate:    c.Author.When.Format("2006-01-02T15:04:05-07:00"),
		Message:       message,
		CommitMessage: ParseCommitMessage(message),
	}
}

// RemoteBranchTip is a remote-tracking branch and the commit it points at
type RemoteBranchTip struct {
	Branch string
	Commit Commit
}

// RemoteBranches lists remote-tracking branches of remote whose name starts with prefix
func (c *Client) RemoteBranches(remote, prefix string) ([]RemoteBranchTip, error) {
	repo, err := c.openRepository()
	if err != nil {
		return nil, err
	}

	refs, err := repo.References()
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	defer refs.Close()

	refPrefix := "refs/remotes/" + remote + "/"
	var tips []RemoteBranchTip
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name().String()
		if !strings.HasPrefix(name, refPrefix) {
			return nil
		}
		branch := strings.TrimPrefix(name, refPrefix)
		if !strings.HasPrefix(branch, prefix) {
			return nil
		}
		commit, err := repo.CommitObject(ref.Hash())
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				return nil
			}
			return err
		}
		tips = append(tips, RemoteBranchTip{Branch: branch, Commit: fromObject(commit)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan remote branches: %w", err)
	}
	return tips, nil
}
