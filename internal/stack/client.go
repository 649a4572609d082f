// Package stack models a stack as the linear history between a base branch
// and a stack branch, and implements every history rewrite on it as a
// cascading replay that can pause on conflicts and be continued or aborted.
package stack

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bjulian5/gg/internal/config"
	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/git"
)

// Confirmer asks the user a yes/no question. Non-interactive
// implementations must answer false.
type Confirmer interface {
	Confirm(message string) (bool, error)
}

// WhoamiFunc returns the hosting provider's login for branch names
type WhoamiFunc func(ctx context.Context) (string, error)

// Client provides stack operations on one worktree
type Client struct {
	git     *git.Client
	store   *config.Store
	confirm Confirmer
	whoami  WhoamiFunc
}

// NewClient creates a new stack client
func NewClient(gitClient *git.Client, store *config.Store, confirm Confirmer) *Client {
	return &Client{
		git:     gitClient,
		store:   store,
		confirm: confirm,
	}
}

// SetWhoami installs the provider lookup used when no branch username is configured
func (c *Client) SetWhoami(fn WhoamiFunc) {
	c.whoami = fn
}

// Git returns the underlying repository client
func (c *Client) Git() *git.Client {
	return c.git
}

// Store returns the config store
func (c *Client) Store() *config.Store {
	return c.store
}

// Username resolves the branch username: configured value, then the
// provider login, then the local part of user.email.
func (c *Client) Username(ctx context.Context, cfg *config.Config) (string, error) {
	username := cfg.Defaults.BranchUsername
	if username == "" && c.whoami != nil {
		if login, err := c.whoami(ctx); err == nil {
			username = strings.TrimSpace(login)
		} else {
			slog.Debug("whoami failed", slog.String("error", err.Error()))
		}
	}
	if username == "" {
		if email := c.git.ConfigGet("user.email"); email != "" {
			username, _, _ = strings.Cut(email, "@")
		}
	}
	if username == "" {
		return "", fmt.Errorf("%w: set defaults.branch_username in %s", ggerrors.ErrInvalidUsername, c.store.Path())
	}
	if err := ValidateUsername(username); err != nil {
		return "", err
	}
	return username, nil
}

// ResolveBase returns the base branch for a stack: the explicit value, the
// per-stack setting, the repository default, then main, master or trunk.
func (c *Client) ResolveBase(cfg *config.Config, stackName, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if base := cfg.BaseFor(stackName); base != "" {
		return base, nil
	}

	remote, _ := c.git.RemoteName()
	for _, name := range []string{"main", "master", "trunk"} {
		if c.git.BranchExists(name) {
			return name, nil
		}
		if remote != "" && c.git.RemoteBranchExists(remote, name) {
			return name, nil
		}
	}
	return "", ggerrors.ErrNoBaseBranch
}

// baseRef returns the ref a stack's history is measured against: the
// remote-tracking base when the local base is missing or behind it,
// otherwise the local base.
func (c *Client) baseRef(base string) (string, error) {
	local := c.git.BranchExists(base)
	if remote, err := c.git.RemoteName(); err == nil && c.git.RemoteBranchExists(remote, base) {
		tracking := remote + "/" + base
		if !local || c.git.IsAncestor(base, tracking) {
			return tracking, nil
		}
	}
	if local {
		return base, nil
	}
	if _, err := c.git.ResolveRef(base); err == nil {
		return base, nil
	}
	return "", &ggerrors.RefNotFoundError{Ref: base}
}

func (c *Client) currentStackFile() string {
	return filepath.Join(c.git.GitDir(), "gg", "current_stack")
}

// rememberStack records which stack a detached HEAD belongs to
func (c *Client) rememberStack(branch string) {
	path := c.currentStackFile()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	_ = os.WriteFile(path, []byte(branch+"\n"), 0644)
}

func (c *Client) forgetStack() {
	_ = os.Remove(c.currentStackFile())
}

func (c *Client) rememberedStack() string {
	data, err := os.ReadFile(c.currentStackFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// CurrentStackBranch returns the stack branch HEAD belongs to. A detached
// HEAD belongs to the remembered stack, or to the one stack branch whose
// history contains it.
func (c *Client) CurrentStackBranch(ctx context.Context) (string, error) {
	branch, err := c.git.CurrentBranch()
	if err != nil {
		return "", err
	}
	if branch != "" {
		if _, _, ok := ParseStackBranch(branch); ok {
			return branch, nil
		}
		return "", ggerrors.ErrNotOnStack
	}

	head, err := c.git.HeadCommit()
	if err != nil {
		return "", err
	}
	if remembered := c.rememberedStack(); remembered != "" && c.git.BranchExists(remembered) {
		if c.git.IsAncestor(head, remembered) {
			return remembered, nil
		}
	}

	cfg, err := c.store.Load(ctx)
	if err != nil {
		return "", err
	}
	username, err := c.Username(ctx, cfg)
	if err != nil {
		return "", ggerrors.ErrNotOnStack
	}
	branches, err := c.git.ListBranches(username + "/")
	if err != nil {
		return "", err
	}
	var match string
	for _, b := range branches {
		if _, _, ok := ParseStackBranch(b); !ok {
			continue
		}
		if c.git.IsAncestor(head, b) {
			if match != "" {
				return "", fmt.Errorf("%w: HEAD is contained in both %s and %s", ggerrors.ErrNotOnStack, match, b)
			}
			match = b
		}
	}
	if match == "" {
		return "", ggerrors.ErrNotOnStack
	}
	return match, nil
}

// Load reads the stack on branch, or the current stack when branch is empty
func (c *Client) Load(ctx context.Context, branch, baseHint string) (*Stack, error) {
	if branch == "" {
		current, err := c.CurrentStackBranch(ctx)
		if err != nil {
			return nil, err
		}
		branch = current
	}
	username, name, ok := ParseStackBranch(branch)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a stack branch", ggerrors.ErrNotOnStack, branch)
	}

	cfg, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	base, err := c.ResolveBase(cfg, name, baseHint)
	if err != nil {
		return nil, err
	}
	ref, err := c.baseRef(base)
	if err != nil {
		return nil, err
	}

	tip, err := c.git.ResolveRef(branch)
	if err != nil {
		return nil, err
	}
	commits, mergeBase, err := c.git.History(ref, tip)
	if err != nil {
		return nil, err
	}

	s := &Stack{
		Name:      name,
		Username:  username,
		Branch:    branch,
		Base:      base,
		BaseRef:   ref,
		MergeBase: mergeBase,
		Tip:       tip,
		Entries:   make([]*Entry, 0, len(commits)),
	}
	for i, commit := range commits {
		e := entryFromCommit(commit, i+1)
		if e.GGID != "" {
			if n, ok := cfg.Mapping(name, e.GGID); ok {
				e.Number = n
			}
		}
		s.Entries = append(s.Entries, e)
	}

	current, _ := c.git.CurrentBranch()
	s.OnBranch = current == branch
	s.Cursor = len(s.Entries)
	if !s.OnBranch {
		head, err := c.git.HeadCommit()
		if err != nil {
			return nil, err
		}
		for _, e := range s.Entries {
			if e.Hash == head {
				s.Cursor = e.Position
				break
			}
		}
	}

	if remote, err := c.git.RemoteName(); err == nil && c.git.RemoteBranchExists(remote, base) {
		if n, err := c.git.CountCommits(mergeBase, remote+"/"+base); err == nil {
			s.BehindBase = n
		}
	}

	slog.Debug("stack loaded",
		slog.String("branch", branch),
		slog.String("base", base),
		slog.Int("entries", len(s.Entries)),
		slog.Int("cursor", s.Cursor))
	return s, nil
}

func entryFromCommit(commit git.Commit, position int) *Entry {
	parent := ""
	if len(commit.Parents) > 0 {
		parent = commit.Parents[0]
	}
	msg := git.ParseCommitMessage(StripGGID(commit.Message))
	return &Entry{
		Position:    position,
		Hash:        commit.Hash,
		Parent:      parent,
		GGID:        ExtractGGID(commit.Message),
		Title:       commit.Title,
		Description: msg.Body,
		Message:     commit.Message,
	}
}

// ListStacks returns the names of the user's stacks: local stack branches
// plus stacks that only exist in the config.
func (c *Client) ListStacks(ctx context.Context) ([]string, error) {
	cfg, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	username, err := c.Username(ctx, cfg)
	if err != nil {
		return nil, err
	}

	branches, err := c.git.ListBranches(username + "/")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, b := range branches {
		if user, name, ok := ParseStackBranch(b); ok && user == username {
			seen[name] = true
		}
	}
	for name := range cfg.Stacks {
		if c.git.BranchExists(StackBranch(username, name)) {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CheckoutResult describes what Checkout did
type CheckoutResult struct {
	Stack    string
	Branch   string
	Base     string
	Created  bool
	Worktree string
}

// Checkout creates a stack branch at the base, or switches to an existing
// one. With worktree set the stack is checked out in its own linked
// worktree instead of the current one.
func (c *Client) Checkout(ctx context.Context, name, base string, worktree bool) (*CheckoutResult, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}
	name, err := SanitizeStackName(name)
	if err != nil {
		return nil, err
	}

	cfg, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	username, err := c.Username(ctx, cfg)
	if err != nil {
		return nil, err
	}
	branch := StackBranch(username, name)
	res := &CheckoutResult{Stack: name, Branch: branch}

	if !c.git.BranchExists(branch) {
		resolved, err := c.ResolveBase(cfg, name, base)
		if err != nil {
			return nil, err
		}
		ref, err := c.baseRef(resolved)
		if err != nil {
			return nil, err
		}
		start, err := c.git.ResolveRef(ref)
		if err != nil {
			return nil, err
		}
		if err := c.git.CreateBranch(branch, start); err != nil {
			return nil, err
		}
		res.Created = true
		res.Base = resolved

		err = c.store.Update(ctx, func(cfg *config.Config) error {
			if resolved != cfg.Defaults.Base {
				cfg.SetStackBase(name, resolved)
			}
			if cfg.Defaults.BranchUsername == "" {
				cfg.Defaults.BranchUsername = username
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		res.Base, _ = c.ResolveBase(cfg, name, base)
	}

	if path, ok := c.git.WorktreeFor(branch); ok && path != c.git.GitRoot() {
		res.Worktree = path
		return res, nil
	}

	if worktree {
		path := cfg.WorktreePathFor(c.git.GitRoot(), name)
		if err := c.git.AddWorktree(path, branch); err != nil {
			return nil, err
		}
		err := c.store.Update(ctx, func(cfg *config.Config) error {
			cfg.SetWorktreePath(name, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
		res.Worktree = path
		return res, nil
	}

	dirty, err := c.git.HasUncommittedChanges()
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, fmt.Errorf("%w: commit or stash your changes before switching stacks", ggerrors.ErrDirtyWorkingTree)
	}
	if err := c.git.Checkout(branch); err != nil {
		return nil, err
	}
	c.forgetStack()
	return res, nil
}
