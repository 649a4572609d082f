// Package config persists repository-wide defaults and per-stack state,
// including the GG-ID to review request mapping. The file lives in the
// common git directory so every linked worktree shares it.
package config

import (
	"path/filepath"
	"strings"
)

// UnstagedAction decides what squash does with unstaged changes
type UnstagedAction string

const (
	UnstagedAsk      UnstagedAction = "ask"
	UnstagedAdd      UnstagedAction = "add"
	UnstagedStash    UnstagedAction = "stash"
	UnstagedContinue UnstagedAction = "continue"
	UnstagedAbort    UnstagedAction = "abort"
)

// Valid reports whether the action is one of the known values
func (a UnstagedAction) Valid() bool {
	switch a {
	case UnstagedAsk, UnstagedAdd, UnstagedStash, UnstagedContinue, UnstagedAbort:
		return true
	}
	return false
}

// Config is the on-disk configuration
type Config struct {
	Defaults         Defaults                `json:"defaults"`
	WorktreeBasePath string                  `json:"worktree_base_path,omitempty"`
	Stacks           map[string]*StackConfig `json:"stacks,omitempty"`
}

// Defaults are repository-wide settings
type Defaults struct {
	Provider               string         `json:"provider,omitempty"`
	Base                   string         `json:"base,omitempty"`
	BranchUsername         string         `json:"branch_username,omitempty"`
	Lint                   []string       `json:"lint,omitempty"`
	AutoAddGGIDs           bool           `json:"auto_add_gg_ids"`
	UnstagedAction         UnstagedAction `json:"unstaged_action"`
	LandWaitTimeoutMinutes int            `json:"land_wait_timeout_minutes"`
	LandAutoClean          bool           `json:"land_auto_clean"`
	LandMergeMethod        string         `json:"land_merge_method"`
	SyncAutoLint           bool           `json:"sync_auto_lint"`
	SyncAutoRebase         bool           `json:"sync_auto_rebase"`
	SyncBehindThreshold    int            `json:"sync_behind_threshold"`
	AbsorbMaxStack         int            `json:"absorb_max_stack"`
	GitHub                 GitHubConfig   `json:"github"`
	GitLab                 GitLabConfig   `json:"gitlab"`
}

// GitHubConfig holds GitHub specific settings
type GitHubConfig struct {
	// UseAPI talks to the REST API directly instead of shelling out to gh
	UseAPI bool `json:"use_api"`
}

// GitLabConfig holds GitLab specific settings
type GitLabConfig struct {
	AutoMergeOnLand bool `json:"auto_merge_on_land"`
}

// StackConfig is per-stack state
type StackConfig struct {
	Base         string         `json:"base,omitempty"`
	MRs          map[string]int `json:"mrs,omitempty"`
	WorktreePath string         `json:"worktree_path,omitempty"`
}

// DefaultWorktreeBasePath is used when worktree_base_path is not set
const DefaultWorktreeBasePath = "../{repo}.{stack}"

// Default returns a configuration with every default applied
func Default() *Config {
	return &Config{
		Defaults: Defaults{
			AutoAddGGIDs:           true,
			UnstagedAction:         UnstagedAsk,
			LandWaitTimeoutMinutes: 30,
			LandMergeMethod:        "squash",
			SyncBehindThreshold:    1,
			AbsorbMaxStack:         10,
		},
		Stacks: make(map[string]*StackConfig),
	}
}

// Stack returns the state for a stack, or nil if none is recorded
func (c *Config) Stack(name string) *StackConfig {
	if c.Stacks == nil {
		return nil
	}
	return c.Stacks[name]
}

func (c *Config) ensureStack(name string) *StackConfig {
	if c.Stacks == nil {
		c.Stacks = make(map[string]*StackConfig)
	}
	sc, ok := c.Stacks[name]
	if !ok {
		sc = &StackConfig{}
		c.Stacks[name] = sc
	}
	if sc.MRs == nil {
		sc.MRs = make(map[string]int)
	}
	return sc
}

// Mapping returns the review request number recorded for a GG-ID
func (c *Config) Mapping(stack, ggid string) (int, bool) {
	sc := c.Stack(stack)
	if sc == nil || sc.MRs == nil {
		return 0, false
	}
	n, ok := sc.MRs[ggid]
	return n, ok
}

// SetMapping records the review request number for a GG-ID
func (c *Config) SetMapping(stack, ggid string, number int) {
	c.ensureStack(stack).MRs[ggid] = number
}

// AllGGIDs returns every GG-ID with a mapping, across all stacks
func (c *Config) AllGGIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, sc := range c.Stacks {
		for id := range sc.MRs {
			ids[id] = true
		}
	}
	return ids
}

// SetStackBase records a base override for a stack
func (c *Config) SetStackBase(stack, base string) {
	c.ensureStack(stack).Base = base
}

// SetWorktreePath binds a stack to a worktree
func (c *Config) SetWorktreePath(stack, path string) {
	c.ensureStack(stack).WorktreePath = path
}

// RemoveStack drops all state for a stack. This is the only way mappings
// are removed and it is reserved for confirmed cleanup.
func (c *Config) RemoveStack(name string) {
	delete(c.Stacks, name)
}

// BaseFor returns the configured base for a stack, falling back to the default
func (c *Config) BaseFor(stack string) string {
	if sc := c.Stack(stack); sc != nil && sc.Base != "" {
		return sc.Base
	}
	return c.Defaults.Base
}

// WorktreePathFor returns the worktree directory for a stack
func (c *Config) WorktreePathFor(repoRoot, stack string) string {
	if sc := c.Stack(stack); sc != nil && sc.WorktreePath != "" {
		return sc.WorktreePath
	}

	tmpl := c.WorktreeBasePath
	if tmpl == "" {
		tmpl = DefaultWorktreeBasePath
	}
	path := strings.NewReplacer("{repo}", filepath.Base(repoRoot), "{stack}", stack).Replace(tmpl)
	if !filepath.IsAbs(path) {
		path = filepath.Join(repoRoot, path)
	}
	return filepath.Clean(path)
}
