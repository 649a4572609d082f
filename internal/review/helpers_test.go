package review

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/config"
	"github.com/bjulian5/gg/internal/git"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/provider/providertest"
	"github.com/bjulian5/gg/internal/stack"
	"github.com/bjulian5/gg/internal/testutil"
)

const testUser = "alice"

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(message string) (bool, error) {
	args := m.Called(message)
	return args.Bool(0), args.Error(1)
}

type fakeClock struct {
	now    time.Time
	sleeps int
}

type harness struct {
	engine    *Engine
	git       *git.Client
	stacks    *stack.Client
	store     *config.Store
	provider  *providertest.Mock
	confirm   *mockConfirmer
	clock     *fakeClock
	remoteDir string
}

// newHarness returns an engine on a repository with an origin remote, a
// mocked provider and a clock that advances on every poll
func newHarness(t *testing.T) *harness {
	t.Helper()
	gitClient, remoteDir := testutil.NewTestGitClientWithRemote(t)

	store := config.Open(gitClient.CommonDir())
	require.NoError(t, store.Update(context.Background(), func(cfg *config.Config) error {
		cfg.Defaults.BranchUsername = testUser
		return nil
	}))

	confirm := &mockConfirmer{}
	stacks := stack.NewClient(gitClient, store, confirm)
	p := &providertest.Mock{}
	engine := NewEngine(stacks, p, confirm)

	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	engine.now = func() time.Time { return clock.now }
	engine.sleep = func(ctx context.Context, d time.Duration) error {
		clock.sleeps++
		clock.now = clock.now.Add(d)
		return nil
	}

	return &harness{
		engine:    engine,
		git:       gitClient,
		stacks:    stacks,
		store:     store,
		provider:  p,
		confirm:   confirm,
		clock:     clock,
		remoteDir: remoteDir,
	}
}

// buildStack creates alice/<name> from main with one commit per title
func (h *harness) buildStack(t *testing.T, name string, titles ...string) {
	t.Helper()
	testutil.NewStackBranch(t, h.git, stack.StackBranch(testUser, name))
	for _, title := range titles {
		file := fmt.Sprintf("%s.txt", strings.ReplaceAll(strings.ToLower(title), " ", "-"))
		testutil.CommitFile(t, h.git, file, title+"\n", title)
	}
}

func (h *harness) load(t *testing.T) *stack.Stack {
	t.Helper()
	s, err := h.stacks.Load(context.Background(), "", "")
	require.NoError(t, err)
	return s
}

// assignIDs gives every entry a GG-ID and returns the reloaded stack
func (h *harness) assignIDs(t *testing.T) *stack.Stack {
	t.Helper()
	_, err := h.stacks.EnsureGGIDs(context.Background(), h.load(t), nil)
	require.NoError(t, err)
	return h.load(t)
}

func (h *harness) mapEntries(t *testing.T, s *stack.Stack, numbers ...int) {
	t.Helper()
	require.NoError(t, h.store.Update(context.Background(), func(cfg *config.Config) error {
		for i, n := range numbers {
			cfg.SetMapping(s.Name, s.Entries[i].GGID, n)
		}
		return nil
	}))
}

func (h *harness) configure(t *testing.T, fn func(*config.Config)) {
	t.Helper()
	require.NoError(t, h.store.Update(context.Background(), func(cfg *config.Config) error {
		fn(cfg)
		return nil
	}))
}

func (h *harness) mapping(t *testing.T, stackName, ggid string) (int, bool) {
	t.Helper()
	cfg, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return cfg.Mapping(stackName, ggid)
}

// remoteHead returns the commit a branch points at on origin, or ""
func (h *harness) remoteHead(t *testing.T, branch string) string {
	t.Helper()
	out := testutil.Git(t, h.git, "ls-remote", "--heads", "origin", branch)
	if out == "" {
		return ""
	}
	return strings.Fields(out)[0]
}

// pushFromClone commits a file to branch in a separate clone of origin and
// pushes it, so the local remote-tracking ref goes stale
func (h *harness) pushFromClone(t *testing.T, branch string) {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Other", "GIT_AUTHOR_EMAIL=other@example.com",
			"GIT_COMMITTER_NAME=Other", "GIT_COMMITTER_EMAIL=other@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	}
	run("clone", "--quiet", "--branch", branch, h.remoteDir, ".")
	require.NoError(t, os.WriteFile(dir+"/other.txt", []byte("other\n"), 0644))
	run("add", "other.txt")
	run("commit", "--quiet", "-m", "Change from elsewhere")
	run("push", "--quiet", "origin", branch)
}

func anyCtx() interface{} {
	return mock.Anything
}

func request(number int, target string) *provider.ReviewRequest {
	rr := providertest.Ready(number)
	rr.Target = target
	rr.URL = fmt.Sprintf("https://github.com/o/r/pull/%d", number)
	return rr
}
