package stack

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/config"
	"github.com/bjulian5/gg/internal/git"
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

// newTestStackClient returns a client on a fresh repository with the
// branch username configured
func newTestStackClient(t *testing.T) (*Client, *git.Client) {
	t.Helper()
	gitClient := testutil.NewTestGitClient(t)
	return newStackClientFor(t, gitClient)
}

func newStackClientFor(t *testing.T, gitClient *git.Client) (*Client, *git.Client) {
	t.Helper()
	store := config.Open(gitClient.CommonDir())
	require.NoError(t, store.Update(context.Background(), func(cfg *config.Config) error {
		cfg.Defaults.BranchUsername = testUser
		return nil
	}))
	return NewClient(gitClient, store, &mockConfirmer{}), gitClient
}

// buildStack creates <user>/<name> from main with one commit per title,
// each adding its own <title>.txt
func buildStack(t *testing.T, gitClient *git.Client, name string, titles ...string) []string {
	t.Helper()
	testutil.NewStackBranch(t, gitClient, StackBranch(testUser, name))

	var hashes []string
	for _, title := range titles {
		file := fmt.Sprintf("%s.txt", strings.ReplaceAll(strings.ToLower(title), " ", "-"))
		hashes = append(hashes, testutil.CommitFile(t, gitClient, file, title+"\n", title))
	}
	return hashes
}

func loadStack(t *testing.T, c *Client) *Stack {
	t.Helper()
	s, err := c.Load(context.Background(), "", "")
	require.NoError(t, err)
	return s
}

func titles(s *Stack) []string {
	out := make([]string, 0, s.Len())
	for _, e := range s.Entries {
		out = append(out, e.Title)
	}
	return out
}

func ggids(s *Stack) []string {
	out := make([]string, 0, s.Len())
	for _, e := range s.Entries {
		out = append(out, e.GGID)
	}
	return out
}
