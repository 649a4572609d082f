package co

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/provider/providertest"
	"github.com/bjulian5/gg/internal/testutil"
	"github.com/bjulian5/gg/internal/ui"
)

type noConfirm struct{}

func (noConfirm) Confirm(string) (bool, error) { return false, nil }

func TestCo(t *testing.T) {
	var out bytes.Buffer
	t.Cleanup(ui.SetOutput(&out, io.Discard))
	ctx := context.Background()

	gitClient := testutil.NewTestGitClient(t)
	p := &providertest.Mock{}
	p.On("Whoami", mock.Anything).Return("bob", nil).Once()
	a := app.New(gitClient, noConfirm{}).WithProvider(p)

	// the provider login becomes the branch prefix and is remembered
	require.NoError(t, (&Command{Name: "payments", App: a}).Run(ctx))
	assert.Equal(t, "bob/payments", testutil.Git(t, gitClient, "branch", "--show-current"))
	assert.Contains(t, out.String(), "Created stack")

	cfg, err := a.Store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Defaults.BranchUsername)

	testutil.Git(t, gitClient, "checkout", "--quiet", "main")
	out.Reset()
	require.NoError(t, (&Command{Name: "payments", App: a}).Run(ctx))
	assert.Equal(t, "bob/payments", testutil.Git(t, gitClient, "branch", "--show-current"))
	assert.Contains(t, out.String(), "Switched to stack")

	p.AssertExpectations(t)
}

func TestCoRefusesDirtySwitch(t *testing.T) {
	t.Cleanup(ui.SetOutput(io.Discard, io.Discard))
	ctx := context.Background()

	gitClient := testutil.NewTestGitClient(t)
	p := &providertest.Mock{}
	p.On("Whoami", mock.Anything).Return("bob", nil)
	a := app.New(gitClient, noConfirm{}).WithProvider(p)

	require.NoError(t, (&Command{Name: "payments", App: a}).Run(ctx))
	testutil.Git(t, gitClient, "checkout", "--quiet", "main")
	testutil.WriteFile(t, gitClient, "README.md", "changed\n")

	err := (&Command{Name: "payments", App: a}).Run(ctx)
	assert.ErrorContains(t, err, "commit or stash")
	assert.Equal(t, "main", testutil.Git(t, gitClient, "branch", "--show-current"))
}
