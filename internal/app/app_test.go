package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/output"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/provider/providertest"
	"github.com/bjulian5/gg/internal/testutil"
)

type noConfirm struct{}

func (noConfirm) Confirm(string) (bool, error) { return false, nil }

func TestProviderResolvedOnce(t *testing.T) {
	gitClient := testutil.NewTestGitClient(t)
	a := New(gitClient, noConfirm{})

	calls := 0
	p := &providertest.Mock{}
	a.resolve = func(context.Context) (provider.Provider, error) {
		calls++
		return p, nil
	}

	for i := 0; i < 3; i++ {
		got, err := a.Provider(context.Background())
		require.NoError(t, err)
		assert.Same(t, p, got)
	}
	assert.Equal(t, 1, calls)
}

func TestUsernameFromProvider(t *testing.T) {
	gitClient := testutil.NewTestGitClient(t)
	p := &providertest.Mock{}
	p.On("Whoami", mock.Anything).Return("bob", nil).Once()
	a := New(gitClient, noConfirm{}).WithProvider(p)

	cfg, err := a.Store.Load(context.Background())
	require.NoError(t, err)
	username, err := a.Stacks.Username(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "bob", username)
	p.AssertExpectations(t)
}

func TestResolveWithoutRemote(t *testing.T) {
	gitClient := testutil.NewTestGitClient(t)
	a := New(gitClient, noConfirm{})

	_, err := a.Engine(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, a.LocalEngine())
}

func TestReport(t *testing.T) {
	testCases := []struct {
		desc    string
		result  func() *output.Result
		wantErr bool
	}{
		{
			desc: "all entries done",
			result: func() *output.Result {
				res := output.New("sync", "auth", "main")
				res.Add(output.EntryResult{Position: 1, Action: output.ActionCreated})
				return res
			},
		},
		{
			desc: "entry failed",
			result: func() *output.Result {
				res := output.New("sync", "auth", "main")
				res.Add(output.EntryResult{Position: 1, Action: output.ActionError, Error: "push rejected"})
				return res
			},
			wantErr: true,
		},
		{
			desc: "blocked",
			result: func() *output.Result {
				res := output.New("land", "auth", "main")
				res.Blocked = "entry 1 not approved"
				return res
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			var buf bytes.Buffer
			err := Report(&buf, tc.result(), true)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrReported))
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, buf.String(), `"version": 1`)
		})
	}
}

func TestEnsureKeepsInjectedApp(t *testing.T) {
	gitClient := testutil.NewTestGitClient(t)
	injected := New(gitClient, noConfirm{})

	a := injected
	require.NoError(t, Ensure(&a))
	assert.Same(t, injected, a)
}
