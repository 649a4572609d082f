package stack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/config"
	"github.com/bjulian5/gg/internal/testutil"
)

func TestStampMessage(t *testing.T) {
	testCases := []struct {
		desc        string
		branch      string
		autoAdd     bool
		message     string
		wantStamped bool
	}{
		{
			desc:        "new commit on a stack branch",
			branch:      "alice/auth",
			autoAdd:     true,
			message:     "Add login\n\nSession cookie based.\n# Please enter the commit message\n",
			wantStamped: true,
		},
		{
			desc:    "already has a GG-ID",
			branch:  "alice/auth",
			autoAdd: true,
			message: "Add login\n\nGG-ID: c-1a2b3c4\n",
		},
		{
			desc:    "fixup commit",
			branch:  "alice/auth",
			autoAdd: true,
			message: "fixup! Add login\n",
		},
		{
			desc:    "empty message",
			branch:  "alice/auth",
			autoAdd: true,
			message: "# only comments\n\n",
		},
		{
			desc:    "not a stack branch",
			branch:  "main",
			autoAdd: true,
			message: "Add login\n",
		},
		{
			desc:    "auto add disabled",
			branch:  "alice/auth",
			message: "Add login\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			c, gitClient := newTestStackClient(t)
			ctx := context.Background()
			require.NoError(t, c.Store().Update(ctx, func(cfg *config.Config) error {
				cfg.Defaults.AutoAddGGIDs = tc.autoAdd
				return nil
			}))
			if tc.branch != "main" {
				testutil.NewStackBranch(t, gitClient, tc.branch)
			}

			got, stamped, err := c.StampMessage(ctx, tc.message)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStamped, stamped)
			if !tc.wantStamped {
				assert.Equal(t, tc.message, got)
				return
			}

			id := ExtractGGID(got)
			assert.NotEmpty(t, id)
			assert.Contains(t, got, "Session cookie based.")
			assert.NotContains(t, got, "# Please enter")
		})
	}
}

func TestStampMessageAvoidsStackIDs(t *testing.T) {
	c, gitClient := newTestStackClient(t)
	buildStack(t, gitClient, "auth", "Add login")
	ids := map[string]bool{}

	calls := 0
	restore := newToken
	t.Cleanup(func() { newToken = restore })
	newToken = func() string {
		calls++
		return "c-0000001"
	}

	first, stamped, err := c.StampMessage(context.Background(), "Add logout\n")
	require.NoError(t, err)
	require.True(t, stamped)
	ids[ExtractGGID(first)] = true

	// the next commit carries c-0000001, so the same token now collides
	testutil.Git(t, gitClient, "commit", "--quiet", "--allow-empty", "-m", first)
	_, _, err = c.StampMessage(context.Background(), "Add session\n")
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, ids["c-0000001"])
}
