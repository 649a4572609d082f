package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExec answers CLI calls from a table keyed by the joined arguments
type fakeExec struct {
	responses map[string]string
	failures  map[string]string
	calls     []string
}

func newFakeExec() *fakeExec {
	return &fakeExec{responses: map[string]string{}, failures: map[string]string{}}
}

func (f *fakeExec) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	key := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, key)
	for prefix, stderr := range f.failures {
		if strings.HasPrefix(key, prefix) {
			return nil, &CLIError{Name: name, Args: args, Stderr: stderr, Err: errors.New("exit status 1")}
		}
	}
	for prefix, out := range f.responses {
		if strings.HasPrefix(key, prefix) {
			return []byte(out), nil
		}
	}
	return nil, fmt.Errorf("unexpected call: %s", key)
}

func TestGitHubCLIView(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		state    State
		approved bool
		checks   CheckStatus
	}{
		{
			name:     "open approved green",
			json:     `{"number":7,"title":"Add a","url":"https://github.com/o/r/pull/7","state":"OPEN","isDraft":false,"reviewDecision":"APPROVED","mergeable":"MERGEABLE","headRefName":"alice/s--c-1111111","baseRefName":"main","statusCheckRollup":[{"status":"COMPLETED","conclusion":"SUCCESS"}]}`,
			state:    StateOpen,
			approved: true,
			checks:   ChecksSuccess,
		},
		{
			name:   "draft with running checks",
			json:   `{"number":7,"state":"OPEN","isDraft":true,"reviewDecision":"REVIEW_REQUIRED","statusCheckRollup":[{"status":"IN_PROGRESS","conclusion":""},{"status":"COMPLETED","conclusion":"SUCCESS"}]}`,
			state:  StateDraft,
			checks: ChecksRunning,
		},
		{
			name:     "merged",
			json:     `{"number":7,"state":"MERGED","reviewDecision":"APPROVED","statusCheckRollup":[]}`,
			state:    StateMerged,
			approved: true,
			checks:   ChecksSuccess,
		},
		{
			name:   "failed status context",
			json:   `{"number":7,"state":"OPEN","reviewDecision":"CHANGES_REQUESTED","statusCheckRollup":[{"state":"FAILURE"}]}`,
			state:  StateOpen,
			checks: ChecksFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeExec()
			fake.responses["gh pr view 7"] = tt.json
			c := &GitHubCLI{exec: fake.run}

			pr, err := c.View(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, 7, pr.Number)
			assert.Equal(t, tt.state, pr.State)
			assert.Equal(t, tt.approved, pr.Approved)
			assert.Equal(t, tt.checks, pr.Checks)
		})
	}
}

func TestGitHubCLICreate(t *testing.T) {
	ctx := context.Background()

	t.Run("ParsesURL", func(t *testing.T) {
		fake := newFakeExec()
		fake.responses["gh pr create"] = "https://github.com/o/r/pull/42\n"
		fake.responses["gh pr view 42"] = `{"number":42,"state":"OPEN","isDraft":true}`
		c := &GitHubCLI{exec: fake.run}

		pr, err := c.Create(ctx, CreateRequest{Source: "a/s--c-1", Target: "main", Title: "T", Body: "B", Draft: true})
		require.NoError(t, err)
		assert.Equal(t, 42, pr.Number)
		assert.Equal(t, StateDraft, pr.State)
		assert.Contains(t, fake.calls[0], "--draft")
	})

	t.Run("RecoversExisting", func(t *testing.T) {
		fake := newFakeExec()
		fake.failures["gh pr create"] = `a pull request for branch "a/s--c-1" into branch "main" already exists`
		fake.responses["gh pr list --head a/s--c-1"] = `[{"number":9}]`
		fake.responses["gh pr view 9"] = `{"number":9,"state":"OPEN"}`
		c := &GitHubCLI{exec: fake.run}

		pr, err := c.Create(ctx, CreateRequest{Source: "a/s--c-1", Target: "main"})
		require.NoError(t, err)
		assert.Equal(t, 9, pr.Number)
	})
}

func TestGitHubCLIMerge(t *testing.T) {
	ctx := context.Background()

	t.Run("Squash", func(t *testing.T) {
		fake := newFakeExec()
		fake.responses["gh pr merge 3 --squash"] = ""
		c := &GitHubCLI{exec: fake.run}

		outcome, err := c.Merge(ctx, 3, MergeOptions{Method: MergeSquash})
		require.NoError(t, err)
		assert.Equal(t, Merged, outcome)
	})

	t.Run("MergeQueueRequired", func(t *testing.T) {
		fake := newFakeExec()
		fake.failures["gh pr merge 3 --merge"] = "the base branch policy requires changes to be made through a merge queue"
		fake.responses["gh pr merge 3 --auto"] = ""
		c := &GitHubCLI{exec: fake.run}

		outcome, err := c.Merge(ctx, 3, MergeOptions{Method: MergeCommit})
		require.NoError(t, err)
		assert.Equal(t, Queued, outcome)
	})

	t.Run("OtherFailure", func(t *testing.T) {
		fake := newFakeExec()
		fake.failures["gh pr merge 3"] = "Pull request is not mergeable"
		c := &GitHubCLI{exec: fake.run}

		_, err := c.Merge(ctx, 3, MergeOptions{})
		assert.ErrorContains(t, err, "not mergeable")
	})
}

func TestGitHubCLIUpdateDetails(t *testing.T) {
	fake := newFakeExec()
	fake.responses["gh pr edit 5"] = ""
	c := &GitHubCLI{exec: fake.run}

	require.NoError(t, c.UpdateDetails(context.Background(), 5, nil, nil))
	assert.Empty(t, fake.calls)

	title := "New title"
	require.NoError(t, c.UpdateDetails(context.Background(), 5, &title, nil))
	assert.Equal(t, []string{"gh pr edit 5 --title New title"}, fake.calls)
}

func TestNumberAfter(t *testing.T) {
	assert.Equal(t, 12, numberAfter("https://github.com/o/r/pull/12\n", "/pull/"))
	assert.Equal(t, 3, numberAfter("Creating merge request !3 (opened)", "!"))
	assert.Equal(t, 8, numberAfter("see https://gitlab.com/g/p/-/merge_requests/8#note", "/merge_requests/"))
	assert.Equal(t, 0, numberAfter("nothing here", "/pull/"))
}
