package ui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompterConfirm(t *testing.T) {
	t.Run("HeadlessAnswersNo", func(t *testing.T) {
		asked := false
		p := &Prompter{
			interactive: func() bool { return false },
			ask: func(string) (bool, error) {
				asked = true
				return true, nil
			},
		}

		ok, err := p.Confirm("overwrite?")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, asked)
	})

	t.Run("InteractiveAsks", func(t *testing.T) {
		var got string
		p := &Prompter{
			interactive: func() bool { return true },
			ask: func(msg string) (bool, error) {
				got = msg
				return true, nil
			},
		}

		ok, err := p.Confirm("overwrite?")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "overwrite?", got)
	})

	t.Run("PromptError", func(t *testing.T) {
		p := &Prompter{
			interactive: func() bool { return true },
			ask:         func(string) (bool, error) { return false, errors.New("boom") },
		}

		_, err := p.Confirm("overwrite?")
		assert.Error(t, err)
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		text string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer title here", 10, "a longe..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
		{"unbounded", 0, "unbounded"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.text, tt.max))
		})
	}
}
