package hooks

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstall(t *testing.T) {
	testCases := []struct {
		desc     string
		existing string
		force    bool
		wantErr  error
		wantOurs bool
	}{
		{
			desc:     "fresh directory",
			wantOurs: true,
		},
		{
			desc:     "reinstall over our own hook",
			existing: script(),
			wantOurs: true,
		},
		{
			desc:     "foreign hook is kept",
			existing: "#!/bin/sh\nexit 0\n",
			wantErr:  ErrForeignHook,
		},
		{
			desc:     "foreign hook replaced with force",
			existing: "#!/bin/sh\nexit 0\n",
			force:    true,
			wantOurs: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "hooks")
			if tc.existing != "" {
				require.NoError(t, os.MkdirAll(dir, 0755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, Name), []byte(tc.existing), 0755))
			}

			err := Install(dir, tc.force)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantOurs, Installed(dir))

			if tc.wantOurs {
				info, err := os.Stat(filepath.Join(dir, Name))
				require.NoError(t, err)
				assert.NotZero(t, info.Mode()&0100, "hook must be executable")
			}
		})
	}
}

func TestUninstall(t *testing.T) {
	t.Run("removes our hook", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, Install(dir, false))
		require.NoError(t, Uninstall(dir))
		_, err := os.Stat(filepath.Join(dir, Name))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("leaves a foreign hook", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, Name)
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
		require.NoError(t, Uninstall(dir))
		_, err := os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("nothing installed", func(t *testing.T) {
		assert.NoError(t, Uninstall(t.TempDir()))
	})
}
