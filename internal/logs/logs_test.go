package logs

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	tests := []struct {
		name        string
		verbose     bool
		wantConsole bool
	}{
		{name: "QuietConsole", verbose: false, wantConsole: false},
		{name: "VerboseConsole", verbose: true, wantConsole: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			var console bytes.Buffer

			closeLogs := Setup(Options{Verbose: tt.verbose, Dir: dir, Console: &console})
			slog.Debug("replay step", slog.String("commit", "abc1234"))
			closeLogs()

			assert.Equal(t, tt.wantConsole, bytes.Contains(console.Bytes(), []byte("replay step")))

			data, err := os.ReadFile(filepath.Join(dir, "gg.log"))
			require.NoError(t, err)
			assert.Contains(t, string(data), `"msg":"replay step"`)
			assert.Contains(t, string(data), `"commit":"abc1234"`)
		})
	}
}

func TestRotatingWriterEnvOverrides(t *testing.T) {
	t.Setenv("GG_LOG_MAX_SIZE", "5")
	t.Setenv("GG_LOG_MAX_BACKUPS", "0")

	w := newRotatingWriter("/tmp/gg.log")
	assert.Equal(t, 5, w.MaxSize)
	assert.Equal(t, 0, w.MaxBackups)
	assert.Equal(t, 30, w.MaxAge)

	t.Setenv("GG_LOG_MAX_SIZE", "bogus")
	w = newRotatingWriter("/tmp/gg.log")
	assert.Equal(t, 1, w.MaxSize)
}
