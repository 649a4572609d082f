// Package lock serializes mutating gg operations across processes and
// linked worktrees with an exclusive file lock in the common git directory.
package lock

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

const (
	// DefaultTimeout is how long Acquire waits for another operation to finish
	DefaultTimeout = 10 * time.Second

	retryDelay = 100 * time.Millisecond
	fileName   = "operation.lock"
)

// Lock is a held operation lock
type Lock struct {
	fl        *flock.Flock
	path      string
	operation string
}

// Holder describes the process holding the lock
type Holder struct {
	Operation string
	PID       int
	Since     time.Time
}

// Path returns the lock file path for a common git directory
func Path(commonDir string) string {
	return filepath.Join(commonDir, "gg", fileName)
}

// Acquire takes the operation lock, waiting up to timeout for the current
// holder to release it. A timeout of zero uses DefaultTimeout.
func Acquire(ctx context.Context, commonDir, operation string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	path := Path(commonDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(path)
	locked, err := fl.TryLockContext(waitCtx, retryDelay)
	if err != nil || !locked {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if waitCtx.Err() != nil {
			holder, _ := ReadHolder(commonDir)
			return nil, &ggerrors.LockTimeoutError{
				Operation: holder.Operation,
				PID:       holder.PID,
				Since:     holder.Since,
			}
		}
		return nil, fmt.Errorf("failed to acquire operation lock: %w", err)
	}

	l := &Lock{fl: fl, path: path, operation: operation}
	info := fmt.Sprintf("operation: %s\npid: %d\nstarted: %s\n", operation, os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(info), 0644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to record lock holder: %w", err)
	}

	slog.Debug("operation lock acquired", slog.String("operation", operation), slog.String("path", path))
	return l, nil
}

// Release clears the holder info and unlocks. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil || !l.fl.Locked() {
		return nil
	}
	if err := os.Truncate(l.path, 0); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to clear lock holder", slog.String("error", err.Error()))
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to release operation lock: %w", err)
	}
	slog.Debug("operation lock released", slog.String("operation", l.operation))
	return nil
}

// ReadHolder parses the holder info written by the current lock owner
func ReadHolder(commonDir string) (Holder, error) {
	f, err := os.Open(Path(commonDir))
	if err != nil {
		return Holder{}, err
	}
	defer f.Close()

	var h Holder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "operation":
			h.Operation = value
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "started":
			h.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h, scanner.Err()
}

// Guard runs fn while holding the operation lock
func Guard(ctx context.Context, commonDir, operation string, fn func() error) error {
	l, err := Acquire(ctx, commonDir, operation, DefaultTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			slog.Warn("failed to release operation lock", slog.String("error", err.Error()))
		}
	}()
	return fn()
}
