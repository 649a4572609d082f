package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

const (
	lockTimeout    = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

// Store reads and writes config.json under a file lock. Readers take a
// shared lock, writers an exclusive one, and writes are atomic renames so a
// reader never sees a partial file.
type Store struct {
	dir     string
	timeout time.Duration
}

// Open returns a store rooted at <commonDir>/gg
func Open(commonDir string) *Store {
	return &Store{dir: filepath.Join(commonDir, "gg"), timeout: lockTimeout}
}

// Path returns the config file path
func (s *Store) Path() string {
	return filepath.Join(s.dir, "config.json")
}

func (s *Store) lockPath() string {
	return s.Path() + ".lock"
}

// lock acquires the config lock. Caller must call the returned unlock.
func (s *Store) lock(ctx context.Context, exclusive bool) (func(), error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fl := flock.New(s.lockPath())
	var locked bool
	var err error
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !locked {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("config store %s is locked: %w", s.Path(), ggerrors.ErrLockTimeout)
		}
		return nil, fmt.Errorf("failed to lock config store: %w", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

// Load reads the configuration, returning defaults when no file exists yet
func (s *Store) Load(ctx context.Context) (*Config, error) {
	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.read()
}

// Update performs a read-modify-write under one exclusive lock. Nothing is
// written if fn returns an error.
func (s *Store) Update(ctx context.Context, fn func(*Config) error) error {
	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	cfg, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return s.write(cfg)
}

func (s *Store) read() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", s.Path(), err)
	}
	if cfg.Stacks == nil {
		cfg.Stacks = make(map[string]*StackConfig)
	}
	if !cfg.Defaults.UnstagedAction.Valid() {
		cfg.Defaults.UnstagedAction = UnstagedAsk
	}
	return cfg, nil
}

func (s *Store) write(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp := fmt.Sprintf("%s.tmp-%d", s.Path(), os.Getpid())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close config: %w", err)
	}

	if err := os.Rename(tmp, s.Path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}

	slog.Debug("config written", slog.String("path", s.Path()))
	return nil
}
