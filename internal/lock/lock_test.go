package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

func TestAcquireRecordsHolder(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(context.Background(), dir, "squash", time.Second)
	require.NoError(t, err)

	holder, err := ReadHolder(dir)
	require.NoError(t, err)
	assert.Equal(t, "squash", holder.Operation)
	assert.Equal(t, os.Getpid(), holder.PID)
	assert.False(t, holder.Since.IsZero())

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	holder, err = ReadHolder(dir)
	require.NoError(t, err)
	assert.Empty(t, holder.Operation)
}

func TestAcquireTimesOutWithHolder(t *testing.T) {
	dir := t.TempDir()

	held, err := Acquire(context.Background(), dir, "sync", time.Second)
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = Acquire(context.Background(), dir, "reorder", 300*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var timeoutErr *ggerrors.LockTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "sync", timeoutErr.Operation)
	assert.Equal(t, os.Getpid(), timeoutErr.PID)
	assert.True(t, errors.Is(err, ggerrors.ErrLockTimeout))
}

func TestGuard(t *testing.T) {
	dir := t.TempDir()

	t.Run("ReleasesAfterRun", func(t *testing.T) {
		ran := false
		err := Guard(context.Background(), dir, "absorb", func() error {
			ran = true
			holder, err := ReadHolder(dir)
			require.NoError(t, err)
			assert.Equal(t, "absorb", holder.Operation)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)

		l, err := Acquire(context.Background(), dir, "next", 200*time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, l.Release())
	})

	t.Run("ReleasesOnError", func(t *testing.T) {
		boom := errors.New("boom")
		err := Guard(context.Background(), dir, "land", func() error { return boom })
		assert.ErrorIs(t, err, boom)

		l, err := Acquire(context.Background(), dir, "next", 200*time.Millisecond)
		require.NoError(t, err)
		require.NoError(t, l.Release())
	})
}

func TestAcquireWaitsForRelease(t *testing.T) {
	dir := t.TempDir()

	held, err := Acquire(context.Background(), dir, "sync", time.Second)
	require.NoError(t, err)

	released := make(chan struct{})
	go func() {
		time.Sleep(300 * time.Millisecond)
		close(released)
		_ = held.Release()
	}()

	start := time.Now()
	l, err := Acquire(context.Background(), dir, "reorder", 5*time.Second)
	require.NoError(t, err)
	defer l.Release()

	select {
	case <-released:
	default:
		t.Fatal("acquired while the first holder still had the lock")
	}
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)

	holder, err := ReadHolder(dir)
	require.NoError(t, err)
	assert.Equal(t, "reorder", holder.Operation)
}

func TestGuardNeverOverlaps(t *testing.T) {
	dir := t.TempDir()

	var (
		inside  int32
		overlap int32
		runs    int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Guard(context.Background(), dir, "squash", func() error {
				if atomic.AddInt32(&inside, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				atomic.AddInt32(&runs, 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), atomic.LoadInt32(&runs))
	assert.Zero(t, atomic.LoadInt32(&overlap))
}
