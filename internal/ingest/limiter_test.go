package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	l := NewImportLimiter(2, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, 2, l.Active())

	// Both slots taken; the third acquire times out.
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrTooManyImports)

	l.Release()
	assert.Equal(t, 1, l.Active())
	require.NoError(t, l.Acquire(ctx))

	l.Release()
	l.Release()
	assert.Equal(t, 0, l.Active())
}

func TestImportLimiter_CallerCancellationWins(t *testing.T) {
	l := NewImportLimiter(1, time.Minute)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportLimiter_DefaultsApplied(t *testing.T) {
	l := NewImportLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrentImports, cap(l.sem))
	assert.Equal(t, DefaultSlotWait, l.maxWait)
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	l := NewImportLimiter(1, time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.WaitForDrain(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- l.WaitForDrain(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	l.Release()
	assert.NoError(t, <-done)
}
