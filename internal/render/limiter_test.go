package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsConcurrentAcquires(t *testing.T) {
	l := NewLimiter(2)

	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterReleaseFreesASlot(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
	require.NoError(t, l.Acquire(context.Background()))
}

func TestLimiterCloseFailsFutureAcquires(t *testing.T) {
	l := NewLimiter(2)
	l.Close()

	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLimiterClosed)
}

func TestLimiterReleaseAfterCloseIsSafe(t *testing.T) {
	l := NewLimiter(1)
	require.NoError(t, l.Acquire(context.Background()))
	l.Close()
	assert.NotPanics(t, func() { l.Release() })
}
