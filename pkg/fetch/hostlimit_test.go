package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_AcquireRelease(t *testing.T) {
	hl := NewHostLimiter(1, testLogger())
	ctx := context.Background()

	require.NoError(t, hl.Acquire(ctx, "example.com"))
	assert.Equal(t, 1, hl.Len())

	// Second acquire on the same host should block until release
	acquired := make(chan struct{})
	go func() {
		if err := hl.Acquire(ctx, "example.com"); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire should have blocked at the per-host limit")
	case <-time.After(50 * time.Millisecond):
	}

	hl.Release("example.com")

	select {
	case <-acquired:
	case <-time.After(1 * time.Second):
		t.Fatal("Release did not unblock waiting Acquire")
	}
	hl.Release("example.com")
}

func TestHostLimiter_HostsIndependent(t *testing.T) {
	hl := NewHostLimiter(1, testLogger())
	ctx := context.Background()

	require.NoError(t, hl.Acquire(ctx, "a.example.com"))
	require.NoError(t, hl.Acquire(ctx, "b.example.com"))
	assert.Equal(t, 2, hl.Len())

	hl.Release("a.example.com")
	hl.Release("b.example.com")
}

func TestHostLimiter_CancelledContext(t *testing.T) {
	hl := NewHostLimiter(1, testLogger())
	require.NoError(t, hl.Acquire(context.Background(), "example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := hl.Acquire(ctx, "example.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	hl.Release("example.com")
}

func TestHostLimiter_ZeroLimitDefaults(t *testing.T) {
	hl := NewHostLimiter(0, testLogger())
	ctx := context.Background()

	// Default limit is 2; two acquires should not block
	require.NoError(t, hl.Acquire(ctx, "example.com"))
	require.NoError(t, hl.Acquire(ctx, "example.com"))
	hl.Release("example.com")
	hl.Release("example.com")
}
