package upload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSingleFlight(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	release, ok, err := l.TryAcquire(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire while held must fail")

	// A different upload is unaffected.
	otherRelease, ok, err := l.TryAcquire(ctx, "u2")
	require.NoError(t, err)
	require.True(t, ok)
	otherRelease()

	release()

	release2, ok, err := l.TryAcquire(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok, "lock must be reusable after release")
	release2()
}

func TestLockTTLOutlivesOperation(t *testing.T) {
	// An operation that uses its whole deadline must still hold the lock.
	assert.Greater(t, LockTTL(300*time.Second), 300*time.Second)
	assert.Equal(t, 330*time.Second, LockTTL(300*time.Second))
}
