package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLimiter_Allow(t *testing.T) {
	l := NewKeyedLimiter(1, 2, time.Minute)

	assert.True(t, l.Allow("user-1"))
	assert.True(t, l.Allow("user-1"))
	assert.False(t, l.Allow("user-1"))

	// other keys have their own bucket
	assert.True(t, l.Allow("user-2"))
	assert.Equal(t, 2, l.Len())
}

func TestKeyedLimiter_Wait(t *testing.T) {
	l := NewKeyedLimiter(100, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "k"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "k"))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestKeyedLimiter_WaitCancelled(t *testing.T) {
	l := NewKeyedLimiter(0.01, 1, time.Minute)
	require.True(t, l.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}

func TestKeyedLimiter_Sweep(t *testing.T) {
	l := NewKeyedLimiter(1, 1, time.Millisecond)
	l.Allow("a")
	l.Allow("b")
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 2, l.Sweep())
	assert.Equal(t, 0, l.Len())
}
