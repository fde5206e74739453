package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpBackoff_GrowsAndDecays(t *testing.T) {
	b := NewExpBackoff(2, 0.5)
	assert.Equal(t, time.Duration(0), b.CurrentWait())

	b.Backoff()
	first := b.CurrentWait()
	assert.Greater(t, first, 900*time.Millisecond)

	b.Backoff()
	assert.Greater(t, b.CurrentWait(), first)

	for i := 0; i < 20; i++ {
		b.Cooldown()
	}
	assert.Less(t, b.CurrentWait(), 50*time.Millisecond)
}

func TestExpBackoff_NotBeforeGate(t *testing.T) {
	b := NewExpBackoff(0, 0)
	b.SetNotBefore(time.Now().Add(time.Hour))
	assert.Greater(t, b.CurrentWait(), 59*time.Minute)

	// An earlier hint never shortens the gate.
	b.SetNotBefore(time.Now().Add(time.Minute))
	assert.Greater(t, b.CurrentWait(), 59*time.Minute)
}

func TestExpBackoff_WaitCancellable(t *testing.T) {
	b := NewExpBackoff(0, 0)
	b.Backoff()
	b.Backoff() // 2 s wait

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Wait(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSkippingRateLimiter(t *testing.T) {
	r := NewSkippingRateLimiter(time.Minute, 2)
	now := time.Unix(1000, 0)
	r.now = func() time.Time { return now }

	assert.True(t, r.Allow())
	assert.True(t, r.Allow())
	// Pool full, inside the interval: skip.
	assert.False(t, r.Allow())

	ran := false
	assert.False(t, r.TryCall(func() { ran = true }))
	assert.False(t, ran)

	// The oldest slot ages out.
	now = now.Add(61 * time.Second)
	assert.True(t, r.TryCall(func() { ran = true }))
	assert.True(t, ran)
}
