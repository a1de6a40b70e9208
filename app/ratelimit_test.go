package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("ann"))
	now = now.Add(3 * time.Minute)
	require.True(t, l.Allow("bob"))
	assert.Equal(t, 2, l.Len())

	now = now.Add(3 * time.Minute)
	assert.Equal(t, 1, l.Prune(5*time.Minute))
	assert.Equal(t, 1, l.Len())

	now = now.Add(time.Minute)
	assert.Equal(t, 0, l.Prune(5*time.Minute), "bob was seen 4 minutes ago")
	assert.Equal(t, 1, l.Prune(time.Minute))
	assert.Equal(t, 0, l.Len())
}

func TestRateLimiterPruneKeepsActiveUsers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(0.001, 1)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("ann"))
	now = now.Add(10 * time.Minute)
	assert.False(t, l.Allow("ann"))
	assert.Equal(t, 0, l.Prune(5*time.Minute))
	assert.False(t, l.Allow("ann"), "an active user keeps an empty bucket")
}

func TestRateLimiterRun(t *testing.T) {
	l := NewRateLimiter(1, 1)
	l.Allow("ann")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx, 5*time.Millisecond, 0)
	}()

	require.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRateLimiterRefillTime(t *testing.T) {
	assert.Equal(t, 4*time.Second, NewRateLimiter(0.5, 2).RefillTime())
	assert.Equal(t, time.Duration(0), NewRateLimiter(0, 2).RefillTime())
}
