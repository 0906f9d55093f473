package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterFixedWindow(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter(60 * time.Second)
	base := time.Unix(1_700_000_000, 0)

	for i := 1; i <= 6; i++ {
		count, err := c.Incr(ctx, "10.0.0.1", "upload", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}

	// The next window starts fresh.
	count, err := c.Incr(ctx, "10.0.0.1", "upload", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryCounterSeparatesClasses(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter(60 * time.Second)
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		_, err := c.Incr(ctx, "10.0.0.1", "ask", now)
		require.NoError(t, err)
	}
	count, err := c.Incr(ctx, "10.0.0.1", "upload", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryCounterSeparatesClients(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter(60 * time.Second)
	now := time.Unix(1_700_000_000, 0)

	_, err := c.Incr(ctx, "10.0.0.1", "ask", now)
	require.NoError(t, err)
	count, err := c.Incr(ctx, "10.0.0.2", "ask", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLimiterRejectsSixthRequest(t *testing.T) {
	ctx := context.Background()
	l := New(ctx, nil, Options{
		Window: 60 * time.Second,
		Limits: map[string]int{"upload": 5},
	})

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1", "upload"), "request %d should pass", i+1)
	}
	assert.False(t, l.Allow(ctx, "10.0.0.1", "upload"), "sixth request should be rejected")
}

func TestLimiterUnknownClassAlwaysAllowed(t *testing.T) {
	ctx := context.Background()
	l := New(ctx, nil, Options{
		Window: 60 * time.Second,
		Limits: map[string]int{"upload": 1},
	})

	for i := 0; i < 50; i++ {
		assert.True(t, l.Allow(ctx, "10.0.0.1", "health"))
	}
}
