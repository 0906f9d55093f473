package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	ts    time.Time
	class string
}

// MemoryCounter is the single-process fallback: a per-client log of request
// timestamps pruned to the current window on every increment.
type MemoryCounter struct {
	mu       sync.Mutex
	window   time.Duration
	requests map[string][]memoryEntry
}

func NewMemoryCounter(window time.Duration) *MemoryCounter {
	return &MemoryCounter{
		window:   window,
		requests: make(map[string][]memoryEntry),
	}
}

func (c *MemoryCounter) Incr(_ context.Context, clientID, class string, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.requests[clientID][:0]
	for _, e := range c.requests[clientID] {
		if now.Sub(e.ts) <= c.window {
			kept = append(kept, e)
		}
	}
	kept = append(kept, memoryEntry{ts: now, class: class})
	c.requests[clientID] = kept

	var count int64
	for _, e := range kept {
		if e.class == class {
			count++
		}
	}
	return count, nil
}
