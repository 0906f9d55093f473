// Package indexer runs document indexing in the background and tracks
// per-document progress.
package indexer

import "sync"

type State string

const (
	StatePending  State = "pending"
	StateIndexing State = "indexing"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateUnknown  State = "unknown"
)

var stateRank = map[State]int{
	StatePending:  0,
	StateIndexing: 1,
	StateDone:     2,
	StateFailed:   2,
}

type Status struct {
	State  State  `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// StatusTracker records indexing progress per document. Transitions only
// move forward: a document never leaves a terminal state and never returns
// to pending.
type StatusTracker struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]Status)}
}

func (t *StatusTracker) Set(docID string, state State, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.statuses[docID]; ok {
		if cur.State == StateDone || cur.State == StateFailed {
			return
		}
		if stateRank[state] < stateRank[cur.State] {
			return
		}
	}
	t.statuses[docID] = Status{State: state, Reason: reason}
}

// Get returns the recorded status, or unknown for documents never seen.
func (t *StatusTracker) Get(docID string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, ok := t.statuses[docID]; ok {
		return s
	}
	return Status{State: StateUnknown}
}

func (t *StatusTracker) Delete(docID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, docID)
}
