package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTrackerUnknownDocument(t *testing.T) {
	tr := NewStatusTracker()
	assert.Equal(t, StateUnknown, tr.Get("nope").State)
}

func TestStatusTrackerForwardTransitions(t *testing.T) {
	tr := NewStatusTracker()

	tr.Set("d1", StatePending, "")
	assert.Equal(t, StatePending, tr.Get("d1").State)

	tr.Set("d1", StateIndexing, "")
	assert.Equal(t, StateIndexing, tr.Get("d1").State)

	tr.Set("d1", StateDone, "")
	assert.Equal(t, StateDone, tr.Get("d1").State)
}

func TestStatusTrackerNeverMovesBackward(t *testing.T) {
	tr := NewStatusTracker()

	tr.Set("d1", StateIndexing, "")
	tr.Set("d1", StatePending, "")
	assert.Equal(t, StateIndexing, tr.Get("d1").State)
}

func TestStatusTrackerTerminalStatesStick(t *testing.T) {
	tr := NewStatusTracker()

	tr.Set("d1", StateFailed, "embedding failed")
	tr.Set("d1", StateDone, "")
	got := tr.Get("d1")
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "embedding failed", got.Reason)

	tr.Set("d2", StateDone, "")
	tr.Set("d2", StateFailed, "late failure")
	assert.Equal(t, StateDone, tr.Get("d2").State)
}

func TestStatusTrackerDelete(t *testing.T) {
	tr := NewStatusTracker()
	tr.Set("d1", StateDone, "")
	tr.Delete("d1")
	assert.Equal(t, StateUnknown, tr.Get("d1").State)
}
