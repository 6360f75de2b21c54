package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// boundedDeque
// =============================================================================

func TestBoundedDequePushWithinCap(t *testing.T) {
	buf := newBoundedDeque(3)
	buf.Push(DataPoint{EntityID: "a"})
	buf.Push(DataPoint{EntityID: "b"})

	require.Equal(t, 2, buf.Len())
	snap := buf.Snapshot()
	assert.Equal(t, "a", snap[0].EntityID)
	assert.Equal(t, "b", snap[1].EntityID)
}

func TestBoundedDequeEvictsOldest(t *testing.T) {
	buf := newBoundedDeque(2)
	buf.Push(DataPoint{EntityID: "a"})
	buf.Push(DataPoint{EntityID: "b"})
	buf.Push(DataPoint{EntityID: "c"})

	require.Equal(t, 2, buf.Len())
	snap := buf.Snapshot()
	assert.Equal(t, "b", snap[0].EntityID)
	assert.Equal(t, "c", snap[1].EntityID)
}

func TestBoundedDequeDefaultCap(t *testing.T) {
	buf := newBoundedDeque(0)
	assert.Equal(t, 10000, buf.cap)
}

func TestBoundedDequeSnapshotIsDefensiveCopy(t *testing.T) {
	buf := newBoundedDeque(5)
	buf.Push(DataPoint{EntityID: "a"})
	snap := buf.Snapshot()
	snap[0].EntityID = "mutated"

	assert.Equal(t, "a", buf.Snapshot()[0].EntityID)
}

func TestBoundedDequeDropBefore(t *testing.T) {
	buf := newBoundedDeque(10)
	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now()
	buf.Push(DataPoint{EntityID: "old", Timestamp: old})
	buf.Push(DataPoint{EntityID: "recent", Timestamp: recent})

	cutoff := time.Now().Add(-1 * time.Hour).UnixNano()
	dropped := buf.DropBefore(cutoff)

	assert.Equal(t, 1, dropped)
	snap := buf.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "recent", snap[0].EntityID)
}
