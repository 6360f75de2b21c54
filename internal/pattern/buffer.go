package pattern

// boundedDeque is a FIFO ring buffer capped at size items; pushing past the
// cap evicts the oldest (spec.md §3/§5/§8: "insertion order is preserved",
// "overflows evict oldest"). Backed by a plain slice rather than
// container/ring since callers need contiguous forward iteration far more
// often than they need to reuse the ring's node storage.
type boundedDeque struct {
	items []DataPoint
	cap   int
}

func newBoundedDeque(cap int) *boundedDeque {
	if cap <= 0 {
		cap = 10000
	}
	return &boundedDeque{items: make([]DataPoint, 0, cap), cap: cap}
}

// Push appends dp, evicting the oldest entry if at capacity. Runs in
// amortized O(1).
func (b *boundedDeque) Push(dp DataPoint) {
	if len(b.items) >= b.cap {
		b.items = b.items[1:]
	}
	b.items = append(b.items, dp)
}

// Snapshot returns a read-only copy of the buffer's current contents,
// oldest-first.
func (b *boundedDeque) Snapshot() []DataPoint {
	out := make([]DataPoint, len(b.items))
	copy(out, b.items)
	return out
}

func (b *boundedDeque) Len() int { return len(b.items) }

// DropBefore removes every entry whose Timestamp is strictly before cutoff,
// preserving relative order (spec.md §3 retention lifecycle).
func (b *boundedDeque) DropBefore(cutoffUnixNano int64) int {
	kept := b.items[:0]
	dropped := 0
	for _, dp := range b.items {
		if dp.Timestamp.UnixNano() < cutoffUnixNano {
			dropped++
			continue
		}
		kept = append(kept, dp)
	}
	b.items = kept
	return dropped
}
