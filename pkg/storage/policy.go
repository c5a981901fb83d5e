package storage

// ReplacementPolicy is the narrow contract a buffer-pool eviction strategy
// must satisfy (spec §4.8, §9): record that a frame was touched, and pick a
// victim among the frames that are not currently pinned. Frame identity is
// the buffer pool's own frame index, so a policy never needs to know about
// pages, tables, or pins, only which index to forget and which to name
// back.
type ReplacementPolicy interface {
	// RecordAccess notes that frame was just touched (installed or hit).
	RecordAccess(frame int)

	// PickVictim chooses a frame to evict from the given set of frames that
	// are currently unpinned. Returns ok == false if unpinned is empty.
	PickVictim(unpinned []int) (frame int, ok bool)

	// Forget drops any bookkeeping for frame, called when its contents are
	// evicted or the pool is reset.
	Forget(frame int)

	// Name identifies the policy for BufferPool.Stats().
	Name() string
}

// LRU evicts the least-recently-accessed unpinned frame.
type LRU struct {
	order []int // front = least recently used, back = most recently used
}

func NewLRU() *LRU { return &LRU{} }

func (l *LRU) RecordAccess(frame int) {
	l.removeFrame(frame)
	l.order = append(l.order, frame)
}

func (l *LRU) PickVictim(unpinned []int) (int, bool) {
	pinned := toSet(unpinned)
	for _, f := range l.order {
		if pinned[f] {
			return f, true
		}
	}
	// Fallback: any frame named in unpinned not yet tracked (shouldn't
	// normally happen, since RecordAccess is called on every install).
	if len(unpinned) > 0 {
		return unpinned[0], true
	}
	return 0, false
}

func (l *LRU) Forget(frame int) { l.removeFrame(frame) }

func (l *LRU) Name() string { return "lru" }

func (l *LRU) removeFrame(frame int) {
	for i, f := range l.order {
		if f == frame {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

// FIFO evicts the frame that was installed longest ago, regardless of
// subsequent hits.
type FIFO struct {
	queue []int
}

func NewFIFO() *FIFO { return &FIFO{} }

func (f *FIFO) RecordAccess(frame int) {
	for _, q := range f.queue {
		if q == frame {
			return // already queued; FIFO does not reorder on access
		}
	}
	f.queue = append(f.queue, frame)
}

func (f *FIFO) PickVictim(unpinned []int) (int, bool) {
	pinned := toSet(unpinned)
	for _, q := range f.queue {
		if pinned[q] {
			return q, true
		}
	}
	if len(unpinned) > 0 {
		return unpinned[0], true
	}
	return 0, false
}

func (f *FIFO) Forget(frame int) {
	for i, q := range f.queue {
		if q == frame {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			return
		}
	}
}

func (f *FIFO) Name() string { return "fifo" }

func toSet(xs []int) map[int]bool {
	m := make(map[int]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

// NewPolicy constructs a ReplacementPolicy by name ("lru" or "fifo"),
// defaulting to LRU for any other value.
func NewPolicy(name string) ReplacementPolicy {
	if name == "fifo" {
		return NewFIFO()
	}
	return NewLRU()
}
