package storage

import (
	"fmt"
	"sync"

	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/page"
)

// frameKey identifies a page uniquely across all tables (spec §4.8).
type frameKey struct {
	table  string
	pageID uint32
}

// frame holds one page's worth of cached, possibly-dirty state.
type frame struct {
	key   frameKey
	pg    *page.Page
	pins  int
	dirty bool
	valid bool
}

// Stats reports the buffer pool's lifetime counters, current occupancy, and
// policy (spec §4.8: "stats() → {hits, misses, evictions, hit_ratio,
// policy}"), surfaced by the CLI's --show=bufferpool hook (SPEC_FULL.md
// §12).
type Stats struct {
	Policy    string
	Hits      int
	Misses    int
	Evictions int
	HitRatio  float64
	Capacity  int
	InUse     int
	PinnedNow int
	DirtyNow  int
}

// BufferPool is a bounded, fixed-capacity cache of frames keyed by
// (table, page_id), sitting above a FileManager and evicting via a
// pluggable ReplacementPolicy (spec §4.8).
type BufferPool struct {
	fm       *FileManager
	policy   ReplacementPolicy
	capacity int

	mu        sync.Mutex
	frames    []frame
	byKey     map[frameKey]int // key -> frame index
	hits      int
	misses    int
	evictions int
}

// NewBufferPool creates a pool of the given frame capacity backed by fm,
// evicting frames according to policy.
func NewBufferPool(fm *FileManager, capacity int, policy ReplacementPolicy) *BufferPool {
	if capacity < 1 {
		capacity = 1
	}
	return &BufferPool{
		fm:       fm,
		policy:   policy,
		capacity: capacity,
		frames:   make([]frame, capacity),
		byKey:    make(map[frameKey]int),
	}
}

// FetchPage pins and returns the page for (table, pageID), loading it from
// the FileManager on a miss, evicting an unpinned frame if the pool is full.
// Callers must call Unpin when finished.
func (bp *BufferPool) FetchPage(table string, pageID uint32) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := frameKey{table, pageID}
	if idx, ok := bp.byKey[key]; ok {
		bp.hits++
		bp.frames[idx].pins++
		bp.policy.RecordAccess(idx)
		return bp.frames[idx].pg, nil
	}
	bp.misses++

	idx, err := bp.acquireFrameLocked()
	if err != nil {
		return nil, err
	}

	buf, err := bp.fm.ReadPage(table, pageID)
	if err != nil {
		return nil, err
	}
	pg, err := page.FromBytes(buf)
	if err != nil {
		return nil, err
	}

	bp.frames[idx] = frame{key: key, pg: pg, pins: 1, dirty: false, valid: true}
	bp.byKey[key] = idx
	bp.policy.RecordAccess(idx)
	return pg, nil
}

// NewPage allocates a fresh page in table via the FileManager, installs it
// pinned in the pool, and returns it along with its page_id.
func (bp *BufferPool) NewPage(table string) (*page.Page, uint32, error) {
	pageID, err := bp.fm.AllocatePage(table)
	if err != nil {
		return nil, 0, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	idx, err := bp.acquireFrameLocked()
	if err != nil {
		return nil, 0, err
	}

	pg := page.New(pageID)
	key := frameKey{table, pageID}
	bp.frames[idx] = frame{key: key, pg: pg, pins: 1, dirty: true, valid: true}
	bp.byKey[key] = idx
	bp.policy.RecordAccess(idx)
	return pg, pageID, nil
}

// acquireFrameLocked finds a free frame slot, or evicts an unpinned one.
// Caller must hold bp.mu.
func (bp *BufferPool) acquireFrameLocked() (int, error) {
	for i := range bp.frames {
		if !bp.frames[i].valid {
			return i, nil
		}
	}

	var unpinned []int
	for i := range bp.frames {
		if bp.frames[i].pins == 0 {
			unpinned = append(unpinned, i)
		}
	}
	victim, ok := bp.policy.PickVictim(unpinned)
	if !ok {
		return 0, errs.New(errs.PhaseStorage, errs.KindBufferFull, 0, 0,
			"buffer pool exhausted: all %d frames pinned", bp.capacity)
	}

	if err := bp.flushFrameLocked(victim); err != nil {
		return 0, err
	}
	bp.evictions++
	bp.policy.Forget(victim)
	delete(bp.byKey, bp.frames[victim].key)
	bp.frames[victim] = frame{}
	return victim, nil
}

// Unpin releases one pin on (table, pageID) and, if dirty is true, marks the
// frame for writeback.
func (bp *BufferPool) Unpin(table string, pageID uint32, dirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := frameKey{table, pageID}
	idx, ok := bp.byKey[key]
	if !ok {
		return errs.New(errs.PhaseStorage, errs.KindIoFailure, 0, 0,
			"unpin of page %d of %s not resident in buffer pool", pageID, table)
	}
	if bp.frames[idx].pins > 0 {
		bp.frames[idx].pins--
	}
	if dirty {
		bp.frames[idx].dirty = true
	}
	return nil
}

// MarkDirty flags the resident frame for (table, pageID) as dirty without
// changing its pin count.
func (bp *BufferPool) MarkDirty(table string, pageID uint32) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if idx, ok := bp.byKey[frameKey{table, pageID}]; ok {
		bp.frames[idx].dirty = true
	}
}

// flushFrameLocked writes a dirty frame's page back through the
// FileManager. Caller must hold bp.mu.
func (bp *BufferPool) flushFrameLocked(idx int) error {
	f := &bp.frames[idx]
	if !f.valid || !f.dirty {
		return nil
	}
	buf := f.pg.ToBytes()
	if err := bp.fm.WritePage(f.key.table, f.key.pageID, buf[:]); err != nil {
		return fmt.Errorf("flushing frame for page %d of %s: %w", f.key.pageID, f.key.table, err)
	}
	f.dirty = false
	return nil
}

// FlushAll writes back every dirty frame in the pool (spec §4.8).
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for i := range bp.frames {
		if err := bp.flushFrameLocked(i); err != nil {
			return err
		}
	}
	return nil
}

// FlushTable writes back every dirty frame belonging to table.
func (bp *BufferPool) FlushTable(table string) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for i := range bp.frames {
		if bp.frames[i].valid && bp.frames[i].key.table == table {
			if err := bp.flushFrameLocked(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats reports lifetime hit/miss/eviction counters and current pool
// occupancy (spec §4.8).
func (bp *BufferPool) Stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	s := Stats{
		Policy:    bp.policy.Name(),
		Capacity:  bp.capacity,
		Hits:      bp.hits,
		Misses:    bp.misses,
		Evictions: bp.evictions,
	}
	if total := bp.hits + bp.misses; total > 0 {
		s.HitRatio = float64(bp.hits) / float64(total)
	}
	for i := range bp.frames {
		if !bp.frames[i].valid {
			continue
		}
		s.InUse++
		if bp.frames[i].pins > 0 {
			s.PinnedNow++
		}
		if bp.frames[i].dirty {
			s.DirtyNow++
		}
	}
	return s
}
