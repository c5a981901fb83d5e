package storage

import (
	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/page"
	"github.com/YilianFengyue/moonsql/pkg/serdes"
	"github.com/YilianFengyue/moonsql/pkg/types"
)

// Engine is the record-level storage API (spec §4.9): create_table,
// insert_row, seq_scan, delete_row. It knows nothing about SQL; callers
// supply a types.Schema and get back RIDs and Rows.
type Engine struct {
	fm   *FileManager
	pool *BufferPool

	// lastPage remembers the highest-numbered page allocated for each
	// table, so InsertRow can try it first before allocating a new one.
	lastPage map[string]uint32
}

// NewEngine builds a storage Engine over fm using pool for all page access.
func NewEngine(fm *FileManager, pool *BufferPool) *Engine {
	return &Engine{fm: fm, pool: pool, lastPage: make(map[string]uint32)}
}

// CreateTable allocates table's first page and registers it with the file
// manager (spec §4.9). The schema itself is persisted by the catalog layer,
// which calls CreateTable as part of its own bookkeeping.
func (e *Engine) CreateTable(table string) error {
	if e.fm.Exists(table) {
		return errs.New(errs.PhaseExec, errs.KindUnknownTable, 0, 0, "table %q already exists", table)
	}
	if err := e.fm.Open(table); err != nil {
		return err
	}
	pg, pageID, err := e.pool.NewPage(table)
	_ = pg
	if err != nil {
		return err
	}
	if err := e.pool.Unpin(table, pageID, true); err != nil {
		return err
	}
	e.lastPage[table] = pageID
	return nil
}

// InsertRow encodes row and appends it to table, retrying against a newly
// allocated page on PageFull (spec §4.9). Primary-key uniqueness is the
// caller's responsibility (pkg/exec enforces it via a linear SeqScan, per
// the design note in spec §9(c): no index is maintained here).
func (e *Engine) InsertRow(table string, row types.Row) (types.RID, error) {
	record := serdes.Encode(row)

	pageID, ok := e.lastPage[table]
	if !ok {
		n, err := e.fm.PageCount(table)
		if err != nil {
			return types.RID{}, err
		}
		if n == 0 {
			return types.RID{}, errs.New(errs.PhaseExec, errs.KindUnknownTable, 0, 0, "table %q has no pages", table)
		}
		pageID = uint32(n - 1)
		e.lastPage[table] = pageID
	}

	pg, err := e.pool.FetchPage(table, pageID)
	if err != nil {
		return types.RID{}, err
	}

	slot, err := pg.Insert(record)
	if err == page.ErrPageFull {
		// Open Question (a): compact before giving up on this page, then
		// fall back to allocating a fresh one if it still doesn't fit.
		pg.Compact()
		slot, err = pg.Insert(record)
	}
	if err == page.ErrPageFull {
		if unpinErr := e.pool.Unpin(table, pageID, false); unpinErr != nil {
			return types.RID{}, unpinErr
		}
		newPg, newPageID, allocErr := e.pool.NewPage(table)
		if allocErr != nil {
			return types.RID{}, allocErr
		}
		e.lastPage[table] = newPageID
		slot, err = newPg.Insert(record)
		if err != nil {
			return types.RID{}, err
		}
		if unpinErr := e.pool.Unpin(table, newPageID, true); unpinErr != nil {
			return types.RID{}, unpinErr
		}
		return types.RID{PageID: newPageID, Slot: slot}, nil
	}
	if err != nil {
		return types.RID{}, err
	}
	if err := e.pool.Unpin(table, pageID, true); err != nil {
		return types.RID{}, err
	}
	return types.RID{PageID: pageID, Slot: slot}, nil
}

// RowHandle pairs a record's identity with its decoded value, yielded by
// SeqScan.
type RowHandle struct {
	RID types.RID
	Row types.Row
}

// SeqScan walks every live (non-tombstoned) record of table in (page_id,
// slot_id) order and returns them eagerly. The result reflects table
// contents as of the call; rows inserted after it returns are not included
// (spec §4.9's "restartable by re-invocation" means callers re-scan rather
// than resume a stateful iterator).
func (e *Engine) SeqScan(table string, schema *types.Schema) ([]RowHandle, error) {
	n, err := e.fm.PageCount(table)
	if err != nil {
		return nil, err
	}

	var out []RowHandle
	for pageID := uint32(0); pageID < uint32(n); pageID++ {
		pg, err := e.pool.FetchPage(table, pageID)
		if err != nil {
			return nil, err
		}
		slotCount := pg.SlotCount()
		for slot := 0; slot < slotCount; slot++ {
			rec, err := pg.Read(uint16(slot))
			if err == page.ErrNotFound {
				continue // tombstone
			}
			if err != nil {
				_ = e.pool.Unpin(table, pageID, false)
				return nil, err
			}
			row, err := serdes.Decode(schema, rec)
			if err != nil {
				_ = e.pool.Unpin(table, pageID, false)
				return nil, err
			}
			out = append(out, RowHandle{RID: types.RID{PageID: pageID, Slot: uint16(slot)}, Row: row})
		}
		if err := e.pool.Unpin(table, pageID, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteRow tombstones rid's slot in table. Idempotent on an
// already-deleted slot (spec §4.9).
func (e *Engine) DeleteRow(table string, rid types.RID) error {
	pg, err := e.pool.FetchPage(table, rid.PageID)
	if err != nil {
		return err
	}
	pg.Delete(rid.Slot)
	return e.pool.Unpin(table, rid.PageID, true)
}

// Flush writes back every dirty page belonging to table.
func (e *Engine) Flush(table string) error {
	return e.pool.FlushTable(table)
}

// FlushAll writes back every dirty frame in the buffer pool, regardless of
// table. This is spec §5's flush_all: called eagerly at the end of every
// successful write statement (CreateTable, Insert, Delete) so committed
// rows, including catalog bookkeeping in sys_tables/sys_columns, are
// durable without requiring a clean shutdown.
func (e *Engine) FlushAll() error {
	return e.pool.FlushAll()
}
