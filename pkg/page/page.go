// Package page implements MoonSQL's fixed-size slotted page format
// (spec §4.5, §6 byte layout table).
package page

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/YilianFengyue/moonsql/pkg/errs"
)

// Size is the fixed on-disk and in-memory page size in bytes (spec §3).
const Size = 4096

const (
	offPageID     = 0
	offSlotCount  = 4
	offFreeSpace  = 6
	offChecksum   = 8
	headerSize    = 12
	slotEntrySize = 4 // u16 offset, u16 length
)

// ErrPageFull is returned by Insert when the record does not fit.
var ErrPageFull = errs.New(errs.PhaseStorage, errs.KindBufferFull, 0, 0, "page full")

// ErrNotFound is returned by Read when slotID is out of range or tombstoned.
var ErrNotFound = errs.New(errs.PhaseStorage, errs.KindDecodeError, 0, 0, "slot not found")

// Page is an in-memory 4096-byte slotted page (spec §4.5). The zero value is
// not usable; use New or FromBytes.
type Page struct {
	id   uint32
	buf  [Size]byte
}

// New creates an empty page with the given page_id, header fields
// initialized and no slots (free_space_offset == Size).
func New(id uint32) *Page {
	p := &Page{id: id}
	p.setUint32(offPageID, id)
	p.setUint16(offSlotCount, 0)
	p.setUint16(offFreeSpace, Size)
	return p
}

func (p *Page) ID() uint32 { return p.id }

func (p *Page) getUint16(off int) uint16 { return binary.LittleEndian.Uint16(p.buf[off:]) }
func (p *Page) getUint32(off int) uint32 { return binary.LittleEndian.Uint32(p.buf[off:]) }
func (p *Page) setUint16(off int, v uint16) { binary.LittleEndian.PutUint16(p.buf[off:], v) }
func (p *Page) setUint32(off int, v uint32) { binary.LittleEndian.PutUint32(p.buf[off:], v) }

func (p *Page) slotCount() int      { return int(p.getUint16(offSlotCount)) }
func (p *Page) freeSpaceOffset() int { return int(p.getUint16(offFreeSpace)) }
func (p *Page) slotDirEnd() int     { return headerSize + p.slotCount()*slotEntrySize }

func (p *Page) slotOffset(i int) int { return headerSize + i*slotEntrySize }

func (p *Page) slotEntry(i int) (recOff, recLen int) {
	base := p.slotOffset(i)
	return int(p.getUint16(base)), int(p.getUint16(base + 2))
}

func (p *Page) setSlotEntry(i, recOff, recLen int) {
	base := p.slotOffset(i)
	p.setUint16(base, uint16(recOff))
	p.setUint16(base+2, uint16(recLen))
}

// SlotCount returns the number of slot entries, including tombstones.
func (p *Page) SlotCount() int { return p.slotCount() }

// Insert appends record at the high end of free space and a new slot entry
// at the low end (spec §4.5). Returns the new slot_id, or ErrPageFull.
func (p *Page) Insert(record []byte) (uint16, error) {
	newSlotDirEnd := p.slotDirEnd() + slotEntrySize
	needed := len(record)
	if newSlotDirEnd+needed > p.freeSpaceOffset() {
		return 0, ErrPageFull
	}

	newFree := p.freeSpaceOffset() - needed
	copy(p.buf[newFree:newFree+needed], record)
	p.setUint16(offFreeSpace, uint16(newFree))

	slotID := p.slotCount()
	p.setUint16(offSlotCount, uint16(slotID+1))
	p.setSlotEntry(slotID, newFree, needed)

	return uint16(slotID), nil
}

// Read returns the bytes stored at slotID, or ErrNotFound if the slot is
// out of range or tombstoned (length == 0).
func (p *Page) Read(slotID uint16) ([]byte, error) {
	if int(slotID) >= p.slotCount() {
		return nil, ErrNotFound
	}
	off, length := p.slotEntry(int(slotID))
	if length == 0 {
		return nil, ErrNotFound
	}
	out := make([]byte, length)
	copy(out, p.buf[off:off+length])
	return out, nil
}

// Delete marks slotID's length as 0, tombstoning it. Physical space is not
// reclaimed (spec §4.5); idempotent if already tombstoned or out of range.
func (p *Page) Delete(slotID uint16) {
	if int(slotID) >= p.slotCount() {
		return
	}
	off, _ := p.slotEntry(int(slotID))
	p.setSlotEntry(int(slotID), off, 0)
}

// IsTombstone reports whether slotID names a deleted (or never-written)
// slot.
func (p *Page) IsTombstone(slotID uint16) bool {
	if int(slotID) >= p.slotCount() {
		return true
	}
	_, length := p.slotEntry(int(slotID))
	return length == 0
}

// Compact rewrites the page in place, dropping every tombstoned slot and
// repacking live records. Surviving records are reassigned slot IDs in
// their original storage order, so RIDs referencing this page are only
// stable across a Compact call if no tombstones preceded them; the
// storage engine only compacts a page immediately before retrying an
// insert into it, never while other code holds a RID into that page.
func (p *Page) Compact() {
	type live struct {
		data []byte
	}
	n := p.slotCount()
	kept := make([]live, 0, n)
	for i := 0; i < n; i++ {
		off, length := p.slotEntry(i)
		if length == 0 {
			continue
		}
		data := make([]byte, length)
		copy(data, p.buf[off:off+length])
		kept = append(kept, live{data: data})
	}

	// zero the record-data region before repacking
	for i := headerSize; i < Size; i++ {
		p.buf[i] = 0
	}
	p.setUint16(offSlotCount, 0)
	p.setUint16(offFreeSpace, Size)

	for _, rec := range kept {
		// Compact never fails: the records already fit in this page.
		_, _ = p.Insert(rec.data)
	}
}

// LiveBytes returns the total byte length of all non-tombstoned records.
func (p *Page) LiveBytes() int {
	total := 0
	for i := 0; i < p.slotCount(); i++ {
		_, length := p.slotEntry(i)
		total += length
	}
	return total
}

// checksum computes the CRC-32 of bytes [12..4096), matching spec §4.5/§6.
func (p *Page) checksum() uint32 {
	return crc32.ChecksumIEEE(p.buf[headerSize:])
}

// ToBytes returns the exact 4096-byte on-disk representation, with the
// checksum field populated.
func (p *Page) ToBytes() [Size]byte {
	p.setUint32(offChecksum, p.checksum())
	return p.buf
}

// FromBytes reconstructs a Page from an exact 4096-byte buffer, verifying
// the checksum (spec §4.5). Returns PageCorrupt on mismatch.
func FromBytes(buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, errs.New(errs.PhaseStorage, errs.KindPageCorrupt, 0, 0,
			"page buffer is %d bytes, want %d", len(buf), Size)
	}
	p := &Page{}
	copy(p.buf[:], buf)
	want := binary.LittleEndian.Uint32(buf[offChecksum:])
	got := p.checksum()
	if want != got {
		return nil, errs.New(errs.PhaseStorage, errs.KindPageCorrupt, 0, 0,
			"checksum mismatch: have %08x, want %08x", got, want)
	}
	p.id = p.getUint32(offPageID)
	return p, nil
}
