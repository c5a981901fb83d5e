package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/YilianFengyue/moonsql/pkg/errs"
	"github.com/YilianFengyue/moonsql/pkg/page"
)

// FileManager maps each table to a file of page.Size-byte pages under a
// root data directory (spec §4.7). It holds no in-memory cache of page
// contents; it is the serialization boundary the buffer pool sits above.
type FileManager struct {
	root string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileManager creates a FileManager rooted at dir, creating the
// directory if it does not already exist.
func NewFileManager(dir string) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, fmt.Errorf("creating data dir %s: %w", dir, err))
	}
	return &FileManager{root: dir, files: make(map[string]*os.File)}, nil
}

func (fm *FileManager) path(table string) string {
	return filepath.Join(fm.root, table+".tbl")
}

// Root returns the data directory fm is rooted at.
func (fm *FileManager) Root() string { return fm.root }

// Open opens (creating if necessary) the backing file for table.
func (fm *FileManager) Open(table string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.openLocked(table)
}

func (fm *FileManager) openLocked(table string) error {
	if _, ok := fm.files[table]; ok {
		return nil
	}
	f, err := os.OpenFile(fm.path(table), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, fmt.Errorf("opening table file %s: %w", table, err))
	}
	fm.files[table] = f
	return nil
}

// Exists reports whether table's file already exists on disk.
func (fm *FileManager) Exists(table string) bool {
	_, err := os.Stat(fm.path(table))
	return err == nil
}

// PageCount returns the number of page.Size-byte pages currently in
// table's file.
func (fm *FileManager) PageCount(table string) (int, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if err := fm.openLocked(table); err != nil {
		return 0, err
	}
	info, err := fm.files[table].Stat()
	if err != nil {
		return 0, errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, err)
	}
	return int(info.Size() / page.Size), nil
}

// AllocatePage extends table's file by one page.Size-byte page of zero
// bytes and returns its new page_id (spec §4.7).
func (fm *FileManager) AllocatePage(table string) (uint32, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if err := fm.openLocked(table); err != nil {
		return 0, err
	}
	f := fm.files[table]
	info, err := f.Stat()
	if err != nil {
		return 0, errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, err)
	}
	pageID := uint32(info.Size() / page.Size)

	newPage := page.New(pageID)
	buf := newPage.ToBytes()
	if _, err := f.WriteAt(buf[:], int64(pageID)*page.Size); err != nil {
		return 0, errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, err)
	}
	return pageID, nil
}

// ReadPage reads the page.Size bytes for pageID from table's file.
func (fm *FileManager) ReadPage(table string, pageID uint32) ([]byte, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if err := fm.openLocked(table); err != nil {
		return nil, err
	}
	buf := make([]byte, page.Size)
	_, err := fm.files[table].ReadAt(buf, int64(pageID)*page.Size)
	if err != nil {
		return nil, errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, fmt.Errorf("reading page %d of %s: %w", pageID, table, err))
	}
	return buf, nil
}

// WritePage writes the exact page.Size-byte buf at pageID's offset in
// table's file. All reads and writes are page-aligned (spec §4.7).
func (fm *FileManager) WritePage(table string, pageID uint32, buf []byte) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if len(buf) != page.Size {
		return errs.New(errs.PhaseStorage, errs.KindIoFailure, 0, 0, "write buffer is %d bytes, want %d", len(buf), page.Size)
	}
	if err := fm.openLocked(table); err != nil {
		return err
	}
	if _, err := fm.files[table].WriteAt(buf, int64(pageID)*page.Size); err != nil {
		return errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, fmt.Errorf("writing page %d of %s: %w", pageID, table, err))
	}
	return nil
}

// Flush fsyncs table's file.
func (fm *FileManager) Flush(table string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	f, ok := fm.files[table]
	if !ok {
		return nil
	}
	if err := f.Sync(); err != nil {
		return errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, err)
	}
	return nil
}

// Close closes every open table file.
func (fm *FileManager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	for name, f := range fm.files {
		if err := f.Close(); err != nil {
			return errs.Wrap(errs.PhaseStorage, errs.KindIoFailure, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	return nil
}
