// ABOUTME: FileManager owns the single backing file: page read/write, on-disk free list, metadata
// ABOUTME: Page-level writes are single positioned writes, aligned so a torn write affects at most one page

package file

import (
	"fmt"
	"os"
	"sync"

	"github.com/nainya/relstore/pkg/page"
)

const (
	// MetadataSize is the fixed size of the file-level metadata block at
	// offset 0.
	MetadataSize = 64

	metaOffTotalPages    = 0
	metaOffFreePageStart = 8
	metaOffNumTables     = 16
)

// Manager owns a single backing file and translates page ids to file
// offsets.
type Manager struct {
	mu   sync.Mutex
	path string
	fd   *os.File

	totalPages    int
	freePageStart int
	numTables     int
}

// Create initialises a new backing file, failing if one already exists
// at path.
func Create(path string) (*Manager, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: create %s: %w", path, err)
	}
	m := &Manager{path: path, fd: fd, freePageStart: page.NoPage}
	if err := m.UpdateMetadata(); err != nil {
		fd.Close()
		return nil, err
	}
	if err := fd.Sync(); err != nil {
		fd.Close()
		return nil, fmt.Errorf("file: sync metadata for %s: %w", path, err)
	}
	return m, nil
}

// Open opens an existing backing file and loads its metadata block.
func Open(path string) (*Manager, error) {
	fd, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", path, err)
	}
	m := &Manager{path: path, fd: fd}
	if err := m.LoadMetadata(); err != nil {
		fd.Close()
		return nil, err
	}
	return m, nil
}

// Close releases the backing file descriptor.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fd.Close()
}

func pageOffset(id int) int64 {
	return int64(MetadataSize) + int64(id)*int64(page.Size)
}

// WritePage writes exactly page.Size bytes at the page's offset.
func (m *Manager) WritePage(p *page.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writePageLocked(p)
}

func (m *Manager) writePageLocked(p *page.Page) error {
	buf := p.Encode()
	if _, err := m.fd.WriteAt(buf, pageOffset(p.ID())); err != nil {
		return fmt.Errorf("%w: write page %d: %v", ErrIO, p.ID(), err)
	}
	return nil
}

// ReadPage reads and decodes the page at id. It fails if the offset is
// past end-of-file, and reports corruption if the checksum does not
// verify.
func (m *Manager) ReadPage(id int) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.fd.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat: %v", ErrIO, err)
	}
	offset := pageOffset(id)
	if offset+int64(page.Size) > info.Size() {
		return nil, fmt.Errorf("%w: page %d past end-of-file", ErrIO, id)
	}

	buf := make([]byte, page.Size)
	if _, err := m.fd.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("%w: read page %d: %v", ErrIO, id, err)
	}
	p, ok := page.Decode(buf)
	if !ok {
		return nil, fmt.Errorf("%w: page %d", ErrCorrupted, id)
	}
	return p, nil
}

// AllocateNewPage returns the head of the on-disk free-page list if one
// exists, otherwise extends the file by one page. Either way file
// metadata is updated in place before returning.
func (m *Manager) AllocateNewPage(typ page.Type) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.freePageStart != page.NoPage {
		id := m.freePageStart
		freed, err := m.readPageLocked(id)
		if err != nil {
			return 0, err
		}
		m.freePageStart = freed.NextPage()
		if err := m.updateMetadataLocked(); err != nil {
			return 0, err
		}
		p := page.New(id, typ)
		if err := m.writePageLocked(p); err != nil {
			return 0, err
		}
		return id, nil
	}

	id := m.totalPages
	m.totalPages++
	p := page.New(id, typ)
	if err := m.writePageLocked(p); err != nil {
		m.totalPages--
		return 0, err
	}
	if err := m.updateMetadataLocked(); err != nil {
		return 0, err
	}
	return id, nil
}

// FreePage zeroes the page body on disk and prepends its id to the
// on-disk free list.
func (m *Manager) FreePage(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	freed := page.New(id, page.TypeFree)
	freed.SetNextPage(m.freePageStart)
	if err := m.writePageLocked(freed); err != nil {
		return err
	}
	m.freePageStart = id
	return m.updateMetadataLocked()
}

func (m *Manager) readPageLocked(id int) (*page.Page, error) {
	buf := make([]byte, page.Size)
	if _, err := m.fd.ReadAt(buf, pageOffset(id)); err != nil {
		return nil, fmt.Errorf("%w: read page %d: %v", ErrIO, id, err)
	}
	p, ok := page.Decode(buf)
	if !ok {
		return nil, fmt.Errorf("%w: page %d", ErrCorrupted, id)
	}
	return p, nil
}

// TotalPages returns the number of pages the file has ever been
// extended to (including freed ones).
func (m *Manager) TotalPages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalPages
}

// NumTables and SetNumTables persist the table-count metadata field on
// behalf of the (external, non-goal) schema layer.
func (m *Manager) NumTables() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numTables
}

func (m *Manager) SetNumTables(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.numTables = n
	return m.updateMetadataLocked()
}

// UpdateMetadata persists the metadata block at offset 0.
func (m *Manager) UpdateMetadata() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateMetadataLocked()
}

func (m *Manager) updateMetadataLocked() error {
	buf := make([]byte, MetadataSize)
	putInt64(buf[metaOffTotalPages:], int64(m.totalPages))
	putInt64(buf[metaOffFreePageStart:], int64(m.freePageStart))
	putInt64(buf[metaOffNumTables:], int64(m.numTables))
	if _, err := m.fd.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: write metadata: %v", ErrIO, err)
	}
	return nil
}

// LoadMetadata reloads the metadata block from offset 0, correctly
// restoring totalPages so that a reopened file continues allocating
// past its previous high-water mark instead of overwriting live pages.
func (m *Manager) LoadMetadata() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, MetadataSize)
	if _, err := m.fd.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("%w: read metadata: %v", ErrIO, err)
	}
	m.totalPages = int(getInt64(buf[metaOffTotalPages:]))
	m.freePageStart = int(getInt64(buf[metaOffFreePageStart:]))
	m.numTables = int(getInt64(buf[metaOffNumTables:]))
	return nil
}

func putInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getInt64(b []byte) int64 {
	var v int64
	for i := 0; i < 8; i++ {
		v |= int64(b[i]) << (8 * i)
	}
	return v
}
