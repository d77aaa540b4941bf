// ABOUTME: Record storage on data pages: allocates and appends, backing the query processor's indexes
// ABOUTME: Keeps one open data page at a time and rolls to a fresh one once it fills

package query

import (
	"github.com/nainya/relstore/pkg/buffer"
	"github.com/nainya/relstore/pkg/file"
	"github.com/nainya/relstore/pkg/page"
	"github.com/nainya/relstore/pkg/record"
)

// store owns data-page allocation for record bodies, independent of
// whatever index (B+ tree, hash) is tracking the resulting pointers.
type store struct {
	pool    *buffer.Pool
	fm      *file.Manager
	current int
}

func newStore(pool *buffer.Pool, fm *file.Manager) *store {
	return &store{pool: pool, fm: fm, current: page.NoPage}
}

// put writes rec's serialized body to the open data page, rolling to
// a freshly allocated one if there is no room, and returns its
// pointer.
func (s *store) put(rec record.Record) (record.Pointer, error) {
	body := rec.Serialize()

	if s.current != page.NoPage {
		pg, err := s.pool.GetPage(s.current)
		if err != nil {
			return record.Invalid, err
		}
		s.pool.PinPage(s.current)
		slot, ok := pg.AddRecord(rec.ID, body)
		s.pool.UnpinPage(s.current)
		if ok {
			return record.Pointer{PageID: s.current, Slot: slot}, nil
		}
	}

	id, err := s.fm.AllocateNewPage(page.TypeData)
	if err != nil {
		return record.Invalid, err
	}
	pg, err := s.pool.GetPage(id)
	if err != nil {
		return record.Invalid, err
	}
	s.pool.PinPage(id)
	slot, ok := pg.AddRecord(rec.ID, body)
	s.pool.UnpinPage(id)
	if !ok {
		return record.Invalid, ErrRecordTooLarge
	}
	s.current = id
	return record.Pointer{PageID: id, Slot: slot}, nil
}

// get reads the record at ptr.
func (s *store) get(ptr record.Pointer) (record.Record, error) {
	pg, err := s.pool.GetPage(ptr.PageID)
	if err != nil {
		return record.Record{}, err
	}
	s.pool.PinPage(ptr.PageID)
	defer s.pool.UnpinPage(ptr.PageID)

	id, body, ok := pg.GetRecord(ptr.Slot)
	if !ok {
		return record.Record{}, ErrRecordNotFound
	}
	return record.Deserialize(id, body), nil
}

// remove deletes the record at ptr, freeing its slot for reuse.
func (s *store) remove(ptr record.Pointer) error {
	pg, err := s.pool.GetPage(ptr.PageID)
	if err != nil {
		return err
	}
	s.pool.PinPage(ptr.PageID)
	defer s.pool.UnpinPage(ptr.PageID)
	if !pg.RemoveRecord(ptr.Slot) {
		return ErrRecordNotFound
	}
	return nil
}
