// ABOUTME: Extensible hash secondary index: djb2 buckets with overflow-page chains, load-factor resizing
// ABOUTME: Bucket arrays live in-memory on the Index; persisting the catalog is the schema layer's job

package hashindex

import (
	"encoding/binary"
	"time"

	"github.com/nainya/relstore/pkg/buffer"
	"github.com/nainya/relstore/pkg/file"
	"github.com/nainya/relstore/pkg/page"
	"github.com/nainya/relstore/pkg/record"
)

const initialBucketCount = 16

// Index is an extensible hash index keyed by string, built on a
// buffer pool and file manager.
type Index struct {
	pool    *buffer.Pool
	fm      *file.Manager
	buckets []int // home page id per bucket
	entries int

	stats Stats
}

// New allocates a fresh index with the initial bucket count.
func New(pool *buffer.Pool, fm *file.Manager) (*Index, error) {
	idx := &Index{pool: pool, fm: fm}
	buckets, err := allocateBuckets(fm, initialBucketCount)
	if err != nil {
		return nil, err
	}
	idx.buckets = buckets
	return idx, nil
}

func allocateBuckets(fm *file.Manager, n int) ([]int, error) {
	buckets := make([]int, n)
	for i := range buckets {
		id, err := fm.AllocateNewPage(page.TypeData)
		if err != nil {
			return nil, err
		}
		buckets[i] = id
	}
	return buckets, nil
}

// djb2 hashes key the way the spec requires: h=5381, h=(h<<5)+h+c per byte.
func djb2(key string) uint64 {
	var h uint64 = 5381
	for i := 0; i < len(key); i++ {
		h = ((h << 5) + h) + uint64(key[i])
	}
	return h
}

func (i *Index) bucketIndex(h uint64) int {
	return int(h % uint64(len(i.buckets)))
}

// BucketCount returns the current number of buckets.
func (i *Index) BucketCount() int { return len(i.buckets) }

// EntryCount returns the number of live entries.
func (i *Index) EntryCount() int { return i.entries }

// LoadFactor is entries / bucket count.
func (i *Index) LoadFactor() float64 {
	return float64(i.entries) / float64(len(i.buckets))
}

// pinSet mirrors pkg/btree's operation-scoped pin tracking.
type pinSet struct {
	pool *buffer.Pool
	ids  map[int]bool
}

func newPinSet(pool *buffer.Pool) *pinSet {
	return &pinSet{pool: pool, ids: make(map[int]bool)}
}

func (s *pinSet) get(id int) (*page.Page, error) {
	pg, err := s.pool.GetPage(id)
	if err != nil {
		return nil, err
	}
	if !s.ids[id] {
		s.pool.PinPage(id)
		s.ids[id] = true
	}
	return pg, nil
}

func (s *pinSet) release() {
	for id := range s.ids {
		s.pool.UnpinPage(id)
	}
}

type entry struct {
	key  string
	ptr  record.Pointer
	hash uint64
}

func encodeEntry(e entry) []byte {
	body := make([]byte, 2+len(e.key)+4+4+8)
	binary.LittleEndian.PutUint16(body, uint16(len(e.key)))
	copy(body[2:], e.key)
	pos := 2 + len(e.key)
	binary.LittleEndian.PutUint32(body[pos:], uint32(int32(e.ptr.PageID)))
	binary.LittleEndian.PutUint32(body[pos+4:], uint32(int32(e.ptr.Slot)))
	binary.LittleEndian.PutUint64(body[pos+8:], e.hash)
	return body
}

func decodeEntry(body []byte) entry {
	keyLen := int(binary.LittleEndian.Uint16(body))
	key := string(body[2 : 2+keyLen])
	pos := 2 + keyLen
	return entry{
		key: key,
		ptr: record.Pointer{
			PageID: int(int32(binary.LittleEndian.Uint32(body[pos:]))),
			Slot:   int(int32(binary.LittleEndian.Uint32(body[pos+4:]))),
		},
		hash: binary.LittleEndian.Uint64(body[pos+8:]),
	}
}

// Insert adds (key, ptr) to the index, chaining into an overflow page
// when the home page has no room, then rechecks the load factor.
func (i *Index) Insert(key string, ptr record.Pointer) error {
	ps := newPinSet(i.pool)
	defer ps.release()

	h := djb2(key)
	home := i.buckets[i.bucketIndex(h)]
	if err := i.insertInto(ps, home, entry{key: key, ptr: ptr, hash: h}); err != nil {
		return err
	}
	i.entries++
	i.stats.RecordInsert()
	return i.maybeResize()
}

func (i *Index) insertInto(ps *pinSet, homeID int, e entry) error {
	body := encodeEntry(e)
	pageID := homeID
	for {
		pg, err := ps.get(pageID)
		if err != nil {
			return err
		}
		if _, ok := pg.AddRecord(int(int32(e.hash)), body); ok {
			return nil
		}
		next := pg.NextPage()
		if next == page.NoPage {
			overflowID, err := i.fm.AllocateNewPage(page.TypeOverflow)
			if err != nil {
				return err
			}
			overflow, err := ps.get(overflowID)
			if err != nil {
				return err
			}
			if _, ok := overflow.AddRecord(int(int32(e.hash)), body); !ok {
				return ErrEntryTooLarge
			}
			pg.SetNextPage(overflowID)
			return nil
		}
		pageID = next
	}
}

// Find returns every record pointer stored under key: the home page
// and its full overflow chain are scanned, and any entry whose stored
// hash and key both match is returned.
func (i *Index) Find(key string) ([]record.Pointer, error) {
	ps := newPinSet(i.pool)
	defer ps.release()

	i.stats.RecordFind()
	h := djb2(key)
	home := i.buckets[i.bucketIndex(h)]

	var out []record.Pointer
	pageID := home
	for pageID != page.NoPage {
		pg, err := ps.get(pageID)
		if err != nil {
			return nil, err
		}
		pg.Each(func(_, _ int, body []byte) {
			e := decodeEntry(body)
			if e.hash == h && e.key == key {
				out = append(out, e.ptr)
			}
		})
		pageID = pg.NextPage()
	}
	return out, nil
}

// Remove deletes the first entry matching key, h and ptr exactly,
// reporting false if none matched.
func (i *Index) Remove(key string, ptr record.Pointer) (bool, error) {
	ps := newPinSet(i.pool)
	defer ps.release()

	h := djb2(key)
	home := i.buckets[i.bucketIndex(h)]

	pageID := home
	for pageID != page.NoPage {
		pg, err := ps.get(pageID)
		if err != nil {
			return false, err
		}
		found := -1
		pg.Each(func(slot, _ int, body []byte) {
			if found != -1 {
				return
			}
			e := decodeEntry(body)
			if e.hash == h && e.key == key && e.ptr == ptr {
				found = slot
			}
		})
		if found != -1 {
			pg.RemoveRecord(found)
			i.entries--
			i.stats.RecordDelete()
			if err := i.maybeResize(); err != nil {
				return true, err
			}
			return true, nil
		}
		pageID = pg.NextPage()
	}
	return false, nil
}

// maybeResize grows the bucket array past load factor 0.75 and shrinks
// it below 0.25 (never under the initial bucket count).
func (i *Index) maybeResize() error {
	lf := i.LoadFactor()
	if lf > 0.75 {
		return i.resize(len(i.buckets) * 2)
	}
	if lf < 0.25 && len(i.buckets) > initialBucketCount {
		target := len(i.buckets) / 2
		if target < initialBucketCount {
			target = initialBucketCount
		}
		return i.resize(target)
	}
	return nil
}

// Resize forces a resize to newCount buckets, raised to the initial
// count of 16 when smaller; exported for the maintenance coordinator's
// scheduled rebuild, which resizes to 2*entry_count regardless of the
// automatic thresholds.
func (i *Index) Resize(newCount int) error {
	if newCount < initialBucketCount {
		newCount = initialBucketCount
	}
	return i.resize(newCount)
}

func (i *Index) resize(newCount int) error {
	old := i.buckets
	var all []entry
	for _, homeID := range old {
		pageID := homeID
		for pageID != page.NoPage {
			ps := newPinSet(i.pool)
			pg, err := ps.get(pageID)
			if err != nil {
				ps.release()
				return err
			}
			pg.Each(func(_, _ int, body []byte) {
				all = append(all, decodeEntry(body))
			})
			pageID = pg.NextPage()
			ps.release()
		}
	}

	newBuckets, err := allocateBuckets(i.fm, newCount)
	if err != nil {
		return err
	}
	i.buckets = newBuckets

	for _, e := range all {
		idx := int(e.hash % uint64(newCount))
		ps := newPinSet(i.pool)
		err := i.insertInto(ps, newBuckets[idx], e)
		ps.release()
		if err != nil {
			return err
		}
	}

	for _, homeID := range old {
		pageID := homeID
		for pageID != page.NoPage {
			pg, err := i.pool.GetPage(pageID)
			if err != nil {
				return err
			}
			next := pg.NextPage()
			if err := i.fm.FreePage(pageID); err != nil {
				return err
			}
			pageID = next
		}
	}
	i.stats.RecordRebuild(time.Now())
	return nil
}

// Stats returns the index's running operation counters.
func (i *Index) Stats() Stats { return i.stats }
