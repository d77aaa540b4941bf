// ABOUTME: BufferPool caches pages by id with pin counts and LRU eviction of unpinned pages
// ABOUTME: LRU ordering follows the teacher's container/list-based pager, extended with pinning

package buffer

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/nainya/relstore/internal/logger"
	"github.com/nainya/relstore/internal/metrics"
	"github.com/nainya/relstore/pkg/file"
	"github.com/nainya/relstore/pkg/page"
)

type entry struct {
	id     int
	page   *page.Page
	pinned int
}

// Pool is a bounded page cache in front of a file.Manager. All page
// access goes through GetPage, which loads on miss and evicts an
// unpinned LRU victim when the pool is full.
type Pool struct {
	mu       sync.Mutex
	fm       *file.Manager
	capacity int

	resident map[int]*list.Element // page id -> element in usage list
	usage    *list.List            // front = MRU, back = LRU

	hits    uint64
	misses  uint64
	evicted uint64

	metrics *metrics.Metrics
	dbLog   *logger.Logger
}

// SetMetrics attaches a metrics sink; pages hit/missed/evicted before
// this is called are simply not reported.
func (p *Pool) SetMetrics(m *metrics.Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

// SetLogger attaches a buffer-scoped component logger; page faults
// before this is called are simply not logged.
func (p *Pool) SetLogger(l *logger.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dbLog = l.DbLogger("buffer")
}

// reportLocked pushes the current hit ratio and dirty-page count to the
// metrics sink, if one is attached. Caller must hold p.mu.
func (p *Pool) reportLocked() {
	if p.metrics == nil {
		return
	}
	ratio := p.ratioLocked()
	dirty := 0
	for _, el := range p.resident {
		if el.Value.(*entry).page.Dirty() {
			dirty++
		}
	}
	p.metrics.RecordBufferStats(ratio, dirty)
}

// New builds a pool of the given capacity in front of fm.
func New(fm *file.Manager, capacity int) *Pool {
	return &Pool{
		fm:       fm,
		capacity: capacity,
		resident: make(map[int]*list.Element),
		usage:    list.New(),
	}
}

// GetPage returns the resident page for id, loading it from the file
// manager on a cache miss and evicting an LRU unpinned page first if
// the pool is full.
func (p *Pool) GetPage(id int) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.resident[id]; ok {
		p.usage.MoveToFront(el)
		p.hits++
		if p.metrics != nil {
			p.metrics.BufferHitsTotal.Inc()
		}
		p.reportLocked()
		return el.Value.(*entry).page, nil
	}
	p.misses++
	if p.metrics != nil {
		p.metrics.BufferMissesTotal.Inc()
	}

	evicted := false
	if len(p.resident) >= p.capacity {
		if err := p.evictLocked(); err != nil {
			return nil, err
		}
		evicted = true
	}

	pg, err := p.fm.ReadPage(id)
	if err != nil {
		return nil, err
	}
	if pg.IsCorrupted() {
		return nil, fmt.Errorf("%w: page %d", ErrPageCorrupted, id)
	}
	el := p.usage.PushFront(&entry{id: id, page: pg})
	p.resident[id] = el
	if p.dbLog != nil {
		p.dbLog.LogPageFault(id, evicted)
	}
	p.reportLocked()
	return pg, nil
}

// PinPage increments id's pin count. Pinning is idempotent-reentrant:
// two pins require two unpins.
func (p *Pool) PinPage(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.resident[id]; ok {
		el.Value.(*entry).pinned++
	}
}

// UnpinPage decrements id's pin count, saturating at zero.
func (p *Pool) UnpinPage(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.resident[id]; ok {
		e := el.Value.(*entry)
		if e.pinned > 0 {
			e.pinned--
		}
	}
}

// evictLocked scans from the LRU end and evicts the first unpinned
// page, writing it back first if dirty. Caller must hold p.mu.
func (p *Pool) evictLocked() error {
	for el := p.usage.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if e.pinned > 0 {
			continue
		}
		if e.page.Dirty() {
			if err := p.fm.WritePage(e.page); err != nil {
				return fmt.Errorf("buffer: flush victim page %d: %w", e.id, err)
			}
			e.page.SetDirty(false)
		}
		p.usage.Remove(el)
		delete(p.resident, e.id)
		p.evicted++
		if p.metrics != nil {
			p.metrics.BufferEvictionsTotal.Inc()
		}
		return nil
	}
	return ErrBufferExhausted
}

// FlushPage force-writes a resident page through the file manager,
// leaving it resident and clean.
func (p *Pool) FlushPage(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.resident[id]
	if !ok {
		return fmt.Errorf("%w: page %d not resident", ErrNotResident, id)
	}
	e := el.Value.(*entry)
	if err := p.fm.WritePage(e.page); err != nil {
		return err
	}
	e.page.SetDirty(false)
	return nil
}

// HasSpaceForNewPage reports whether the pool can accept another
// resident page without first evicting.
func (p *Pool) HasSpaceForNewPage() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resident) < p.capacity
}

// Size returns the number of currently resident pages.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resident)
}

// Stats returns cumulative hit/miss/eviction counters for metrics
// reporting.
func (p *Pool) Stats() (hits, misses, evictions uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses, p.evicted
}

// HitRatio is the cache-hit-ratio counter pair the buffer manager this
// package is grounded on tracks alongside its write-back count.
func (p *Pool) HitRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ratioLocked()
}

// ratioLocked computes the current hit ratio. Caller must hold p.mu.
func (p *Pool) ratioLocked() float64 {
	total := p.hits + p.misses
	if total == 0 {
		return 0
	}
	return float64(p.hits) / float64(total)
}
