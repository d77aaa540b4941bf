// ABOUTME: Index health tracking and rebuild: fragmentation/delete-ratio thresholds trigger a bulk-load rebuild
// ABOUTME: Rebuild walks the primary tree in order and bulk-loads a fresh one at fill factor 0.85

package query

import (
	"sort"
	"time"

	"github.com/nainya/relstore/pkg/btree"
)

const (
	rebuildFillFactor     = 0.85
	fragmentationThreshold = 0.3
	deleteRatioThreshold   = 0.4
)

// Health is a point-in-time snapshot of the processor's index health
// block.
type Health struct {
	TotalOperations    uint64
	DeleteOperations   uint64
	FragmentationRatio float64
	AvgAccessTime      time.Duration
	LastRebuild        time.Time
}

// Health reports the current index health block.
func (p *Processor) Health() (Health, error) {
	frag, err := p.primary.RootFragmentation()
	if err != nil {
		return Health{}, err
	}
	return Health{
		TotalOperations:    p.totalOperations,
		DeleteOperations:   p.deleteOperations,
		FragmentationRatio: frag,
		AvgAccessTime:      p.AvgAccessTime(),
		LastRebuild:        p.lastRebuild,
	}, nil
}

// NeedsRebuild reports whether fragmentation or the delete-operation
// ratio has crossed its threshold.
func (p *Processor) NeedsRebuild() (bool, error) {
	h, err := p.Health()
	if err != nil {
		return false, err
	}
	if h.FragmentationRatio > fragmentationThreshold {
		return true, nil
	}
	if h.TotalOperations > 0 {
		ratio := float64(h.DeleteOperations) / float64(h.TotalOperations)
		if ratio > deleteRatioThreshold {
			return true, nil
		}
	}
	return false, nil
}

// Rebuild walks the primary tree in order, sorts the collected pairs
// (already sorted by the leaf chain, but re-sorted defensively), and
// bulk-loads a fresh tree at fill factor 0.85, swapping it in
// atomically and resetting the health counters.
func (p *Processor) Rebuild() error {
	entries, err := p.primary.AllInOrder()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	fresh, err := btree.BulkLoad(p.store.pool, p.store.fm, entries, rebuildFillFactor, true)
	if err != nil {
		return err
	}
	p.primary.SetRoot(fresh.RootID())

	p.totalOperations = 0
	p.deleteOperations = 0
	p.lastRebuild = time.Now()
	return nil
}
