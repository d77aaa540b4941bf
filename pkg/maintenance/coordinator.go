// ABOUTME: Maintenance coordinator: scores named indexes, priority-queues rebuilds, drains the queue on demand
// ABOUTME: Rebuild mechanics live with the index (B+ tree bulk-load, hash resize); the coordinator only schedules

package maintenance

import (
	"container/heap"
	"sync"
	"time"

	"github.com/nainya/relstore/internal/metrics"
)

const (
	fragmentationThreshold = 0.3
	deleteOpsNorm          = 10000.0
	deleteRatioThreshold   = 0.4
	avgAccessNorm          = 200 * time.Millisecond
)

// RebuildFunc performs the actual rebuild mechanics for one named
// index: a B+ tree collects, sorts and bulk-loads; a hash index
// resizes to 2x its entry count.
type RebuildFunc func() error

// Health is the coordinator's per-index scoring snapshot.
type Health struct {
	Fragmentation    float64
	DeleteOps        uint64
	AvgAccess        time.Duration
	LastMaintenance  time.Time
	NeedsMaintenance bool
}

// Coordinator holds a max-heap of pending rebuild tasks and a health
// map scored from readings callers push in via Schedule.
type Coordinator struct {
	mu         sync.Mutex
	health     map[string]*Health
	rebuilders map[string]RebuildFunc
	tasks      taskHeap
	queued     map[string]*task

	metrics *metrics.Metrics
}

// SetMetrics attaches a metrics sink; schedule/cancel/perform activity
// before this is called is simply not reported.
func (c *Coordinator) SetMetrics(m *metrics.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// reportPendingLocked pushes the current queue depth to the metrics
// sink, if one is attached. Caller must hold c.mu.
func (c *Coordinator) reportPendingLocked() {
	if c.metrics != nil {
		c.metrics.SetMaintenancePending(len(c.tasks))
	}
}

// New builds an empty coordinator.
func New() *Coordinator {
	return &Coordinator{
		health:     make(map[string]*Health),
		rebuilders: make(map[string]RebuildFunc),
		queued:     make(map[string]*task),
	}
}

// Register associates a name with the function that performs its
// rebuild, so PerformScheduled has something to call once a task's
// priority surfaces it.
func (c *Coordinator) Register(name string, rebuild RebuildFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebuilders[name] = rebuild
}

func priority(h *Health) float64 {
	deleteComponent := float64(h.DeleteOps) / deleteOpsNorm
	if deleteComponent > 1 {
		deleteComponent = 1
	}
	accessComponent := float64(h.AvgAccess) / float64(avgAccessNorm)
	if accessComponent > 1 {
		accessComponent = 1
	}
	return 0.4*h.Fragmentation + 0.3*deleteComponent + 0.3*accessComponent
}

func needsMaintenance(h *Health) bool {
	if h.Fragmentation > fragmentationThreshold {
		return true
	}
	deleteComponent := float64(h.DeleteOps) / deleteOpsNorm
	if deleteComponent > 1 {
		deleteComponent = 1
	}
	return deleteComponent > deleteRatioThreshold
}

// Schedule records a fresh health reading for name and enqueues (or
// re-prioritizes, if already queued) a rebuild task when the reading
// crosses the maintenance threshold.
func (c *Coordinator) Schedule(name string, fragmentation float64, deleteOps uint64, avgAccess time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.health[name]
	if !ok {
		h = &Health{}
		c.health[name] = h
	}
	h.Fragmentation = fragmentation
	h.DeleteOps = deleteOps
	h.AvgAccess = avgAccess
	h.NeedsMaintenance = needsMaintenance(h)

	if !h.NeedsMaintenance {
		return
	}

	p := priority(h)
	if t, already := c.queued[name]; already {
		t.priority = p
		heap.Fix(&c.tasks, t.index)
		c.reportPendingLocked()
		return
	}
	t := &task{name: name, priority: p}
	heap.Push(&c.tasks, t)
	c.queued[name] = t
	c.reportPendingLocked()
}

// Cancel removes name's pending task, if any, without touching its
// health reading.
func (c *Coordinator) Cancel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.queued[name]
	if !ok {
		return
	}
	heap.Remove(&c.tasks, t.index)
	delete(c.queued, name)
	c.reportPendingLocked()
}

// Health returns a copy of name's current health reading.
func (c *Coordinator) Health(name string) (Health, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.health[name]
	if !ok {
		return Health{}, false
	}
	return *h, true
}

// Pending reports how many tasks are currently queued.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// PerformScheduled drains the heap highest-priority first, re-checking
// each task's freshness (a health reading may have dropped back below
// threshold since it was queued) before invoking its RebuildFunc. It
// returns the names actually rebuilt, in the order performed, and
// stops at the first rebuild error.
func (c *Coordinator) PerformScheduled() ([]string, error) {
	var done []string
	for {
		c.mu.Lock()
		if c.tasks.Len() == 0 {
			c.mu.Unlock()
			break
		}
		t := heap.Pop(&c.tasks).(*task)
		delete(c.queued, t.name)
		c.reportPendingLocked()
		h, ok := c.health[t.name]
		stillNeeded := ok && h.NeedsMaintenance
		rebuild, registered := c.rebuilders[t.name]
		c.mu.Unlock()

		if !stillNeeded {
			continue
		}
		if !registered {
			return done, ErrNotRegistered
		}
		start := time.Now()
		err := rebuild()
		elapsed := time.Since(start)
		if err != nil {
			if c.metrics != nil {
				c.metrics.RecordMaintenanceRun(t.name, "failure", elapsed)
			}
			return done, err
		}
		if c.metrics != nil {
			c.metrics.RecordMaintenanceRun(t.name, "success", elapsed)
		}

		c.mu.Lock()
		if h, ok := c.health[t.name]; ok {
			h.LastMaintenance = time.Now()
			h.Fragmentation = 0
			h.DeleteOps = 0
			h.NeedsMaintenance = false
		}
		c.mu.Unlock()

		done = append(done, t.name)
	}
	return done, nil
}
