// ABOUTME: Query processor: insert/delete/select/update/range_select across the primary and secondary indexes
// ABOUTME: Tracks per-op latency and an index health block that drives maintenance rebuilds

package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nainya/relstore/internal/logger"
	"github.com/nainya/relstore/internal/metrics"
	"github.com/nainya/relstore/pkg/btree"
	"github.com/nainya/relstore/pkg/buffer"
	"github.com/nainya/relstore/pkg/file"
	"github.com/nainya/relstore/pkg/hashindex"
	"github.com/nainya/relstore/pkg/record"
)

// IndexKind names which index family a select operator should use.
type IndexKind int

const (
	// IndexEither means the point lookup can be served by either the
	// hash index or the B+ tree; the processor prefers the hash index
	// when one is attached.
	IndexEither IndexKind = iota
	// IndexBTreeOnly means only the B+ tree's ordering can serve the
	// operator (any range or prefix comparison).
	IndexBTreeOnly
)

// ChooseIndex reports which index family serves a select operator,
// matching the source engine's IndexSelector: equality can use
// either index, every ordered comparison needs the B+ tree.
func ChooseIndex(op string) IndexKind {
	if op == "=" {
		return IndexEither
	}
	return IndexBTreeOnly
}

// Processor dispatches insert/delete/select/update/range_select across
// a B+ tree primary index and an optional hash secondary index, both
// backed by the same record store.
type Processor struct {
	store     *store
	primary   *btree.Tree
	secondary *hashindex.Index

	totalQueries    uint64
	totalAccessTime time.Duration

	totalOperations  uint64
	deleteOperations uint64
	lastRebuild      time.Time

	metrics *metrics.Metrics
	dbLog   *logger.Logger
}

// SetMetrics attaches a metrics sink; operations performed before this
// is called are simply not reported.
func (p *Processor) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// SetLogger attaches a query-scoped component logger; operations
// performed before this is called are simply not logged.
func (p *Processor) SetLogger(l *logger.Logger) {
	p.dbLog = l.DbLogger("query")
}

// recordIndexOp reports one operation against a named index family
// (btree or hash) to the metrics sink, if attached.
func (p *Processor) recordIndexOp(index, operation string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordIndexOperation(index, operation, time.Since(start))
}

// New builds a processor with a fresh primary B+ tree and secondary
// hash index over pool/fm.
func New(pool *buffer.Pool, fm *file.Manager) (*Processor, error) {
	secondary, err := hashindex.New(pool, fm)
	if err != nil {
		return nil, err
	}
	return &Processor{
		store:     newStore(pool, fm),
		primary:   btree.New(pool, fm),
		secondary: secondary,
	}, nil
}

// timeit runs fn under the named operation, attributing its wall time
// to the processor's access-time counters and to the query-operation
// metrics and logs, regardless of outcome. recordCount is evaluated
// after fn returns, so it may close over fn's results.
func (p *Processor) timeit(operation string, recordCount func() int, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	p.totalQueries++
	p.totalAccessTime += elapsed
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordQueryOperation(operation, status, elapsed)
	}
	if p.dbLog != nil {
		p.dbLog.LogDbOperation(operation, elapsed, recordCount(), err)
	}
	return err
}

// Insert writes rec to an allocated page and indexes (key, ptr) in
// both the primary and secondary indexes.
func (p *Processor) Insert(key int, rec record.Record) (record.Pointer, error) {
	var ptr record.Pointer
	err := p.timeit("insert", func() int { return 1 }, func() error {
		var err error
		ptr, err = p.insertAt(key, rec)
		return err
	})
	return ptr, err
}

func (p *Processor) insertAt(key int, rec record.Record) (record.Pointer, error) {
	ptr, err := p.store.put(rec)
	if err != nil {
		return record.Invalid, err
	}
	start := time.Now()
	if err := p.primary.Insert(key, ptr); err != nil {
		return record.Invalid, err
	}
	p.recordIndexOp("btree", "insert", start)
	if p.secondary != nil {
		start = time.Now()
		if err := p.secondary.Insert(strconv.Itoa(key), ptr); err != nil {
			return record.Invalid, err
		}
		p.recordIndexOp("hash", "insert", start)
	}
	p.totalOperations++
	return ptr, nil
}

// Delete resolves key via the primary index and removes the record
// and both index entries, reporting false if key was absent.
func (p *Processor) Delete(key int) (bool, error) {
	var deleted bool
	err := p.timeit("delete", func() int {
		if deleted {
			return 1
		}
		return 0
	}, func() error {
		ptr, err := p.primary.Find(key)
		if err != nil {
			return err
		}
		if !ptr.IsValid() {
			return nil
		}
		start := time.Now()
		ok, err := p.primary.Delete(key)
		if err != nil || !ok {
			return err
		}
		p.recordIndexOp("btree", "delete", start)
		if p.secondary != nil {
			start = time.Now()
			if _, err := p.secondary.Remove(strconv.Itoa(key), ptr); err != nil {
				return err
			}
			p.recordIndexOp("hash", "delete", start)
		}
		if err := p.store.remove(ptr); err != nil {
			return err
		}
		p.totalOperations++
		p.deleteOperations++
		deleted = true
		return nil
	})
	return deleted, err
}

// Update replaces key's record: store the new record, remove the old
// key's entries, insert the new ones. Single-threaded, so this is
// atomic at the caller level.
func (p *Processor) Update(key int, newRec record.Record) error {
	return p.timeit("update", func() int { return 1 }, func() error {
		oldPtr, err := p.primary.Find(key)
		if err != nil {
			return err
		}
		if !oldPtr.IsValid() {
			return ErrKeyNotFound
		}
		start := time.Now()
		if _, err := p.primary.Delete(key); err != nil {
			return err
		}
		p.recordIndexOp("btree", "delete", start)
		if p.secondary != nil {
			start = time.Now()
			if _, err := p.secondary.Remove(strconv.Itoa(key), oldPtr); err != nil {
				return err
			}
			p.recordIndexOp("hash", "delete", start)
		}
		if err := p.store.remove(oldPtr); err != nil {
			return err
		}
		if _, err := p.insertAt(key, newRec); err != nil {
			return err
		}
		return nil
	})
}

// Select parses condition as "field op value" and dispatches '=' as a
// point lookup, '>'/'>=' and '<'/'<=' as a one-sided range against the
// primary index.
func (p *Processor) Select(condition string) ([]record.Record, error) {
	var out []record.Record
	err := p.timeit("select", func() int { return len(out) }, func() error {
		_, op, value, err := parseCondition(condition)
		if err != nil {
			return err
		}

		var ptrs []record.Pointer
		switch op {
		case "=":
			ptrs, err = p.findEqual(value)
		case "<":
			ptrs, err = p.primary.Range(math.MinInt, value-1)
		case "<=":
			ptrs, err = p.primary.Range(math.MinInt, value)
		case ">":
			ptrs, err = p.primary.Range(value+1, math.MaxInt)
		case ">=":
			ptrs, err = p.primary.Range(value, math.MaxInt)
		default:
			return ErrBadCondition
		}
		if err != nil {
			return err
		}

		for _, ptr := range ptrs {
			rec, err := p.store.get(ptr)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		p.totalOperations++
		return nil
	})
	return out, err
}

// findEqual serves a point lookup through whichever index ChooseIndex
// prefers, falling back to the B+ tree if no secondary index is
// attached.
func (p *Processor) findEqual(value int) ([]record.Pointer, error) {
	if p.secondary != nil {
		return p.secondary.Find(strconv.Itoa(value))
	}
	ptr, err := p.primary.Find(value)
	if err != nil {
		return nil, err
	}
	if !ptr.IsValid() {
		return nil, nil
	}
	return []record.Pointer{ptr}, nil
}

// RangeSelect is a direct pass-through to the primary index's range
// scan, returning the resolved records in key order.
func (p *Processor) RangeSelect(lo, hi int) ([]record.Record, error) {
	var out []record.Record
	err := p.timeit("range_select", func() int { return len(out) }, func() error {
		ptrs, err := p.primary.Range(lo, hi)
		if err != nil {
			return err
		}
		for _, ptr := range ptrs {
			rec, err := p.store.get(ptr)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		p.totalOperations++
		return nil
	})
	return out, err
}

// AvgAccessTime returns the mean wall time per tracked operation.
func (p *Processor) AvgAccessTime() time.Duration {
	if p.totalQueries == 0 {
		return 0
	}
	return p.totalAccessTime / time.Duration(p.totalQueries)
}

func parseCondition(condition string) (field, op string, value int, err error) {
	fields := strings.Fields(condition)
	if len(fields) != 3 {
		return "", "", 0, ErrBadCondition
	}
	field, op = fields[0], fields[1]
	switch op {
	case "=", "<", "<=", ">", ">=":
	default:
		return "", "", 0, ErrBadCondition
	}
	value, convErr := strconv.Atoi(fields[2])
	if convErr != nil {
		return "", "", 0, fmt.Errorf("%w: %v", ErrBadCondition, convErr)
	}
	return field, op, value, nil
}
