package query

import (
	"path/filepath"
	"testing"

	"github.com/nainya/relstore/pkg/buffer"
	"github.com/nainya/relstore/pkg/file"
	"github.com/nainya/relstore/pkg/record"
	"github.com/nainya/relstore/pkg/wal"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db")
	fm, err := file.Create(path)
	if err != nil {
		t.Fatalf("file.Create: %v", err)
	}
	t.Cleanup(func() { fm.Close() })
	pool := buffer.New(fm, 64)
	p, err := New(pool, fm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestInsertSelectEqual(t *testing.T) {
	p := newTestProcessor(t)
	if _, err := p.Insert(10, record.New(10, "alice", "30")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	recs, err := p.Select("key = 10")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(recs) != 1 || recs[0].Attrs[0] != "alice" {
		t.Fatalf("Select = %+v, want one record for alice", recs)
	}
}

func TestInsertDeleteRoundTrip(t *testing.T) {
	p := newTestProcessor(t)
	if _, err := p.Insert(5, record.New(5, "bob")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ok, err := p.Delete(5)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v, want true, nil", ok, err)
	}
	recs, err := p.Select("key = 5")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("Select after delete = %+v, want none", recs)
	}
}

func TestUpdateReplacesRecord(t *testing.T) {
	p := newTestProcessor(t)
	if _, err := p.Insert(1, record.New(1, "v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := p.Update(1, record.New(1, "v2")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	recs, err := p.Select("key = 1")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(recs) != 1 || recs[0].Attrs[0] != "v2" {
		t.Fatalf("Select after update = %+v, want v2", recs)
	}
}

func TestUpdateMissingKeyFails(t *testing.T) {
	p := newTestProcessor(t)
	if err := p.Update(99, record.New(99, "x")); err != ErrKeyNotFound {
		t.Fatalf("Update on missing key = %v, want ErrKeyNotFound", err)
	}
}

func TestRangeSelectAndComparisonOperators(t *testing.T) {
	p := newTestProcessor(t)
	for _, k := range []int{10, 20, 30, 40, 50} {
		if _, err := p.Insert(k, record.New(k, "v")); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	recs, err := p.RangeSelect(20, 40)
	if err != nil {
		t.Fatalf("RangeSelect: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("RangeSelect(20,40) = %d records, want 3", len(recs))
	}

	lt, err := p.Select("key < 30")
	if err != nil {
		t.Fatalf("Select <: %v", err)
	}
	if len(lt) != 2 {
		t.Fatalf("Select < 30 = %d records, want 2 (10,20)", len(lt))
	}

	gte, err := p.Select("key >= 30")
	if err != nil {
		t.Fatalf("Select >=: %v", err)
	}
	if len(gte) != 3 {
		t.Fatalf("Select >= 30 = %d records, want 3 (30,40,50)", len(gte))
	}
}

func TestSelectRejectsMalformedCondition(t *testing.T) {
	p := newTestProcessor(t)
	if _, err := p.Select("nonsense"); err != ErrBadCondition {
		t.Fatalf("Select(malformed) = %v, want ErrBadCondition", err)
	}
	if _, err := p.Select("key ~= 3"); err != ErrBadCondition {
		t.Fatalf("Select(bad op) = %v, want ErrBadCondition", err)
	}
}

func TestChooseIndex(t *testing.T) {
	if ChooseIndex("=") != IndexEither {
		t.Error(`ChooseIndex("=") should be IndexEither`)
	}
	for _, op := range []string{"<", "<=", ">", ">="} {
		if ChooseIndex(op) != IndexBTreeOnly {
			t.Errorf("ChooseIndex(%q) should be IndexBTreeOnly", op)
		}
	}
}

func TestNeedsRebuildOnHighDeleteRatio(t *testing.T) {
	p := newTestProcessor(t)
	for i := 0; i < 10; i++ {
		if _, err := p.Insert(i, record.New(i, "v")); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < 9; i++ {
		if _, err := p.Delete(i); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	needs, err := p.NeedsRebuild()
	if err != nil {
		t.Fatalf("NeedsRebuild: %v", err)
	}
	if !needs {
		t.Error("expected NeedsRebuild to be true after a high delete ratio")
	}
}

func TestRebuildPreservesContentsAndResetsHealth(t *testing.T) {
	p := newTestProcessor(t)
	for i := 0; i < 10; i++ {
		if _, err := p.Insert(i, record.New(i, "v")); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := 0; i < 9; i++ {
		if _, err := p.Delete(i); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	if err := p.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	h, err := p.Health()
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.TotalOperations != 0 || h.DeleteOperations != 0 {
		t.Errorf("health after rebuild = %+v, want zeroed counters", h)
	}
	recs, err := p.Select("key = 9")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Select(9) after rebuild = %+v, want the surviving record", recs)
	}
}

// TestInsertWithLoggingRecoversCommittedOnly mirrors the two-transaction
// crash scenario: one transaction's insert is committed and must
// survive recovery against a fresh processor replaying the log; the
// other never commits and must not appear.
func TestInsertWithLoggingRecoversCommittedOnly(t *testing.T) {
	dir := t.TempDir()
	walPath := filepath.Join(dir, "test.wal")

	fm, err := file.Create(filepath.Join(dir, "db"))
	if err != nil {
		t.Fatalf("file.Create: %v", err)
	}
	defer fm.Close()
	pool := buffer.New(fm, 64)
	p, err := New(pool, fm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w, err := wal.Open(walPath)
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	mgr := wal.NewManager(w)

	t1, err := mgr.Begin()
	if err != nil {
		t.Fatalf("Begin t1: %v", err)
	}
	if _, _, err := p.InsertWithLogging(mgr, t1, 1, record.New(1, "committed")); err != nil {
		t.Fatalf("InsertWithLogging t1: %v", err)
	}
	if err := mgr.Commit(t1); err != nil {
		t.Fatalf("Commit t1: %v", err)
	}

	t2, err := mgr.Begin()
	if err != nil {
		t.Fatalf("Begin t2: %v", err)
	}
	if _, _, err := p.InsertWithLogging(mgr, t2, 2, record.New(2, "loser")); err != nil {
		t.Fatalf("InsertWithLogging t2: %v", err)
	}
	// t2 never commits: simulated crash.
	w.Close()

	fm2, err := file.Open(filepath.Join(dir, "db"))
	if err != nil {
		t.Fatalf("file.Open: %v", err)
	}
	defer fm2.Close()
	pool2 := buffer.New(fm2, 64)
	fresh, err := New(pool2, fm2)
	if err != nil {
		t.Fatalf("New fresh: %v", err)
	}

	stats, err := wal.Recover(walPath, fresh.ReplayApplier())
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if stats.CommittedTxns != 1 || stats.LoserTxns != 1 {
		t.Fatalf("stats = %+v, want 1 committed, 1 loser", stats)
	}

	got, err := fresh.Select("key = 1")
	if err != nil {
		t.Fatalf("Select(1): %v", err)
	}
	if len(got) != 1 || got[0].Attrs[0] != "committed" {
		t.Fatalf("Select(1) after recovery = %+v, want the committed record", got)
	}

	missing, err := fresh.Select("key = 2")
	if err != nil {
		t.Fatalf("Select(2): %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("Select(2) after recovery = %+v, want nothing (loser transaction)", missing)
	}
}
