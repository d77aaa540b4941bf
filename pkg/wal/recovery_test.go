package wal

import (
	"path/filepath"
	"testing"
)

func TestRecoveryRedoesCommittedAndSkipsLoser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mgr := NewManager(w)

	t1, err := mgr.Begin()
	if err != nil {
		t.Fatalf("Begin t1: %v", err)
	}
	if _, err := mgr.LogOperation(t1, 5, OpInsert, "", "rec_A"); err != nil {
		t.Fatalf("LogOperation: %v", err)
	}

	t2, err := mgr.Begin()
	if err != nil {
		t.Fatalf("Begin t2: %v", err)
	}
	if _, err := mgr.LogOperation(t2, 9, OpInsert, "", "rec_B"); err != nil {
		t.Fatalf("LogOperation: %v", err)
	}

	if err := mgr.Commit(t1); err != nil {
		t.Fatalf("Commit t1: %v", err)
	}
	// t2 never commits: simulated crash.
	w.Close()

	var applied []Entry
	stats, err := Recover(path, func(e Entry) error {
		applied = append(applied, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if stats.CommittedTxns != 1 || stats.LoserTxns != 1 {
		t.Fatalf("stats = %+v, want 1 committed, 1 loser", stats)
	}
	if stats.RedoOperations != 1 {
		t.Errorf("RedoOperations = %d, want 1", stats.RedoOperations)
	}
	if stats.UndoOperations != 1 {
		t.Errorf("UndoOperations = %d, want 1 (the loser's one insert is undone)", stats.UndoOperations)
	}

	foundA, foundB := false, false
	for _, e := range applied {
		if e.Op == OpInsert && e.New == "rec_A" {
			foundA = true
		}
		if e.New == "rec_B" {
			foundB = true
		}
	}
	if !foundA {
		t.Errorf("committed transaction's insert was not redone")
	}
	if foundB {
		t.Errorf("loser transaction's insert was redone, should have been skipped")
	}
}

func TestAbortUndoesInReverseOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()
	mgr := NewManager(w)

	txn, err := mgr.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	mgr.LogOperation(txn, 1, OpInsert, "", "v1")
	mgr.LogOperation(txn, 1, OpUpdate, "v1", "v2")

	var undone []Entry
	if err := mgr.Abort(txn, func(e Entry) error {
		undone = append(undone, e)
		return nil
	}); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if len(undone) != 2 {
		t.Fatalf("undone = %d entries, want 2", len(undone))
	}
	// Reverse order: update's inverse first, then insert's inverse.
	if undone[0].Op != OpUpdate || undone[0].New != "v1" {
		t.Errorf("first undo = %+v, want update restoring v1", undone[0])
	}
	if undone[1].Op != OpDelete || undone[1].Old != "v1" {
		t.Errorf("second undo = %+v, want delete of v1", undone[1])
	}
}

func TestRecoveryOfEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wal")
	stats, err := Recover(path, func(e Entry) error {
		t.Errorf("apply called for empty log: %+v", e)
		return nil
	})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if stats.TotalRecords != 0 {
		t.Errorf("TotalRecords = %d, want 0", stats.TotalRecords)
	}
}

func TestRecoveryIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mgr := NewManager(w)
	txn, _ := mgr.Begin()
	mgr.LogOperation(txn, 3, OpInsert, "", "final-state")
	mgr.Commit(txn)
	w.Close()

	apply := func(pages map[int]string) Applier {
		return func(e Entry) error {
			if e.Op == OpInsert || e.Op == OpUpdate {
				pages[e.PageID] = e.New
			}
			return nil
		}
	}

	first := map[int]string{}
	if _, err := Recover(path, apply(first)); err != nil {
		t.Fatalf("first Recover: %v", err)
	}
	second := map[int]string{}
	if _, err := Recover(path, apply(second)); err != nil {
		t.Fatalf("second Recover: %v", err)
	}
	if first[3] != second[3] || first[3] != "final-state" {
		t.Errorf("recovery not idempotent: first=%v second=%v", first, second)
	}
}
