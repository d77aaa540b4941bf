package wal

import (
	"time"

	"github.com/google/uuid"
)

// Applier performs the effect of one log record against live storage.
// Redo passes call it with the record as originally logged; undo
// passes (abort and loser rollback) call it with the inverse record
// computed by invert.
type Applier func(e Entry) error

type txnState struct {
	firstLSN uint64
	entries  []Entry
}

// Manager issues transaction ids, appends log records under the WAL's
// mutex, and drives abort-time rollback. The data-path structures it
// mutates are injected through an Applier rather than imported
// directly, so the log has no dependency on the index packages it
// protects.
type Manager struct {
	wal    *WAL
	active map[string]*txnState
}

// NewManager wraps an opened WAL.
func NewManager(w *WAL) *Manager {
	return &Manager{wal: w, active: make(map[string]*txnState)}
}

// Begin starts a new transaction and returns its id.
func (m *Manager) Begin() (string, error) {
	txnID := uuid.NewString()
	lsn, err := m.wal.Append(Entry{TxnID: txnID, Op: OpBegin, Timestamp: time.Now()})
	if err != nil {
		return "", err
	}
	m.active[txnID] = &txnState{firstLSN: lsn}
	return txnID, nil
}

// LogOperation appends one operation record for an active transaction
// and returns its LSN.
func (m *Manager) LogOperation(txnID string, pageID int, op OpType, old, new string) (uint64, error) {
	e := Entry{TxnID: txnID, PageID: pageID, Op: op, Old: old, New: new, Timestamp: time.Now()}
	lsn, err := m.wal.Append(e)
	if err != nil {
		return 0, err
	}
	e.LSN = lsn
	if st, ok := m.active[txnID]; ok {
		st.entries = append(st.entries, e)
	}
	return lsn, nil
}

// Commit appends a COMMIT record and fsyncs the log. The transaction
// is durable only once Commit returns nil.
func (m *Manager) Commit(txnID string) error {
	if _, err := m.wal.Append(Entry{TxnID: txnID, Op: OpCommit, Timestamp: time.Now()}); err != nil {
		return err
	}
	if err := m.wal.Fsync(); err != nil {
		return err
	}
	delete(m.active, txnID)
	return nil
}

// Abort appends an ABORT record and undoes the transaction's effects
// in reverse LSN order using apply.
func (m *Manager) Abort(txnID string, apply Applier) error {
	st, ok := m.active[txnID]
	if !ok {
		return ErrUnknownTxn
	}
	for i := len(st.entries) - 1; i >= 0; i-- {
		inv, ok := invert(st.entries[i])
		if !ok {
			continue
		}
		if err := apply(inv); err != nil {
			return err
		}
	}
	if _, err := m.wal.Append(Entry{TxnID: txnID, Op: OpAbort, Timestamp: time.Now()}); err != nil {
		return err
	}
	delete(m.active, txnID)
	return nil
}

// invert computes the inverse of a data record: insert becomes
// delete-of-new, delete becomes insert-of-old, update restores old as
// the new value. BEGIN/COMMIT/ABORT markers have no inverse.
func invert(e Entry) (Entry, bool) {
	switch e.Op {
	case OpInsert:
		return Entry{TxnID: e.TxnID, PageID: e.PageID, Op: OpDelete, Old: e.New, New: "", Timestamp: e.Timestamp}, true
	case OpDelete:
		return Entry{TxnID: e.TxnID, PageID: e.PageID, Op: OpInsert, Old: "", New: e.Old, Timestamp: e.Timestamp}, true
	case OpUpdate:
		return Entry{TxnID: e.TxnID, PageID: e.PageID, Op: OpUpdate, Old: e.New, New: e.Old, Timestamp: e.Timestamp}, true
	default:
		return Entry{}, false
	}
}
