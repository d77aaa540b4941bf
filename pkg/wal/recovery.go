package wal

// RecoveryStats summarizes one recovery pass.
type RecoveryStats struct {
	TotalRecords   int
	CommittedTxns  int
	LoserTxns      int
	RedoOperations int
	UndoOperations int
}

// Recover runs the two-pass analysis+redo, then undo-of-losers
// algorithm over path, calling apply for every effect that must be
// replayed. It is safe to call against a log with no records (a fresh
// database).
func Recover(path string, apply Applier) (RecoveryStats, error) {
	entries, err := ReadAll(path)
	if err != nil {
		return RecoveryStats{}, err
	}

	var stats RecoveryStats
	stats.TotalRecords = len(entries)

	committed := make(map[string]bool)
	perTxn := make(map[string][]Entry)
	order := make([]string, 0)
	for _, e := range entries {
		if e.Op == OpBegin {
			if _, seen := perTxn[e.TxnID]; !seen {
				perTxn[e.TxnID] = nil
				order = append(order, e.TxnID)
			}
			continue
		}
		if e.Op == OpCommit {
			committed[e.TxnID] = true
			continue
		}
		if e.Op == OpAbort {
			continue
		}
		perTxn[e.TxnID] = append(perTxn[e.TxnID], e)
	}

	// Analysis+Redo: committed transactions replay forward in LSN order.
	for _, e := range entries {
		if e.Op == OpBegin || e.Op == OpCommit || e.Op == OpAbort {
			continue
		}
		if !committed[e.TxnID] {
			continue
		}
		if err := apply(e); err != nil {
			return stats, err
		}
		stats.RedoOperations++
	}
	for txnID := range committed {
		if _, began := perTxn[txnID]; began {
			stats.CommittedTxns++
		}
	}

	// Undo: every transaction with a BEGIN but no COMMIT is a loser;
	// its operations are undone in reverse LSN order.
	for _, txnID := range order {
		if committed[txnID] {
			continue
		}
		stats.LoserTxns++
		ops := perTxn[txnID]
		for i := len(ops) - 1; i >= 0; i-- {
			inv, ok := invert(ops[i])
			if !ok {
				continue
			}
			if err := apply(inv); err != nil {
				return stats, err
			}
			stats.UndoOperations++
		}
	}

	return stats, nil
}
