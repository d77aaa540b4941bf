package wal

import "errors"

var (
	// ErrInvalidEntry indicates a log line that could not be parsed.
	ErrInvalidEntry = errors.New("wal: invalid entry")

	// ErrLogClosed indicates an operation on a closed log.
	ErrLogClosed = errors.New("wal: log closed")

	// ErrUnknownTxn indicates an Abort against a transaction id that was
	// never begun or already settled. LogOperation does not check the id.
	ErrUnknownTxn = errors.New("wal: unknown transaction")
)
