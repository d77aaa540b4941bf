package wal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OpType names a WAL record kind.
type OpType string

const (
	OpBegin  OpType = "BEGIN"
	OpInsert OpType = "INSERT"
	OpDelete OpType = "DELETE"
	OpUpdate OpType = "UPDATE"
	OpCommit OpType = "COMMIT"
	OpAbort  OpType = "ABORT"
)

// fieldJoiner separates the old and new payloads within a record's
// middle field. The outer format's literal '|' separators can appear
// inside a record's own old/new byte payload, so old and new are
// joined with this otherwise-unused control byte instead of '|';
// parsing peels the four leading and one trailing '|'-delimited field
// off first and only then splits the remainder on fieldJoiner.
const fieldJoiner = '\x1e'

// Entry is one line of the write-ahead log:
// <lsn>|<txn>|<page>|<op>|<old>|<new>|<ts>
type Entry struct {
	LSN       uint64
	TxnID     string
	PageID    int
	Op        OpType
	Old       string
	New       string
	Timestamp time.Time
}

// Encode renders the entry as a single log line, without a trailing
// newline.
func (e Entry) Encode() string {
	mid := e.Old + string(fieldJoiner) + e.New
	return fmt.Sprintf("%d|%s|%d|%s|%s|%d", e.LSN, e.TxnID, e.PageID, e.Op, mid, e.Timestamp.UnixNano())
}

// ParseEntry parses one log line. Any record whose fields cannot be
// parsed returns ErrInvalidEntry; recovery logs and skips these rather
// than failing outright.
func ParseEntry(line string) (Entry, error) {
	// Split off the four leading fields.
	var e Entry
	rest := line
	var lead [4]string
	for i := 0; i < 4; i++ {
		idx := strings.IndexByte(rest, '|')
		if idx < 0 {
			return Entry{}, ErrInvalidEntry
		}
		lead[i] = rest[:idx]
		rest = rest[idx+1:]
	}
	// Split off the trailing field.
	idx := strings.LastIndexByte(rest, '|')
	if idx < 0 {
		return Entry{}, ErrInvalidEntry
	}
	mid := rest[:idx]
	tsField := rest[idx+1:]

	lsn, err := strconv.ParseUint(lead[0], 10, 64)
	if err != nil {
		return Entry{}, ErrInvalidEntry
	}
	page, err := strconv.Atoi(lead[2])
	if err != nil {
		return Entry{}, ErrInvalidEntry
	}
	ts, err := strconv.ParseInt(tsField, 10, 64)
	if err != nil {
		return Entry{}, ErrInvalidEntry
	}

	sep := strings.IndexByte(mid, fieldJoiner)
	if sep < 0 {
		return Entry{}, ErrInvalidEntry
	}

	e.LSN = lsn
	e.TxnID = lead[1]
	e.PageID = page
	e.Op = OpType(lead[3])
	e.Old = mid[:sep]
	e.New = mid[sep+1:]
	e.Timestamp = time.Unix(0, ts)
	return e, nil
}
