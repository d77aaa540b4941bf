package query

import "errors"

var (
	// ErrRecordTooLarge is returned when a record body does not fit on
	// a freshly allocated data page.
	ErrRecordTooLarge = errors.New("query: record too large for a page")
	// ErrRecordNotFound is returned when a record pointer does not
	// resolve to a live slot.
	ErrRecordNotFound = errors.New("query: record not found")
	// ErrKeyNotFound is returned by delete/update when the key is
	// absent from the primary index.
	ErrKeyNotFound = errors.New("query: key not found")
	// ErrBadCondition is returned when select's condition string does
	// not parse as "field op value".
	ErrBadCondition = errors.New("query: malformed select condition")
)
