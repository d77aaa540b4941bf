package page

import "errors"

var (
	// ErrRecordTooLarge indicates a record cannot fit in any page, full
	// or empty.
	ErrRecordTooLarge = errors.New("page: record too large for page body")

	// ErrSlotNotFound indicates a slot index is out of range or refers
	// to an already-freed directory entry.
	ErrSlotNotFound = errors.New("page: slot not found")

	// ErrCorrupted indicates a page failed its checksum on decode.
	ErrCorrupted = errors.New("page: checksum mismatch")
)
