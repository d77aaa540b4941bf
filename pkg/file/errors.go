package file

import "errors"

var (
	// ErrIO indicates a read/write/seek/stat failure against the
	// backing file.
	ErrIO = errors.New("file: io error")

	// ErrCorrupted indicates a page read back from disk failed its
	// checksum.
	ErrCorrupted = errors.New("file: corrupted page")
)
