package buffer

import "errors"

var (
	// ErrBufferExhausted indicates every resident page is pinned, so no
	// eviction victim could be found.
	ErrBufferExhausted = errors.New("buffer: exhausted, all resident pages pinned")

	// ErrNotResident indicates an operation targeted a page id that is
	// not currently cached.
	ErrNotResident = errors.New("buffer: page not resident")

	// ErrPageCorrupted indicates a page's in-memory state no longer
	// matches its last-known-good checksum.
	ErrPageCorrupted = errors.New("buffer: page failed corruption check")
)
