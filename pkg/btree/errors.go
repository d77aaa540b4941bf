package btree

import "errors"

var (
	// ErrEmptyTree names the empty-tree condition. Min and Max do not
	// return it: on an empty tree they report ok=false with a nil error.
	ErrEmptyTree = errors.New("btree: tree is empty")

	// ErrInvalidRange indicates a Range call with lo > hi.
	ErrInvalidRange = errors.New("btree: lo must be <= hi")
)
