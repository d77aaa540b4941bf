package hashindex

import "errors"

var (
	// ErrEntryTooLarge is returned when a (key, pointer, hash) entry
	// cannot fit even on a freshly allocated overflow page.
	ErrEntryTooLarge = errors.New("hashindex: entry too large for a page")
)
