package maintenance

import "errors"

// ErrNotRegistered is returned by operations against an index name that
// was never handed a RebuildFunc via Register.
var ErrNotRegistered = errors.New("maintenance: index not registered")
