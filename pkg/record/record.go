// ABOUTME: Record and record-pointer types shared across the storage engine
// ABOUTME: Implements delimiter-based attribute serialisation

package record

import (
	"bytes"
	"fmt"
)

// Delimiter separates attributes within a serialised record body. It is
// reserved: attribute values must not contain it.
const Delimiter = byte(0x1F) // ASCII unit separator

// Record is a tuple of an integer id and an ordered sequence of opaque
// string attributes.
type Record struct {
	ID    int
	Attrs []string
}

// New builds a Record from an id and attributes.
func New(id int, attrs ...string) Record {
	return Record{ID: id, Attrs: attrs}
}

// Serialize joins the record's attributes with Delimiter. The id is not
// part of the body; callers that need it persist it alongside (e.g. as
// the directory-slot id in pkg/page).
func (r Record) Serialize() []byte {
	parts := make([][]byte, len(r.Attrs))
	for i, a := range r.Attrs {
		parts[i] = []byte(a)
	}
	return bytes.Join(parts, []byte{Delimiter})
}

// Deserialize splits a serialised body back into a Record with the given id.
func Deserialize(id int, body []byte) Record {
	if len(body) == 0 {
		return Record{ID: id, Attrs: []string{}}
	}
	parts := bytes.Split(body, []byte{Delimiter})
	attrs := make([]string, len(parts))
	for i, p := range parts {
		attrs[i] = string(p)
	}
	return Record{ID: id, Attrs: attrs}
}

// Pointer durably locates a record: the page it lives on and its slot
// within that page's record directory.
type Pointer struct {
	PageID int
	Slot   int
}

// Invalid is the sentinel "not found" pointer.
var Invalid = Pointer{PageID: -1, Slot: -1}

// IsValid reports whether p refers to a real record.
func (p Pointer) IsValid() bool {
	return p.PageID != -1
}

func (p Pointer) String() string {
	if !p.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("(%d,%d)", p.PageID, p.Slot)
}
