// ABOUTME: Encodes and decodes B+ tree leaf and internal node contents onto index pages
// ABOUTME: Leaf node keys are stored as page directory ids; internal leftmost child rides in prev_page

package btree

import (
	"encoding/binary"
	"sort"

	"github.com/nainya/relstore/pkg/page"
	"github.com/nainya/relstore/pkg/record"
)

// Entry is one (key, pointer-list) pair in a leaf node. Non-unique
// indexes attach multiple pointers to the same key.
type Entry struct {
	Key  int
	Ptrs []record.Pointer
}

// internalEntry is one (separator key, child page id) pair in an
// internal node.
type internalEntry struct {
	key   int
	child int
}

func decodeLeaf(pg *page.Page) []Entry {
	var entries []Entry
	pg.Each(func(_, id int, body []byte) {
		n := len(body) / 8
		ptrs := make([]record.Pointer, n)
		for i := 0; i < n; i++ {
			ptrs[i] = record.Pointer{
				PageID: int(int32(binary.LittleEndian.Uint32(body[i*8:]))),
				Slot:   int(int32(binary.LittleEndian.Uint32(body[i*8+4:]))),
			}
		}
		entries = append(entries, Entry{Key: id, Ptrs: ptrs})
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func encodeLeaf(pg *page.Page, entries []Entry) {
	pg.Clear()
	for _, e := range entries {
		body := make([]byte, 8*len(e.Ptrs))
		for i, p := range e.Ptrs {
			binary.LittleEndian.PutUint32(body[i*8:], uint32(int32(p.PageID)))
			binary.LittleEndian.PutUint32(body[i*8+4:], uint32(int32(p.Slot)))
		}
		pg.AddRecord(e.Key, body)
	}
}

// decodeInternal returns the leftmost child id (carried in the page's
// prev_page header field) and the sorted separator entries.
func decodeInternal(pg *page.Page) (int, []internalEntry) {
	var entries []internalEntry
	pg.Each(func(_, id int, body []byte) {
		entries = append(entries, internalEntry{
			key:   id,
			child: int(int32(binary.LittleEndian.Uint32(body))),
		})
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return pg.PrevPage(), entries
}

func encodeInternal(pg *page.Page, leftmost int, entries []internalEntry) {
	pg.Clear()
	pg.SetPrevPage(leftmost)
	for _, e := range entries {
		body := make([]byte, 4)
		binary.LittleEndian.PutUint32(body, uint32(int32(e.child)))
		pg.AddRecord(e.key, body)
	}
}

// findChild returns the child page id that key's subtree lives under,
// given the separator convention that entries[i].key is the first key
// of entries[i].child's subtree.
func findChild(leftmost int, entries []internalEntry, key int) int {
	child := leftmost
	for _, e := range entries {
		if key >= e.key {
			child = e.child
		} else {
			break
		}
	}
	return child
}

// childSlot locates id among a node's children, returning -1 if it is
// the leftmost child or the entries index otherwise.
func childSlot(leftmost int, entries []internalEntry, id int) int {
	if id == leftmost {
		return -1
	}
	for i, e := range entries {
		if e.child == id {
			return i
		}
	}
	return -1
}

// childAt resolves a slot (-1 for leftmost) back to a child page id.
func childAt(leftmost int, entries []internalEntry, slot int) int {
	if slot == -1 {
		return leftmost
	}
	return entries[slot].child
}
