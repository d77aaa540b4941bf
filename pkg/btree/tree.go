// ABOUTME: Persistent B+ tree primary index: ordered int key to record pointer, leaf-chain range scans
// ABOUTME: Ancestor paths are tracked in call-stack-local slices rather than on-disk parent pointers

package btree

import (
	"github.com/nainya/relstore/pkg/buffer"
	"github.com/nainya/relstore/pkg/file"
	"github.com/nainya/relstore/pkg/page"
	"github.com/nainya/relstore/pkg/record"
)

const (
	keySize     = 8
	pointerSize = 8

	// MaxKeys and MinKeys bound the key count of every node except the
	// root, per PAGE_SIZE/header_size/key_size/pointer_size.
	MaxKeys = (page.Size - page.HeaderSize) / (keySize + pointerSize)
	MinKeys = MaxKeys / 2
)

// Tree is a persistent B+ tree index layered on a buffer pool and file
// manager. Duplicate-key policy is fixed at construction: unique
// indexes replace the pointer list on insert, non-unique indexes
// append to it.
type Tree struct {
	pool   *buffer.Pool
	fm     *file.Manager
	rootID int
	unique bool

	stats Stats
}

// New builds an empty, unique-key B+ tree.
func New(pool *buffer.Pool, fm *file.Manager) *Tree {
	return &Tree{pool: pool, fm: fm, rootID: page.NoPage, unique: true}
}

// NewWithPolicy builds an empty B+ tree with an explicit duplicate-key
// policy.
func NewWithPolicy(pool *buffer.Pool, fm *file.Manager, unique bool) *Tree {
	return &Tree{pool: pool, fm: fm, rootID: page.NoPage, unique: unique}
}

// RootID exposes the current root page id (page.NoPage if empty), used
// by the bulk loader and maintenance coordinator to install a
// freshly-built tree atomically.
func (t *Tree) RootID() int { return t.rootID }

// SetRoot atomically replaces the tree's root, used when a rebuild
// finishes.
func (t *Tree) SetRoot(id int) { t.rootID = id }

// Stats returns the tree's running operation counters.
func (t *Tree) Stats() Stats { return t.stats }

// pinSet tracks every page pinned during one logical operation so every
// exit path (including error returns and panics-as-errors) releases
// its pins exactly once, regardless of how many times a page was
// fetched along the way.
type pinSet struct {
	pool *buffer.Pool
	ids  map[int]bool
}

func newPinSet(pool *buffer.Pool) *pinSet {
	return &pinSet{pool: pool, ids: make(map[int]bool)}
}

func (s *pinSet) get(id int) (*page.Page, error) {
	pg, err := s.pool.GetPage(id)
	if err != nil {
		return nil, err
	}
	if !s.ids[id] {
		s.pool.PinPage(id)
		s.ids[id] = true
	}
	return pg, nil
}

func (s *pinSet) release() {
	for id := range s.ids {
		s.pool.UnpinPage(id)
	}
}

func (t *Tree) newLeaf() (int, *page.Page, error) {
	id, err := t.fm.AllocateNewPage(page.TypeIndex)
	if err != nil {
		return 0, nil, err
	}
	pg, err := t.pool.GetPage(id)
	if err != nil {
		return 0, nil, err
	}
	pg.SetIsLeaf(true)
	return id, pg, nil
}

func (t *Tree) newInternal() (int, *page.Page, error) {
	id, err := t.fm.AllocateNewPage(page.TypeIndex)
	if err != nil {
		return 0, nil, err
	}
	pg, err := t.pool.GetPage(id)
	if err != nil {
		return 0, nil, err
	}
	return id, pg, nil
}

// Insert adds (key, ptr) to the tree, splitting full nodes preemptively
// along the descent path.
func (t *Tree) Insert(key int, ptr record.Pointer) error {
	ps := newPinSet(t.pool)
	defer ps.release()

	if t.rootID == page.NoPage {
		id, leaf, err := t.newLeaf()
		if err != nil {
			return err
		}
		ps.ids[id] = true
		encodeLeaf(leaf, []Entry{{Key: key, Ptrs: []record.Pointer{ptr}}})
		t.rootID = id
		t.stats.RecordInsert(key)
		return nil
	}

	root, err := ps.get(t.rootID)
	if err != nil {
		return err
	}
	if root.RecordCount() >= MaxKeys {
		newRootID, newRoot, err := t.newInternal()
		if err != nil {
			return err
		}
		ps.ids[newRootID] = true
		newRoot.SetPrevPage(t.rootID)
		t.rootID = newRootID
		if err := t.splitChild(ps, newRootID, -1); err != nil {
			return err
		}
	}

	currentID := t.rootID
	for {
		node, err := ps.get(currentID)
		if err != nil {
			return err
		}
		if node.IsLeaf() {
			entries := decodeLeaf(node)
			entries = upsertLeafEntry(entries, key, ptr, t.unique)
			encodeLeaf(node, entries)
			t.stats.RecordInsert(key)
			return nil
		}

		leftmost, entries := decodeInternal(node)
		childID := findChild(leftmost, entries, key)
		child, err := ps.get(childID)
		if err != nil {
			return err
		}
		if child.RecordCount() >= MaxKeys {
			slot := childSlot(leftmost, entries, childID)
			if err := t.splitChild(ps, currentID, slot); err != nil {
				return err
			}
			node, err = ps.get(currentID)
			if err != nil {
				return err
			}
			leftmost, entries = decodeInternal(node)
			childID = findChild(leftmost, entries, key)
		}
		currentID = childID
	}
}

func upsertLeafEntry(entries []Entry, key int, ptr record.Pointer, unique bool) []Entry {
	for i := range entries {
		if entries[i].Key == key {
			if unique {
				entries[i].Ptrs = []record.Pointer{ptr}
			} else {
				entries[i].Ptrs = append(entries[i].Ptrs, ptr)
			}
			return entries
		}
	}
	// Insert in sorted position.
	out := make([]Entry, 0, len(entries)+1)
	inserted := false
	for _, e := range entries {
		if !inserted && key < e.Key {
			out = append(out, Entry{Key: key, Ptrs: []record.Pointer{ptr}})
			inserted = true
		}
		out = append(out, e)
	}
	if !inserted {
		out = append(out, Entry{Key: key, Ptrs: []record.Pointer{ptr}})
	}
	return out
}

// Find descends to the leaf that would hold key and returns its
// pointer, or the invalid pointer if absent.
func (t *Tree) Find(key int) (record.Pointer, error) {
	ps := newPinSet(t.pool)
	defer ps.release()

	t.stats.RecordFind()
	if t.rootID == page.NoPage {
		return record.Invalid, nil
	}
	currentID := t.rootID
	for {
		node, err := ps.get(currentID)
		if err != nil {
			return record.Invalid, err
		}
		if node.IsLeaf() {
			for _, e := range decodeLeaf(node) {
				if e.Key == key && len(e.Ptrs) > 0 {
					return e.Ptrs[0], nil
				}
			}
			return record.Invalid, nil
		}
		leftmost, entries := decodeInternal(node)
		currentID = findChild(leftmost, entries, key)
	}
}

// Range returns every record pointer whose key lies in [lo, hi],
// walking the leaf chain once the starting leaf is located. A leaf's
// next_leaf link is self-healed to NoPage if it is found to point at a
// freed or non-leaf page.
func (t *Tree) Range(lo, hi int) ([]record.Pointer, error) {
	if lo > hi {
		return nil, ErrInvalidRange
	}
	ps := newPinSet(t.pool)
	defer ps.release()

	var out []record.Pointer
	if t.rootID == page.NoPage {
		return out, nil
	}

	currentID := t.rootID
	for {
		node, err := ps.get(currentID)
		if err != nil {
			return nil, err
		}
		if node.IsLeaf() {
			break
		}
		leftmost, entries := decodeInternal(node)
		currentID = findChild(leftmost, entries, lo)
	}

	for currentID != page.NoPage {
		leaf, err := ps.get(currentID)
		if err != nil {
			return nil, err
		}
		entries := decodeLeaf(leaf)
		done := false
		for _, e := range entries {
			if e.Key < lo {
				continue
			}
			if e.Key > hi {
				done = true
				break
			}
			out = append(out, e.Ptrs...)
		}
		if done {
			break
		}

		next := leaf.NextLeaf()
		if next != page.NoPage {
			if nextPg, err := ps.get(next); err != nil || !nextPg.IsLeaf() {
				leaf.SetNextLeaf(page.NoPage)
				next = page.NoPage
			}
		}
		currentID = next
	}
	return out, nil
}

// Min returns the smallest key in the tree.
func (t *Tree) Min() (int, bool, error) {
	ps := newPinSet(t.pool)
	defer ps.release()
	return t.edge(ps, true)
}

// Max returns the largest key in the tree.
func (t *Tree) Max() (int, bool, error) {
	ps := newPinSet(t.pool)
	defer ps.release()
	return t.edge(ps, false)
}

func (t *Tree) edge(ps *pinSet, leftmostEdge bool) (int, bool, error) {
	if t.rootID == page.NoPage {
		return 0, false, nil
	}
	currentID := t.rootID
	for {
		node, err := ps.get(currentID)
		if err != nil {
			return 0, false, err
		}
		if node.IsLeaf() {
			entries := decodeLeaf(node)
			if len(entries) == 0 {
				return 0, false, nil
			}
			if leftmostEdge {
				return entries[0].Key, true, nil
			}
			return entries[len(entries)-1].Key, true, nil
		}
		leftmost, entries := decodeInternal(node)
		if leftmostEdge || len(entries) == 0 {
			currentID = leftmost
		} else {
			currentID = entries[len(entries)-1].child
		}
	}
}

// Size counts the number of keys in the tree by walking the leaf
// chain. It is intended for tests and health reporting, not hot paths.
func (t *Tree) Size() (int, error) {
	ps := newPinSet(t.pool)
	defer ps.release()
	if t.rootID == page.NoPage {
		return 0, nil
	}
	currentID := t.rootID
	for {
		node, err := ps.get(currentID)
		if err != nil {
			return 0, err
		}
		if node.IsLeaf() {
			break
		}
		leftmost, _ := decodeInternal(node)
		currentID = leftmost
	}
	count := 0
	for currentID != page.NoPage {
		leaf, err := ps.get(currentID)
		if err != nil {
			return 0, err
		}
		count += leaf.RecordCount()
		currentID = leaf.NextLeaf()
	}
	return count, nil
}

// RootFragmentation samples the root page's fragmentation ratio, used
// by the query processor as a cheap proxy for overall index
// fragmentation without walking every page.
func (t *Tree) RootFragmentation() (float64, error) {
	ps := newPinSet(t.pool)
	defer ps.release()
	if t.rootID == page.NoPage {
		return 0, nil
	}
	root, err := ps.get(t.rootID)
	if err != nil {
		return 0, err
	}
	return root.FragmentationRatio(), nil
}

// AllInOrder collects every (key, pointer) pair by walking the leftmost
// path down to the first leaf and then the leaf chain. Used by Rebuild
// and by the maintenance coordinator.
func (t *Tree) AllInOrder() ([]Entry, error) {
	ps := newPinSet(t.pool)
	defer ps.release()
	var out []Entry
	if t.rootID == page.NoPage {
		return out, nil
	}
	currentID := t.rootID
	for {
		node, err := ps.get(currentID)
		if err != nil {
			return nil, err
		}
		if node.IsLeaf() {
			break
		}
		leftmost, _ := decodeInternal(node)
		currentID = leftmost
	}
	for currentID != page.NoPage {
		leaf, err := ps.get(currentID)
		if err != nil {
			return nil, err
		}
		out = append(out, decodeLeaf(leaf)...)
		currentID = leaf.NextLeaf()
	}
	return out, nil
}
