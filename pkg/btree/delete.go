// ABOUTME: Deletion with borrow-then-merge rebalancing, driven by a call-stack ancestor path
// ABOUTME: No parent pointers are stored on disk; descent records (page id, child slot) pairs instead

package btree

import "github.com/nainya/relstore/pkg/page"

// ancestor is one step of a root-to-leaf descent: the page visited and
// the slot (-1 for leftmost, else an entries index) used to reach the
// next page down.
type ancestor struct {
	pageID int
	slot   int
}

// Delete removes key's entry, reporting false if the key was absent
// (a no-op, per NotFound semantics). A non-root node left under
// MinKeys is restored by borrowing from a sibling, or merging with one
// when no sibling can spare an entry; the fix cascades up the ancestor
// path as far as underflow propagates, collapsing the root if it ends
// up with no separators left.
func (t *Tree) Delete(key int) (bool, error) {
	ps := newPinSet(t.pool)
	defer ps.release()

	if t.rootID == page.NoPage {
		return false, nil
	}

	var path []ancestor
	currentID := t.rootID
	for {
		node, err := ps.get(currentID)
		if err != nil {
			return false, err
		}
		if node.IsLeaf() {
			break
		}
		leftmost, entries := decodeInternal(node)
		childID := findChild(leftmost, entries, key)
		path = append(path, ancestor{pageID: currentID, slot: childSlot(leftmost, entries, childID)})
		currentID = childID
	}

	leaf, err := ps.get(currentID)
	if err != nil {
		return false, err
	}
	entries := decodeLeaf(leaf)
	idx := -1
	for i, e := range entries {
		if e.Key == key {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, nil
	}
	entries = append(entries[:idx], entries[idx+1:]...)
	encodeLeaf(leaf, entries)
	t.stats.RecordDelete(key)

	if currentID == t.rootID || len(entries) >= MinKeys {
		return true, nil
	}
	return true, t.rebalanceUp(ps, path)
}

// rebalanceUp walks path from the leaf's immediate parent outward,
// fixing each underflowing node until a borrow absorbs the deficit or
// the cascade reaches and collapses the root.
func (t *Tree) rebalanceUp(ps *pinSet, path []ancestor) error {
	for i := len(path) - 1; i >= 0; i-- {
		parentID := path[i].pageID
		slot := path[i].slot

		merged, err := t.fixUnderflow(ps, parentID, slot)
		if err != nil {
			return err
		}
		if !merged {
			return nil
		}

		parent, err := ps.get(parentID)
		if err != nil {
			return err
		}
		leftmost, entries := decodeInternal(parent)
		if parentID == t.rootID {
			if len(entries) == 0 {
				t.rootID = leftmost
				if err := t.fm.FreePage(parentID); err != nil {
					return err
				}
			}
			return nil
		}
		if len(entries) >= MinKeys {
			return nil
		}
	}
	return nil
}

// fixUnderflow restores the node at parent's given slot, returning
// merged=true if it was absorbed into a sibling (so the caller must
// re-check the parent for cascading underflow) or false if a borrow
// fully resolved the deficit.
func (t *Tree) fixUnderflow(ps *pinSet, parentID int, slot int) (bool, error) {
	parent, err := ps.get(parentID)
	if err != nil {
		return false, err
	}
	leftmost, entries := decodeInternal(parent)
	nodeID := childAt(leftmost, entries, slot)
	node, err := ps.get(nodeID)
	if err != nil {
		return false, err
	}

	leftSlot := slot - 1
	hasLeft := slot >= 0
	rightSlot := slot + 1
	hasRight := rightSlot < len(entries)

	if hasLeft {
		leftID := childAt(leftmost, entries, leftSlot)
		leftPg, err := ps.get(leftID)
		if err != nil {
			return false, err
		}
		if leftPg.RecordCount() > MinKeys {
			var newSeparator int
			if node.IsLeaf() {
				newSeparator = borrowLeafFromLeft(leftPg, node)
			} else {
				newSeparator = borrowInternalFromLeft(leftPg, node, entries[slot].key)
			}
			entries[slot].key = newSeparator
			encodeInternal(parent, leftmost, entries)
			return false, nil
		}
	}
	if hasRight {
		rightID := childAt(leftmost, entries, rightSlot)
		rightPg, err := ps.get(rightID)
		if err != nil {
			return false, err
		}
		if rightPg.RecordCount() > MinKeys {
			var newSeparator int
			if node.IsLeaf() {
				newSeparator = borrowLeafFromRight(node, rightPg)
			} else {
				newSeparator = borrowInternalFromRight(node, rightPg, entries[rightSlot].key)
			}
			entries[rightSlot].key = newSeparator
			encodeInternal(parent, leftmost, entries)
			return false, nil
		}
	}

	if hasLeft {
		leftID := childAt(leftmost, entries, leftSlot)
		leftPg, err := ps.get(leftID)
		if err != nil {
			return false, err
		}
		if node.IsLeaf() {
			if err := mergeLeaf(ps, leftPg, node); err != nil {
				return false, err
			}
		} else {
			mergeInternal(leftPg, entries[slot].key, node)
		}
		newEntries := append(append([]internalEntry{}, entries[:slot]...), entries[slot+1:]...)
		encodeInternal(parent, leftmost, newEntries)
		if err := t.fm.FreePage(nodeID); err != nil {
			return false, err
		}
		return true, nil
	}
	if hasRight {
		rightID := childAt(leftmost, entries, rightSlot)
		rightPg, err := ps.get(rightID)
		if err != nil {
			return false, err
		}
		if node.IsLeaf() {
			if err := mergeLeaf(ps, node, rightPg); err != nil {
				return false, err
			}
		} else {
			mergeInternal(node, entries[rightSlot].key, rightPg)
		}
		newEntries := append(append([]internalEntry{}, entries[:rightSlot]...), entries[rightSlot+1:]...)
		encodeInternal(parent, leftmost, newEntries)
		if err := t.fm.FreePage(rightID); err != nil {
			return false, err
		}
		return true, nil
	}

	// Only child of its parent: nothing to borrow from or merge with.
	return false, nil
}

func borrowLeafFromLeft(leftPg, node *page.Page) int {
	leftEntries := decodeLeaf(leftPg)
	nodeEntries := decodeLeaf(node)
	moved := leftEntries[len(leftEntries)-1]
	leftEntries = leftEntries[:len(leftEntries)-1]
	nodeEntries = append([]Entry{moved}, nodeEntries...)
	encodeLeaf(leftPg, leftEntries)
	encodeLeaf(node, nodeEntries)
	return moved.Key
}

func borrowLeafFromRight(node, rightPg *page.Page) int {
	nodeEntries := decodeLeaf(node)
	rightEntries := decodeLeaf(rightPg)
	moved := rightEntries[0]
	rightEntries = rightEntries[1:]
	nodeEntries = append(nodeEntries, moved)
	encodeLeaf(node, nodeEntries)
	encodeLeaf(rightPg, rightEntries)
	return rightEntries[0].Key
}

func borrowInternalFromLeft(leftPg, node *page.Page, parentSeparator int) int {
	leftLeftmost, leftEntries := decodeInternal(leftPg)
	nodeLeftmost, nodeEntries := decodeInternal(node)
	last := leftEntries[len(leftEntries)-1]
	leftEntries = leftEntries[:len(leftEntries)-1]
	newNodeEntries := append([]internalEntry{{key: parentSeparator, child: nodeLeftmost}}, nodeEntries...)
	encodeInternal(leftPg, leftLeftmost, leftEntries)
	encodeInternal(node, last.child, newNodeEntries)
	return last.key
}

func borrowInternalFromRight(node, rightPg *page.Page, parentSeparator int) int {
	nodeLeftmost, nodeEntries := decodeInternal(node)
	rightLeftmost, rightEntries := decodeInternal(rightPg)
	first := rightEntries[0]
	rightEntries = rightEntries[1:]
	newNodeEntries := append(append([]internalEntry{}, nodeEntries...), internalEntry{key: parentSeparator, child: rightLeftmost})
	encodeInternal(node, nodeLeftmost, newNodeEntries)
	encodeInternal(rightPg, first.child, rightEntries)
	return first.key
}

// mergeLeaf absorbs right's entries into left, which survives, and
// splices right out of the leaf chain.
func mergeLeaf(ps *pinSet, left, right *page.Page) error {
	merged := append(decodeLeaf(left), decodeLeaf(right)...)
	newNext := right.NextLeaf()
	encodeLeaf(left, merged)
	left.SetNextLeaf(newNext)
	if newNext != page.NoPage {
		nextPg, err := ps.get(newNext)
		if err != nil {
			return err
		}
		nextPg.SetPrevLeaf(left.ID())
	}
	return nil
}

// mergeInternal absorbs right's leftmost and entries into left, which
// survives, demoting the parent separator between them into the
// merged node.
func mergeInternal(left *page.Page, separator int, right *page.Page) {
	leftLeftmost, leftEntries := decodeInternal(left)
	rightLeftmost, rightEntries := decodeInternal(right)
	merged := append(leftEntries, internalEntry{key: separator, child: rightLeftmost})
	merged = append(merged, rightEntries...)
	encodeInternal(left, leftLeftmost, merged)
}
