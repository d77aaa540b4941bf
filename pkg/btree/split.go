// ABOUTME: Preemptive node splitting during descent, per the B+ tree's promoted-key conventions
// ABOUTME: Leaf splits promote the sibling's first key; internal splits promote and discard the middle key

package btree

import "github.com/nainya/relstore/pkg/page"

// splitChild splits the child of parentID identified by slot (-1 for
// the leftmost child, otherwise an index into the parent's entries)
// and inserts the resulting separator into the parent.
func (t *Tree) splitChild(ps *pinSet, parentID int, slot int) error {
	parent, err := ps.get(parentID)
	if err != nil {
		return err
	}
	leftmost, entries := decodeInternal(parent)
	childID := childAt(leftmost, entries, slot)
	child, err := ps.get(childID)
	if err != nil {
		return err
	}

	var promotedKey, siblingID int
	if child.IsLeaf() {
		promotedKey, siblingID, err = t.splitLeafNode(ps, child)
	} else {
		promotedKey, siblingID, err = t.splitInternalNode(ps, child)
	}
	if err != nil {
		return err
	}

	newEntry := internalEntry{key: promotedKey, child: siblingID}
	if slot == -1 {
		entries = append([]internalEntry{newEntry}, entries...)
	} else {
		out := make([]internalEntry, 0, len(entries)+1)
		out = append(out, entries[:slot+1]...)
		out = append(out, newEntry)
		out = append(out, entries[slot+1:]...)
		entries = out
	}
	encodeInternal(parent, leftmost, entries)
	return nil
}

func (t *Tree) splitLeafNode(ps *pinSet, child *page.Page) (int, int, error) {
	entries := decodeLeaf(child)
	mid := len(entries) / 2
	left := entries[:mid]
	right := entries[mid:]

	siblingID, err := t.fm.AllocateNewPage(page.TypeIndex)
	if err != nil {
		return 0, 0, err
	}
	sibling, err := ps.get(siblingID)
	if err != nil {
		return 0, 0, err
	}
	sibling.SetIsLeaf(true)

	oldNext := child.NextLeaf()
	sibling.SetNextLeaf(oldNext)
	sibling.SetPrevLeaf(child.ID())
	child.SetNextLeaf(siblingID)
	if oldNext != page.NoPage {
		nextPg, err := ps.get(oldNext)
		if err != nil {
			return 0, 0, err
		}
		nextPg.SetPrevLeaf(siblingID)
	}

	encodeLeaf(child, left)
	encodeLeaf(sibling, right)
	return right[0].Key, siblingID, nil
}

func (t *Tree) splitInternalNode(ps *pinSet, child *page.Page) (int, int, error) {
	leftmost, entries := decodeInternal(child)
	mid := len(entries) / 2
	left := entries[:mid]
	promoted := entries[mid]
	right := entries[mid+1:]

	siblingID, err := t.fm.AllocateNewPage(page.TypeIndex)
	if err != nil {
		return 0, 0, err
	}
	sibling, err := ps.get(siblingID)
	if err != nil {
		return 0, 0, err
	}

	encodeInternal(child, leftmost, left)
	encodeInternal(sibling, promoted.child, right)
	return promoted.key, siblingID, nil
}
