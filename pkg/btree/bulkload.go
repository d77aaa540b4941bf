// ABOUTME: Bulk loader: packs a sorted (key, pointer) sequence into a bottom-up B+ tree
// ABOUTME: Leaves are packed to MaxKeys*fillFactor entries; parent levels group up to MaxKeys+1 children

package btree

import (
	"github.com/nainya/relstore/pkg/buffer"
	"github.com/nainya/relstore/pkg/file"
	"github.com/nainya/relstore/pkg/page"
)

type builtNode struct {
	pageID   int
	firstKey int
}

// BulkLoad builds a fresh, balanced tree from entries (already sorted
// ascending by key) with the given leaf fill factor. The returned tree
// is not installed anywhere; callers swap it in (e.g. a maintenance
// rebuild replaces the live tree's root with BulkLoad(...).RootID()).
func BulkLoad(pool *buffer.Pool, fm *file.Manager, entries []Entry, fillFactor float64, unique bool) (*Tree, error) {
	t := &Tree{pool: pool, fm: fm, rootID: page.NoPage, unique: unique}
	if len(entries) == 0 {
		return t, nil
	}

	leafSize := int(float64(MaxKeys) * fillFactor)
	if leafSize < 1 {
		leafSize = 1
	}

	var level []builtNode
	var prevLeafID = page.NoPage
	for start := 0; start < len(entries); start += leafSize {
		end := start + leafSize
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		id, err := fm.AllocateNewPage(page.TypeIndex)
		if err != nil {
			return nil, err
		}
		leaf, err := pool.GetPage(id)
		if err != nil {
			return nil, err
		}
		leaf.SetIsLeaf(true)
		encodeLeaf(leaf, chunk)

		if prevLeafID != page.NoPage {
			prevLeaf, err := pool.GetPage(prevLeafID)
			if err != nil {
				return nil, err
			}
			prevLeaf.SetNextLeaf(id)
			leaf.SetPrevLeaf(prevLeafID)
		}
		prevLeafID = id

		level = append(level, builtNode{pageID: id, firstKey: chunk[0].Key})
	}

	groupSize := MaxKeys + 1
	for len(level) > 1 {
		var next []builtNode
		for start := 0; start < len(level); start += groupSize {
			end := start + groupSize
			if end > len(level) {
				end = len(level)
			}
			group := level[start:end]

			id, err := fm.AllocateNewPage(page.TypeIndex)
			if err != nil {
				return nil, err
			}
			parent, err := pool.GetPage(id)
			if err != nil {
				return nil, err
			}
			var parentEntries []internalEntry
			for i := 1; i < len(group); i++ {
				parentEntries = append(parentEntries, internalEntry{key: group[i].firstKey, child: group[i].pageID})
			}
			encodeInternal(parent, group[0].pageID, parentEntries)

			next = append(next, builtNode{pageID: id, firstKey: group[0].firstKey})
		}
		level = next
	}

	t.rootID = level[0].pageID
	return t, nil
}
