package highlight

import "strings"

// BuildIndex builds the searchable index for one page from its text leaves.
// Each leaf's raw text is normalized and the normalized texts are joined by
// exactly one space, recording the half-open range [start, end) each leaf
// occupies in the joined string. The separator belongs to no leaf.
//
// An empty or nil leaf slice yields an empty index. BuildIndex never fails;
// it must be called again whenever the page's leaves are replaced, a stale
// index is never patched in place.
func BuildIndex(page int, leaves []Leaf) *PageIndex {
	idx := &PageIndex{
		Page:       page,
		Leaves:     leaves,
		Normalized: make([]string, len(leaves)),
		Ranges:     make([]LeafRange, len(leaves)),
	}
	if len(leaves) == 0 {
		return idx
	}

	var b strings.Builder
	for i, leaf := range leaves {
		text := Normalize(leaf.RawText)
		idx.Normalized[i] = text
		if i > 0 {
			b.WriteByte(' ')
		}
		start := b.Len()
		b.WriteString(text)
		idx.Ranges[i] = LeafRange{Start: start, End: b.Len()}
	}
	idx.Concat = b.String()
	return idx
}

// LeavesOverlapping returns the indices of every leaf whose range intersects
// the half-open window [matchStart, matchEnd) of Concat, in reading order.
// The test is leafEnd > matchStart && leafStart < matchEnd, so an empty leaf
// sitting inside the window counts as overlapped.
func (idx *PageIndex) LeavesOverlapping(matchStart, matchEnd int) []int {
	if idx.Empty() || matchEnd <= matchStart {
		return nil
	}
	var out []int
	for i, r := range idx.Ranges {
		if r.Overlaps(matchStart, matchEnd) {
			out = append(out, i)
		}
	}
	return out
}
