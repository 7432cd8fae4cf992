package rangeban

import "sort"

// index4 keeps IPv4 ranges sorted ascending by start. Alongside the sorted
// sequence it maintains maxEnd, where maxEnd[i] is the largest end bound among
// ranges[0..i]. A point query binary-searches the rightmost range starting at
// or below the value, then walks left until the running max-end falls below
// the value — correct under arbitrary overlap depth, unlike probing a fixed
// number of neighbours around the search cursor.
type index4 struct {
	ranges []*encodedRange
	maxEnd []uint32
}

func (ix *index4) insert(r *encodedRange) {
	pos := sort.Search(len(ix.ranges), func(i int) bool {
		return ix.ranges[i].start4 >= r.start4
	})
	ix.ranges = append(ix.ranges, nil)
	copy(ix.ranges[pos+1:], ix.ranges[pos:])
	ix.ranges[pos] = r
	ix.rebuildMaxEnd()
}

func (ix *index4) remove(notation string) {
	kept := ix.ranges[:0]
	for _, r := range ix.ranges {
		if r.entry.Range != notation {
			kept = append(kept, r)
		}
	}
	ix.ranges = kept
	ix.rebuildMaxEnd()
}

func (ix *index4) rebuildMaxEnd() {
	ix.maxEnd = ix.maxEnd[:0]
	running := uint32(0)
	for _, r := range ix.ranges {
		if r.end4 > running {
			running = r.end4
		}
		ix.maxEnd = append(ix.maxEnd, running)
	}
}

func (ix *index4) query(v uint32) *encodedRange {
	// Rightmost range with start <= v; everything to its left also starts
	// at or below v, so only the end bound needs checking on the walk.
	i := sort.Search(len(ix.ranges), func(i int) bool {
		return ix.ranges[i].start4 > v
	}) - 1

	for ; i >= 0; i-- {
		if ix.maxEnd[i] < v {
			return nil
		}
		if ix.ranges[i].end4 >= v {
			return ix.ranges[i]
		}
	}
	return nil
}

func (ix *index4) len() int { return len(ix.ranges) }

func (ix *index4) clear() {
	ix.ranges = nil
	ix.maxEnd = nil
}

// index6 keeps IPv6 ranges sorted by start for a stable iteration order but
// answers queries with a linear first-match scan: v6 ban entries are expected
// to stay numerically few, and 128-bit comparisons are cheap.
type index6 struct {
	ranges []*encodedRange
}

func (ix *index6) insert(r *encodedRange) {
	pos := sort.Search(len(ix.ranges), func(i int) bool {
		return !ix.ranges[i].start6.Less(r.start6)
	})
	ix.ranges = append(ix.ranges, nil)
	copy(ix.ranges[pos+1:], ix.ranges[pos:])
	ix.ranges[pos] = r
}

func (ix *index6) remove(notation string) {
	kept := ix.ranges[:0]
	for _, r := range ix.ranges {
		if r.entry.Range != notation {
			kept = append(kept, r)
		}
	}
	ix.ranges = kept
}

func (ix *index6) query(v Uint128) *encodedRange {
	for _, r := range ix.ranges {
		if r.contains6(v) {
			return r
		}
	}
	return nil
}

func (ix *index6) len() int { return len(ix.ranges) }

func (ix *index6) clear() { ix.ranges = nil }
