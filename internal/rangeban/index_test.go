package rangeban

import (
	"math/rand"
	"sort"
	"testing"
)

func mustEncode(t *testing.T, notation string) *encodedRange {
	t.Helper()
	r, ok := encodeRange(notation, &BanEntry{Range: notation})
	if !ok {
		t.Fatalf("encodeRange(%q) failed", notation)
	}
	return r
}

func TestIndex4StaysSorted(t *testing.T) {
	var ix index4
	for _, notation := range []string{
		"198.51.100.0/24", "10.0.0.0/8", "203.0.113.0/24", "172.16.0.0/12", "192.0.2.0/24",
	} {
		ix.insert(mustEncode(t, notation))
	}

	if !sort.SliceIsSorted(ix.ranges, func(i, j int) bool {
		return ix.ranges[i].start4 < ix.ranges[j].start4
	}) {
		t.Fatal("index not sorted ascending by start after inserts")
	}

	ix.remove("172.16.0.0/12")
	if !sort.SliceIsSorted(ix.ranges, func(i, j int) bool {
		return ix.ranges[i].start4 < ix.ranges[j].start4
	}) {
		t.Fatal("index not sorted after removal")
	}
	if ix.len() != 4 {
		t.Fatalf("len = %d after removal, want 4", ix.len())
	}
}

func TestIndex4QueryNestedOverlap(t *testing.T) {
	var ix index4
	// Deep nesting plus unrelated ranges between the nested starts defeats a
	// fixed-width neighbour probe; the running max-end walk must not.
	for _, notation := range []string{
		"10.0.0.0/8",
		"10.16.0.0/12",
		"10.16.0.0/16",
		"10.16.1.0/24",
		"10.20.0.0/16",
		"10.24.0.0/16",
		"10.28.0.0/16",
	} {
		ix.insert(mustEncode(t, notation))
	}

	addr, _ := ParseIPv4("10.200.1.1")
	r := ix.query(addr)
	if r == nil {
		t.Fatal("10.200.1.1 not matched despite containing /8")
	}
	if r.entry.Range != "10.0.0.0/8" {
		t.Fatalf("10.200.1.1 matched %s, want 10.0.0.0/8", r.entry.Range)
	}

	addr, _ = ParseIPv4("10.16.1.50")
	if r := ix.query(addr); r == nil {
		t.Fatal("10.16.1.50 not matched despite four containing ranges")
	}

	addr, _ = ParseIPv4("11.0.0.1")
	if r := ix.query(addr); r != nil {
		t.Fatalf("11.0.0.1 matched %s, want no match", r.entry.Range)
	}
}

func TestIndex4QueryAgainstLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	var ix index4
	var all []*encodedRange
	for i := 0; i < 200; i++ {
		start := rng.Uint32()
		span := rng.Uint32() % (1 << 20)
		end := start + span
		if end < start {
			end = ^uint32(0)
		}
		r := &encodedRange{
			family: FamilyIPv4,
			start4: start,
			end4:   end,
			entry:  &BanEntry{Range: "synthetic"},
		}
		ix.insert(r)
		all = append(all, r)
	}

	for i := 0; i < 2000; i++ {
		v := rng.Uint32()
		want := false
		for _, r := range all {
			if r.contains4(v) {
				want = true
				break
			}
		}
		got := ix.query(v) != nil
		if got != want {
			t.Fatalf("query(%#x) = %v, linear scan says %v", v, got, want)
		}
	}
}

func TestIndex6QueryFirstMatch(t *testing.T) {
	var ix index6
	ix.insert(mustEncode(t, "2001:db8::/32"))
	ix.insert(mustEncode(t, "fd00::/8"))

	v, _ := ParseIPv6("2001:db8:1234::1")
	r := ix.query(v)
	if r == nil || r.entry.Range != "2001:db8::/32" {
		t.Fatalf("query = %v, want 2001:db8::/32", r)
	}

	v, _ = ParseIPv6("2001:db9::1")
	if r := ix.query(v); r != nil {
		t.Fatalf("2001:db9::1 matched %s, want no match", r.entry.Range)
	}

	ix.remove("fd00::/8")
	if ix.len() != 1 {
		t.Fatalf("len = %d after removal, want 1", ix.len())
	}
}
