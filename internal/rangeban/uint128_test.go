package rangeban

import "testing"

func TestUint128AddCarriesAcrossWords(t *testing.T) {
	sum := Uint128{0, ^uint64(0)}.Add(Uint128{0, 1})
	if sum != (Uint128{1, 0}) {
		t.Fatalf("carry lost: %+v", sum)
	}
}

func TestUint128Cmp(t *testing.T) {
	cases := []struct {
		a, b Uint128
		want int
	}{
		{Uint128{}, Uint128{}, 0},
		{Uint128{0, 1}, Uint128{0, 2}, -1},
		{Uint128{1, 0}, Uint128{0, ^uint64(0)}, 1},
		{Uint128{2, 5}, Uint128{2, 5}, 0},
	}
	for _, tc := range cases {
		if got := tc.a.Cmp(tc.b); got != tc.want {
			t.Errorf("Cmp(%+v, %+v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		if tc.a.Less(tc.b) != (tc.want < 0) {
			t.Errorf("Less(%+v, %+v) inconsistent with Cmp", tc.a, tc.b)
		}
	}
}

func TestHostMask6Widths(t *testing.T) {
	cases := []struct {
		hostBits int
		want     Uint128
	}{
		{0, Uint128{}},
		{1, Uint128{0, 1}},
		{64, Uint128{0, ^uint64(0)}},
		{65, Uint128{1, ^uint64(0)}},
		{127, Uint128{^uint64(0) >> 1, ^uint64(0)}},
		{128, Uint128{^uint64(0), ^uint64(0)}},
	}
	for _, tc := range cases {
		if got := hostMask6(tc.hostBits); got != tc.want {
			t.Errorf("hostMask6(%d) = %+v, want %+v", tc.hostBits, got, tc.want)
		}
	}
}
