package rangeban

import "testing"

func TestParseIPv4(t *testing.T) {
	cases := []struct {
		in       string
		want     uint32
		ok       bool
		testName string
	}{
		{"0.0.0.0", 0, true, "zero"},
		{"255.255.255.255", 0xFFFFFFFF, true, "broadcast"},
		{"203.0.113.42", 203<<24 | 0<<16 | 113<<8 | 42, true, "documentation address"},
		{"10.1.2.3", 10<<24 | 1<<16 | 2<<8 | 3, true, "private address"},
		{"1.2.3", 0, false, "three octets"},
		{"1.2.3.4.5", 0, false, "five octets"},
		{"1.2.3.256", 0, false, "octet out of range"},
		{"1.2.3.-1", 0, false, "negative octet"},
		{"1.2.3.x", 0, false, "non-numeric octet"},
		{"1..2.3", 0, false, "empty octet"},
		{"", 0, false, "empty string"},
		{"1.2.3.0004", 0, false, "octet too long"},
	}

	for _, tc := range cases {
		got, ok := ParseIPv4(tc.in)
		if ok != tc.ok {
			t.Errorf("%s: ParseIPv4(%q) ok = %v, want %v", tc.testName, tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("%s: ParseIPv4(%q) = %#x, want %#x", tc.testName, tc.in, got, tc.want)
		}
	}
}

func TestParseIPv6(t *testing.T) {
	cases := []struct {
		in       string
		want     Uint128
		ok       bool
		testName string
	}{
		{"::", Uint128{}, true, "all zeros"},
		{"::1", Uint128{0, 1}, true, "loopback"},
		{"2001:db8::", Uint128{0x20010db800000000, 0}, true, "trailing compression"},
		{"2001:db8::1", Uint128{0x20010db800000000, 1}, true, "compressed middle"},
		{"2001:db8:1234::1", Uint128{0x20010db812340000, 1}, true, "three left groups"},
		{"fe80::1:2:3:4", Uint128{0xfe80000000000000, 0x0001000200030004}, true, "four right groups"},
		{"1:2:3:4:5:6:7:8", Uint128{0x0001000200030004, 0x0005000600070008}, true, "full form"},
		{"ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff", Uint128{^uint64(0), ^uint64(0)}, true, "all ones"},
		{"1:2:3:4:5:6:7", Uint128{}, false, "seven groups no compression"},
		{"1:2:3:4:5:6:7:8:9", Uint128{}, false, "nine groups"},
		{"1::2::3", Uint128{}, false, "double compression"},
		{"1:::2", Uint128{}, false, "triple colon"},
		{"2001:db8::10000", Uint128{}, false, "group out of range"},
		{"2001:dg8::1", Uint128{}, false, "non-hex group"},
		{"1:2:3:4:5:6:7:8::", Uint128{0x0001000200030004, 0x0005000600070008}, true, "zero-width compression"},
		{"", Uint128{}, false, "empty string"},
	}

	for _, tc := range cases {
		got, ok := ParseIPv6(tc.in)
		if ok != tc.ok {
			t.Errorf("%s: ParseIPv6(%q) ok = %v, want %v", tc.testName, tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("%s: ParseIPv6(%q) = %+v, want %+v", tc.testName, tc.in, got, tc.want)
		}
	}
}

func TestIsIPv6(t *testing.T) {
	if IsIPv6("203.0.113.1") {
		t.Error("IsIPv6 misclassified a dotted quad")
	}
	if !IsIPv6("2001:db8::1") {
		t.Error("IsIPv6 missed a colon-hex literal")
	}
}

func TestParseAddrFamilyDispatch(t *testing.T) {
	addr, ok := ParseAddr("203.0.113.1")
	if !ok || addr.Family != FamilyIPv4 {
		t.Fatalf("ParseAddr ipv4 = %+v, ok %v", addr, ok)
	}

	addr, ok = ParseAddr("2001:db8::1")
	if !ok || addr.Family != FamilyIPv6 {
		t.Fatalf("ParseAddr ipv6 = %+v, ok %v", addr, ok)
	}

	if _, ok := ParseAddr("not-an-address"); ok {
		t.Error("ParseAddr accepted garbage")
	}
}
