package rangeban

import (
	"strconv"
	"strings"
)

// Family identifies the address family of a parsed address or encoded range.
type Family int

const (
	FamilyIPv4 Family = iota + 1
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	}
	return "unknown"
}

// Addr is an address parsed once into its family's native width. Exactly one
// of V4/V6 is meaningful, selected by Family.
type Addr struct {
	Family Family
	V4     uint32
	V6     Uint128
}

// IsIPv6 reports whether the literal belongs to the IPv6 family. The presence
// of a colon is sufficient: no valid IPv4 literal contains one.
func IsIPv6(s string) bool {
	return strings.Contains(s, ":")
}

// ParseIPv4 parses a dotted-quad literal into a big-endian uint32.
func ParseIPv4(s string) (uint32, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, false
	}

	var value uint32
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return 0, false
		}
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return 0, false
			}
		}
		octet, err := strconv.Atoi(part)
		if err != nil || octet > 255 {
			return 0, false
		}
		value = value<<8 | uint32(octet)
	}
	return value, true
}

// ParseIPv6 parses a colon-hex literal, including "::" zero-run compression,
// into a big-endian 128-bit value.
func ParseIPv6(s string) (Uint128, bool) {
	groups, ok := expandIPv6Groups(s)
	if !ok {
		return Uint128{}, false
	}

	var value Uint128
	for i, group := range groups {
		if i < 4 {
			value.Hi = value.Hi<<16 | uint64(group)
		} else {
			value.Lo = value.Lo<<16 | uint64(group)
		}
	}
	return value, true
}

// expandIPv6Groups resolves "::" compression and returns exactly 8 group
// values, or ok=false for any malformed literal.
func expandIPv6Groups(s string) ([8]uint16, bool) {
	var groups [8]uint16

	halves := strings.Split(s, "::")
	if len(halves) > 2 {
		return groups, false
	}

	if len(halves) == 2 {
		left, ok := splitGroups(halves[0])
		if !ok {
			return groups, false
		}
		right, ok := splitGroups(halves[1])
		if !ok {
			return groups, false
		}
		if len(left)+len(right) > 8 {
			return groups, false
		}
		idx := 0
		for _, g := range left {
			v, ok := parseGroup(g)
			if !ok {
				return groups, false
			}
			groups[idx] = v
			idx++
		}
		idx += 8 - len(left) - len(right)
		for _, g := range right {
			v, ok := parseGroup(g)
			if !ok {
				return groups, false
			}
			groups[idx] = v
			idx++
		}
		return groups, true
	}

	raw := strings.Split(s, ":")
	if len(raw) != 8 {
		return groups, false
	}
	for i, g := range raw {
		v, ok := parseGroup(g)
		if !ok {
			return groups, false
		}
		groups[i] = v
	}
	return groups, true
}

// splitGroups splits one side of a "::" on ":" and rejects empty groups, which
// only arise from malformed runs like ":::".
func splitGroups(s string) ([]string, bool) {
	if s == "" {
		return nil, true
	}
	parts := strings.Split(s, ":")
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

func parseGroup(s string) (uint16, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil || v > 0xFFFF {
		return 0, false
	}
	return uint16(v), true
}

// ParseAddr parses an address literal into its family's native encoding. The
// family is decided once here; downstream code switches on Addr.Family rather
// than re-inspecting the string.
func ParseAddr(s string) (Addr, bool) {
	if IsIPv6(s) {
		v6, ok := ParseIPv6(s)
		if !ok {
			return Addr{}, false
		}
		return Addr{Family: FamilyIPv6, V6: v6}, true
	}
	v4, ok := ParseIPv4(s)
	if !ok {
		return Addr{}, false
	}
	return Addr{Family: FamilyIPv4, V4: v4}, true
}

// isExempt reports whether the literal is one of the unconditionally
// unblockable inputs. Loopback stays reachable no matter what ranges an
// operator configures, so a bad ban can never lock out the local console.
func isExempt(address string) bool {
	return address == "" || address == "127.0.0.1" || address == "::1"
}
