package rangeban

import (
	"strconv"
	"strings"
)

// encodedRange is the query-optimized form of one banned network: the
// inclusive [start, end] bounds in the family's native width plus a
// back-reference to the authoritative BanEntry for metadata on a hit.
type encodedRange struct {
	family Family
	start4 uint32
	end4   uint32
	start6 Uint128
	end6   Uint128
	entry  *BanEntry
}

func (r *encodedRange) contains4(v uint32) bool {
	return v >= r.start4 && v <= r.end4
}

func (r *encodedRange) contains6(v Uint128) bool {
	return r.start6.Cmp(v) <= 0 && r.end6.Cmp(v) >= 0
}

// splitNotation breaks "address/prefix" apart and bounds-checks the prefix
// against the address family. It does not parse the address part.
func splitNotation(notation string) (address string, prefix int, ok bool) {
	slash := strings.IndexByte(notation, '/')
	if slash <= 0 || slash == len(notation)-1 {
		return "", 0, false
	}

	address = notation[:slash]
	prefixPart := notation[slash+1:]

	prefix, err := strconv.Atoi(prefixPart)
	if err != nil || prefix < 0 {
		return "", 0, false
	}

	limit := 32
	if IsIPv6(address) {
		limit = 128
	}
	if prefix > limit {
		return "", 0, false
	}
	return address, prefix, true
}

// ValidateNotation reports whether the string is well-formed CIDR notation:
// both parts present, prefix within the family's bit width, address parseable.
func ValidateNotation(notation string) bool {
	address, _, ok := splitNotation(notation)
	if !ok {
		return false
	}
	_, ok = ParseAddr(address)
	return ok
}

// encodeRange derives the inclusive integer bounds of the notation's network.
// Host bits are masked off for both families, so the stored range is always
// anchored at the network base even when the caller supplies a host address.
func encodeRange(notation string, entry *BanEntry) (*encodedRange, bool) {
	address, prefix, ok := splitNotation(notation)
	if !ok {
		return nil, false
	}
	addr, ok := ParseAddr(address)
	if !ok {
		return nil, false
	}

	switch addr.Family {
	case FamilyIPv4:
		hostBits := 32 - prefix
		mask := ^uint32(0) << hostBits
		start := addr.V4 & mask
		return &encodedRange{
			family: FamilyIPv4,
			start4: start,
			end4:   start | ^mask,
			entry:  entry,
		}, true

	case FamilyIPv6:
		hostMask := hostMask6(128 - prefix)
		start := addr.V6.And(hostMask.Not())
		return &encodedRange{
			family: FamilyIPv6,
			start6: start,
			end6:   start.Or(hostMask),
			entry:  entry,
		}, true
	}
	return nil, false
}
