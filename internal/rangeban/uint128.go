package rangeban

import "math/bits"

// Uint128 is an IPv6 address (or range bound) interpreted as a big-endian
// 128-bit unsigned integer. Keeping the value in two machine words turns range
// comparisons into plain integer arithmetic instead of bytewise work.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

func (u Uint128) Cmp(v Uint128) int {
	switch {
	case u.Hi < v.Hi:
		return -1
	case u.Hi > v.Hi:
		return 1
	case u.Lo < v.Lo:
		return -1
	case u.Lo > v.Lo:
		return 1
	}
	return 0
}

func (u Uint128) Less(v Uint128) bool {
	if u.Hi != v.Hi {
		return u.Hi < v.Hi
	}
	return u.Lo < v.Lo
}

func (u Uint128) And(v Uint128) Uint128 {
	return Uint128{u.Hi & v.Hi, u.Lo & v.Lo}
}

func (u Uint128) Or(v Uint128) Uint128 {
	return Uint128{u.Hi | v.Hi, u.Lo | v.Lo}
}

func (u Uint128) Not() Uint128 {
	return Uint128{^u.Hi, ^u.Lo}
}

func (u Uint128) Add(v Uint128) Uint128 {
	lo, carry := bits.Add64(u.Lo, v.Lo, 0)
	hi, _ := bits.Add64(u.Hi, v.Hi, carry)
	return Uint128{hi, lo}
}

// hostMask6 returns the value with the low hostBits bits set, i.e. the host
// portion of an IPv6 network with prefix length 128-hostBits.
func hostMask6(hostBits int) Uint128 {
	switch {
	case hostBits <= 0:
		return Uint128{}
	case hostBits >= 128:
		return Uint128{^uint64(0), ^uint64(0)}
	case hostBits >= 64:
		return Uint128{^uint64(0) >> (128 - hostBits), ^uint64(0)}
	default:
		return Uint128{0, ^uint64(0) >> (64 - hostBits)}
	}
}
