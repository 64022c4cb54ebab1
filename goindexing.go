package fmph

import (
	mathbits "math/bits"

	"github.com/tamirms/fmph/internal/bits"
)

// Index arithmetic for the grouped variant. A level's bit array is split
// into groups of bitsPerGroup consecutive bits. A key's hash selects its
// group; the in-group slot additionally depends on the group's seed, which
// the builder searches per group.

// mix32 is a 32-bit finalizer (xor-shift with multiply). It decorrelates
// the low hash bits from the seed before the in-group range reduction.
func mix32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x21f0aaad
	x ^= x >> 15
	x *= 0xd35a2d97
	x ^= x >> 15
	return x
}

// groupOf maps a key hash to a group index in [0, levelGroups).
func groupOf(hash, levelGroups uint64) uint64 {
	return bits.FastRange64(hash, levelGroups)
}

// inGroupIndex maps a key hash under a group seed to a slot in
// [0, groupBits).
func inGroupIndex(hash, seed uint64, groupBits uint8) uint64 {
	return uint64(bits.FastRange32(mix32(uint32(hash)^uint32(seed)), uint32(groupBits)))
}

// bitIndexForSeed returns a key's bit position inside a level array given
// its group and the group's seed.
func bitIndexForSeed(hash, seed, group uint64, groupBits uint8) uint64 {
	return group*uint64(groupBits) + inGroupIndex(hash, seed, groupBits)
}

// levelGroupsSegments returns the smallest level geometry holding at least
// wantedBits: a bit count that is simultaneously a whole number of groups
// and a whole number of 64-bit segments.
func levelGroupsSegments(wantedBits uint64, groupBits uint8) (groups, segments uint64) {
	step := lcm64(64, uint64(groupBits))
	total := (wantedBits + step - 1) / step * step
	if total == 0 {
		total = step
	}
	return total / uint64(groupBits), total / 64
}

func lcm64(a, b uint64) uint64 {
	return a / gcd64(a, b) * b
}

func gcd64(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// copyGroupIfBetter overwrites group in dst with the same group from src
// when src has strictly more set bits there, and reports whether it did.
// More surviving bits in a group means more keys placed by that group's
// candidate seed.
func copyGroupIfBetter(dst, src []uint64, group uint64, groupBits uint8) bool {
	cur := bits.Fragment(dst, group, groupBits)
	cand := bits.Fragment(src, group, groupBits)
	if mathbits.OnesCount64(cand) <= mathbits.OnesCount64(cur) {
		return false
	}
	bits.SetFragment(dst, group, groupBits, cand)
	return true
}
