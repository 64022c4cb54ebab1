package bits

import "math/bits"

// The level construction primitives below operate on plain []uint64 word
// arrays. A level is built as a (result, collision) pair: a bit set twice in
// result is recorded in collision, and RemoveCollided finally clears every
// collided bit, leaving exactly the keys that received a slot alone.

// Get reports whether bit i is set.
func Get(words []uint64, i uint64) bool {
	return words[i>>6]&(1<<(i&63)) != 0
}

// Set sets bit i.
func Set(words []uint64, i uint64) {
	words[i>>6] |= 1 << (i & 63)
}

// AddBit sets bit i in result; if it was already set, the bit is recorded in
// collision instead. Branchless, mirroring the hot construction loop.
func AddBit(result, collision []uint64, i uint64) {
	w := i >> 6
	mask := uint64(1) << (i & 63)
	collision[w] |= result[w] & mask
	result[w] |= mask
}

// RemoveCollided clears from result every bit that is set in collision.
func RemoveCollided(result, collision []uint64) {
	for w, c := range collision {
		result[w] &^= c
	}
}

// Merge folds a worker's partial (result, collision) pair into the
// accumulated pair. A bit set in both partial results is a cross-worker
// collision. The operation is associative and commutative, so the merge
// order does not affect the outcome.
func Merge(dstResult, dstCollision, srcResult, srcCollision []uint64) {
	for w := range srcResult {
		dstCollision[w] |= srcCollision[w] | (dstResult[w] & srcResult[w])
		dstResult[w] |= srcResult[w]
	}
}

// OnesCount returns the total number of set bits.
func OnesCount(words []uint64) uint64 {
	var n uint64
	for _, w := range words {
		n += uint64(bits.OnesCount64(w))
	}
	return n
}
