// Package bits provides low-level bit manipulation primitives shared by the
// construction and evaluation paths: fastrange hash mapping, word-array bit
// vectors with collision tracking, fixed-width bit fragments, and a rank
// directory for O(1) rank queries.
package bits

import "math/bits"

// FastRange64 maps a 64-bit hash uniformly to [0, n).
// Uses the "fastrange" technique: multiply and take high bits.
// This is the standard way to map hashes to ranges without modulo bias.
func FastRange64(hash, n uint64) uint64 {
	hi, _ := bits.Mul64(hash, n)
	return hi
}

// FastRange32 maps a 32-bit hash uniformly to [0, n) returning uint32.
func FastRange32(hash uint32, n uint32) uint32 {
	return uint32((uint64(hash) * uint64(n)) >> 32)
}

// Words returns the number of 64-bit words needed to hold n bits.
func Words(n uint64) int {
	return int((n + 63) / 64)
}
