// test_helpers_test.go provides shared test infrastructure: a deterministic
// per-test RNG, random key generation, and bijection verification used by
// both function variants.
package fmph

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	randv2 "math/rand/v2"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *randv2.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return randv2.New(randv2.NewPCG(testSeed1^s1, testSeed2^s2))
}

// generateRandomKeys returns n distinct random keys of varying length.
func generateRandomKeys(t testing.TB, rng *randv2.Rand, n int) [][]byte {
	t.Helper()
	keys := make([][]byte, 0, n)
	seen := make(map[string]struct{}, n)
	for len(keys) < n {
		k := make([]byte, 8+rng.IntN(24))
		for i := range k {
			k[i] = byte(rng.Uint32())
		}
		if _, dup := seen[string(k)]; dup {
			continue
		}
		seen[string(k)] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// sequentialKeys returns n distinct printable keys.
func sequentialKeys(n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%08d", i))
	}
	return keys
}

// verifyBijection checks that ev maps the keys onto [0, len(keys)) with no
// index used twice.
func verifyBijection(t *testing.T, ev Evaluator, keys [][]byte) {
	t.Helper()
	if ev.Len() != len(keys) {
		t.Fatalf("Len: got %d, want %d", ev.Len(), len(keys))
	}
	used := make([]bool, len(keys))
	for i, k := range keys {
		idx, ok := ev.Lookup(k)
		if !ok {
			t.Fatalf("key %d: Lookup reported not found", i)
		}
		if idx >= uint64(len(keys)) {
			t.Fatalf("key %d: index %d out of range [0, %d)", i, idx, len(keys))
		}
		if used[idx] {
			t.Fatalf("key %d: index %d assigned twice", i, idx)
		}
		used[idx] = true
	}
}
