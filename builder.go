package fmph

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	fmpherrors "github.com/tamirms/fmph/errors"
	"github.com/tamirms/fmph/internal/bits"
)

// minParallelKeys is the per-level key count below which the parallel path
// is not worth its setup cost.
const minParallelKeys = 4096

// validateDistinct rejects key sets with repeated keys. Construction assumes
// distinct keys; a duplicate would cycle through every level without ever
// being placed, so it is caught up front.
func validateDistinct(keys [][]byte) error {
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[string(k)]; dup {
			return fmt.Errorf("%w: %q", fmpherrors.ErrDuplicateKey, k)
		}
		seen[string(k)] = struct{}{}
	}
	return nil
}

// chunkWorkers clamps the worker count for n items. Returns 1 when the
// parallel path should not be taken.
func chunkWorkers(n, workers int) int {
	if workers < 2 || n < minParallelKeys {
		return 1
	}
	if workers > n {
		workers = n
	}
	return workers
}

// parallelChunks runs fn over [0, n) split into one contiguous range per
// worker. With a single worker it degenerates to a direct call.
func parallelChunks(n, workers int, fn func(worker, lo, hi int)) {
	workers = chunkWorkers(n, workers)
	if workers == 1 {
		fn(0, 0, n)
		return
	}
	var g errgroup.Group
	chunk := (n + workers - 1) / workers
	worker := 0
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		w, lo := worker, lo
		g.Go(func() error {
			fn(w, lo, hi)
			return nil
		})
		worker++
	}
	_ = g.Wait() // workers do not fail
}

// hashLevel fills dst with the level hash of every key.
func hashLevel(dst []uint64, keys [][]byte, h SeededHasher, seed uint64, workers int) {
	parallelChunks(len(keys), workers, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			dst[i] = h.Hash(keys[i], seed)
		}
	})
}

// levelHashes returns cached level hashes for the keys, or nil when the key
// count exceeds the cache threshold. The returned slice reuses buf when it
// is large enough.
func levelHashes(buf []uint64, keys [][]byte, conf *buildConfig, seed uint64) []uint64 {
	if conf.cacheThreshold <= 0 || len(keys) > conf.cacheThreshold {
		return nil
	}
	if cap(buf) < len(keys) {
		buf = make([]uint64, len(keys))
	}
	buf = buf[:len(keys)]
	hashLevel(buf, keys, conf.hasher, seed, conf.workers)
	return buf
}

// buildCollisionFree sets bit bitFor(i) for every i in [0, n) across nwords
// words, tracking double placements, and returns the array with all collided
// bits cleared. The surviving ones mark inputs that received a slot alone.
//
// The parallel path gives each worker a private (result, collision) pair and
// merges them afterwards; the merge is associative and commutative, so the
// result is byte-identical to the sequential one.
func buildCollisionFree(n, nwords, workers int, bitFor func(i int) uint64) []uint64 {
	workers = chunkWorkers(n, workers)
	if workers == 1 {
		result := make([]uint64, nwords)
		collision := make([]uint64, nwords)
		for i := 0; i < n; i++ {
			bits.AddBit(result, collision, bitFor(i))
		}
		bits.RemoveCollided(result, collision)
		return result
	}

	results := make([][]uint64, workers)
	collisions := make([][]uint64, workers)
	parallelChunks(n, workers, func(w, lo, hi int) {
		result := make([]uint64, nwords)
		collision := make([]uint64, nwords)
		for i := lo; i < hi; i++ {
			bits.AddBit(result, collision, bitFor(i))
		}
		results[w] = result
		collisions[w] = collision
	})

	result, collision := results[0], collisions[0]
	for w := 1; w < workers; w++ {
		if results[w] == nil {
			continue
		}
		bits.Merge(result, collision, results[w], collisions[w])
	}
	bits.RemoveCollided(result, collision)
	return result
}

// concatLevels flattens per-level word arrays into one array and wraps it in
// a rank directory. Ranking over the concatenation makes per-level index
// offsets implicit in the global bit position.
func concatLevels(levels [][]uint64) *bits.Ranked {
	var total int
	for _, l := range levels {
		total += len(l)
	}
	words := make([]uint64, 0, total)
	for _, l := range levels {
		words = append(words, l...)
	}
	return bits.NewRanked(words)
}
