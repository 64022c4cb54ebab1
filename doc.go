// Package fmph implements fingerprint-based Minimal Perfect Hash Functions
// (MPHF) in two variants: a plain fingerprint cascade (Build) and a
// group-optimized cascade (BuildGO) that spends a few bits per group of
// slots to place more keys per level and produce a smaller function.
//
// A minimal perfect hash function maps each of n build keys to a distinct
// index in [0, n) while storing only a few bits per key and never storing
// the keys themselves (except for the rare keys the cascade cannot place).
//
// # Basic Usage
//
// Building and evaluating:
//
//	f, err := fmph.BuildGO(keys)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	idx, ok := f.Lookup(keys[0]) // distinct idx in [0, f.Len()) per key
//
// Persisting and reloading:
//
//	if _, err := f.WriteTo(file); err != nil {
//	    log.Fatal(err)
//	}
//	ev, err := fmph.Open("keys.mphf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	idx, ok := ev.Lookup(keys[0])
//
// Lookup on a key outside the build set returns an arbitrary index or
// ok=false; callers that need membership must store the keys themselves.
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: function.go (Build, Function), gofunction.go (BuildGO, GOFunction)
//   - Configuration: options.go (BuildOption, With* functions), hasher.go (SeededHasher)
//   - Construction: builder.go (level arrays, parallel build), goindexing.go (group arithmetic)
//   - Serialization: serialize.go (WriteTo, ReadEvaluator), file.go (Open, mmap)
//   - Bit machinery: internal/bits (fastrange, fragments, rank directory)
//   - Platform: prefault_*.go (OS-specific optimizations)
package fmph
