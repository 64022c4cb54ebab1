// Bench is a benchmarking tool for measuring MPHF build performance, size,
// and query throughput for both function variants.
//
// Usage:
//
//	go run ./cmd/bench -keys 10000000 -algo grouped -workers 4
//
// Flags:
//
//	-keys            Number of keys (default: 10,000,000)
//	-algo            Variant: plain or grouped (default: grouped)
//	-hasher          Hash family: xxh3, xxh64, or murmur3 (default: xxh3)
//	-workers         Number of parallel workers (default: 1)
//	-level-size      Relative level size in percent (default: 100)
//	-bits-per-seed   Group seed width, grouped only (default: 4)
//	-bits-per-group  Group size in bits, grouped only (default: 16)
//	-queries         Number of lookups to time (default: 10,000,000)
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"os"
	"runtime/pprof"
	"time"

	"github.com/tamirms/fmph"
)

func main() {
	keysFlag := flag.Int("keys", 10_000_000, "number of keys")
	algoFlag := flag.String("algo", "grouped", "variant: plain or grouped")
	hasherFlag := flag.String("hasher", "xxh3", "hash family: xxh3, xxh64, or murmur3")
	workersFlag := flag.Int("workers", 1, "number of parallel workers for building")
	levelSizeFlag := flag.Int("level-size", 100, "relative level size in percent")
	bitsPerSeedFlag := flag.Int("bits-per-seed", 4, "group seed width (grouped only)")
	bitsPerGroupFlag := flag.Int("bits-per-group", 16, "group size in bits (grouped only)")
	queriesFlag := flag.Int("queries", 10_000_000, "number of lookups to time")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (build phase only)")
	flag.Parse()

	var hasher fmph.SeededHasher
	switch *hasherFlag {
	case "xxh3":
		hasher = fmph.XXH3Hasher{}
	case "xxh64":
		hasher = fmph.XXH64Hasher{}
	case "murmur3":
		hasher = fmph.Murmur3Hasher{}
	default:
		fmt.Printf("Unknown hasher: %s (use 'xxh3', 'xxh64', or 'murmur3')\n", *hasherFlag)
		return
	}

	numKeys := *keysFlag
	fmt.Println("Generating keys...")
	keys := make([][]byte, numKeys)
	for i := range keys {
		keys[i] = make([]byte, 16)
		_, _ = rand.Read(keys[i]) // crypto/rand.Read error is fatal system issue; ignore for benchmark
	}

	var stats fmph.BuildStats
	opts := []fmph.BuildOption{
		fmph.WithHasher(hasher),
		fmph.WithWorkers(*workersFlag),
		fmph.WithRelativeLevelSize(uint16(*levelSizeFlag)),
		fmph.WithBitsPerSeed(uint8(*bitsPerSeedFlag)),
		fmph.WithBitsPerGroup(uint8(*bitsPerGroupFlag)),
		fmph.WithStats(&stats),
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Printf("Building (%s)...\n", *algoFlag)
	buildStart := time.Now()
	var (
		ev         fmph.Evaluator
		bitsPerKey float64
		err        error
	)
	switch *algoFlag {
	case "plain":
		var f *fmph.Function
		f, err = fmph.Build(keys, opts...)
		if err == nil {
			ev, bitsPerKey = f, f.BitsPerKey()
		}
	case "grouped":
		var f *fmph.GOFunction
		f, err = fmph.BuildGO(keys, opts...)
		if err == nil {
			ev, bitsPerKey = f, f.BitsPerKey()
		}
	default:
		fmt.Printf("Unknown variant: %s (use 'plain' or 'grouped')\n", *algoFlag)
		return
	}
	if err != nil {
		fmt.Printf("Build failed: %v\n", err)
		return
	}
	buildDuration := time.Since(buildStart)
	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}

	size, err := ev.WriteTo(io.Discard)
	if err != nil {
		fmt.Printf("WriteTo failed: %v\n", err)
		return
	}

	fmt.Printf("\nBuild:\n")
	fmt.Printf("  keys:          %d\n", ev.Len())
	fmt.Printf("  time:          %v (%.0f keys/s)\n", buildDuration,
		float64(numKeys)/buildDuration.Seconds())
	fmt.Printf("  levels:        %d\n", ev.Levels())
	fmt.Printf("  fallback keys: %d\n", stats.FallbackKeys)
	fmt.Printf("  size:          %d bytes (%.3f bits/key)\n", size, bitsPerKey)
	for i, l := range stats.Levels {
		fmt.Printf("  level %2d: in=%d bits=%d placed=%d\n", i, l.InputKeys, l.ArrayBits, l.Placed)
	}

	queries := *queriesFlag
	fmt.Printf("\nQuerying %d random build keys...\n", queries)
	rng := mrand.New(mrand.NewPCG(1, 2))
	queryStart := time.Now()
	var sink uint64
	for range queries {
		idx, _ := ev.Lookup(keys[rng.IntN(numKeys)])
		sink ^= idx
	}
	queryDuration := time.Since(queryStart)
	fmt.Printf("  %.1f ns/op (%.0f lookups/s) [checksum %x]\n",
		float64(queryDuration.Nanoseconds())/float64(queries),
		float64(queries)/queryDuration.Seconds(), sink)
}
