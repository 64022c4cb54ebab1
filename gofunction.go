package fmph

import (
	"github.com/tamirms/fmph/internal/bits"
)

// GOFunction is the group-optimized minimal perfect hash function built by
// BuildGO. Each level's array is split into fixed-size groups, and a short
// per-group seed is chosen to maximize the keys placed in that group. The
// seeds cost BitsPerSeed bits per group but cut the keys carried to later
// levels, so the function is smaller than Function for the same key set.
//
// A GOFunction is immutable and safe for concurrent use.
type GOFunction struct {
	array        *bits.Ranked
	levelGroups  []uint64 // groups per level
	groupSeeds   []uint64 // packed bitsPerSeed-wide seeds, one per group
	bitsPerSeed  uint8
	bitsPerGroup uint8
	fallback     *fallbackMap
	hasher       SeededHasher
}

// BuildGO constructs a group-optimized minimal perfect hash function for
// keys. Keys must be distinct; a duplicate is reported as ErrDuplicateKey.
// The function retains no references to the key bytes.
//
// Per level, every candidate seed in [0, 2^WithBitsPerSeed) is swept over
// the whole level and each group keeps the candidate that places the most
// keys. Unplaced keys retry on the next level; keys still unplaced after
// WithMaxLevels levels are stored exactly.
func BuildGO(keys [][]byte, opts ...BuildOption) (*GOFunction, error) {
	conf := defaultBuildConfig()
	for _, o := range opts {
		o(conf)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	if err := validateDistinct(keys); err != nil {
		return nil, err
	}

	groupBits := conf.bitsPerGroup
	seedWidth := conf.bitsPerSeed

	var (
		levelWords  [][]uint64
		levelSeeds  [][]uint64
		levelGroups []uint64
		hashBuf     []uint64
		noReduction int
	)
	remaining := make([][]byte, len(keys))
	copy(remaining, keys)

	for level := 0; level < conf.maxLevels && len(remaining) > 0; level++ {
		in := len(remaining)
		wantedBits := (uint64(in)*uint64(conf.relativeLevelSize) + 99) / 100
		groups, segments := levelGroupsSegments(wantedBits, groupBits)
		seed := uint64(level)

		hashes := levelHashes(hashBuf, remaining, conf, seed)
		if hashes != nil {
			hashBuf = hashes
		}
		hashOf := func(i int) uint64 {
			if hashes != nil {
				return hashes[i]
			}
			return conf.hasher.Hash(remaining[i], seed)
		}

		best, seeds := bestLevelArray(in, groups, segments, groupBits, seedWidth,
			conf.workers, hashOf)

		kept := 0
		for i, k := range remaining {
			h := hashOf(i)
			g := groupOf(h, groups)
			gs := bits.Fragment(seeds, g, seedWidth)
			if !bits.Get(best, bitIndexForSeed(h, gs, g, groupBits)) {
				remaining[kept] = k
				kept++
			}
		}
		placed := in - kept
		remaining = remaining[:kept]

		levelWords = append(levelWords, best)
		levelSeeds = append(levelSeeds, seeds)
		levelGroups = append(levelGroups, groups)
		conf.stats.record(LevelStats{InputKeys: in, ArrayBits: segments * 64, Placed: placed})

		if placed == 0 {
			noReduction++
			if noReduction >= levelsWithoutReductionLimit {
				break
			}
		} else {
			noReduction = 0
		}
	}

	for len(levelWords) > 0 && bits.OnesCount(levelWords[len(levelWords)-1]) == 0 {
		levelWords = levelWords[:len(levelWords)-1]
		levelSeeds = levelSeeds[:len(levelSeeds)-1]
		levelGroups = levelGroups[:len(levelGroups)-1]
	}

	array := concatLevels(levelWords)
	conf.stats.end(len(remaining), len(keys))
	return &GOFunction{
		array:        array,
		levelGroups:  levelGroups,
		groupSeeds:   concatGroupSeeds(levelSeeds, levelGroups, seedWidth),
		bitsPerSeed:  seedWidth,
		bitsPerGroup: groupBits,
		fallback:     newFallbackMap(remaining, array.Ones()),
		hasher:       conf.hasher,
	}, nil
}

// bestLevelArray sweeps every candidate group seed over a level of n keys
// and returns the per-group best array together with the packed winning
// seeds. Candidates are tried in ascending order and a group's seed only
// changes on a strict improvement, so the result is deterministic.
func bestLevelArray(n int, groups, segments uint64, groupBits, seedWidth uint8,
	workers int, hashOf func(i int) uint64) (best, seeds []uint64) {

	candidate := func(s uint64) []uint64 {
		return buildCollisionFree(n, int(segments), workers, func(i int) uint64 {
			h := hashOf(i)
			return bitIndexForSeed(h, s, groupOf(h, groups), groupBits)
		})
	}

	best = candidate(0)
	seeds = make([]uint64, bits.FragmentWords(groups, seedWidth))
	for s := uint64(1); s < uint64(1)<<seedWidth; s++ {
		cand := candidate(s)
		for g := uint64(0); g < groups; g++ {
			if copyGroupIfBetter(best, cand, g, groupBits) {
				bits.SetFragment(seeds, g, seedWidth, s)
			}
		}
	}
	return best, seeds
}

// concatGroupSeeds repacks per-level seed vectors into a single vector
// indexed by global group number.
func concatGroupSeeds(levelSeeds [][]uint64, levelGroups []uint64, seedWidth uint8) []uint64 {
	var total uint64
	for _, g := range levelGroups {
		total += g
	}
	packed := make([]uint64, bits.FragmentWords(total, seedWidth))
	var offset uint64
	for l, seeds := range levelSeeds {
		for g := uint64(0); g < levelGroups[l]; g++ {
			bits.SetFragment(packed, offset+g, seedWidth, bits.Fragment(seeds, g, seedWidth))
		}
		offset += levelGroups[l]
	}
	return packed
}

// Lookup returns the index of key in [0, Len()).
//
// The contract matches Function.Lookup: a bijection onto [0, Len()) for the
// build keys, and an arbitrary index or ok=false for anything else.
func (f *GOFunction) Lookup(key []byte) (uint64, bool) {
	var bitBegin, groupBegin uint64
	for level, groups := range f.levelGroups {
		h := f.hasher.Hash(key, uint64(level))
		g := groupOf(h, groups)
		seed := bits.Fragment(f.groupSeeds, groupBegin+g, f.bitsPerSeed)
		i := bitBegin + bitIndexForSeed(h, seed, g, f.bitsPerGroup)
		if f.array.Get(i) {
			return f.array.Rank(i), true
		}
		bitBegin += groups * uint64(f.bitsPerGroup)
		groupBegin += groups
	}
	return f.fallback.lookup(key)
}

// Len returns the number of keys the function was built from.
func (f *GOFunction) Len() int {
	return int(f.array.Ones()) + f.fallback.len()
}

// Levels returns the number of levels in the cascade.
func (f *GOFunction) Levels() int {
	return len(f.levelGroups)
}

// LevelSizes returns the size in bits of each level's array.
func (f *GOFunction) LevelSizes() []uint64 {
	sizes := make([]uint64, len(f.levelGroups))
	for i, groups := range f.levelGroups {
		sizes[i] = groups * uint64(f.bitsPerGroup)
	}
	return sizes
}

// BitsPerSeed returns the stored seed width per group.
func (f *GOFunction) BitsPerSeed() uint8 { return f.bitsPerSeed }

// BitsPerGroup returns the group size in bits.
func (f *GOFunction) BitsPerGroup() uint8 { return f.bitsPerGroup }

// BitsPerKey returns the serialized size of the function in bits per key.
func (f *GOFunction) BitsPerKey() float64 {
	n := f.Len()
	if n == 0 {
		return 0
	}
	return float64(f.serializedSize()*8) / float64(n)
}
