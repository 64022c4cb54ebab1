package fmph

import (
	"github.com/tamirms/fmph/internal/bits"
)

// Function is a minimal perfect hash function over the key set it was built
// from: Lookup maps each build key to a distinct index in [0, Len()).
//
// A Function is immutable and safe for concurrent use.
type Function struct {
	array         *bits.Ranked
	levelSegments []uint64 // 64-bit words per level
	fallback      *fallbackMap
	hasher        SeededHasher
}

// levelSizeSegments returns the level array size in 64-bit segments for the
// given input key count. relativeLevelSize is a percentage of the input
// count; 100 sizes the array at one bit per key.
func levelSizeSegments(input int, relativeLevelSize uint16) uint64 {
	segments := (uint64(input)*uint64(relativeLevelSize) + 100*64 - 1) / (100 * 64)
	if segments == 0 {
		segments = 1
	}
	return segments
}

// Build constructs a minimal perfect hash function for keys. Keys must be
// distinct; a duplicate is reported as ErrDuplicateKey. The function
// retains no references to the key bytes.
//
// Construction hashes every key into a per-level bit array sized by
// WithRelativeLevelSize. Keys that land on a bit alone are placed; the rest
// retry on the next level with a fresh seed. Keys still unplaced after
// WithMaxLevels levels are stored exactly, so Build always succeeds on
// distinct keys.
func Build(keys [][]byte, opts ...BuildOption) (*Function, error) {
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

	remaining := make([][]byte, len(keys))
	copy(remaining, keys)

	var (
		levelWords    [][]uint64
		levelSegments []uint64
		hashBuf       []uint64
		noReduction   int
	)
	for level := 0; level < conf.maxLevels && len(remaining) > 0; level++ {
		in := len(remaining)
		segments := levelSizeSegments(in, conf.relativeLevelSize)
		sizeBits := segments * 64
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

		result := buildCollisionFree(in, int(segments), conf.workers, func(i int) uint64 {
			return bits.FastRange64(hashOf(i), sizeBits)
		})

		// Keys whose bit survived are placed; the rest carry over.
		kept := 0
		for i, k := range remaining {
			if !bits.Get(result, bits.FastRange64(hashOf(i), sizeBits)) {
				remaining[kept] = k
				kept++
			}
		}
		placed := in - kept
		remaining = remaining[:kept]

		levelWords = append(levelWords, result)
		levelSegments = append(levelSegments, segments)
		conf.stats.record(LevelStats{InputKeys: in, ArrayBits: sizeBits, Placed: placed})

		if placed == 0 {
			noReduction++
			if noReduction >= levelsWithoutReductionLimit {
				break
			}
		} else {
			noReduction = 0
		}
	}

	// Trailing levels that placed nothing are all zero and contribute no
	// ranks; drop them so evaluation never walks them.
	for len(levelWords) > 0 && bits.OnesCount(levelWords[len(levelWords)-1]) == 0 {
		levelWords = levelWords[:len(levelWords)-1]
		levelSegments = levelSegments[:len(levelSegments)-1]
	}

	array := concatLevels(levelWords)
	conf.stats.end(len(remaining), len(keys))
	return &Function{
		array:         array,
		levelSegments: levelSegments,
		fallback:      newFallbackMap(remaining, array.Ones()),
		hasher:        conf.hasher,
	}, nil
}

// Lookup returns the index of key in [0, Len()).
//
// For keys in the build set the mapping is a bijection onto [0, Len()).
// For keys outside the build set the result is an arbitrary index with
// ok=true, or ok=false; callers needing membership must store the keys
// themselves.
func (f *Function) Lookup(key []byte) (uint64, bool) {
	var begin uint64
	for level, segments := range f.levelSegments {
		sizeBits := segments * 64
		i := begin + bits.FastRange64(f.hasher.Hash(key, uint64(level)), sizeBits)
		if f.array.Get(i) {
			return f.array.Rank(i), true
		}
		begin += sizeBits
	}
	return f.fallback.lookup(key)
}

// Len returns the number of keys the function was built from.
func (f *Function) Len() int {
	return int(f.array.Ones()) + f.fallback.len()
}

// Levels returns the number of levels in the cascade.
func (f *Function) Levels() int {
	return len(f.levelSegments)
}

// LevelSizes returns the size in bits of each level's array.
func (f *Function) LevelSizes() []uint64 {
	sizes := make([]uint64, len(f.levelSegments))
	for i, segments := range f.levelSegments {
		sizes[i] = segments * 64
	}
	return sizes
}

// BitsPerKey returns the serialized size of the function in bits per key.
func (f *Function) BitsPerKey() float64 {
	n := f.Len()
	if n == 0 {
		return 0
	}
	return float64(f.serializedSize()*8) / float64(n)
}
