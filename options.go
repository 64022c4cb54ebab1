package fmph

import (
	"fmt"

	fmpherrors "github.com/tamirms/fmph/errors"
)

const (
	// defaultRelativeLevelSize sizes each level at 100% of its input key
	// count (load factor 1.0), which minimizes the constructed function.
	// Larger values speed up evaluation at the expense of size.
	defaultRelativeLevelSize = 100

	// defaultBitsPerSeed gives 16 candidate group seeds per level.
	defaultBitsPerSeed = 4

	// defaultBitsPerGroup is the group slot range in bits.
	defaultBitsPerGroup = 16

	// defaultMaxLevels bounds the retry cascade; keys still unplaced after
	// this many levels land in the fallback map.
	defaultMaxLevels = 64

	// defaultCacheThreshold is the per-level key count below which hashes
	// are computed once and cached (8 bytes per key, max 1GB).
	defaultCacheThreshold = 128 << 20

	// levelsWithoutReductionLimit stops the cascade early when the remaining
	// key count refuses to shrink. Duplicates are rejected eagerly, so this
	// only triggers for keys indistinguishable by the hash family; such keys
	// are resolved by the fallback map.
	levelsWithoutReductionLimit = 10

	maxBitsPerSeed  = 15
	maxBitsPerGroup = 63
)

// BuildOption is a functional option for configuring builds.
type BuildOption func(*buildConfig)

type buildConfig struct {
	hasher            SeededHasher
	relativeLevelSize uint16
	bitsPerSeed       uint8 // grouped variant only
	bitsPerGroup      uint8 // grouped variant only
	maxLevels         int
	workers           int
	cacheThreshold    int
	stats             *BuildStats
}

func defaultBuildConfig() *buildConfig {
	return &buildConfig{
		hasher:            XXH3Hasher{},
		relativeLevelSize: defaultRelativeLevelSize,
		bitsPerSeed:       defaultBitsPerSeed,
		bitsPerGroup:      defaultBitsPerGroup,
		maxLevels:         defaultMaxLevels,
		workers:           0, // Default to single-threaded; use WithWorkers(n) to parallelize
		cacheThreshold:    defaultCacheThreshold,
	}
}

func (c *buildConfig) validate() error {
	if c.hasher == nil {
		return fmt.Errorf("%w: nil hasher", fmpherrors.ErrInvalidConfig)
	}
	if c.relativeLevelSize == 0 {
		return fmt.Errorf("%w: relative level size must be positive", fmpherrors.ErrInvalidConfig)
	}
	if c.bitsPerSeed < 1 || c.bitsPerSeed > maxBitsPerSeed {
		return fmt.Errorf("%w: bits per seed %d outside [1, %d]",
			fmpherrors.ErrInvalidConfig, c.bitsPerSeed, maxBitsPerSeed)
	}
	if c.bitsPerGroup < 2 || c.bitsPerGroup > maxBitsPerGroup {
		return fmt.Errorf("%w: bits per group %d outside [2, %d]",
			fmpherrors.ErrInvalidConfig, c.bitsPerGroup, maxBitsPerGroup)
	}
	if c.maxLevels < 1 {
		return fmt.Errorf("%w: max levels must be at least 1", fmpherrors.ErrInvalidConfig)
	}
	return nil
}

// WithHasher selects the seeded hash family. Default is XXH3Hasher.
func WithHasher(h SeededHasher) BuildOption {
	return func(c *buildConfig) {
		c.hasher = h
	}
}

// WithRelativeLevelSize sets the size of each level's bit array as a percent
// of the level's input key count. 100 (the default) is the inverse of load
// factor 1.0 and minimizes size; values below 100 do not make sense.
func WithRelativeLevelSize(pct uint16) BuildOption {
	return func(c *buildConfig) {
		c.relativeLevelSize = pct
	}
}

// WithBitsPerSeed sets the group seed width for the grouped variant.
// The seed search tries 2^bits candidates per level, so this is both the
// storage cost per group and the search budget. Ignored by Build.
func WithBitsPerSeed(bits uint8) BuildOption {
	return func(c *buildConfig) {
		c.bitsPerSeed = bits
	}
}

// WithBitsPerGroup sets the group slot range in bits for the grouped
// variant. Ignored by Build.
func WithBitsPerGroup(bits uint8) BuildOption {
	return func(c *buildConfig) {
		c.bitsPerGroup = bits
	}
}

// WithMaxLevels bounds the retry cascade. Keys unplaced after the last level
// are stored in the fallback map, so correctness never depends on this
// value, only size and evaluation speed do.
func WithMaxLevels(n int) BuildOption {
	return func(c *buildConfig) {
		c.maxLevels = n
	}
}

// WithWorkers sets the number of parallel workers for level construction.
// Values below 2 build single-threaded.
func WithWorkers(n int) BuildOption {
	return func(c *buildConfig) {
		c.workers = n
	}
}

// WithCacheThreshold sets the per-level key count below which key hashes are
// cached (8 bytes per key). Caching is essential for the grouped variant,
// which sweeps every candidate seed over the same hashes. Use 0 to disable
// caching entirely.
func WithCacheThreshold(n int) BuildOption {
	return func(c *buildConfig) {
		c.cacheThreshold = n
	}
}

// WithStats directs per-level construction statistics into s.
func WithStats(s *BuildStats) BuildOption {
	return func(c *buildConfig) {
		c.stats = s
	}
}
