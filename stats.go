package fmph

// LevelStats records one level of the construction cascade.
type LevelStats struct {
	// InputKeys is the number of keys entering the level.
	InputKeys int

	// ArrayBits is the size of the level's bit array.
	ArrayBits uint64

	// Placed is the number of keys that received a collision-free slot.
	Placed int
}

// BuildStats collects construction statistics. Pass a zero value via
// WithStats; Build and BuildGO fill it in.
type BuildStats struct {
	// Levels holds one entry per constructed level, in order.
	Levels []LevelStats

	// FallbackKeys is the number of keys resolved by the fallback map.
	FallbackKeys int

	// PoorConvergence is set when the fallback map absorbed a
	// disproportionate share of the key set (more than 1 in 64). It signals
	// a misconfigured relative level size or an adversarial key set; the
	// function is still correct, just larger than it should be.
	PoorConvergence bool
}

// poorConvergence reports whether fallback keys are a disproportionate share
// of a key set of size total.
func poorConvergence(fallbackKeys, total int) bool {
	return fallbackKeys > 0 && fallbackKeys*64 > total
}

func (s *BuildStats) record(level LevelStats) {
	if s == nil {
		return
	}
	s.Levels = append(s.Levels, level)
}

func (s *BuildStats) end(fallbackKeys, total int) {
	if s == nil {
		return
	}
	s.FallbackKeys = fallbackKeys
	s.PoorConvergence = poorConvergence(fallbackKeys, total)
}
