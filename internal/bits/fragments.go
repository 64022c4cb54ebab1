package bits

// Fixed-width bit fragment access over []uint64 word arrays. Fragments are
// consecutive width-bit fields; a fragment may span two adjacent words.
// Width must be in [1, 63]. Used for group slices of a level bitmap and for
// packed group-seed vectors.

// FragmentWords returns the number of 64-bit words needed to hold n
// fragments of the given width.
func FragmentWords(n uint64, width uint8) int {
	return Words(n * uint64(width))
}

// Fragment returns the fragment at the given index.
func Fragment(words []uint64, index uint64, width uint8) uint64 {
	bitPos := index * uint64(width)
	w := bitPos >> 6
	off := bitPos & 63
	v := words[w] >> off
	if off+uint64(width) > 64 {
		v |= words[w+1] << (64 - off)
	}
	return v & (1<<width - 1)
}

// SetFragment stores value (masked to width bits) at the given index.
func SetFragment(words []uint64, index uint64, width uint8, value uint64) {
	mask := uint64(1)<<width - 1
	value &= mask
	bitPos := index * uint64(width)
	w := bitPos >> 6
	off := bitPos & 63
	words[w] = words[w]&^(mask<<off) | value<<off
	if off+uint64(width) > 64 {
		spilled := 64 - off
		words[w+1] = words[w+1]&^(mask>>spilled) | value>>spilled
	}
}
