//go:build !linux

package fmph

// prefaultRegion is a no-op on platforms without madvise.
func prefaultRegion(data []byte) {
}
