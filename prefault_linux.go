//go:build linux

package fmph

import "golang.org/x/sys/unix"

// prefaultRegion hints that the mapped region will be read sequentially very
// soon, so the decode pass does not fault one page at a time.
func prefaultRegion(data []byte) {
	if len(data) == 0 {
		return
	}
	// Best-effort: ignore all errors
	_ = unix.Madvise(data, unix.MADV_WILLNEED)
}
