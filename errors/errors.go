// Package errors defines all exported error sentinels for the fmph library.
//
// This is the single source of truth for error values. Both the top-level
// fmph package and internal packages import from here, ensuring errors.Is
// checks work across package boundaries.
package errors

import "errors"

// Build errors
var (
	ErrDuplicateKey  = errors.New("fmph: duplicate key in input key set")
	ErrInvalidConfig = errors.New("fmph: invalid build configuration")
)

// Serialization errors
var (
	ErrInvalidMagic      = errors.New("fmph: invalid magic number")
	ErrInvalidVersion    = errors.New("fmph: unsupported format version")
	ErrChecksumFailed    = errors.New("fmph: checksum verification failed")
	ErrTruncated         = errors.New("fmph: serialized function is truncated")
	ErrCorruptedFunction = errors.New("fmph: serialized function is corrupted")
	ErrUnknownHasher     = errors.New("fmph: unknown hasher identifier")
	ErrWrongKind         = errors.New("fmph: serialized function is of a different kind")
)
