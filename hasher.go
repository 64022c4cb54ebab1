package fmph

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	fmpherrors "github.com/tamirms/fmph/errors"
)

// HasherID identifies a seeded hash family. It is stored in the serialized
// function so that a persisted function is always evaluated with the hash
// family it was built with.
type HasherID uint8

const (
	// HasherXXH3 is xxHash3 with a native 64-bit seed (default).
	HasherXXH3 HasherID = 0

	// HasherXXH64 is xxHash64 seeded by prepending the seed bytes to the key.
	HasherXXH64 HasherID = 1

	// HasherMurmur3 is MurmurHash3 128-bit with a folded 32-bit seed.
	HasherMurmur3 HasherID = 2
)

// String returns the hasher name.
func (id HasherID) String() string {
	switch id {
	case HasherXXH3:
		return "xxh3"
	case HasherXXH64:
		return "xxh64"
	case HasherMurmur3:
		return "murmur3"
	default:
		return "unknown"
	}
}

// SeededHasher is the seeded hash oracle used for every level and group
// placement decision.
//
// Implementations must be deterministic (the same key and seed always give
// the same value), cheap to re-seed (construction performs many seed trials),
// and safe for concurrent use. The quality of the low 32 bits matters: the
// grouped variant derives in-group slots from them.
type SeededHasher interface {
	// Hash returns a 64-bit pseudo-random value for key under seed.
	Hash(key []byte, seed uint64) uint64

	// ID returns the identifier stored in the serialized function.
	ID() HasherID
}

// XXH3Hasher hashes with xxHash3, which takes a 64-bit seed natively.
// This is the default hasher.
type XXH3Hasher struct{}

// Hash implements SeededHasher.
func (XXH3Hasher) Hash(key []byte, seed uint64) uint64 {
	return xxh3.HashSeed(key, seed)
}

// ID implements SeededHasher.
func (XXH3Hasher) ID() HasherID { return HasherXXH3 }

// XXH64Hasher hashes with xxHash64. xxHash64 has no seed parameter in this
// implementation, so the seed is fed to the digest as an 8-byte prefix.
type XXH64Hasher struct{}

// Hash implements SeededHasher.
func (XXH64Hasher) Hash(key []byte, seed uint64) uint64 {
	var d xxhash.Digest
	d.Reset()
	var sb [8]byte
	binary.LittleEndian.PutUint64(sb[:], seed)
	_, _ = d.Write(sb[:]) // Digest.Write never fails
	_, _ = d.Write(key)
	return d.Sum64()
}

// ID implements SeededHasher.
func (XXH64Hasher) ID() HasherID { return HasherXXH64 }

// Murmur3Hasher hashes with MurmurHash3 128-bit. The 64-bit seed is folded
// to 32 bits (the widest seed murmur3 accepts); level seeds are small
// integers, so no entropy is lost in practice.
type Murmur3Hasher struct{}

// Hash implements SeededHasher.
func (Murmur3Hasher) Hash(key []byte, seed uint64) uint64 {
	hi, lo := murmur3.Sum128WithSeed(key, uint32(seed)^uint32(seed>>32))
	return hi ^ lo
}

// ID implements SeededHasher.
func (Murmur3Hasher) ID() HasherID { return HasherMurmur3 }

// hasherByID returns the SeededHasher for an identifier read from a
// serialized function.
func hasherByID(id HasherID) (SeededHasher, error) {
	switch id {
	case HasherXXH3:
		return XXH3Hasher{}, nil
	case HasherXXH64:
		return XXH64Hasher{}, nil
	case HasherMurmur3:
		return Murmur3Hasher{}, nil
	}
	return nil, fmpherrors.ErrUnknownHasher
}
