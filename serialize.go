package fmph

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	fmpherrors "github.com/tamirms/fmph/errors"
	"github.com/tamirms/fmph/internal/bits"
)

const (
	// magic number for serialized functions, "FMPH" in little-endian
	magic = uint32(0x48504D46)

	// version is the current format version
	version = uint8(1)

	// headerSize is the exact size of the serialized header (24 bytes)
	headerSize = 24

	// footerSize is the xxHash64 checksum trailer (8 bytes)
	footerSize = 8

	kindPlain   = uint8(0)
	kindGrouped = uint8(1)

	// Sanity caps applied before allocating from untrusted sizes.
	maxSerializedLevels   = 1 << 20
	maxSerializedWords    = 1 << 40
	maxSerializedFallback = 1 << 40
	maxSerializedKeyLen   = 1 << 30
)

// Evaluator is the read side shared by both function kinds. ReadEvaluator,
// Open, OpenFile, and OpenBytes return it so callers that only evaluate do
// not need to know which kind a file holds.
type Evaluator interface {
	// Lookup returns the index of key in [0, Len()).
	Lookup(key []byte) (uint64, bool)

	// Len returns the number of keys the function was built from.
	Len() int

	// Levels returns the number of levels in the cascade.
	Levels() int

	// WriteTo serializes the function.
	WriteTo(w io.Writer) (int64, error)
}

var (
	_ Evaluator = (*Function)(nil)
	_ Evaluator = (*GOFunction)(nil)
)

// header is the 24-byte function header.
//
// Layout:
//
//	Offset  Size  Field          Type
//	0       4     Magic          0x48504D46 ("FMPH")
//	4       1     Version        0x01
//	5       1     Kind           uint8 (0=plain, 1=grouped)
//	6       1     HasherID       uint8
//	7       1     BitsPerSeed    uint8 (0 for plain)
//	8       1     BitsPerGroup   uint8 (0 for plain)
//	9       3     Reserved       [3]byte (zero)
//	12      4     LevelCount     uint32_le
//	16      8     FallbackCount  uint64_le
//
// After the header come LevelCount uint64_le level sizes (segments for
// plain, groups for grouped), the raw bitmap words, the packed group seed
// words (grouped only), the fallback entries in ascending key order, and an
// xxHash64 checksum of everything before it.
type header struct {
	Magic         uint32
	Version       uint8
	Kind          uint8
	HasherID      HasherID
	BitsPerSeed   uint8
	BitsPerGroup  uint8
	LevelCount    uint32
	FallbackCount uint64
}

func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Kind
	buf[6] = uint8(h.HasherID)
	buf[7] = h.BitsPerSeed
	buf[8] = h.BitsPerGroup
	buf[9], buf[10], buf[11] = 0, 0, 0
	binary.LittleEndian.PutUint32(buf[12:16], h.LevelCount)
	binary.LittleEndian.PutUint64(buf[16:24], h.FallbackCount)
}

func decodeHeader(buf []byte) (*header, error) {
	h := &header{
		Magic:         binary.LittleEndian.Uint32(buf[0:4]),
		Version:       buf[4],
		Kind:          buf[5],
		HasherID:      HasherID(buf[6]),
		BitsPerSeed:   buf[7],
		BitsPerGroup:  buf[8],
		LevelCount:    binary.LittleEndian.Uint32(buf[12:16]),
		FallbackCount: binary.LittleEndian.Uint64(buf[16:24]),
	}
	if h.Magic != magic {
		return nil, fmpherrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, fmpherrors.ErrInvalidVersion
	}
	if h.Kind != kindPlain && h.Kind != kindGrouped {
		return nil, fmt.Errorf("%w: unknown kind %d", fmpherrors.ErrCorruptedFunction, h.Kind)
	}
	if h.LevelCount > maxSerializedLevels {
		return nil, fmt.Errorf("%w: level count %d", fmpherrors.ErrCorruptedFunction, h.LevelCount)
	}
	if h.FallbackCount > maxSerializedFallback {
		return nil, fmt.Errorf("%w: fallback count %d", fmpherrors.ErrCorruptedFunction, h.FallbackCount)
	}
	if h.Kind == kindGrouped {
		if h.BitsPerSeed < 1 || h.BitsPerSeed > maxBitsPerSeed {
			return nil, fmt.Errorf("%w: bits per seed %d", fmpherrors.ErrCorruptedFunction, h.BitsPerSeed)
		}
		if h.BitsPerGroup < 2 || h.BitsPerGroup > maxBitsPerGroup {
			return nil, fmt.Errorf("%w: bits per group %d", fmpherrors.ErrCorruptedFunction, h.BitsPerGroup)
		}
	}
	return h, nil
}

// hashedWriter tees everything written through an xxHash64 digest so the
// checksum trailer covers the full payload.
type hashedWriter struct {
	w io.Writer
	d xxhash.Digest
	n int64
}

func newHashedWriter(w io.Writer) *hashedWriter {
	hw := &hashedWriter{w: w}
	hw.d.Reset()
	return hw
}

func (hw *hashedWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.n += int64(n)
	_, _ = hw.d.Write(p[:n]) // Digest.Write never fails
	return n, err
}

func (hw *hashedWriter) writeUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := hw.Write(buf[:])
	return err
}

func (hw *hashedWriter) writeWords(words []uint64) error {
	buf := make([]byte, 8*1024)
	for len(words) > 0 {
		n := min(len(words), len(buf)/8)
		for i, w := range words[:n] {
			binary.LittleEndian.PutUint64(buf[i*8:], w)
		}
		if _, err := hw.Write(buf[:n*8]); err != nil {
			return err
		}
		words = words[n:]
	}
	return nil
}

// finish writes the checksum trailer directly to the underlying writer and
// returns the total byte count including it.
func (hw *hashedWriter) finish() (int64, error) {
	var buf [footerSize]byte
	binary.LittleEndian.PutUint64(buf[:], hw.d.Sum64())
	n, err := hw.w.Write(buf[:])
	return hw.n + int64(n), err
}

// hashedReader mirrors hashedWriter on the read side.
type hashedReader struct {
	r io.Reader
	d xxhash.Digest
}

func newHashedReader(r io.Reader) *hashedReader {
	hr := &hashedReader{r: r}
	hr.d.Reset()
	return hr
}

func (hr *hashedReader) readFull(buf []byte) error {
	if _, err := io.ReadFull(hr.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmpherrors.ErrTruncated
		}
		return err
	}
	_, _ = hr.d.Write(buf)
	return nil
}

func (hr *hashedReader) readUint64() (uint64, error) {
	var buf [8]byte
	if err := hr.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (hr *hashedReader) readWords(n uint64) ([]uint64, error) {
	if n > maxSerializedWords {
		return nil, fmt.Errorf("%w: word count %d", fmpherrors.ErrCorruptedFunction, n)
	}
	words := make([]uint64, n)
	buf := make([]byte, 8*1024)
	for i := uint64(0); i < n; {
		c := min(n-i, uint64(len(buf)/8))
		if err := hr.readFull(buf[:c*8]); err != nil {
			return nil, err
		}
		for j := uint64(0); j < c; j++ {
			words[i+j] = binary.LittleEndian.Uint64(buf[j*8:])
		}
		i += c
	}
	return words, nil
}

// verifyChecksum reads the trailer (not through the digest) and compares it
// against the digest of everything read so far.
func (hr *hashedReader) verifyChecksum() error {
	var buf [footerSize]byte
	if _, err := io.ReadFull(hr.r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmpherrors.ErrTruncated
		}
		return err
	}
	if binary.LittleEndian.Uint64(buf[:]) != hr.d.Sum64() {
		return fmpherrors.ErrChecksumFailed
	}
	return nil
}

func writeFallback(hw *hashedWriter, m *fallbackMap) error {
	if m == nil {
		return nil
	}
	var buf [4]byte
	for i, k := range m.keys {
		binary.LittleEndian.PutUint32(buf[:], uint32(len(k)))
		if _, err := hw.Write(buf[:]); err != nil {
			return err
		}
		if _, err := hw.Write(k); err != nil {
			return err
		}
		if err := hw.writeUint64(m.base + uint64(i)); err != nil {
			return err
		}
	}
	return nil
}

func readFallback(hr *hashedReader, count, base uint64) (*fallbackMap, error) {
	if count == 0 {
		return nil, nil
	}
	m := &fallbackMap{
		index: make(map[string]uint64, count),
		keys:  make([][]byte, 0, count),
		base:  base,
	}
	var lenBuf [4]byte
	for i := uint64(0); i < count; i++ {
		if err := hr.readFull(lenBuf[:]); err != nil {
			return nil, err
		}
		keyLen := binary.LittleEndian.Uint32(lenBuf[:])
		if keyLen > maxSerializedKeyLen {
			return nil, fmt.Errorf("%w: fallback key length %d", fmpherrors.ErrCorruptedFunction, keyLen)
		}
		key := make([]byte, keyLen)
		if err := hr.readFull(key); err != nil {
			return nil, err
		}
		index, err := hr.readUint64()
		if err != nil {
			return nil, err
		}
		m.keys = append(m.keys, key)
		m.index[string(key)] = index
	}
	return m, nil
}

// WriteTo serializes the function. The format is fixed little-endian and
// ends with an xxHash64 checksum; output is byte-identical for functions
// built from the same keys and options, regardless of worker count.
func (f *Function) WriteTo(w io.Writer) (int64, error) {
	h := header{
		Magic:         magic,
		Version:       version,
		Kind:          kindPlain,
		HasherID:      f.hasher.ID(),
		LevelCount:    uint32(len(f.levelSegments)),
		FallbackCount: uint64(f.fallback.len()),
	}
	var buf [headerSize]byte
	h.encodeTo(buf[:])

	hw := newHashedWriter(w)
	if _, err := hw.Write(buf[:]); err != nil {
		return hw.n, err
	}
	for _, segments := range f.levelSegments {
		if err := hw.writeUint64(segments); err != nil {
			return hw.n, err
		}
	}
	if err := hw.writeWords(f.array.Words()); err != nil {
		return hw.n, err
	}
	if err := writeFallback(hw, f.fallback); err != nil {
		return hw.n, err
	}
	return hw.finish()
}

// WriteTo serializes the function in the same envelope as Function.WriteTo,
// with the packed group seeds after the bitmap.
func (f *GOFunction) WriteTo(w io.Writer) (int64, error) {
	h := header{
		Magic:         magic,
		Version:       version,
		Kind:          kindGrouped,
		HasherID:      f.hasher.ID(),
		BitsPerSeed:   f.bitsPerSeed,
		BitsPerGroup:  f.bitsPerGroup,
		LevelCount:    uint32(len(f.levelGroups)),
		FallbackCount: uint64(f.fallback.len()),
	}
	var buf [headerSize]byte
	h.encodeTo(buf[:])

	hw := newHashedWriter(w)
	if _, err := hw.Write(buf[:]); err != nil {
		return hw.n, err
	}
	for _, groups := range f.levelGroups {
		if err := hw.writeUint64(groups); err != nil {
			return hw.n, err
		}
	}
	if err := hw.writeWords(f.array.Words()); err != nil {
		return hw.n, err
	}
	if err := hw.writeWords(f.groupSeeds); err != nil {
		return hw.n, err
	}
	if err := writeFallback(hw, f.fallback); err != nil {
		return hw.n, err
	}
	return hw.finish()
}

func (f *Function) serializedSize() int64 {
	n := int64(headerSize)
	n += int64(len(f.levelSegments)) * 8
	n += int64(len(f.array.Words())) * 8
	for _, k := range f.fallbackKeys() {
		n += 4 + int64(len(k)) + 8
	}
	return n + footerSize
}

func (f *GOFunction) serializedSize() int64 {
	n := int64(headerSize)
	n += int64(len(f.levelGroups)) * 8
	n += int64(len(f.array.Words())) * 8
	n += int64(len(f.groupSeeds)) * 8
	for _, k := range f.fallbackKeys() {
		n += 4 + int64(len(k)) + 8
	}
	return n + footerSize
}

func (f *Function) fallbackKeys() [][]byte {
	if f.fallback == nil {
		return nil
	}
	return f.fallback.keys
}

func (f *GOFunction) fallbackKeys() [][]byte {
	if f.fallback == nil {
		return nil
	}
	return f.fallback.keys
}

// ReadFunction deserializes a plain function written by Function.WriteTo.
// It fails with ErrWrongKind if r holds a grouped function.
func ReadFunction(r io.Reader) (*Function, error) {
	ev, err := ReadEvaluator(r)
	if err != nil {
		return nil, err
	}
	f, ok := ev.(*Function)
	if !ok {
		return nil, fmpherrors.ErrWrongKind
	}
	return f, nil
}

// ReadGOFunction deserializes a grouped function written by
// GOFunction.WriteTo. It fails with ErrWrongKind if r holds a plain
// function.
func ReadGOFunction(r io.Reader) (*GOFunction, error) {
	ev, err := ReadEvaluator(r)
	if err != nil {
		return nil, err
	}
	f, ok := ev.(*GOFunction)
	if !ok {
		return nil, fmpherrors.ErrWrongKind
	}
	return f, nil
}

// ReadEvaluator deserializes a function of either kind. The whole payload is
// read and re-hashed; ErrChecksumFailed means the bytes were damaged after
// writing. The returned value is a *Function or a *GOFunction.
func ReadEvaluator(r io.Reader) (Evaluator, error) {
	hr := newHashedReader(r)
	var buf [headerSize]byte
	if err := hr.readFull(buf[:]); err != nil {
		return nil, err
	}
	h, err := decodeHeader(buf[:])
	if err != nil {
		return nil, err
	}
	hasher, err := hasherByID(h.HasherID)
	if err != nil {
		return nil, err
	}

	sizes := make([]uint64, h.LevelCount)
	var totalWords, totalGroups uint64
	for i := range sizes {
		sizes[i], err = hr.readUint64()
		if err != nil {
			return nil, err
		}
		if h.Kind == kindPlain {
			totalWords += sizes[i]
			continue
		}
		// Every level is a whole number of segments.
		levelBits := sizes[i] * uint64(h.BitsPerGroup)
		if levelBits%64 != 0 {
			return nil, fmt.Errorf("%w: level geometry", fmpherrors.ErrCorruptedFunction)
		}
		totalGroups += sizes[i]
		totalWords += levelBits / 64
	}

	words, err := hr.readWords(totalWords)
	if err != nil {
		return nil, err
	}
	var seedWords []uint64
	if h.Kind == kindGrouped {
		seedWords, err = hr.readWords(uint64(bits.FragmentWords(totalGroups, h.BitsPerSeed)))
		if err != nil {
			return nil, err
		}
	}

	array := bits.NewRanked(words)
	fallback, err := readFallback(hr, h.FallbackCount, array.Ones())
	if err != nil {
		return nil, err
	}
	if err := hr.verifyChecksum(); err != nil {
		return nil, err
	}

	if h.Kind == kindPlain {
		return &Function{
			array:         array,
			levelSegments: sizes,
			fallback:      fallback,
			hasher:        hasher,
		}, nil
	}
	return &GOFunction{
		array:        array,
		levelGroups:  sizes,
		groupSeeds:   seedWords,
		bitsPerSeed:  h.BitsPerSeed,
		bitsPerGroup: h.BitsPerGroup,
		fallback:     fallback,
		hasher:       hasher,
	}, nil
}
