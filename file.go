package fmph

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	fmpherrors "github.com/tamirms/fmph/errors"
)

// minFileSize is the smallest well-formed serialized function: header plus
// checksum trailer, with no levels and no fallback entries.
const minFileSize = headerSize + footerSize

// Open loads a serialized function from a file.
func Open(path string) (Evaluator, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open function file: %w", err)
	}
	defer file.Close()
	return OpenFile(file)
}

// OpenFile loads a serialized function by memory-mapping f for the duration
// of the decode. The decoded function copies what it needs, so f may be
// closed as soon as OpenFile returns; the caller owns f either way.
func OpenFile(f *os.File) (Evaluator, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat function file: %w", err)
	}
	if stat.Size() < minFileSize {
		return nil, fmpherrors.ErrTruncated
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap function file: %w", err)
	}
	prefaultRegion(mm)

	ev, err := OpenBytes(mm)
	if uerr := mm.Unmap(); uerr != nil {
		err = errors.Join(err, uerr)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// OpenBytes decodes a serialized function from an in-memory byte slice.
// The function does not retain data.
func OpenBytes(data []byte) (Evaluator, error) {
	if len(data) < minFileSize {
		return nil, fmpherrors.ErrTruncated
	}
	return ReadEvaluator(bytes.NewReader(data))
}
