package fmph

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	fmpherrors "github.com/tamirms/fmph/errors"
)

func buildSerialized(t *testing.T, grouped bool, n int, opts ...BuildOption) (Evaluator, []byte) {
	t.Helper()
	rng := newTestRNG(t)
	keys := generateRandomKeys(t, rng, n)
	var (
		ev  Evaluator
		err error
	)
	if grouped {
		ev, err = BuildGO(keys, opts...)
	} else {
		ev, err = Build(keys, opts...)
	}
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	written, err := ev.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if written != int64(buf.Len()) {
		t.Fatalf("WriteTo reported %d bytes, wrote %d", written, buf.Len())
	}
	return ev, buf.Bytes()
}

func verifySameMapping(t *testing.T, a, b Evaluator, n int) {
	t.Helper()
	rng := newTestRNG(t)
	keys := generateRandomKeys(t, rng, n)
	if a.Len() != b.Len() || a.Levels() != b.Levels() {
		t.Fatalf("shape mismatch: (%d,%d) vs (%d,%d)", a.Len(), a.Levels(), b.Len(), b.Levels())
	}
	for _, k := range keys {
		ai, aok := a.Lookup(k)
		bi, bok := b.Lookup(k)
		if ai != bi || aok != bok {
			t.Fatalf("lookup of %q diverged: (%d,%v) vs (%d,%v)", k, ai, aok, bi, bok)
		}
	}
}

func TestSerializeRoundTripPlain(t *testing.T) {
	const n = 3000
	f, data := buildSerialized(t, false, n)
	got, err := ReadFunction(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	verifySameMapping(t, f, got, n)

	var buf bytes.Buffer
	if _, err := got.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Fatal("re-serialization changed the bytes")
	}
}

func TestSerializeRoundTripGrouped(t *testing.T) {
	const n = 3000
	f, data := buildSerialized(t, true, n, WithBitsPerSeed(5), WithBitsPerGroup(24))
	got, err := ReadGOFunction(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if got.BitsPerSeed() != 5 || got.BitsPerGroup() != 24 {
		t.Errorf("parameters lost: got (%d,%d)", got.BitsPerSeed(), got.BitsPerGroup())
	}
	verifySameMapping(t, f, got, n)

	var buf bytes.Buffer
	if _, err := got.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Fatal("re-serialization changed the bytes")
	}
}

func TestSerializeRoundTripWithFallback(t *testing.T) {
	const n = 500
	f, data := buildSerialized(t, false, n, WithMaxLevels(2))
	if f.(*Function).fallback.len() == 0 {
		t.Fatal("expected fallback entries with two levels")
	}
	got, err := ReadFunction(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	verifySameMapping(t, f, got, n)
}

func TestSerializeRoundTripEmpty(t *testing.T) {
	f, err := Build(nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != minFileSize {
		t.Errorf("empty function serialized to %d bytes, want %d", buf.Len(), minFileSize)
	}
	got, err := ReadFunction(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 0 || got.Levels() != 0 {
		t.Errorf("got Len=%d Levels=%d, want empty", got.Len(), got.Levels())
	}
}

func TestSerializedSizeMatchesWriteTo(t *testing.T) {
	plain, data := buildSerialized(t, false, 2000, WithMaxLevels(4))
	if got := plain.(*Function).serializedSize(); got != int64(len(data)) {
		t.Errorf("plain serializedSize %d != written %d", got, len(data))
	}
	grouped, data := buildSerialized(t, true, 2000, WithMaxLevels(4))
	if got := grouped.(*GOFunction).serializedSize(); got != int64(len(data)) {
		t.Errorf("grouped serializedSize %d != written %d", got, len(data))
	}
}

func TestReadEvaluatorDispatch(t *testing.T) {
	_, plain := buildSerialized(t, false, 200)
	_, grouped := buildSerialized(t, true, 200)

	if ev, err := ReadEvaluator(bytes.NewReader(plain)); err != nil {
		t.Fatal(err)
	} else if _, ok := ev.(*Function); !ok {
		t.Fatalf("plain payload decoded as %T", ev)
	}
	if ev, err := ReadEvaluator(bytes.NewReader(grouped)); err != nil {
		t.Fatal(err)
	} else if _, ok := ev.(*GOFunction); !ok {
		t.Fatalf("grouped payload decoded as %T", ev)
	}

	if _, err := ReadFunction(bytes.NewReader(grouped)); !errors.Is(err, fmpherrors.ErrWrongKind) {
		t.Errorf("ReadFunction on grouped payload: got %v, want ErrWrongKind", err)
	}
	if _, err := ReadGOFunction(bytes.NewReader(plain)); !errors.Is(err, fmpherrors.ErrWrongKind) {
		t.Errorf("ReadGOFunction on plain payload: got %v, want ErrWrongKind", err)
	}
}

func TestReadCorrupted(t *testing.T) {
	_, data := buildSerialized(t, true, 1000)

	t.Run("truncated header", func(t *testing.T) {
		if _, err := ReadEvaluator(bytes.NewReader(data[:headerSize-1])); !errors.Is(err, fmpherrors.ErrTruncated) {
			t.Errorf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("truncated body", func(t *testing.T) {
		for _, cut := range []int{headerSize, headerSize + 4, len(data) / 2, len(data) - footerSize - 1} {
			if _, err := ReadEvaluator(bytes.NewReader(data[:cut])); !errors.Is(err, fmpherrors.ErrTruncated) {
				t.Errorf("cut at %d: got %v, want ErrTruncated", cut, err)
			}
		}
	})

	t.Run("missing checksum", func(t *testing.T) {
		if _, err := ReadEvaluator(bytes.NewReader(data[:len(data)-1])); !errors.Is(err, fmpherrors.ErrTruncated) {
			t.Errorf("got %v, want ErrTruncated", err)
		}
	})

	t.Run("flipped bitmap bit", func(t *testing.T) {
		// Offsets inside the word payload right before the trailer; only the
		// checksum can catch these.
		for _, offset := range []int{len(data) - footerSize - 1, len(data) - footerSize - 17} {
			bad := bytes.Clone(data)
			bad[offset] ^= 0x01
			if _, err := ReadEvaluator(bytes.NewReader(bad)); !errors.Is(err, fmpherrors.ErrChecksumFailed) {
				t.Errorf("offset %d: got %v, want ErrChecksumFailed", offset, err)
			}
		}
	})

	t.Run("flipped level size bit", func(t *testing.T) {
		// Structural checks may reject first; anything that slips past them
		// must be caught by the checksum or by running out of payload.
		bad := bytes.Clone(data)
		bad[headerSize+8] ^= 0x01
		_, err := ReadEvaluator(bytes.NewReader(bad))
		if !errors.Is(err, fmpherrors.ErrCorruptedFunction) &&
			!errors.Is(err, fmpherrors.ErrChecksumFailed) &&
			!errors.Is(err, fmpherrors.ErrTruncated) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("flipped checksum bit", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-1] ^= 0x80
		if _, err := ReadEvaluator(bytes.NewReader(bad)); !errors.Is(err, fmpherrors.ErrChecksumFailed) {
			t.Errorf("got %v, want ErrChecksumFailed", err)
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad[0:4], 0xDEADBEEF)
		if _, err := ReadEvaluator(bytes.NewReader(bad)); !errors.Is(err, fmpherrors.ErrInvalidMagic) {
			t.Errorf("got %v, want ErrInvalidMagic", err)
		}
	})

	t.Run("bad version", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[4] = 0xFF
		if _, err := ReadEvaluator(bytes.NewReader(bad)); !errors.Is(err, fmpherrors.ErrInvalidVersion) {
			t.Errorf("got %v, want ErrInvalidVersion", err)
		}
	})

	t.Run("bad hasher", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[6] = 0xFF
		if _, err := ReadEvaluator(bytes.NewReader(bad)); !errors.Is(err, fmpherrors.ErrUnknownHasher) {
			t.Errorf("got %v, want ErrUnknownHasher", err)
		}
	})
}
