package fmph

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	fmpherrors "github.com/tamirms/fmph/errors"
	"github.com/tamirms/fmph/internal/bits"
)

func TestBuildGOBijection(t *testing.T) {
	sizes := []int{0, 1, 2, 3, 100, 1000, 20000}
	if !testing.Short() {
		sizes = append(sizes, 100000)
	}
	rng := newTestRNG(t)
	for _, n := range sizes {
		keys := generateRandomKeys(t, rng, n)
		f, err := BuildGO(keys)
		if err != nil {
			t.Fatalf("n=%d: BuildGO: %v", n, err)
		}
		verifyBijection(t, f, keys)
	}
}

func TestBuildGOParameterMatrix(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(t, rng, 3000)
	cases := []struct {
		bitsPerSeed  uint8
		bitsPerGroup uint8
	}{
		{1, 8},
		{2, 16},
		{4, 16}, // defaults
		{4, 10}, // group size not dividing 64
		{8, 32},
		{4, 63}, // widest group, fragments span two words
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("seed%d_group%d", tc.bitsPerSeed, tc.bitsPerGroup), func(t *testing.T) {
			f, err := BuildGO(keys,
				WithBitsPerSeed(tc.bitsPerSeed),
				WithBitsPerGroup(tc.bitsPerGroup))
			if err != nil {
				t.Fatal(err)
			}
			verifyBijection(t, f, keys)
			if f.BitsPerSeed() != tc.bitsPerSeed || f.BitsPerGroup() != tc.bitsPerGroup {
				t.Errorf("parameters not retained: got (%d,%d), want (%d,%d)",
					f.BitsPerSeed(), f.BitsPerGroup(), tc.bitsPerSeed, tc.bitsPerGroup)
			}
		})
	}
}

func TestBuildGOInvalidConfig(t *testing.T) {
	keys := sequentialKeys(10)
	for _, tc := range []struct {
		name string
		opt  BuildOption
	}{
		{"zero bits per seed", WithBitsPerSeed(0)},
		{"oversized bits per seed", WithBitsPerSeed(16)},
		{"one bit per group", WithBitsPerGroup(1)},
		{"oversized bits per group", WithBitsPerGroup(64)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildGO(keys, tc.opt); !errors.Is(err, fmpherrors.ErrInvalidConfig) {
				t.Fatalf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestBuildGOGeometry(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(t, rng, 2000)
	f, err := BuildGO(keys, WithBitsPerGroup(10))
	if err != nil {
		t.Fatal(err)
	}

	var totalGroups, totalBits uint64
	for _, groups := range f.levelGroups {
		levelBits := groups * uint64(f.bitsPerGroup)
		if levelBits%64 != 0 {
			t.Fatalf("level bits %d not a whole number of segments", levelBits)
		}
		totalGroups += groups
		totalBits += levelBits
	}
	if f.array.Len() != totalBits {
		t.Errorf("array holds %d bits, levels describe %d", f.array.Len(), totalBits)
	}
	if want := bits.FragmentWords(totalGroups, f.bitsPerSeed); len(f.groupSeeds) != want {
		t.Errorf("seed vector has %d words, want %d", len(f.groupSeeds), want)
	}
}

func TestBuildGODeterministic(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(t, rng, 5000)

	serialize := func(opts ...BuildOption) []byte {
		t.Helper()
		f, err := BuildGO(keys, opts...)
		if err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if _, err := f.WriteTo(&buf); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	base := serialize()
	if again := serialize(); !bytes.Equal(base, again) {
		t.Fatal("two builds from the same keys produced different bytes")
	}
	for _, workers := range []int{2, 4, 7} {
		if par := serialize(WithWorkers(workers)); !bytes.Equal(base, par) {
			t.Fatalf("workers=%d produced different bytes than sequential build", workers)
		}
	}
}

func TestBuildGOFallback(t *testing.T) {
	rng := newTestRNG(t)
	keys := generateRandomKeys(t, rng, 1000)

	var stats BuildStats
	f, err := BuildGO(keys, WithMaxLevels(1), WithStats(&stats))
	if err != nil {
		t.Fatal(err)
	}
	verifyBijection(t, f, keys)
	if stats.FallbackKeys == 0 {
		t.Error("expected unplaced keys with a single level")
	}
}

func TestBuildGOSmallerThanPlain(t *testing.T) {
	if testing.Short() {
		t.Skip("large key set")
	}
	rng := newTestRNG(t)
	keys := generateRandomKeys(t, rng, 100000)

	plain, err := Build(keys)
	if err != nil {
		t.Fatal(err)
	}
	grouped, err := BuildGO(keys)
	if err != nil {
		t.Fatal(err)
	}
	if grouped.BitsPerKey() >= plain.BitsPerKey() {
		t.Errorf("grouped %.3f bits/key should beat plain %.3f",
			grouped.BitsPerKey(), plain.BitsPerKey())
	}
	if bpk := grouped.BitsPerKey(); bpk > 2.9 {
		t.Errorf("bits per key %.3f exceeds 2.9", bpk)
	}
}

func TestGOFunctionDuplicateKeys(t *testing.T) {
	keys := [][]byte{[]byte("x"), []byte("y"), []byte("x")}
	if _, err := BuildGO(keys); !errors.Is(err, fmpherrors.ErrDuplicateKey) {
		t.Fatalf("BuildGO with duplicates: got %v, want ErrDuplicateKey", err)
	}
}

func TestLevelGroupsSegments(t *testing.T) {
	cases := []struct {
		wantedBits   uint64
		groupBits    uint8
		wantGroups   uint64
		wantSegments uint64
	}{
		{1, 16, 4, 1},     // minimum one segment
		{64, 16, 4, 1},    // exact fit
		{65, 16, 8, 2},    // rounds up a whole segment
		{1000, 16, 64, 16},
		{1000, 10, 128, 20}, // rounds to a multiple of lcm(64,10)=320 bits
		{1, 63, 64, 63},     // lcm(64,63)=4032 bits
	}
	for _, tc := range cases {
		groups, segments := levelGroupsSegments(tc.wantedBits, tc.groupBits)
		if groups != tc.wantGroups || segments != tc.wantSegments {
			t.Errorf("levelGroupsSegments(%d, %d): got (%d,%d), want (%d,%d)",
				tc.wantedBits, tc.groupBits, groups, segments, tc.wantGroups, tc.wantSegments)
		}
	}
	for _, tc := range cases {
		groups, segments := levelGroupsSegments(tc.wantedBits, tc.groupBits)
		if groups*uint64(tc.groupBits) != segments*64 {
			t.Errorf("geometry mismatch for (%d, %d)", tc.wantedBits, tc.groupBits)
		}
	}
}

func TestCopyGroupIfBetter(t *testing.T) {
	dst := []uint64{0b0001_0011, 0}
	src := []uint64{0b0111_0001, 0}

	// Group 0 (bits 0..3): dst has 2 ones, src has 1; no copy.
	if copyGroupIfBetter(dst, src, 0, 4) {
		t.Error("group 0 copied despite fewer ones in src")
	}
	if dst[0]&0xF != 0b0011 {
		t.Errorf("group 0 modified: %b", dst[0]&0xF)
	}

	// Group 1 (bits 4..7): dst has 1 one, src has 3; copy.
	if !copyGroupIfBetter(dst, src, 1, 4) {
		t.Error("group 1 not copied despite more ones in src")
	}
	if dst[0]>>4&0xF != 0b0111 {
		t.Errorf("group 1 not copied correctly: %b", dst[0]>>4&0xF)
	}
	if dst[0]&0xF != 0b0011 {
		t.Error("copy spilled outside the group")
	}
}

func TestMix32Distributes(t *testing.T) {
	// Seed changes must move the mixed value; consecutive inputs must not
	// stay consecutive.
	seen := make(map[uint32]struct{})
	for s := uint32(0); s < 16; s++ {
		v := mix32(0x12345678 ^ s)
		if _, dup := seen[v]; dup {
			t.Fatalf("seed %d collides with an earlier seed", s)
		}
		seen[v] = struct{}{}
	}
	if mix32(1)+1 == mix32(2) {
		t.Error("mix32 preserved consecutive inputs")
	}
}
