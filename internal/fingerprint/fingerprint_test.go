package fingerprint

import (
	"strings"
	"testing"

	"clipguard/internal/errors"
)

// testMatrix builds a deterministic pseudo-random matrix. A simple LCG keeps
// tests reproducible without seeding math/rand.
func testMatrix(seed uint32) *Matrix {
	var m Matrix
	state := seed
	for x := 0; x < SampleSize; x++ {
		for y := 0; y < SampleSize; y++ {
			state = state*1664525 + 1013904223
			m[x][y] = uint8((state >> 24) % 200)
		}
	}
	return &m
}

func TestHashDeterminism(t *testing.T) {
	m := testMatrix(42)
	first := Hash(m)
	second := Hash(m)
	if first != second {
		t.Errorf("Hash not deterministic: %s vs %s", first, second)
	}
}

func TestHashLength(t *testing.T) {
	for _, seed := range []uint32{1, 7, 42, 12345} {
		fp := Hash(testMatrix(seed))
		if len(fp) != Bits {
			t.Errorf("seed %d: fingerprint length = %d, want %d", seed, len(fp), Bits)
		}
	}
}

func TestHashOnlyBitCharacters(t *testing.T) {
	fp := Hash(testMatrix(9))
	for i, r := range string(fp) {
		if r != '0' && r != '1' {
			t.Fatalf("fingerprint has non-bit character %q at %d", r, i)
		}
	}
}

func TestHashAllBlackIsTrivial(t *testing.T) {
	var m Matrix // all zeros
	fp := Hash(&m)

	// Every coefficient equals the median, so no bit is set.
	if strings.Count(string(fp), "1") != 0 {
		t.Errorf("all-black matrix produced set bits: %s", fp)
	}
	if !fp.IsTrivial(4) {
		t.Error("all-black fingerprint should be trivial")
	}
}

func TestHashUniformGrayIsTrivial(t *testing.T) {
	var m Matrix
	for x := range m {
		for y := range m[x] {
			m[x][y] = 128
		}
	}
	if !Hash(&m).IsTrivial(4) {
		t.Error("uniform gray fingerprint should be trivial")
	}
}

func TestHashTexturedFrameIsNotTrivial(t *testing.T) {
	if Hash(testMatrix(42)).IsTrivial(4) {
		t.Error("textured frame should not hash to a trivial fingerprint")
	}
}

// A constant brightness shift only moves the DC coefficient, which the hash
// excludes, so the fingerprint must not change at all.
func TestHashBrightnessShiftInvariance(t *testing.T) {
	base := testMatrix(77)
	shifted := *base
	for x := range shifted {
		for y := range shifted[x] {
			shifted[x][y] += 40 // base values stay below 200, no overflow
		}
	}

	if Hash(base) != Hash(&shifted) {
		t.Error("constant brightness shift changed the fingerprint")
	}
}

func TestHashDistinguishesFrames(t *testing.T) {
	a := Hash(testMatrix(1))
	b := Hash(testMatrix(2))
	if a == b {
		t.Error("different frames hashed identically")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "0101101", false},
		{"valid full length", strings.Repeat("10", 31) + "1", false},
		{"empty", "", true},
		{"non-bit character", "0102", true},
		{"letters", "abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) succeeded, want error", tt.input)
				}
				if !errors.IsCode(err, errors.CodeInvalidInput) {
					t.Errorf("Parse(%q) error code = %v, want INVALID_INPUT", tt.input, errors.CodeOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if string(fp) != tt.input {
				t.Errorf("Parse(%q) = %q", tt.input, fp)
			}
		})
	}
}

func TestIsTrivialBoundary(t *testing.T) {
	const minOnesZeros = 4

	// Exactly minOnesZeros ones is trivial; one more is not.
	atBoundary := Fingerprint(strings.Repeat("1", minOnesZeros) + strings.Repeat("0", Bits-minOnesZeros))
	pastBoundary := Fingerprint(strings.Repeat("1", minOnesZeros+1) + strings.Repeat("0", Bits-minOnesZeros-1))

	if !atBoundary.IsTrivial(minOnesZeros) {
		t.Error("fingerprint with exactly minOnesZeros ones should be trivial")
	}
	if pastBoundary.IsTrivial(minOnesZeros) {
		t.Error("fingerprint with minOnesZeros+1 ones should not be trivial")
	}

	// Skew toward ones is treated the same as skew toward zeros.
	fewZeros := Fingerprint(strings.Repeat("0", minOnesZeros) + strings.Repeat("1", Bits-minOnesZeros))
	if !fewZeros.IsTrivial(minOnesZeros) {
		t.Error("fingerprint with exactly minOnesZeros zeros should be trivial")
	}
}

func TestOnesZeros(t *testing.T) {
	fp := Fingerprint("110100")
	ones, zeros := fp.OnesZeros()
	if ones != 3 || zeros != 3 {
		t.Errorf("OnesZeros() = %d, %d, want 3, 3", ones, zeros)
	}
}
