// Package fingerprint derives compact binary signatures from downscaled
// video frames. A signature encodes which low-frequency DCT coefficients of a
// 32x32 grayscale sample exceed their median, which survives re-encoding,
// minor resizing, and brightness shifts.
package fingerprint

import (
	"strings"

	"clipguard/internal/errors"
)

const (
	// SampleSize is the edge length of the grayscale sample grid.
	SampleSize = 32
	// BlockSize is the edge length of the low-frequency DCT block.
	BlockSize = 8
	// Bits is the fingerprint length. The DC term at (0,0) carries only
	// average brightness and is excluded.
	Bits = BlockSize*BlockSize - 1
)

// Matrix is a square grid of luminance intensities in [0, 255].
type Matrix [SampleSize][SampleSize]uint8

// Fingerprint is a fixed-length string of '0'/'1' runes. Produced
// fingerprints always have length Bits; Distance tolerates foreign lengths
// by penalizing the difference rather than erroring.
type Fingerprint string

// Parse validates an externally supplied bit string. It fails fast on
// non-bit characters or an empty string; it accepts lengths other than Bits
// because stored fingerprints may come from an older scheme.
func Parse(s string) (Fingerprint, error) {
	if s == "" {
		return "", errors.New(errors.CodeInvalidInput, "empty fingerprint")
	}
	for i, r := range s {
		if r != '0' && r != '1' {
			return "", errors.Newf(errors.CodeInvalidInput, "fingerprint has non-bit character %q at position %d", r, i)
		}
	}
	return Fingerprint(s), nil
}

// OnesZeros counts set and unset bits.
func (f Fingerprint) OnesZeros() (ones, zeros int) {
	ones = strings.Count(string(f), "1")
	return ones, len(f) - ones
}

// IsTrivial reports whether the bit distribution is too skewed to be
// discriminative. Near-constant frames (blank, black, solid posters)
// produce almost uniform fingerprints; matching on them would collide
// everything. The boundary is inclusive: exactly minOnesZeros ones (or
// zeros) is still trivial. Callers treat a trivial fingerprint as "no
// usable signal", never as an error.
func (f Fingerprint) IsTrivial(minOnesZeros int) bool {
	ones, zeros := f.OnesZeros()
	return ones <= minOnesZeros || zeros <= minOnesZeros
}
