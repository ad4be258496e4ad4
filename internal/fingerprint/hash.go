package fingerprint

import (
	"math"
	"sort"
	"strings"
)

// cosTable[u][x] = cos((2x+1) * u * pi / (2*SampleSize)), precomputed once.
// The direct DCT is O(S^4); with the table that is ~1M multiply-adds per
// hash, fine for a call rate of one hash per few seconds per video.
var cosTable [SampleSize][SampleSize]float64

func init() {
	for u := 0; u < SampleSize; u++ {
		for x := 0; x < SampleSize; x++ {
			cosTable[u][x] = math.Cos(float64(2*x+1) * float64(u) * math.Pi / float64(2*SampleSize))
		}
	}
}

// Hash derives a fingerprint from a sample matrix. Pure and deterministic:
// identical matrices always produce identical fingerprints.
//
// The matrix goes through a 2D DCT-II with orthonormal scaling; the
// top-left BlockSize x BlockSize coefficients (lowest spatial frequencies,
// least affected by re-encoding and resizing) are compared against their
// median, skipping the DC term. One bit per coefficient in row-major order.
func Hash(m *Matrix) Fingerprint {
	coeffs := lowFrequencies(m)

	sorted := make([]float64, len(coeffs))
	copy(sorted, coeffs)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	var b strings.Builder
	b.Grow(Bits)
	for _, c := range coeffs {
		if c > median {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return Fingerprint(b.String())
}

// lowFrequencies computes the DCT and returns the BlockSize x BlockSize
// block in row-major order with (0,0) excluded, yielding Bits values.
func lowFrequencies(m *Matrix) []float64 {
	coeffs := make([]float64, 0, Bits)
	for u := 0; u < BlockSize; u++ {
		for v := 0; v < BlockSize; v++ {
			if u == 0 && v == 0 {
				continue
			}
			coeffs = append(coeffs, dctCoefficient(m, u, v))
		}
	}
	return coeffs
}

// dctCoefficient evaluates one DCT-II coefficient using the standard
// separable formula: C(u,v) = (2/S) a(u) a(v) sum sum p(x,y) cos(...) cos(...)
// with a(0) = 1/sqrt(2) and a(k) = 1 otherwise.
func dctCoefficient(m *Matrix, u, v int) float64 {
	var sum float64
	for x := 0; x < SampleSize; x++ {
		row := &m[x]
		cu := cosTable[u][x]
		for y := 0; y < SampleSize; y++ {
			sum += float64(row[y]) * cu * cosTable[v][y]
		}
	}
	return alpha(u) * alpha(v) * sum * 2 / SampleSize
}

func alpha(k int) float64 {
	if k == 0 {
		return 1 / math.Sqrt2
	}
	return 1
}
