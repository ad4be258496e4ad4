// Package similarity compares fingerprints by Hamming distance against a
// runtime-tunable threshold.
package similarity

import "clipguard/internal/fingerprint"

// DefaultThreshold is the default maximum Hamming distance for a match:
// 12 bits out of 63, roughly 19% bit disagreement. Exposed to callers as a
// sensitivity setting, not a compile-time constant.
const DefaultThreshold = 12

// Distance counts differing bits over the common prefix, plus the absolute
// length difference. Mismatched fingerprint schemes are penalized rather
// than silently truncated. Symmetric by construction.
func Distance(a, b fingerprint.Fingerprint) int {
	common := len(a)
	if len(b) < common {
		common = len(b)
	}
	dist := 0
	for i := 0; i < common; i++ {
		if a[i] != b[i] {
			dist++
		}
	}
	if len(a) > len(b) {
		dist += len(a) - len(b)
	} else {
		dist += len(b) - len(a)
	}
	return dist
}

// IsMatch reports whether a and b are within threshold bits of each other.
// The threshold is inclusive.
func IsMatch(a, b fingerprint.Fingerprint, threshold int) bool {
	return Distance(a, b) <= threshold
}

// BestMatch scans candidates linearly and returns the minimum-distance one.
// Ties resolve to the first encountered. An empty candidate set yields no
// match. The blocklist is small enough that a linear scan beats maintaining
// an index.
func BestMatch(target fingerprint.Fingerprint, candidates []fingerprint.Fingerprint) (best fingerprint.Fingerprint, distance int, ok bool) {
	for _, c := range candidates {
		d := Distance(target, c)
		if !ok || d < distance {
			best, distance, ok = c, d, true
		}
	}
	return best, distance, ok
}
