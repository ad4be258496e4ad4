// Package registry holds the in-memory view of the blocklist: one record
// per blocked fingerprint, kept in sync with the persistent store through
// explicit update calls. There is no ambient global; callers own an
// instance and wire the store's change notifications to it.
package registry

import (
	"sync"
	"time"

	"clipguard/internal/fingerprint"
	"clipguard/internal/similarity"
)

// Origin tags how a record entered the blocklist.
type Origin string

const (
	OriginManual    Origin = "manual"
	OriginAutomatic Origin = "automatic"
)

// Record is one blocked fingerprint with its metadata. Immutable once
// created; removal is the only mutation.
type Record struct {
	Fingerprint fingerprint.Fingerprint
	CreatedAt   time.Time
	Origin      Origin
}

// Match is the outcome of a registry scan.
type Match struct {
	Record   Record
	Distance int
}

// Registry is safe for concurrent use. A match pass runs over a snapshot,
// so it may miss a fingerprint added mid-scan; the next pass will see it.
type Registry struct {
	mu      sync.RWMutex
	records map[fingerprint.Fingerprint]Record
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{records: make(map[fingerprint.Fingerprint]Record)}
}

// Replace swaps the entire view, used when (re)loading from the store.
func (r *Registry) Replace(records []Record) {
	next := make(map[fingerprint.Fingerprint]Record, len(records))
	for _, rec := range records {
		next[rec.Fingerprint] = rec
	}
	r.mu.Lock()
	r.records = next
	r.mu.Unlock()
}

// Add inserts a record. Returns false when the fingerprint is already
// present; records are unique by fingerprint and never overwritten.
func (r *Registry) Add(rec Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.Fingerprint]; exists {
		return false
	}
	r.records[rec.Fingerprint] = rec
	return true
}

// Remove deletes a record by fingerprint, reporting whether it existed.
func (r *Registry) Remove(fp fingerprint.Fingerprint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[fp]; !exists {
		return false
	}
	delete(r.records, fp)
	return true
}

// Clear empties the view.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.records = make(map[fingerprint.Fingerprint]Record)
	r.mu.Unlock()
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Snapshot returns a copy of all records in unspecified order.
func (r *Registry) Snapshot() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

// Match scans the registry for the closest record within threshold.
// Ties resolve to the first candidate encountered; iteration order over
// the set is otherwise unspecified.
func (r *Registry) Match(target fingerprint.Fingerprint, threshold int) (Match, bool) {
	records := r.Snapshot()

	candidates := make([]fingerprint.Fingerprint, len(records))
	byFingerprint := make(map[fingerprint.Fingerprint]Record, len(records))
	for i, rec := range records {
		candidates[i] = rec.Fingerprint
		byFingerprint[rec.Fingerprint] = rec
	}

	best, dist, ok := similarity.BestMatch(target, candidates)
	if !ok || dist > threshold {
		return Match{}, false
	}
	return Match{Record: byFingerprint[best], Distance: dist}, true
}
