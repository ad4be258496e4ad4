// Package detector runs the fingerprinting pipeline.
package detector

// Priorities for queued fingerprint jobs. Interactive requests preempt
// background scans.
const (
	ScanPriority  = 0
	CheckPriority = 5
	BlockPriority = 10
)

// UnchangedHashDistance is the perceptual-hash distance at or below which
// a watcher treats the source as visually unchanged and reuses its last
// verdict instead of re-running the full pipeline.
const UnchangedHashDistance = 3
