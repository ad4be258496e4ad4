// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection WebSocket message rate limit
	RateLimitMessages = 20
	RateLimitWindow   = time.Second

	// Bound on a single broadcast write to a client
	BroadcastWriteTimeout = 5 * time.Second

	// Request body limit for JSON endpoints
	MaxBodyBytes = 1 << 16
)
