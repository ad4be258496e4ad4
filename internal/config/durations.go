package config

import "time"

// FrameDelay returns the inter-frame capture delay.
func (c *Config) FrameDelay() time.Duration {
	return time.Duration(c.FrameDelayMs) * time.Millisecond
}

// JobTimeout returns the per-job deadline.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMs) * time.Millisecond
}
