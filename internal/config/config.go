// Package config handles clipguard configuration: built-in defaults,
// overridden by an optional TOML file, overridden by environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Defaults for every tunable.
const (
	DefaultListenAddr       = ":8741"
	DefaultStorePath        = "clipguard.db"
	DefaultFFmpegBin        = "ffmpeg"
	DefaultFFprobeBin       = "ffprobe"
	DefaultHammingThreshold = 12
	DefaultFramesToCapture  = 3
	DefaultFrameDelayMs     = 120
	DefaultMaxConcurrent    = 3
	DefaultJobTimeoutMs     = 5000
	DefaultMinOnesZeros     = 4

	minConcurrent = 1
	maxConcurrent = 10
)

// Config holds all runtime settings. Matching tunables map to the
// user-facing sensitivity controls and are deliberately not constants.
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	StorePath  string `toml:"store_path"`
	FFmpegBin  string `toml:"ffmpeg_bin"`
	FFprobeBin string `toml:"ffprobe_bin"`

	// HammingThreshold is the inclusive maximum bit distance for a match.
	HammingThreshold int `toml:"hamming_threshold"`
	// FramesToCapture is how many frames are averaged per fingerprint.
	FramesToCapture int `toml:"frames_to_capture"`
	// FrameDelayMs spaces consecutive captures.
	FrameDelayMs int `toml:"frame_delay_ms"`
	// MaxConcurrent bounds simultaneously running fingerprint jobs, 1..10.
	MaxConcurrent int `toml:"max_concurrent"`
	// JobTimeoutMs bounds a single fingerprint job.
	JobTimeoutMs int `toml:"job_timeout_ms"`
	// MinOnesZeros is the inclusive triviality boundary for the hash
	// quality gate. It trades false negatives against false positives.
	MinOnesZeros int `toml:"min_ones_zeros"`
}

// Load builds the configuration. The file path comes from CLIPGUARD_CONFIG;
// a missing file is not an error. Environment variables win over the file.
func Load() *Config {
	cfg := defaults()

	if path := os.Getenv("CLIPGUARD_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			slog.Warn("config file ignored", "path", path, "error", err)
		}
	}

	cfg.ListenAddr = getEnv("CLIPGUARD_LISTEN_ADDR", cfg.ListenAddr)
	cfg.StorePath = getEnv("CLIPGUARD_STORE_PATH", cfg.StorePath)
	cfg.FFmpegBin = getEnv("CLIPGUARD_FFMPEG_BIN", cfg.FFmpegBin)
	cfg.FFprobeBin = getEnv("CLIPGUARD_FFPROBE_BIN", cfg.FFprobeBin)
	cfg.HammingThreshold = getEnvInt("CLIPGUARD_HAMMING_THRESHOLD", cfg.HammingThreshold)
	cfg.FramesToCapture = getEnvInt("CLIPGUARD_FRAMES_TO_CAPTURE", cfg.FramesToCapture)
	cfg.FrameDelayMs = getEnvInt("CLIPGUARD_FRAME_DELAY_MS", cfg.FrameDelayMs)
	cfg.MaxConcurrent = getEnvInt("CLIPGUARD_MAX_CONCURRENT", cfg.MaxConcurrent)
	cfg.JobTimeoutMs = getEnvInt("CLIPGUARD_JOB_TIMEOUT_MS", cfg.JobTimeoutMs)
	cfg.MinOnesZeros = getEnvInt("CLIPGUARD_MIN_ONES_ZEROS", cfg.MinOnesZeros)

	cfg.normalize()
	return cfg
}

func defaults() *Config {
	return &Config{
		ListenAddr:       DefaultListenAddr,
		StorePath:        DefaultStorePath,
		FFmpegBin:        DefaultFFmpegBin,
		FFprobeBin:       DefaultFFprobeBin,
		HammingThreshold: DefaultHammingThreshold,
		FramesToCapture:  DefaultFramesToCapture,
		FrameDelayMs:     DefaultFrameDelayMs,
		MaxConcurrent:    DefaultMaxConcurrent,
		JobTimeoutMs:     DefaultJobTimeoutMs,
		MinOnesZeros:     DefaultMinOnesZeros,
	}
}

// mergeFile overlays settings from a TOML file.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, c)
}

// normalize rejects out-of-range tunables, logging and restoring defaults
// rather than failing startup.
func (c *Config) normalize() {
	if c.MaxConcurrent < minConcurrent || c.MaxConcurrent > maxConcurrent {
		slog.Warn("max_concurrent outside valid range, using default",
			"requested", c.MaxConcurrent, "min", minConcurrent, "max", maxConcurrent)
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.HammingThreshold < 0 {
		slog.Warn("negative hamming_threshold, using default", "requested", c.HammingThreshold)
		c.HammingThreshold = DefaultHammingThreshold
	}
	if c.FramesToCapture < 1 {
		slog.Warn("frames_to_capture below 1, using default", "requested", c.FramesToCapture)
		c.FramesToCapture = DefaultFramesToCapture
	}
	if c.FrameDelayMs < 0 {
		c.FrameDelayMs = DefaultFrameDelayMs
	}
	if c.JobTimeoutMs < 1 {
		c.JobTimeoutMs = DefaultJobTimeoutMs
	}
	if c.MinOnesZeros < 0 {
		c.MinOnesZeros = DefaultMinOnesZeros
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
