package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HammingThreshold != DefaultHammingThreshold {
		t.Errorf("HammingThreshold = %d, want %d", cfg.HammingThreshold, DefaultHammingThreshold)
	}
	if cfg.FramesToCapture != DefaultFramesToCapture {
		t.Errorf("FramesToCapture = %d, want %d", cfg.FramesToCapture, DefaultFramesToCapture)
	}
	if cfg.FrameDelayMs != DefaultFrameDelayMs {
		t.Errorf("FrameDelayMs = %d, want %d", cfg.FrameDelayMs, DefaultFrameDelayMs)
	}
	if cfg.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", cfg.MaxConcurrent, DefaultMaxConcurrent)
	}
	if cfg.JobTimeoutMs != DefaultJobTimeoutMs {
		t.Errorf("JobTimeoutMs = %d, want %d", cfg.JobTimeoutMs, DefaultJobTimeoutMs)
	}
	if cfg.MinOnesZeros != DefaultMinOnesZeros {
		t.Errorf("MinOnesZeros = %d, want %d", cfg.MinOnesZeros, DefaultMinOnesZeros)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CLIPGUARD_HAMMING_THRESHOLD", "8")
	t.Setenv("CLIPGUARD_MAX_CONCURRENT", "5")
	t.Setenv("CLIPGUARD_LISTEN_ADDR", ":9000")

	cfg := Load()
	if cfg.HammingThreshold != 8 {
		t.Errorf("HammingThreshold = %d, want 8", cfg.HammingThreshold)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.MaxConcurrent)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want :9000", cfg.ListenAddr)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CLIPGUARD_JOB_TIMEOUT_MS", "not-a-number")
	cfg := Load()
	if cfg.JobTimeoutMs != DefaultJobTimeoutMs {
		t.Errorf("JobTimeoutMs = %d, want default", cfg.JobTimeoutMs)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "hamming_threshold = 6\nframes_to_capture = 5\nstore_path = \"/tmp/test.db\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLIPGUARD_CONFIG", path)

	cfg := Load()
	if cfg.HammingThreshold != 6 {
		t.Errorf("HammingThreshold = %d, want 6 from file", cfg.HammingThreshold)
	}
	if cfg.FramesToCapture != 5 {
		t.Errorf("FramesToCapture = %d, want 5 from file", cfg.FramesToCapture)
	}
	if cfg.StorePath != "/tmp/test.db" {
		t.Errorf("StorePath = %q, want from file", cfg.StorePath)
	}
	// Unset keys keep defaults.
	if cfg.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want default", cfg.MaxConcurrent)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("hamming_threshold = 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLIPGUARD_CONFIG", path)
	t.Setenv("CLIPGUARD_HAMMING_THRESHOLD", "20")

	if cfg := Load(); cfg.HammingThreshold != 20 {
		t.Errorf("HammingThreshold = %d, want env value 20", cfg.HammingThreshold)
	}
}

func TestMaxConcurrentRangeRejected(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"0", DefaultMaxConcurrent},
		{"11", DefaultMaxConcurrent},
		{"-3", DefaultMaxConcurrent},
		{"1", 1},
		{"10", 10},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("CLIPGUARD_MAX_CONCURRENT", tt.value)
			if cfg := Load(); cfg.MaxConcurrent != tt.want {
				t.Errorf("MaxConcurrent = %d, want %d", cfg.MaxConcurrent, tt.want)
			}
		})
	}
}

func TestMissingConfigFileIgnored(t *testing.T) {
	t.Setenv("CLIPGUARD_CONFIG", "/nonexistent/config.toml")
	cfg := Load()
	if cfg.HammingThreshold != DefaultHammingThreshold {
		t.Error("missing config file should leave defaults intact")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaults()
	if cfg.FrameDelay() != 120*time.Millisecond {
		t.Errorf("FrameDelay = %v, want 120ms", cfg.FrameDelay())
	}
	if cfg.JobTimeout() != 5*time.Second {
		t.Errorf("JobTimeout = %v, want 5s", cfg.JobTimeout())
	}
}
