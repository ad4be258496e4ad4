package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"clipguard/internal/errors"
)

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestRetrySucceedsFirst(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Retry() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetrySucceedsAfterTimeouts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.CodeTimeout, "job exceeded deadline")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Retry() = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	retryErr := errors.New(errors.CodeSourceUnavailable, "never ready")

	err := Retry(context.Background(), fastRetryConfig(2), func() error {
		calls++
		return retryErr
	})

	if !stderrors.Is(err, retryErr) {
		t.Errorf("Retry() = %v, want last error", err)
	}
	if calls != 3 { // initial + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		return errors.New(errors.CodeInvalidInput, "malformed fingerprint")
	})

	if !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Errorf("Retry() code = %v, want INVALID_INPUT", errors.CodeOf(err))
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1: invalid input must not be retried", calls)
	}
}

func TestRetryNoSignalNotRetried(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		return errors.New(errors.CodeNoSignal, "trivial fingerprint")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1: absent signal is an outcome, not a fault", calls)
	}
}

func TestRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryConfig(), func() error {
		t.Error("fn should not run with cancelled context")
		return nil
	})
	if err == nil {
		t.Error("Retry with cancelled context should fail")
	}
}

func TestTimeoutRetryConfigDelays(t *testing.T) {
	cfg := TimeoutRetryConfig()
	if cfg.BaseDelay <= DefaultRetryConfig().BaseDelay {
		t.Error("timeout retries should back off longer than the default")
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, JitterFactor: 0.0001}.withDefaults()

	d0 := backoffDelay(cfg, 0)
	d2 := backoffDelay(cfg, 2)
	if d2 <= d0 {
		t.Errorf("delay should grow: attempt 0 = %v, attempt 2 = %v", d0, d2)
	}
	if d6 := backoffDelay(cfg, 6); d6 > 60*time.Millisecond {
		t.Errorf("delay %v exceeds cap", d6)
	}
}
