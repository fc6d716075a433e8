package resilience

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

// fakeClock lets tests move a breaker past its reset timeout without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	b := New(cfg)
	b.now = clock.now
	return b, clock
}

func TestBreakerInitialState(t *testing.T) {
	b := New(DefaultConfig())
	if b.State() != Closed {
		t.Errorf("initial state = %v, want Closed", b.State())
	}
}

func TestBreakerLifecycle(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 2, ResetTimeout: time.Minute, HalfOpenSuccesses: 2})

	b.Failure()
	if b.State() != Closed {
		t.Fatalf("state after 1 failure = %v, want Closed", b.State())
	}
	b.Failure()
	if b.State() != Open {
		t.Fatalf("state after 2 failures = %v, want Open", b.State())
	}

	err := b.Allow()
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("Allow() while open = %v, want UNAVAILABLE", err)
	}

	clock.advance(time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after reset timeout = %v, want nil", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("state = %v, want HalfOpen", b.State())
	}

	b.Success()
	if b.State() != HalfOpen {
		t.Fatalf("state after 1 trial success = %v, want HalfOpen", b.State())
	}
	b.Success()
	if b.State() != Closed {
		t.Errorf("state after 2 trial successes = %v, want Closed", b.State())
	}
}

func TestBreakerOpenErrorCarriesRetryAfter(t *testing.T) {
	b, clock := newTestBreaker(Config{Name: "capture", Threshold: 1, ResetTimeout: 10 * time.Second})
	b.Failure()
	clock.advance(4 * time.Second)

	appErr, ok := apperrors.As(b.Allow())
	if !ok {
		t.Fatal("Allow() should return an AppError")
	}
	if appErr.Metadata["retry_after"] != "6s" {
		t.Errorf("retry_after = %q, want 6s", appErr.Metadata["retry_after"])
	}
	if appErr.Metadata["breaker"] != "capture" {
		t.Errorf("breaker = %q, want capture", appErr.Metadata["breaker"])
	}
	if !apperrors.IsRetryable(appErr) {
		t.Error("open breaker error should be retryable by callers")
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b, clock := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Second, HalfOpenSuccesses: 3})
	b.Failure()
	clock.advance(time.Second)
	_ = b.Allow()

	b.Failure()
	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
	if err := b.Allow(); err == nil {
		t.Error("reopened breaker should reject until a new timeout passes")
	}
}

func TestBreakerReset(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Hour})
	b.Failure()
	b.Reset()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after Reset = %v, want nil", err)
	}
}

func TestSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 3, ResetTimeout: time.Hour})

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()

	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}
}

func TestBreakerExecute(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 2, ResetTimeout: time.Second})

	if err := b.Execute(func() error { return nil }, nil); err != nil {
		t.Errorf("Execute success = %v, want nil", err)
	}

	testErr := errors.New("test error")
	if err := b.Execute(func() error { return testErr }, nil); err != testErr {
		t.Errorf("Execute failure = %v, want %v", err, testErr)
	}
	_ = b.Execute(func() error { return testErr }, nil)

	called := false
	err := b.Execute(func() error { called = true; return nil }, nil)
	if called || !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("Execute on open breaker: called=%v err=%v", called, err)
	}
}

func TestBreakerExecuteIgnoresUncountedErrors(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 1, ResetTimeout: time.Hour})
	bad := apperrors.New(apperrors.CodeConfigInvalid, "bad selector")

	for i := 0; i < 3; i++ {
		_ = b.Execute(func() error { return bad }, apperrors.IsRetryable)
	}
	if b.State() != Closed {
		t.Errorf("state = %v, want Closed", b.State())
	}

	_ = b.Execute(func() error { return apperrors.New(apperrors.CodeCaptureFailed, "timeout") }, apperrors.IsRetryable)
	if b.State() != Open {
		t.Errorf("state = %v, want Open", b.State())
	}
}

func TestBreakerLogsWithName(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	b := New(CaptureConfig(log))

	for i := 0; i < CaptureThreshold; i++ {
		b.Failure()
	}
	if !strings.Contains(buf.String(), "breaker=capture") {
		t.Errorf("log = %q, want breaker name", buf.String())
	}
	if b.Name() != "capture" {
		t.Errorf("Name() = %q, want capture", b.Name())
	}
}

func TestBreakerConcurrentSafety(t *testing.T) {
	b, _ := newTestBreaker(Config{Threshold: 100, ResetTimeout: time.Second, HalfOpenSuccesses: 10})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Allow()
			if i%2 == 0 {
				b.Success()
			} else {
				b.Failure()
			}
		}()
	}
	wg.Wait()

	if s := b.State(); s.String() == "unknown" {
		t.Errorf("state = %d, want a valid state", s)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
		{State(9), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	if cfg.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %d, want %d", cfg.Threshold, DefaultThreshold)
	}
	if cfg.ResetTimeout != DefaultResetTimeout {
		t.Errorf("ResetTimeout = %v, want %v", cfg.ResetTimeout, DefaultResetTimeout)
	}
	if cfg.HalfOpenSuccesses != DefaultHalfOpenSuccesses {
		t.Errorf("HalfOpenSuccesses = %d, want %d", cfg.HalfOpenSuccesses, DefaultHalfOpenSuccesses)
	}
	if cfg.Name != "default" || cfg.Logger == nil {
		t.Errorf("Name = %q, Logger = %v, want default and non-nil", cfg.Name, cfg.Logger)
	}
}
