package resilience

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.2

	// A page that failed to load twice in a row is usually broken.
	NavigationMaxRetries = 2
	NavigationBaseDelay  = 250 * time.Millisecond
	NavigationMaxDelay   = 2 * time.Second
)

// RetryConfig holds retry settings. Zero fields take the Default values,
// except JitterFactor where only negative values are replaced.
type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	IsRetryable  func(error) bool // default apperrors.IsRetryable
	Logger       *slog.Logger
}

// DefaultRetryConfig returns standard retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
	}
}

// NavigationRetryConfig returns settings for page navigation.
func NavigationRetryConfig(log *slog.Logger) RetryConfig {
	return RetryConfig{
		MaxRetries:   NavigationMaxRetries,
		BaseDelay:    NavigationBaseDelay,
		MaxDelay:     NavigationMaxDelay,
		JitterFactor: DefaultJitterFactor,
		Logger:       log,
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, or
// MaxRetries retries have been spent. The last error is returned unchanged.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || attempt == cfg.MaxRetries || !cfg.IsRetryable(err) {
			return err
		}

		delay := cfg.delay(attempt)
		cfg.Logger.Debug("retrying", "attempt", attempt+1, "of", cfg.MaxRetries, "delay", delay, "error", err)

		timer.Reset(delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// delay is BaseDelay doubled per attempt, capped at MaxDelay, +/- JitterFactor/2.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := min(c.BaseDelay<<min(attempt, 6), c.MaxDelay)
	if c.JitterFactor == 0 {
		return d
	}
	return d + time.Duration(float64(d)*c.JitterFactor*(rand.Float64()-0.5))
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = apperrors.IsRetryable
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
