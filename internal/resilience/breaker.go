// Package resilience provides retry and circuit breaking for the capture path.
package resilience

import (
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

// State of a Breaker.
type State uint8

const (
	Closed   State = iota // calls pass
	Open                  // calls fail fast
	HalfOpen              // trial calls after ResetTimeout
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker stops calling a failing browser until ResetTimeout has passed.
type Breaker struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		cfg: cfg,
		log: cfg.Logger.With("breaker", cfg.Name),
		now: time.Now,
	}
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current state without advancing it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow returns nil if a call may proceed, or an UNAVAILABLE error while open.
// The first call after ResetTimeout moves the breaker to half-open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.setState(HalfOpen)
		return nil
	}
	return apperrors.Newf(apperrors.CodeUnavailable, "circuit breaker %s open", b.cfg.Name).
		WithMetadata("breaker", b.cfg.Name).
		WithMetadata("retry_after", (b.cfg.ResetTimeout - b.now().Sub(b.openedAt)).Round(time.Millisecond).String())
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.setState(Closed)
		}
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case Closed:
		if b.failures >= b.cfg.Threshold {
			b.setState(Open)
		}
	case HalfOpen:
		b.setState(Open)
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(Closed)
	b.failures = 0
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successes = 0

	switch to {
	case Open:
		b.openedAt = b.now()
		b.log.Warn("circuit breaker opened", "failures", b.failures, "reset_after", b.cfg.ResetTimeout)
	case HalfOpen:
		b.log.Info("circuit breaker half-open")
	case Closed:
		b.failures = 0
		b.log.Info("circuit breaker closed", "from", from.String())
	}
}

// Execute runs fn unless the breaker is open. Only errors accepted by counts
// are recorded as failures; a nil counts records every error.
func (b *Breaker) Execute(fn func() error, counts func(error) bool) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	switch {
	case err == nil:
		b.Success()
	case counts == nil || counts(err):
		b.Failure()
	}
	return err
}
