package visual

import (
	"context"
	"log/slog"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/trace"
)

// Options configures a Comparer.
type Options struct {
	Layout Layout
	// Threshold is the smallest Hamming distance treated as a mismatch.
	Threshold int
	// UpdateMode rewrites baselines from actual captures instead of judging them.
	UpdateMode bool
}

// Option customizes a Comparer.
type Option func(*Comparer)

// WithLogger routes comparer logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Comparer) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHasher replaces the default average hasher.
func WithHasher(h Hasher) Option {
	return func(c *Comparer) {
		if h != nil {
			c.hasher = h
		}
	}
}

// Comparer judges actual captures against baselines and is the only writer of baselines.
// It holds no locks; callers must not run two comparisons for the same id concurrently.
type Comparer struct {
	store     *BaselineStore
	hasher    Hasher
	threshold int
	update    bool
	log       *slog.Logger
}

// NewComparer creates a comparer.
func NewComparer(opts Options, extra ...Option) *Comparer {
	c := &Comparer{
		store:     NewBaselineStore(opts.Layout),
		hasher:    AverageHasher{},
		threshold: opts.Threshold,
		update:    opts.UpdateMode,
		log:       slog.Default(),
	}
	for _, o := range extra {
		o(c)
	}
	return c
}

// Layout returns the directory layout.
func (c *Comparer) Layout() Layout { return c.store.Layout() }

// Threshold returns the configured distance threshold.
func (c *Comparer) Threshold() int { return c.threshold }

// UpdateMode reports whether baselines are being rewritten.
func (c *Comparer) UpdateMode() bool { return c.update }

// WithThreshold returns a copy of c using threshold t.
func (c *Comparer) WithThreshold(t int) *Comparer {
	cp := *c
	cp.threshold = t
	return &cp
}

// Compare returns true when the capture for id matches its baseline, or when a
// baseline was created or rewritten in update mode. Missing baselines and
// undecodable images yield false. Missing captures, invalid ids and baseline
// write failures are returned as errors.
func (c *Comparer) Compare(ctx context.Context, id string) (bool, error) {
	res, err := c.Evaluate(ctx, id)
	if err != nil {
		return false, err
	}
	return res.Passed(), nil
}

// Evaluate runs a comparison and reports which branch it took.
func (c *Comparer) Evaluate(ctx context.Context, id string) (Result, error) {
	log := trace.Logger(ctx, c.log).With("screenshot", id)

	res := Result{ID: id, Distance: -1, Threshold: c.threshold}
	baselinePath, actualPath, err := c.store.Layout().Resolve(id)
	if err != nil {
		log.Error("invalid screenshot id", "error", err)
		return res, err
	}
	res.BaselinePath, res.ActualPath = baselinePath, actualPath

	exists, err := c.store.Exists(id)
	if err != nil {
		log.Error("baseline lookup failed", "path", baselinePath, "error", err)
		return res, err
	}

	switch {
	case !exists && !c.update:
		res.absorb(OutcomeMissingBaseline, apperrors.New(apperrors.CodeMissingBaseline, "baseline not found").
			WithMetadata("path", baselinePath))
		log.Warn("baseline not found; run with update mode to create it", "path", baselinePath)
		return res, nil
	case !exists:
		return c.createBaseline(log, res)
	default:
		return c.evaluate(log, res)
	}
}

func (c *Comparer) createBaseline(log *slog.Logger, res Result) (Result, error) {
	data, err := c.store.ReadActual(res.ID)
	if err != nil {
		log.Error("cannot create baseline", "path", res.ActualPath, "error", err)
		return res, err
	}
	if _, err := DecodeBytes(data); err != nil {
		res.absorb(OutcomeDecodeError, err)
		log.Error("actual capture is not a valid image; baseline not created", "path", res.ActualPath, "error", err)
		return res, nil
	}
	if err := c.store.Write(res.ID, data); err != nil {
		log.Error("baseline write failed", "path", res.BaselinePath, "error", err)
		return res, err
	}
	res.absorb(OutcomeBaselineCreated, nil)
	log.Info("baseline created", "path", res.BaselinePath)
	return res, nil
}

func (c *Comparer) evaluate(log *slog.Logger, res Result) (Result, error) {
	actualData, err := c.store.ReadActual(res.ID)
	if err != nil {
		log.Error("actual capture unavailable", "path", res.ActualPath, "error", err)
		return res, err
	}
	baselineData, err := c.store.Read(res.ID)
	if err != nil {
		if apperrors.IsSoft(err) {
			res.absorb(OutcomeMissingBaseline, err)
			log.Warn("baseline disappeared during comparison", "path", res.BaselinePath)
			return res, nil
		}
		log.Error("baseline unreadable", "path", res.BaselinePath, "error", err)
		return res, err
	}

	expected, err := c.fingerprint(baselineData)
	if err != nil {
		res.absorb(OutcomeDecodeError, err)
		log.Error("baseline image cannot be hashed", "path", res.BaselinePath, "error", err)
		return res, nil
	}
	actual, err := c.fingerprint(actualData)
	if err != nil {
		res.absorb(OutcomeDecodeError, err)
		log.Error("actual image cannot be hashed", "path", res.ActualPath, "error", err)
		return res, nil
	}

	if c.update {
		if err := c.store.Write(res.ID, actualData); err != nil {
			log.Error("baseline write failed", "path", res.BaselinePath, "error", err)
			return res, err
		}
		res.absorb(OutcomeBaselineUpdated, nil)
		log.Info("baseline updated", "path", res.BaselinePath)
		return res, nil
	}

	distance, err := expected.Distance(actual)
	if err != nil {
		res.absorb(OutcomeDecodeError, err)
		log.Error("fingerprints are not comparable", "error", err)
		return res, nil
	}
	res.Distance = distance

	if distance < c.threshold {
		res.absorb(OutcomeMatch, nil)
		log.Info("screenshots are similar", "distance", distance, "threshold", c.threshold)
	} else {
		res.absorb(OutcomeMismatch, nil)
		log.Warn("screenshots are different", "distance", distance, "threshold", c.threshold)
	}
	return res, nil
}

func (c *Comparer) fingerprint(data []byte) (Fingerprint, error) {
	img, err := DecodeBytes(data)
	if err != nil {
		return Fingerprint{}, err
	}
	return c.hasher.Hash(img)
}

// Fingerprint hashes the actual capture for id.
func (c *Comparer) Fingerprint(_ context.Context, id string) (Fingerprint, error) {
	data, err := c.store.ReadActual(id)
	if err != nil {
		return Fingerprint{}, err
	}
	return c.fingerprint(data)
}
