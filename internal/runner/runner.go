// Package runner drives batch capture-and-compare runs over a suite.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/shotdiff/internal/capture"
	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/suite"
	"github.com/GriffinCanCode/shotdiff/internal/syncx"
	"github.com/GriffinCanCode/shotdiff/internal/trace"
	"github.com/GriffinCanCode/shotdiff/internal/visual"
)

// Options configures a Runner.
type Options struct {
	Comparer    *visual.Comparer
	Capturer    capture.Capturer // nil compares existing captures only
	Concurrency int
	History     *History
	Logger      *slog.Logger
}

// Runner compares many targets concurrently. Two targets that resolve to the
// same baseline never run at the same time.
type Runner struct {
	comparer    *visual.Comparer
	capturer    capture.Capturer
	concurrency int
	history     *History
	locks       *syncx.KeyedMutex
	log         *slog.Logger
}

// New creates a runner.
func New(opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.History == nil {
		opts.History = NewHistory(HistorySize, EventBuffer)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		comparer:    opts.Comparer,
		capturer:    opts.Capturer,
		concurrency: opts.Concurrency,
		history:     opts.History,
		locks:       syncx.NewKeyedMutex(),
		log:         opts.Logger,
	}
}

// History returns the report history shared with the review server.
func (r *Runner) History() *History { return r.history }

// Comparer returns the underlying comparer.
func (r *Runner) Comparer() *visual.Comparer { return r.comparer }

// Compare evaluates a single existing capture under the baseline lock.
func (r *Runner) Compare(ctx context.Context, id string) (Item, error) {
	item := r.evaluate(ctx, r.comparer, suite.Target{ID: id}, nil)
	if item.Status == StatusError {
		return item, itemErr(item)
	}
	return item, nil
}

// Run captures (when a capturer is configured) and compares every target in s.
// Hard errors are recorded per item; the returned error is non-nil only when
// ctx was cancelled before the run finished.
func (r *Runner) Run(ctx context.Context, s *suite.Suite) (*Report, error) {
	runID := uuid.New().String()
	ctx, _ = trace.WithTraceID(ctx, trace.RunTraceID(runID))
	log := trace.Logger(ctx, r.log).With("run_id", runID, "suite", s.Name)

	report := &Report{
		RunID:      runID,
		Suite:      s.Name,
		StartedAt:  time.Now().UTC(),
		UpdateMode: r.comparer.UpdateMode(),
		Results:    make([]Item, len(s.Targets)),
	}
	log.Info("run started", "targets", len(s.Targets), "capture", r.capturer != nil, "concurrency", r.concurrency)
	log.Debug("run targets", "ids", s.IDs())

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	progress := syncx.NewGuard(0)

	for i, t := range s.Targets {
		g.Go(func() error {
			var item Item
			if err := ctx.Err(); err != nil {
				item = errorItem(t.ID, apperrors.Wrap(err, apperrors.CodeUnavailable, "run cancelled"))
			} else {
				cmp := r.comparer.WithThreshold(t.ThresholdOr(r.comparer.Threshold()))
				item = r.evaluate(ctx, cmp, t, s)
			}
			report.Results[i] = item

			ev := Event{RunID: runID, Item: item, Total: len(s.Targets)}
			progress.Update(func(n *int) {
				*n++
				ev.Done = *n
			})
			r.history.Emit(ev)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	report.summarize()
	r.history.Add(report)

	log.Info("run finished",
		"total", report.Summary.Total,
		"passed", report.Summary.Passed,
		"failed", report.Summary.Failed,
		"errors", report.Summary.Errors,
		"duration", report.FinishedAt.Sub(report.StartedAt))

	return report, ctx.Err()
}

// evaluate runs one target. s is nil for ad-hoc comparisons, which never capture.
func (r *Runner) evaluate(ctx context.Context, cmp *visual.Comparer, t suite.Target, s *suite.Suite) Item {
	ctx, span := trace.StartSpan(ctx, "target")
	defer span.End(trace.Logger(ctx, r.log))
	span.SetAttr("screenshot", t.ID)
	start := time.Now()

	baselinePath, actualPath, err := cmp.Layout().Resolve(t.ID)
	if err != nil {
		return errorItem(t.ID, err)
	}

	unlock := r.locks.Lock(baselinePath)
	defer unlock()

	item := Item{}
	if r.capturer != nil && s != nil {
		ct, err := s.CaptureTarget(t)
		if err != nil {
			return errorItem(t.ID, err)
		}
		item.URL = ct.URL
		if err := r.capturer.Capture(ctx, ct, actualPath); err != nil {
			out := errorItem(t.ID, err)
			out.URL = ct.URL
			out.BaselinePath, out.ActualPath = baselinePath, actualPath
			return out
		}
		item.Captured = true
	}

	res, err := cmp.Evaluate(ctx, t.ID)
	item.Result = res
	item.DurationMS = time.Since(start).Milliseconds()
	span.SetAttr("outcome", string(res.Outcome))
	switch {
	case err != nil:
		item.Status = StatusError
		item.Error = err.Error()
		item.Result.Err = err
	case res.Passed():
		item.Status = StatusPassed
	default:
		item.Status = StatusFailed
	}
	return item
}

func errorItem(id string, err error) Item {
	return Item{
		Result: visual.Result{ID: id, Distance: -1, Error: err.Error(), Err: err},
		Status: StatusError,
	}
}

func itemErr(it Item) error {
	if it.Err != nil {
		return it.Err
	}
	return apperrors.New(apperrors.CodeInternal, it.Error)
}
