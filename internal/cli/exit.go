package cli

import (
	"errors"
	"fmt"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/runner"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitMismatch = 1 // at least one screenshot failed its comparison
	ExitError    = 2 // the environment is broken: missing captures, I/O, bad input
)

// ExitErr carries a process exit code alongside the error fang prints.
type ExitErr struct {
	Code int
	Err  error
}

func (e *ExitErr) Error() string { return e.Err.Error() }

func (e *ExitErr) Unwrap() error { return e.Err }

// ExitCode maps an error returned by the command tree to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitErr
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitError
}

func usageError(err error) error {
	return &ExitErr{Code: ExitError, Err: err}
}

// reportExit converts a finished report into the command's error result.
func reportExit(r *runner.Report) error {
	switch {
	case r.HasErrors():
		return &ExitErr{Code: ExitError, Err: apperrors.Newf(apperrors.CodeUnavailable,
			"%d of %d screenshots could not be compared", r.Summary.Errors, r.Summary.Total)}
	case !r.OK():
		return &ExitErr{Code: ExitMismatch, Err: fmt.Errorf("%d of %d screenshots differ from their baselines",
			r.Summary.Failed, r.Summary.Total)}
	default:
		return nil
	}
}
