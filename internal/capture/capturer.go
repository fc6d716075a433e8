// Package capture produces actual screenshots from live pages.
package capture

import (
	"context"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

// Target describes one page or element to screenshot.
type Target struct {
	ID       string
	URL      string
	Selector string // element to crop to; empty captures the page
	FullPage bool
	WaitFor  string // selector that must be visible before capture
}

// Capturer writes a screenshot of a target to a destination path.
type Capturer interface {
	Capture(ctx context.Context, t Target, dest string) error
	Close() error
}

// Options configures a browser capturer.
type Options struct {
	Browser        string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	Timeout        time.Duration
}

func (o Options) timeoutMS() float64 {
	if o.Timeout <= 0 {
		return float64(defaultTimeout.Milliseconds())
	}
	return float64(o.Timeout.Milliseconds())
}

const (
	defaultTimeout = 10 * time.Second
	dirPerm        = 0o755
)

func ensureDir(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "create capture directory").
			WithMetadata("path", dest)
	}
	return nil
}
