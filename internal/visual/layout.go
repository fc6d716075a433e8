package visual

import (
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

// Layout maps screenshot identifiers onto the baseline and actual roots.
// Both roots mirror the same relative namespace.
type Layout struct {
	BaselineDir string
	ActualDir   string
}

// CleanID validates a screenshot identifier and returns its canonical slash form.
func CleanID(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", apperrors.New(apperrors.CodeInvalidID, "empty screenshot id")
	}
	slashed := strings.ReplaceAll(id, `\`, "/")
	if path.IsAbs(slashed) || filepath.IsAbs(id) || filepath.VolumeName(id) != "" {
		return "", apperrors.New(apperrors.CodeInvalidID, "screenshot id must be relative").
			WithMetadata("id", id)
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", apperrors.New(apperrors.CodeInvalidID, "screenshot id escapes its root").
				WithMetadata("id", id)
		}
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", apperrors.New(apperrors.CodeInvalidID, "screenshot id names the root").
			WithMetadata("id", id)
	}
	return cleaned, nil
}

// BaselinePath returns the baseline location for id.
func (l Layout) BaselinePath(id string) (string, error) {
	clean, err := CleanID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.BaselineDir, filepath.FromSlash(clean)), nil
}

// ActualPath returns the actual-capture location for id.
func (l Layout) ActualPath(id string) (string, error) {
	clean, err := CleanID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.ActualDir, filepath.FromSlash(clean)), nil
}

// Resolve returns both locations for id.
func (l Layout) Resolve(id string) (baseline, actual string, err error) {
	if baseline, err = l.BaselinePath(id); err != nil {
		return "", "", err
	}
	if actual, err = l.ActualPath(id); err != nil {
		return "", "", err
	}
	return baseline, actual, nil
}
