package visual

import (
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

// BaselineStore owns writes to the baseline root. Actual captures are only read.
type BaselineStore struct {
	layout Layout
}

// NewBaselineStore creates a store over layout.
func NewBaselineStore(layout Layout) *BaselineStore {
	return &BaselineStore{layout: layout}
}

// Layout returns the store's directory layout.
func (s *BaselineStore) Layout() Layout { return s.layout }

// Exists reports whether a baseline is stored for id.
func (s *BaselineStore) Exists(id string) (bool, error) {
	p, err := s.layout.BaselinePath(id)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	switch {
	case err == nil:
		if info.IsDir() {
			return false, apperrors.New(apperrors.CodeFilesystem, "baseline path is a directory").
				WithMetadata("path", p)
		}
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, apperrors.Wrap(err, apperrors.CodeFilesystem, "stat baseline").
			WithMetadata("path", p)
	}
}

// Read returns the stored baseline bytes.
func (s *BaselineStore) Read(id string) ([]byte, error) {
	p, err := s.layout.BaselinePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeMissingBaseline, "baseline not found").
				WithMetadata("path", p)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeFilesystem, "read baseline").
			WithMetadata("path", p)
	}
	return data, nil
}

// ReadActual returns the captured image bytes for id.
func (s *BaselineStore) ReadActual(id string) ([]byte, error) {
	p, err := s.layout.ActualPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeMissingCapture, "actual capture not found; did the screenshot step run?").
				WithMetadata("path", p)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeFilesystem, "read actual capture").
			WithMetadata("path", p)
	}
	return data, nil
}

// Write stores data as the baseline for id, creating parent directories as needed.
// The file is replaced atomically.
func (s *BaselineStore) Write(id string, data []byte) error {
	p, err := s.layout.BaselinePath(id)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "create baseline directory").
			WithMetadata("path", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "create temp baseline").
			WithMetadata("path", dir)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "write baseline").WithMetadata("path", p)
	}
	if err := tmp.Chmod(fs.FileMode(filePerm)); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "chmod baseline").WithMetadata("path", p)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "close baseline").WithMetadata("path", p)
	}
	if err := os.Rename(tmpName, p); err != nil {
		cleanup()
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "replace baseline").WithMetadata("path", p)
	}
	return nil
}
