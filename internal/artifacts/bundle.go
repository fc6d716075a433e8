// Package artifacts packages failing comparisons for review and publishes them.
package artifacts

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/runner"
	"github.com/GriffinCanCode/shotdiff/internal/visual"
)

const (
	ReportName   = "report.yaml"
	BundleName   = "bundle.tar.zst"
	actualDir    = "actual"
	baselineDir  = "baseline"
	entryPerm    = 0o644
	maxEntrySize = 64 << 20
)

// Bundle writes a zstd-compressed tar of the report and, for every item that
// did not pass, its actual capture and baseline when present on disk.
// Baselines are only read.
func Bundle(report *runner.Report, w io.Writer) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "create zstd encoder")
	}
	tw := tar.NewWriter(enc)

	if err := writeBundle(tw, report); err != nil {
		_ = tw.Close()
		_ = enc.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		_ = enc.Close()
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "finish tar stream")
	}
	if err := enc.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "finish zstd stream")
	}
	return nil
}

// BundleBytes is Bundle into memory.
func BundleBytes(report *runner.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := Bundle(report, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBundle(tw *tar.Writer, report *runner.Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "encode report")
	}
	mod := report.FinishedAt
	if mod.IsZero() {
		mod = time.Now()
	}
	if err := writeEntry(tw, ReportName, data, mod); err != nil {
		return err
	}

	for _, it := range report.Failing() {
		id, err := visual.CleanID(it.ID)
		if err != nil {
			continue
		}
		for _, f := range []struct{ dir, src string }{
			{actualDir, it.ActualPath},
			{baselineDir, it.BaselinePath},
		} {
			if f.src == "" {
				continue
			}
			if err := copyFile(tw, path.Join(f.dir, id), f.src, mod); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(tw *tar.Writer, name, src string, mod time.Time) error {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "stat artifact").WithMetadata("path", src)
	}
	if !info.Mode().IsRegular() || info.Size() > maxEntrySize {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeFilesystem, "read artifact").WithMetadata("path", src)
	}
	return writeEntry(tw, name, data, mod)
}

func writeEntry(tw *tar.Writer, name string, data []byte, mod time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     entryPerm,
		Size:     int64(len(data)),
		ModTime:  mod,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeFilesystem, "write header %s", name)
	}
	if _, err := tw.Write(data); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeFilesystem, "write entry %s", name)
	}
	return nil
}

// Entries decodes a bundle and returns its file contents keyed by entry name.
func Entries(r io.Reader) (map[string][]byte, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "create zstd decoder")
	}
	defer dec.Close()

	out := make(map[string][]byte)
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "read tar header")
		}
		if hdr.Typeflag != tar.TypeReg || hdr.Size > maxEntrySize {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(tr, maxEntrySize))
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "read entry %s", hdr.Name)
		}
		out[hdr.Name] = data
	}
}
