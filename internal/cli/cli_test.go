package cli

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shotdiff/internal/artifacts"
)

type workspace struct {
	root     string
	baseline string
	actual   string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	for _, k := range []string{
		"SHOTDIFF_BASELINE_DIR", "SHOTDIFF_ACTUAL_DIR", "SHOTDIFF_THRESHOLD", "SHOTDIFF_UPDATE",
		"SHOTDIFF_LOG_LEVEL", "SHOTDIFF_LOG_FORMAT", "SHOTDIFF_LOG_FILE", "SHOTDIFF_ARTIFACT_BUCKET",
	} {
		t.Setenv(k, "")
	}
	root := t.TempDir()
	return &workspace{
		root:     root,
		baseline: filepath.Join(root, "baseline"),
		actual:   filepath.Join(root, "actual"),
	}
}

func (w *workspace) png(t *testing.T, dir, id string, split bool) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := color.Color(color.White)
			if split && x < 16 {
				c = color.Black
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	p := filepath.Join(dir, filepath.FromSlash(id))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

// exec runs the command tree and returns stdout, logs and the exit code.
func (w *workspace) exec(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd(&logs)
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	full := append([]string{"--baseline-dir", w.baseline, "--actual-dir", w.actual}, args...)
	cmd.SetArgs(full)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), logs.String(), ExitCode(err)
}

func TestCompareExitCodes(t *testing.T) {
	w := newWorkspace(t)
	w.png(t, w.baseline, "same.png", false)
	w.png(t, w.actual, "same.png", false)
	w.png(t, w.baseline, "diff.png", false)
	w.png(t, w.actual, "diff.png", true)
	w.png(t, w.baseline, "lost.png", false)

	out, _, code := w.exec(t, "compare", "same.png")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out, "PASS same.png")

	out, _, code = w.exec(t, "compare", "same.png", "diff.png")
	assert.Equal(t, ExitMismatch, code)
	assert.Contains(t, out, "FAIL diff.png")

	out, _, code = w.exec(t, "compare", "same.png", "lost.png")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, out, "ERR  lost.png")

	_, logs, code := w.exec(t, "compare", "new.png")
	assert.Equal(t, ExitMismatch, code, "missing baseline is a failing verdict")
	assert.Contains(t, logs, "baseline not found")
}

func TestCompareUpdateSnapshots(t *testing.T) {
	w := newWorkspace(t)
	actual := w.png(t, w.actual, "pages/new.png", true)

	out, _, code := w.exec(t, "--update-snapshots", "compare", "pages/new.png")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "baseline_created")

	want, err := os.ReadFile(actual)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(w.baseline, "pages", "new.png"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestThresholdFlagOverridesConfigFile(t *testing.T) {
	w := newWorkspace(t)
	w.png(t, w.baseline, "a.png", false)
	w.png(t, w.actual, "a.png", true)

	cfgPath := filepath.Join(w.root, "shotdiff.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("threshold: 1\n"), 0o644))

	_, _, code := w.exec(t, "--config", cfgPath, "compare", "a.png")
	assert.Equal(t, ExitMismatch, code)

	_, _, code = w.exec(t, "--config", cfgPath, "--threshold", "64", "compare", "a.png")
	assert.Equal(t, ExitOK, code)
}

func TestInvalidConfigIsUsageError(t *testing.T) {
	w := newWorkspace(t)
	_, _, code := w.exec(t, "--threshold", "-3", "compare", "a.png")
	assert.Equal(t, ExitError, code)

	_, _, code = w.exec(t, "--log-format", "xml", "compare", "a.png")
	assert.Equal(t, ExitError, code)
}

func TestHash(t *testing.T) {
	w := newWorkspace(t)
	plain := w.png(t, w.actual, "plain.png", false)
	split := w.png(t, w.actual, "split.png", true)

	out, _, code := w.exec(t, "hash", plain)
	require.Equal(t, ExitOK, code)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	fp := fields[0]
	assert.True(t, strings.HasPrefix(fp, "a:"), "fingerprint %q should carry the average-hash prefix", fp)

	out, _, code = w.exec(t, "hash", "--against", fp, plain, split)
	require.Equal(t, ExitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "distance=0")
	assert.NotContains(t, lines[1], "distance=0")

	_, _, code = w.exec(t, "hash", filepath.Join(w.root, "nope.png"))
	assert.Equal(t, ExitError, code)
}

func TestHashStdin(t *testing.T) {
	w := newWorkspace(t)
	plain := w.png(t, w.actual, "plain.png", false)
	data, err := os.ReadFile(plain)
	require.NoError(t, err)

	fileOut, _, code := w.exec(t, "hash", plain)
	require.Equal(t, ExitOK, code)

	var out, logs bytes.Buffer
	cmd := newRootCmd(&logs)
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetIn(bytes.NewReader(data))
	cmd.SetArgs([]string{"--baseline-dir", w.baseline, "--actual-dir", w.actual, "hash", "-"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Equal(t, strings.Fields(fileOut)[0], strings.Fields(out.String())[0])
	assert.Contains(t, out.String(), "  -")
}

func TestRunWritesBundleAndReport(t *testing.T) {
	w := newWorkspace(t)
	w.png(t, w.baseline, "ok.png", false)
	w.png(t, w.actual, "ok.png", false)
	w.png(t, w.baseline, "bad.png", false)
	w.png(t, w.actual, "bad.png", true)

	suitePath := filepath.Join(w.root, "suite.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(`
name: local
base_url: http://localhost:3000
targets:
  - id: ok.png
    path: /
  - id: bad.png
    path: /bad
`), 0o644))
	bundle := filepath.Join(w.root, "review.tar.zst")
	reportPath := filepath.Join(w.root, "report.yaml")

	out, _, code := w.exec(t, "run", "--suite", suitePath, "--bundle", bundle, "--report", reportPath)
	assert.Equal(t, ExitMismatch, code)
	assert.Contains(t, out, "1 passed, 1 failed, 0 errors")

	f, err := os.Open(bundle)
	require.NoError(t, err)
	defer f.Close()
	entries, err := artifacts.Entries(f)
	require.NoError(t, err)
	assert.Contains(t, entries, "actual/bad.png")
	assert.Contains(t, entries, "baseline/bad.png")
	assert.NotContains(t, entries, "actual/ok.png")

	report, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "suite: local")
}

func TestRunPublishRequiresBucket(t *testing.T) {
	w := newWorkspace(t)
	w.png(t, w.baseline, "ok.png", false)
	w.png(t, w.actual, "ok.png", false)
	suitePath := filepath.Join(w.root, "suite.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte("name: s\ntargets:\n  - id: ok.png\n    url: http://x.test/\n"), 0o644))

	_, _, code := w.exec(t, "run", "--suite", suitePath, "--publish")
	assert.Equal(t, ExitError, code)
}

func TestRunRequiresSuite(t *testing.T) {
	w := newWorkspace(t)
	_, _, code := w.exec(t, "run")
	assert.Equal(t, ExitError, code)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "loud": "INFO"}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestJSONLogFormat(t *testing.T) {
	w := newWorkspace(t)
	_, logs, _ := w.exec(t, "--log-format", "json", "compare", "missing.png")
	assert.Contains(t, logs, `"msg":"baseline not found; run with update mode to create it"`)
}

func TestLogFileReceivesLogs(t *testing.T) {
	w := newWorkspace(t)
	w.png(t, w.baseline, "same.png", false)
	w.png(t, w.actual, "same.png", false)
	logPath := filepath.Join(w.root, "logs", "test.log")

	_, stderr, code := w.exec(t, "--log-file", logPath, "compare", "same.png")
	require.Equal(t, ExitOK, code)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "screenshot=same.png")
	assert.Contains(t, stderr, "screenshot=same.png", "console logging stays on")

	_, _, code = w.exec(t, "--log-file", logPath, "compare", "same.png")
	require.Equal(t, ExitOK, code)
	again, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Greater(t, len(again), len(data), "log file is appended to")
}
