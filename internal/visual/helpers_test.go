package visual

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// tb is the subset of testing.TB that *rapid.T also satisfies.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

var (
	gray  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.RGBA{A: 255}
)

// makePNG renders a 64x64 image using fill.
func makePNG(t testing.TB, fill func(x, y int) color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func solid(c color.Color) func(x, y int) color.Color {
	return func(int, int) color.Color { return c }
}

// withRect recolors the top-left quadrant of base.
func withRect(base, rect color.Color) func(x, y int) color.Color {
	return func(x, y int) color.Color {
		if x < 32 && y < 32 {
			return rect
		}
		return base
	}
}

func leftHalf(x, _ int) color.Color {
	if x < 32 {
		return white
	}
	return black
}

func topHalf(_, y int) color.Color {
	if y < 32 {
		return white
	}
	return black
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// testEnv is a pair of temporary roots plus a captured log.
type testEnv struct {
	layout Layout
	logs   *bytes.Buffer
	logger *slog.Logger
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	root := t.TempDir()
	logs := &bytes.Buffer{}
	return &testEnv{
		layout: Layout{
			BaselineDir: filepath.Join(root, "baseline"),
			ActualDir:   filepath.Join(root, "actual"),
		},
		logs:   logs,
		logger: slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}

func (e *testEnv) comparer(threshold int, update bool) *Comparer {
	return NewComparer(Options{Layout: e.layout, Threshold: threshold, UpdateMode: update}, WithLogger(e.logger))
}

func (e *testEnv) putBaseline(t testing.TB, id string, data []byte) string {
	t.Helper()
	p := filepath.Join(e.layout.BaselineDir, filepath.FromSlash(id))
	writeFile(t, p, data)
	return p
}

func (e *testEnv) putActual(t testing.TB, id string, data []byte) string {
	t.Helper()
	p := filepath.Join(e.layout.ActualDir, filepath.FromSlash(id))
	writeFile(t, p, data)
	return p
}

// headerOnlyPNG returns a PNG whose IHDR claims width x height 16-bit RGBA with an empty IDAT.
func headerOnlyPNG(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(kind string, data []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(kind), data...)
		buf.Write(body)
		_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 16 // bit depth
	ihdr[9] = 6  // RGBA
	chunk("IHDR", ihdr)
	chunk("IDAT", nil)
	chunk("IEND", nil)
	return buf.Bytes()
}
