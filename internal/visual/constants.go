// Package visual implements perceptual screenshot comparison against accepted baselines.
package visual

// Hashing constants
const (
	// Side of the luminance grid sampled by the average hash.
	GridSize = 8

	// Fingerprint length in bits.
	FingerprintBits = GridSize * GridSize

	// Largest width*height decoded. Checked against the header before pixels are allocated.
	MaxPixels = 1 << 26
)

// Storage constants
const (
	dirPerm  = 0o755
	filePerm = 0o644
)
