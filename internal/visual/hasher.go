package visual

import (
	"image"

	"github.com/corona10/goimagehash"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

// Fingerprint is a fixed-size perceptual hash of an image.
type Fingerprint struct {
	hash *goimagehash.ImageHash
}

// Distance returns the Hamming distance between two fingerprints.
func (f Fingerprint) Distance(other Fingerprint) (int, error) {
	if f.hash == nil || other.hash == nil {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "distance on empty fingerprint")
	}
	d, err := f.hash.Distance(other.hash)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "incomparable fingerprints")
	}
	return d, nil
}

// IsZero reports whether f was never computed.
func (f Fingerprint) IsZero() bool { return f.hash == nil }

func (f Fingerprint) bits() uint64 {
	if f.hash == nil {
		return 0
	}
	return f.hash.GetHash()
}

func (f Fingerprint) String() string {
	if f.hash == nil {
		return ""
	}
	return f.hash.ToString()
}

// ParseFingerprint parses the String form of a fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	h, err := goimagehash.ImageHashFromString(s)
	if err != nil {
		return Fingerprint{}, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "parse fingerprint")
	}
	return Fingerprint{hash: h}, nil
}

// Hasher reduces an image to a fingerprint.
type Hasher interface {
	Hash(img image.Image) (Fingerprint, error)
}

// AverageHasher samples an 8x8 grayscale grid and sets one bit per cell above the mean.
type AverageHasher struct{}

// Hash implements Hasher.
func (AverageHasher) Hash(img image.Image) (Fingerprint, error) {
	if img == nil {
		return Fingerprint{}, apperrors.New(apperrors.CodeImageDecode, "nil image")
	}
	h, err := goimagehash.AverageHash(img)
	if err != nil {
		return Fingerprint{}, apperrors.Wrap(err, apperrors.CodeImageDecode, "average hash")
	}
	return Fingerprint{hash: h}, nil
}

// HashFile decodes and hashes the image at path.
func HashFile(h Hasher, path string) (Fingerprint, error) {
	img, err := DecodeFile(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return h.Hash(img)
}
