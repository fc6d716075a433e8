package visual

import (
	"bytes"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
)

// DecodeBytes decodes a raster image, sniffing its content type first.
// Empty input, non-image content, oversized dimensions and decoder failures yield IMAGE_DECODE errors.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CodeImageDecode, "empty image data")
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperrors.New(apperrors.CodeImageDecode, "not an image").
			WithMetadata("mime", mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeImageDecode, "decode image header").
			WithMetadata("mime", mt.String())
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return nil, apperrors.Newf(apperrors.CodeImageDecode, "image is %dx%d, over the %d pixel limit",
			cfg.Width, cfg.Height, MaxPixels).
			WithMetadata("mime", mt.String())
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeImageDecode, "decode image").
			WithMetadata("mime", mt.String())
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, apperrors.New(apperrors.CodeImageDecode, "image has no pixels").
			WithMetadata("format", format)
	}
	return img, nil
}

// Decode reads r fully and decodes it.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeImageDecode, "read image")
	}
	return DecodeBytes(data)
}

// DecodeFile decodes the image stored at path.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeMissingCapture, "image file not found").
				WithMetadata("path", path)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeFilesystem, "read image file").
			WithMetadata("path", path)
	}
	img, err := DecodeBytes(data)
	if appErr, ok := apperrors.As(err); ok {
		appErr.WithMetadata("path", path)
	}
	return img, err
}
