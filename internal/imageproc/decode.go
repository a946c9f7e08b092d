// Package imageproc decodes, normalizes and fingerprints invoice images
// before they reach a recognition engine.
package imageproc

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

// maxPixels guards against decompression bombs: a tiny file may declare a
// huge canvas.
const maxPixels = 100_000_000

// Limits bounds what Decode accepts.
type Limits struct {
	MaxBytes int64
	MinBytes int64
}

// Decoded is a decoded image plus what we learned about the source bytes.
type Decoded struct {
	Image       image.Image
	Format      string
	Fingerprint string
	Bytes       int
}

// Fingerprint returns the sha256 hex digest of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Decode parses PNG, JPEG, GIF, BMP, TIFF or WebP bytes and applies the
// EXIF orientation. Every failure is a decode_error input error.
func Decode(data []byte, lim Limits) (*Decoded, error) {
	if len(data) == 0 {
		return nil, decodeError("empty image data", nil)
	}
	if lim.MaxBytes > 0 && int64(len(data)) > lim.MaxBytes {
		return nil, decodeError(fmt.Sprintf("image is %d bytes, limit is %d", len(data), lim.MaxBytes), nil)
	}
	if lim.MinBytes > 0 && int64(len(data)) < lim.MinBytes {
		return nil, decodeError(fmt.Sprintf("image is %d bytes, minimum is %d", len(data), lim.MinBytes), nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError("unrecognized image data", err)
	}
	if !slices.Contains(constants.ImageFormats, format) {
		return nil, decodeError(fmt.Sprintf("unsupported image format %q", format), nil)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, decodeError(fmt.Sprintf("unsupported image dimensions %dx%d", cfg.Width, cfg.Height), nil)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, decodeError("decode "+format, err)
	}
	return &Decoded{Image: img, Format: format, Fingerprint: Fingerprint(data), Bytes: len(data)}, nil
}

// DecodeBase64 accepts raw or data-URI base64 image payloads.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, decodeError("malformed data URI", nil)
		}
		s = s[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err2 := base64.RawStdEncoding.DecodeString(s); err2 == nil {
			return b, nil
		}
		return nil, decodeError("invalid base64 image data", err)
	}
	return b, nil
}

func decodeError(msg string, cause error) error {
	return common.NewInputError(common.CodeDecodeError, msg, cause)
}
