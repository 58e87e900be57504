// Package decoder decodes image streams into memory-bounded pixel buffers.
//
// Very large sources are not kept at full resolution: a power-of-two
// downscale ratio is computed from the crop target size and the decoded
// buffer is immediately reduced to 1/ratio, so peak memory stays bounded
// regardless of the source dimensions.
package decoder

import (
	"bytes"
	"fmt"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-editor/pkg/types"
)

// MaxDimension is the greatest side length, in pixels, that the downscale
// ratio keeps the working buffer under.
const MaxDimension = 1280

// Result holds a decoded, downscaled pixel buffer
type Result struct {
	// Image is the decoded buffer at 1/Ratio of the source resolution.
	Image image.Image
	// MIMEType is the declared type of the source, empty when unknown.
	MIMEType string
	// Ratio is the power-of-two downscale ratio that was applied.
	Ratio int
}

// Decoder decodes image byte streams
type Decoder struct {
	log zerolog.Logger
}

// New creates a new Decoder
func New(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// DownscaleRatio computes the largest power of two such that half the
// larger target dimension divided by the ratio stays at or above
// MaxDimension. Ties between width and height break toward height.
//
// The ratio is driven by the crop target size, not the source image's full
// dimensions: a small crop from a huge image still decodes coarsely. That
// imprecision is deliberate and must not be "fixed" here.
func DownscaleRatio(targetWidth, targetHeight int) int {
	ratio := 1
	if targetHeight >= targetWidth {
		half := targetHeight / 2
		for half/ratio >= MaxDimension {
			ratio *= 2
		}
	} else {
		half := targetWidth / 2
		for half/ratio >= MaxDimension {
			ratio *= 2
		}
	}
	return ratio
}

// Decode reads the stream and returns a pixel buffer downscaled by the
// ratio derived from the crop target dimensions.
//
// Go's registered decoders cannot subsample during decode, so the bound is
// enforced by resizing right after decode and dropping the full-resolution
// buffer before anything else runs.
func (d *Decoder) Decode(r io.Reader, targetWidth, targetHeight int) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDecode, err)
	}

	img, format, err := decodeBytes(data)
	if err != nil || img == nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDecode, err)
	}

	ratio := DownscaleRatio(targetWidth, targetHeight)
	if ratio > 1 {
		b := img.Bounds()
		w, h := b.Dx()/ratio, b.Dy()/ratio
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		img = imaging.Resize(img, w, h, imaging.Box)
	}

	d.log.Debug().
		Str("format", format).
		Int("ratio", ratio).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Msg("decoded image")

	return &Result{
		Image:    img,
		MIMEType: mimeForFormat(format),
		Ratio:    ratio,
	}, nil
}

// DecodeBounds reads only the image header and returns the native pixel
// dimensions without materializing a pixel buffer.
func (d *Decoder) DecodeBounds(r io.Reader) (types.Dimensions, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return types.Dimensions{}, fmt.Errorf("%w: %v", types.ErrDecode, err)
	}
	return types.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// decodeBytes tries the registered decoders first, then falls back to an
// explicit WebP decode for streams the standard registry rejects.
func decodeBytes(data []byte) (image.Image, string, error) {
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}

	return nil, "", fmt.Errorf("unknown or unsupported format")
}

func mimeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	default:
		return ""
	}
}
