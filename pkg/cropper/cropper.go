// Package cropper extracts a caller-specified rectangle from a decoded
// buffer, mapping full-resolution crop coordinates into the downscaled
// buffer's coordinate space.
package cropper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/menta2k/image-editor/pkg/types"
)

// Cropper performs geometric crops
type Cropper struct {
	log zerolog.Logger
}

// New creates a new Cropper
func New(log zerolog.Logger) *Cropper {
	return &Cropper{log: log}
}

// Crop extracts the region from img. The region is given in the original,
// full-resolution coordinate space; ratio is the power-of-two downscale
// ratio the buffer was decoded at. When the mapped rectangle covers the
// buffer exactly, img is returned as-is to avoid a redundant copy.
func (c *Cropper) Crop(img image.Image, region types.CropRegion, ratio int) (image.Image, error) {
	if ratio < 1 {
		ratio = 1
	}

	x := region.Offset.X / ratio
	y := region.Offset.Y / ratio
	width := region.Size.Width / ratio
	height := region.Size.Height / ratio

	bounds := img.Bounds()

	c.log.Debug().
		Int("x", x).Int("y", y).
		Int("width", width).Int("height", height).
		Int("buffer_width", bounds.Dx()).Int("buffer_height", bounds.Dy()).
		Msg("crop rectangle in buffer space")

	if x == 0 && y == 0 && width == bounds.Dx() && height == bounds.Dy() {
		c.log.Debug().Msg("crop covers whole buffer, skipping copy")
		return img, nil
	}

	rect := image.Rect(x, y, x+width, y+height)
	if width < 1 || height < 1 || !rect.In(bounds.Sub(bounds.Min)) {
		return nil, fmt.Errorf("%w: [%d, %d, %d, %d] in %dx%d buffer",
			types.ErrCropOutOfBounds, x, y, width, height, bounds.Dx(), bounds.Dy())
	}

	return imaging.Crop(img, rect.Add(bounds.Min)), nil
}
