// Package orientation normalizes decoded pixel buffers against embedded
// EXIF orientation metadata, so buffer coordinates match the upright
// presentation of the image.
package orientation

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"
)

// EXIF orientation tag values (EXIF 2.x, tag 0x0112).
const (
	tagFlipVertical = 4
	tagTranspose    = 5
	tagRotate90     = 6
	tagTransverse   = 7
	tagRotate270    = 8
	tagRotate180    = 3
)

// Transform is the rotation/flip needed to bring a buffer upright.
// Rotation is clockwise degrees; a scale of -1 mirrors that axis.
type Transform struct {
	Rotation int
	ScaleX   int
	ScaleY   int
}

// Identity reports whether the transform leaves the buffer unchanged.
func (t Transform) Identity() bool {
	return t.Rotation == 0 && t.ScaleX == 1 && t.ScaleY == 1
}

// Normalizer derives and applies orientation transforms
type Normalizer struct {
	log zerolog.Logger
}

// New creates a new Normalizer
func New(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Read extracts the orientation tag from the source bytes and maps it to a
// Transform. A missing tag, a non-EXIF source, or any read error yields the
// identity transform; orientation is best-effort and never fails a crop.
func (n *Normalizer) Read(r io.Reader) Transform {
	identity := Transform{ScaleX: 1, ScaleY: 1}

	x, err := exif.Decode(r)
	if err != nil {
		n.log.Warn().Err(err).Msg("orientation metadata unavailable, skipping normalization")
		return identity
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return identity
	}
	value, err := tag.Int(0)
	if err != nil {
		return identity
	}

	return transformForTag(value)
}

func transformForTag(value int) Transform {
	switch value {
	case tagRotate90:
		return Transform{Rotation: 90, ScaleX: 1, ScaleY: 1}
	case tagRotate270:
		return Transform{Rotation: 270, ScaleX: 1, ScaleY: 1}
	case tagTranspose, tagTransverse:
		return Transform{Rotation: 270, ScaleX: -1, ScaleY: -1}
	case tagRotate180:
		return Transform{Rotation: 180, ScaleX: 1, ScaleY: 1}
	case tagFlipVertical:
		return Transform{Rotation: 0, ScaleX: 1, ScaleY: -1}
	default:
		return Transform{ScaleX: 1, ScaleY: 1}
	}
}

// Apply rotates then mirrors the buffer per the transform. The identity
// transform returns img untouched; 90/270 rotations swap the dimensions.
func (n *Normalizer) Apply(img image.Image, t Transform) image.Image {
	if t.Identity() {
		return img
	}

	// imaging rotates counter-clockwise; the transform is clockwise.
	switch t.Rotation {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}

	if t.ScaleX == -1 {
		img = imaging.FlipH(img)
	}
	if t.ScaleY == -1 {
		img = imaging.FlipV(img)
	}

	n.log.Debug().
		Int("rotation", t.Rotation).
		Int("scale_x", t.ScaleX).
		Int("scale_y", t.ScaleY).
		Msg("normalized orientation")

	return img
}
