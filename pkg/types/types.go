package types

import "fmt"

// Offset is the top-left corner of a crop region, in pixels of the
// original, full-resolution coordinate space of the source image.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is the extent of a crop region in full-resolution pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CropRegion is a caller-specified sub-region of the source image.
type CropRegion struct {
	Offset Offset `json:"offset"`
	Size   Size   `json:"size"`
}

// Dimensions holds native pixel dimensions of an image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Normalize returns a copy of the region with negative offsets clamped to
// zero. Negative offsets are tolerated, not rejected.
func (r CropRegion) Normalize() CropRegion {
	if r.Offset.X < 0 {
		r.Offset.X = 0
	}
	if r.Offset.Y < 0 {
		r.Offset.Y = 0
	}
	return r
}

// Validate checks the region after normalization. Only a non-positive size
// is invalid; offsets have already been clamped.
func (r CropRegion) Validate() error {
	if r.Size.Width <= 0 || r.Size.Height <= 0 {
		return fmt.Errorf("%w: invalid crop region [%d, %d, %d, %d]",
			ErrInvalidArgument, r.Offset.X, r.Offset.Y, r.Size.Width, r.Size.Height)
	}
	return nil
}
