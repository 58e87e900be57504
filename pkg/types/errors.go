package types

import "errors"

// Error kinds surfaced by the crop pipeline. Callers match with errors.Is;
// every failure carries additional context via wrapping.
var (
	// ErrInvalidArgument is returned synchronously, before any I/O starts,
	// for a missing/invalid crop region or an empty image reference.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCannotOpen is returned when a reference cannot be opened as a
	// readable stream, locally or remotely.
	ErrCannotOpen = errors.New("cannot open image")

	// ErrDecode is returned when the decoder yields no pixel buffer.
	ErrDecode = errors.New("cannot decode image")

	// ErrCropOutOfBounds is returned when the downscaled crop rectangle
	// falls outside the decoded buffer.
	ErrCropOutOfBounds = errors.New("crop rectangle out of bounds")

	// ErrNoCacheDir is returned when neither cache directory is available
	// for the output file.
	ErrNoCacheDir = errors.New("no cache directory available")
)
