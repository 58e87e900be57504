// Package encoder re-encodes cropped buffers and carries a curated set of
// EXIF attributes forward from the source file onto JPEG output.
package encoder

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/rs/zerolog"
)

// exifAllowList is the fixed set of attributes copied from source to
// destination. Orientation is always rewritten to upright afterwards.
var exifAllowList = map[string]struct{}{
	"ApertureValue":       {},
	"FNumber":             {},
	"DateTime":            {},
	"DateTimeDigitized":   {},
	"ExposureTime":        {},
	"Flash":               {},
	"FocalLength":         {},
	"GPSAltitude":         {},
	"GPSAltitudeRef":      {},
	"GPSDateStamp":        {},
	"GPSLatitude":         {},
	"GPSLatitudeRef":      {},
	"GPSLongitude":        {},
	"GPSLongitudeRef":     {},
	"GPSProcessingMethod": {},
	"GPSTimeStamp":        {},
	"ImageLength":         {},
	"ImageWidth":          {},
	"ISOSpeedRatings":     {},
	"Make":                {},
	"Model":               {},
	"Orientation":         {},
	"SubSecTime":          {},
	"SubSecTimeDigitized": {},
	"SubSecTimeOriginal":  {},
	"WhiteBalance":        {},
}

// Encoder writes pixel buffers in an output format
type Encoder struct {
	quality int
	log     zerolog.Logger
}

// New creates a new Encoder. quality applies to JPEG and WebP output.
func New(quality int, log zerolog.Logger) *Encoder {
	if quality < 1 || quality > 100 {
		quality = 100
	}
	return &Encoder{quality: quality, log: log}
}

// Encode writes img to w in the format named by mimeType. Formats other
// than PNG and WebP are written as JPEG.
func (e *Encoder) Encode(img image.Image, mimeType string, w io.Writer) error {
	switch mimeType {
	case "image/png":
		return imaging.Encode(w, img, imaging.PNG)
	case "image/webp":
		return webp.Encode(w, img, &webp.Options{Quality: float32(e.quality)})
	default:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.quality))
	}
}

// CopyMetadata reads the allow-listed EXIF attributes from the source JPEG
// file and writes them onto the destination JPEG, forcing the orientation
// attribute to upright (1). The destination's pixel data has already been
// rotated upright; stale orientation metadata would double-rotate on read.
//
// Individual attributes that cannot be carried over are skipped with a
// warning; the copy as a whole only fails on I/O or malformed JPEG output.
func (e *Encoder) CopyMetadata(srcPath, dstPath string) error {
	tags := e.sourceTags(srcPath)

	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return fmt.Errorf("failed to load standard IFDs: %w", err)
	}
	ti := exif.NewTagIndex()
	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)

	for _, tag := range tags {
		if _, ok := exifAllowList[tag.TagName]; !ok {
			continue
		}
		ib, err := exif.GetOrCreateIbFromRootIb(rootIb, tag.IfdPath)
		if err != nil {
			e.log.Warn().Err(err).Str("tag", tag.TagName).Str("ifd", tag.IfdPath).Msg("skipping attribute, unknown IFD")
			continue
		}
		if err := ib.SetStandardWithName(tag.TagName, tag.Value); err != nil {
			e.log.Warn().Err(err).Str("tag", tag.TagName).Msg("skipping attribute, not encodable")
		}
	}

	ifd0Ib, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD")
	if err != nil {
		return fmt.Errorf("failed to create IFD0 builder: %w", err)
	}
	if err := ifd0Ib.SetStandardWithName("Orientation", []uint16{1}); err != nil {
		return fmt.Errorf("failed to force upright orientation: %w", err)
	}

	return writeExif(dstPath, rootIb)
}

// sourceTags extracts the flat EXIF tag list from the source file. A source
// without readable EXIF yields no tags; the destination still gets an
// upright orientation attribute.
func (e *Encoder) sourceTags(srcPath string) []exif.ExifTag {
	rawExif, err := exif.SearchFileAndExtractExif(srcPath)
	if err != nil {
		e.log.Warn().Err(err).Str("path", srcPath).Msg("no source EXIF to copy")
		return nil
	}

	tags, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		e.log.Warn().Err(err).Str("path", srcPath).Msg("could not parse source EXIF")
		return nil
	}
	return tags
}

func writeExif(dstPath string, rootIb *exif.IfdBuilder) error {
	data, err := os.ReadFile(dstPath)
	if err != nil {
		return fmt.Errorf("failed to read encoded output: %w", err)
	}

	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("failed to parse encoded output: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("failed to attach EXIF segment: %w", err)
	}

	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to rewrite output: %w", err)
	}
	defer f.Close()

	if err := sl.Write(f); err != nil {
		return fmt.Errorf("failed to write output with EXIF: %w", err)
	}
	return nil
}
