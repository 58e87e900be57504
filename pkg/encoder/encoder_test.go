package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	dexif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y), 200, 255})
		}
	}
	return img
}

// writeTaggedJPEG writes a JPEG with Make, Model and a non-upright
// orientation, plus one attribute outside the copy allow-list.
func writeTaggedJPEG(t *testing.T, path string) {
	t.Helper()

	var plain bytes.Buffer
	require.NoError(t, jpeg.Encode(&plain, testImage(16, 16), nil))

	im := exifcommon.NewIfdMapping()
	require.NoError(t, exifcommon.LoadStandardIfds(im))
	ti := dexif.NewTagIndex()
	rootIb := dexif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)

	ifd0Ib, err := dexif.GetOrCreateIbFromRootIb(rootIb, "IFD")
	require.NoError(t, err)
	require.NoError(t, ifd0Ib.SetStandardWithName("Make", "TestCam"))
	require.NoError(t, ifd0Ib.SetStandardWithName("Model", "TC-1000"))
	require.NoError(t, ifd0Ib.SetStandardWithName("Orientation", []uint16{6}))
	require.NoError(t, ifd0Ib.SetStandardWithName("Software", "testsuite"))

	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(plain.Bytes())
	require.NoError(t, err)
	sl := intfc.(*jpegstructure.SegmentList)
	require.NoError(t, sl.SetExif(rootIb))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, sl.Write(f))
}

func TestEncodeJPEG(t *testing.T) {
	e := New(100, zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, e.Encode(testImage(40, 30), "image/jpeg", &buf))

	img, format, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestEncodePNG(t *testing.T) {
	e := New(100, zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, e.Encode(testImage(20, 10), "image/png", &buf))

	_, format, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestEncodeWebP(t *testing.T) {
	e := New(90, zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, e.Encode(testImage(20, 10), "image/webp", &buf))

	img, err := webp.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestEncodeUnknownMIMEFallsBackToJPEG(t *testing.T) {
	e := New(100, zerolog.Nop())

	var buf bytes.Buffer
	require.NoError(t, e.Encode(testImage(20, 10), "image/tiff", &buf))

	_, format, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestCopyMetadata(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.jpg")
	dst := filepath.Join(dir, "cropped.jpg")

	writeTaggedJPEG(t, src)

	var out bytes.Buffer
	require.NoError(t, jpeg.Encode(&out, testImage(8, 8), nil))
	require.NoError(t, os.WriteFile(dst, out.Bytes(), 0644))

	e := New(100, zerolog.Nop())
	require.NoError(t, e.CopyMetadata(src, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()

	x, err := exif.Decode(f)
	require.NoError(t, err)

	makeTag, err := x.Get(exif.Make)
	require.NoError(t, err)
	makeValue, err := makeTag.StringVal()
	require.NoError(t, err)
	assert.Equal(t, "TestCam", makeValue)

	modelTag, err := x.Get(exif.Model)
	require.NoError(t, err)
	modelValue, err := modelTag.StringVal()
	require.NoError(t, err)
	assert.Equal(t, "TC-1000", modelValue)

	// Orientation is forced upright even though the source said rotate-90.
	orientTag, err := x.Get(exif.Orientation)
	require.NoError(t, err)
	orientValue, err := orientTag.Int(0)
	require.NoError(t, err)
	assert.Equal(t, 1, orientValue)

	// Attributes outside the allow-list are not carried over.
	_, err = x.Get(exif.Software)
	assert.Error(t, err)
}

func TestCopyMetadataOutputStillDecodable(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.jpg")
	dst := filepath.Join(dir, "cropped.jpg")

	writeTaggedJPEG(t, src)

	var out bytes.Buffer
	require.NoError(t, jpeg.Encode(&out, testImage(12, 34), nil))
	require.NoError(t, os.WriteFile(dst, out.Bytes(), 0644))

	e := New(100, zerolog.Nop())
	require.NoError(t, e.CopyMetadata(src, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()

	img, _, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 34, img.Bounds().Dy())
}

func TestCopyMetadataWithoutSourceExif(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bare.jpg")
	dst := filepath.Join(dir, "cropped.jpg")

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(8, 8), nil))
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0644))
	require.NoError(t, os.WriteFile(dst, buf.Bytes(), 0644))

	e := New(100, zerolog.Nop())
	require.NoError(t, e.CopyMetadata(src, dst))

	// Even with nothing to copy the output gets an upright orientation.
	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()

	x, err := exif.Decode(f)
	require.NoError(t, err)
	orientTag, err := x.Get(exif.Orientation)
	require.NoError(t, err)
	orientValue, err := orientTag.Int(0)
	require.NoError(t, err)
	assert.Equal(t, 1, orientValue)
}
