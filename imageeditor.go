// Package imageeditor provides deterministic, memory-bounded image cropping.
//
// A crop runs as a fixed pipeline: the source reference is resolved to a
// byte stream, decoded at a power-of-two downscale that bounds peak memory,
// normalized against its EXIF orientation, cropped geometrically, and
// re-encoded into a managed temp file whose URI is returned to the caller.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		imageeditor "github.com/menta2k/image-editor"
//		"github.com/menta2k/image-editor/pkg/types"
//	)
//
//	func main() {
//		editor := imageeditor.New()
//		defer editor.Close()
//
//		dims, err := editor.GetImageDimensions("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("Image: %dx%d\n", dims.Width, dims.Height)
//
//		uri, err := editor.CropImage(context.Background(), "photo.jpg", types.CropRegion{
//			Offset: types.Offset{X: 0, Y: 0},
//			Size:   types.Size{Width: 500, Height: 500},
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("Cropped image written to %s\n", uri)
//	}
//
// Crop coordinates are always given in the original, full-resolution pixel
// space of the source image; the pipeline maps them into the downscaled
// buffer internally. Negative offsets are clamped to zero; a non-positive
// size is rejected before any I/O starts.
//
// Output files live in a cache directory under a fixed name prefix and are
// bulk-purged when an Editor is created and when it is closed. Beyond those
// two sweeps, deleting a returned file is the caller's responsibility.
package imageeditor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/image-editor/internal/config"
	"github.com/menta2k/image-editor/pkg/cache"
	"github.com/menta2k/image-editor/pkg/cropper"
	"github.com/menta2k/image-editor/pkg/decoder"
	"github.com/menta2k/image-editor/pkg/encoder"
	"github.com/menta2k/image-editor/pkg/orientation"
	"github.com/menta2k/image-editor/pkg/source"
	"github.com/menta2k/image-editor/pkg/types"
)

// Version of the image editor library
const Version = "1.0.0"

// ErrClosed is returned when a crop is submitted after Close.
var ErrClosed = errors.New("editor is closed")

// CropResult is the outcome of an asynchronous crop: either the file:// URI
// of the output temp file or the failure that aborted the pipeline.
type CropResult struct {
	URI string
	Err error
}

type cropTask struct {
	ref    string
	region types.CropRegion
	result chan CropResult
}

// Editor runs crop invocations on a bounded worker pool. Each invocation
// owns its buffers exclusively; the only shared resource is the cache
// directory namespace, where generated temp names keep writers apart.
type Editor struct {
	resolver   *source.Resolver
	decoder    *decoder.Decoder
	normalizer *orientation.Normalizer
	cropper    *cropper.Cropper
	encoder    *encoder.Encoder
	cache      *cache.Manager

	defaultMIME string
	log         zerolog.Logger

	// queue receives submissions; the dispatcher buffers a backlog and
	// feeds tasks to the workers, so submitting never blocks on a
	// saturated pool.
	queue chan cropTask
	tasks chan cropTask
	wg    sync.WaitGroup

	// sweepWg tracks the fire-and-forget lifecycle sweeps.
	sweepWg sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a new Editor with default configuration and no logging.
func New() *Editor {
	return NewWithConfig(config.Default(), zerolog.Nop())
}

// NewWithConfig creates a new Editor with custom configuration. Creation
// fires the initialization sweep of stale output files without blocking.
func NewWithConfig(cfg *config.Config, log zerolog.Logger) *Editor {
	e := &Editor{
		resolver: source.NewWithConfig(source.Config{
			Timeout:   time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
			UserAgent: cfg.HTTP.UserAgent,
		}, log.With().Str("component", "source").Logger()),
		decoder:     decoder.New(log.With().Str("component", "decoder").Logger()),
		normalizer:  orientation.New(log.With().Str("component", "orientation").Logger()),
		cropper:     cropper.New(log.With().Str("component", "cropper").Logger()),
		encoder:     encoder.New(cfg.Editor.Quality, log.With().Str("component", "encoder").Logger()),
		cache:       cache.NewManager(cfg.Cache.Dir, cfg.Cache.ExternalDir, log.With().Str("component", "cache").Logger()),
		defaultMIME: cfg.Editor.DefaultMIMEType,
		log:         log,
		queue:       make(chan cropTask),
		tasks:       make(chan cropTask),
	}
	if e.defaultMIME == "" {
		e.defaultMIME = "image/jpeg"
	}

	workers := cfg.Editor.Workers
	if workers < 1 {
		workers = 1
	}
	e.wg.Add(workers + 1)
	go e.dispatch()
	for i := 0; i < workers; i++ {
		go e.worker()
	}

	e.sweep()

	return e
}

// sweep purges stale output files without blocking the caller.
func (e *Editor) sweep() {
	e.sweepWg.Add(1)
	go func() {
		defer e.sweepWg.Done()
		e.cache.Sweep()
	}()
}

// SetPathIndex installs a lookup that resolves content:// style references
// to real filesystem paths, for both stream opening and metadata copying.
func (e *Editor) SetPathIndex(index source.PathIndex) {
	e.resolver.SetIndex(index)
}

// GetImageDimensions opens the reference and decodes only the image bounds,
// returning native pixel dimensions without materializing a pixel buffer.
func (e *Editor) GetImageDimensions(ref string) (types.Dimensions, error) {
	if ref == "" {
		return types.Dimensions{}, fmt.Errorf("%w: please specify a URI", types.ErrInvalidArgument)
	}

	stream, err := e.resolver.Open(ref)
	if err != nil {
		return types.Dimensions{}, err
	}
	defer stream.Close()

	return e.decoder.DecodeBounds(stream)
}

// CropImageAsync validates the request synchronously and queues the crop for
// the worker pool, returning promptly even when every worker is busy. The
// returned channel delivers exactly one CropResult. Validation failures are
// returned immediately, before any I/O.
func (e *Editor) CropImageAsync(ref string, region types.CropRegion) (<-chan CropResult, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: please specify a URI", types.ErrInvalidArgument)
	}
	region = region.Normalize()
	if err := region.Validate(); err != nil {
		return nil, err
	}

	task := cropTask{ref: ref, region: region, result: make(chan CropResult, 1)}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	e.queue <- task
	return task.result, nil
}

// CropImage crops the referenced image and blocks until the pipeline
// resolves. Cancelling the context abandons the wait; the in-flight worker
// still runs the invocation to completion, as crops are not cancellable.
func (e *Editor) CropImage(ctx context.Context, ref string, region types.CropRegion) (string, error) {
	result, err := e.CropImageAsync(ref, region)
	if err != nil {
		return "", err
	}

	select {
	case res := <-result:
		return res.URI, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close drains the worker pool and fires the teardown sweep of output temp
// files. Crops submitted after Close fail with ErrClosed.
func (e *Editor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
	e.sweep()
}

// dispatch receives submissions off the queue and hands them to the workers,
// holding any excess in a backlog. The dispatcher is always ready to receive,
// which keeps submission prompt regardless of pool saturation.
func (e *Editor) dispatch() {
	defer e.wg.Done()
	defer close(e.tasks)

	var backlog []cropTask
	for {
		var feed chan cropTask
		var next cropTask
		if len(backlog) > 0 {
			feed = e.tasks
			next = backlog[0]
		}
		select {
		case task, ok := <-e.queue:
			if !ok {
				for _, t := range backlog {
					e.tasks <- t
				}
				return
			}
			backlog = append(backlog, task)
		case feed <- next:
			backlog = backlog[1:]
		}
	}
}

func (e *Editor) worker() {
	defer e.wg.Done()
	for task := range e.tasks {
		task.result <- e.crop(task.ref, task.region)
	}
}

// crop runs one invocation straight through: resolve, bounded decode,
// orientation normalize, geometric crop, encode, metadata copy.
func (e *Editor) crop(ref string, region types.CropRegion) CropResult {
	e.log.Debug().
		Str("ref", ref).
		Int("x", region.Offset.X).Int("y", region.Offset.Y).
		Int("width", region.Size.Width).Int("height", region.Size.Height).
		Msg("starting crop")

	stream, err := e.resolver.Open(ref)
	if err != nil {
		return CropResult{Err: err}
	}
	decoded, err := e.decoder.Decode(stream, region.Size.Width, region.Size.Height)
	if cerr := stream.Close(); cerr != nil {
		e.log.Warn().Err(cerr).Str("ref", ref).Msg("failed to close source stream")
	}
	if err != nil {
		return CropResult{Err: err}
	}

	img := decoded.Image
	if src, err := e.resolver.Open(ref); err == nil {
		transform := e.normalizer.Read(src)
		src.Close()
		img = e.normalizer.Apply(img, transform)
	} else {
		e.log.Warn().Err(err).Str("ref", ref).Msg("could not reopen source for orientation, skipping normalization")
	}

	img, err = e.cropper.Crop(img, region, decoded.Ratio)
	if err != nil {
		return CropResult{Err: err}
	}

	mimeType := decoded.MIMEType
	if mimeType == "" {
		mimeType = e.defaultMIME
	}

	out, err := e.cache.CreateTempFile(mimeType)
	if err != nil {
		return CropResult{Err: err}
	}
	if err := e.encoder.Encode(img, mimeType, out); err != nil {
		out.Close()
		return CropResult{Err: fmt.Errorf("failed to encode output: %w", err)}
	}
	if err := out.Close(); err != nil {
		return CropResult{Err: fmt.Errorf("failed to write output: %w", err)}
	}

	if mimeType == "image/jpeg" {
		e.copyMetadata(ref, out.Name())
	}

	uri := "file://" + out.Name()
	e.log.Debug().Str("uri", uri).Msg("crop finished")
	return CropResult{URI: uri}
}

// copyMetadata carries source EXIF onto JPEG output. Failures degrade to
// warnings: a crop never fails over metadata fidelity.
func (e *Editor) copyMetadata(ref, outPath string) {
	path, ok := e.resolver.LocalPath(ref)
	if !ok {
		e.log.Warn().Str("ref", ref).Msg("couldn't get real path for reference, skipping metadata copy")
		return
	}
	if err := e.encoder.CopyMetadata(path, outPath); err != nil {
		e.log.Warn().Err(err).Str("ref", ref).Msg("metadata copy failed")
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// URIPath strips the file:// scheme from a returned reference, for callers
// that need the bare filesystem path of the output.
func URIPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
