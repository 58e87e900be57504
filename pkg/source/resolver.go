// Package source resolves opaque image references into readable byte
// streams. A reference is either local (file://, content://, or a bare
// filesystem path) or a remote http(s) URL.
package source

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/image-editor/pkg/types"
)

// Local reference schemes opened through the filesystem rather than HTTP.
var localPrefixes = []string{"file://", "content://"}

// PathIndex maps an indirect reference (content:// style) to a real
// filesystem path. Returns false when the reference is unknown.
type PathIndex func(ref string) (string, bool)

// Config holds configuration for the resolver
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// Index resolves content:// references; nil means such references
	// cannot be opened and have no local path.
	Index PathIndex
}

// Resolver opens image references as byte streams
type Resolver struct {
	client    *http.Client
	userAgent string
	index     PathIndex
	log       zerolog.Logger
}

// New creates a new Resolver with default configuration
func New(log zerolog.Logger) *Resolver {
	return NewWithConfig(Config{Timeout: 30 * time.Second}, log)
}

// NewWithConfig creates a new Resolver with custom configuration
func NewWithConfig(cfg Config, log zerolog.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Resolver{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		index:     cfg.Index,
		log:       log,
	}
}

// SetIndex installs a lookup for content:// style references.
func (r *Resolver) SetIndex(index PathIndex) {
	r.index = index
}

// IsLocal reports whether ref is served from the local filesystem.
// References without a scheme are treated as bare paths.
func IsLocal(ref string) bool {
	for _, prefix := range localPrefixes {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://")
}

// Open returns a readable stream for the reference. Remote references
// trigger a network fetch with no retry; any failure surfaces immediately.
func (r *Resolver) Open(ref string) (io.ReadCloser, error) {
	if IsLocal(ref) {
		path, ok := r.LocalPath(ref)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrCannotOpen, ref)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrCannotOpen, ref, err)
		}
		return f, nil
	}
	return r.openRemote(ref)
}

// LocalPath resolves a local reference to a real filesystem path. Remote
// references and unresolvable content:// references have no local path.
func (r *Resolver) LocalPath(ref string) (string, bool) {
	switch {
	case strings.HasPrefix(ref, "file://"):
		path := strings.TrimPrefix(ref, "file://")
		if !strings.HasPrefix(path, "/") {
			// file://host/... carries an authority component; only
			// localhost names the local filesystem.
			i := strings.Index(path, "/")
			if i < 0 || path[:i] != "localhost" {
				return "", false
			}
			path = path[i:]
		}
		return path, true
	case strings.HasPrefix(ref, "content://"):
		if r.index == nil {
			return "", false
		}
		return r.index(ref)
	case IsLocal(ref):
		return ref, true
	}
	return "", false
}

func (r *Resolver) openRemote(ref string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCannotOpen, ref, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrCannotOpen, ref, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: HTTP %d %s", types.ErrCannotOpen, ref, resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s: not an image (Content-Type: %s)", types.ErrCannotOpen, ref, contentType)
	}

	r.log.Debug().Str("ref", ref).Str("content_type", contentType).Msg("opened remote image stream")
	return resp.Body, nil
}
