// Package cache manages the temp files the crop pipeline writes its output
// to. Files carry a fixed, recognizable prefix so stale output can be
// purged in bulk at lifecycle boundaries without per-file tracking.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/menta2k/image-editor/internal/utils"
	"github.com/menta2k/image-editor/pkg/types"
)

// TempFilePrefix marks every output file this module creates. The sweep
// deletes by this prefix alone, regardless of file age.
const TempFilePrefix = "imageeditor_cropped_"

// Manager allocates output temp files and purges stale ones
type Manager struct {
	internalDir string
	externalDir string
	log         zerolog.Logger
}

// NewManager creates a cache manager over an internal directory (created on
// demand) and an optional external directory (used only when it already
// exists and has more free space).
func NewManager(internalDir, externalDir string, log zerolog.Logger) *Manager {
	return &Manager{
		internalDir: internalDir,
		externalDir: externalDir,
		log:         log,
	}
}

// CreateTempFile creates a uniquely named output file in whichever cache
// directory has more free space. The extension follows the output MIME
// type. The caller owns closing and filling the file.
func (m *Manager) CreateTempFile(mimeType string) (*os.File, error) {
	dir, err := m.pickDir()
	if err != nil {
		return nil, err
	}

	pattern := TempFilePrefix + "*" + utils.ExtensionForMIME(mimeType)
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}

	m.log.Debug().Str("path", f.Name()).Msg("created output temp file")
	return f, nil
}

// Sweep deletes every prefixed file in both cache directories and returns
// the number removed. It is unconditional: no age or in-use check. Run at
// module initialization and teardown.
func (m *Manager) Sweep() int {
	removed := m.sweepDir(m.internalDir)
	if m.externalDir != "" {
		removed += m.sweepDir(m.externalDir)
	}
	if removed > 0 {
		m.log.Debug().Int("removed", removed).Msg("swept stale output files")
	}
	return removed
}

func (m *Manager) sweepDir(dir string) int {
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), TempFilePrefix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("could not remove stale output file")
			continue
		}
		removed++
	}
	return removed
}

// pickDir chooses the external directory when it exists and has more free
// space than the internal one, mirroring cache placement on devices with
// separate internal and external storage.
func (m *Manager) pickDir() (string, error) {
	internalOK := m.internalDir != "" && utils.EnsureDir(m.internalDir) == nil
	externalOK := m.externalDir != "" && utils.DirExists(m.externalDir)

	switch {
	case !internalOK && !externalOK:
		return "", types.ErrNoCacheDir
	case !externalOK:
		return m.internalDir, nil
	case !internalOK:
		return m.externalDir, nil
	}

	internalFree, err := utils.FreeSpace(m.internalDir)
	if err != nil {
		return m.externalDir, nil
	}
	externalFree, err := utils.FreeSpace(m.externalDir)
	if err != nil {
		return m.internalDir, nil
	}

	if externalFree > internalFree {
		return m.externalDir, nil
	}
	return m.internalDir, nil
}
