package probes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// FilesystemProbe walks a fixed set of watch paths and reports a
// file_modified event whenever a file's mtime differs
// from the value last recorded for it; the first sighting of a path only
// establishes the baseline and emits nothing (spec.md §4.1), grounded on
// original_source/agent-test/sentinel_agent/collectors/filesystem_collector.py.
type FilesystemProbe struct {
	paths  []string
	mgr    ContextAttacher
	logger *zap.Logger
	mtimes map[string]time.Time
}

// NewFilesystemProbe constructs a FilesystemProbe watching the given
// directories.
func NewFilesystemProbe(paths []string, mgr ContextAttacher, logger *zap.Logger) *FilesystemProbe {
	return &FilesystemProbe{paths: paths, mgr: mgr, logger: logger, mtimes: make(map[string]time.Time)}
}

// Run ticks at interval until ctx is canceled.
func (f *FilesystemProbe) Run(ctx context.Context, interval time.Duration) {
	run(ctx, "filesystem", interval, f.logger, f.tick)
}

func (f *FilesystemProbe) tick() {
	for _, base := range f.paths {
		_ = filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // permission denied or vanished target: skip, never abort the walk
			}
			if info.IsDir() {
				return nil
			}
			f.observe(path, info.ModTime())
			return nil
		})
	}
}

func (f *FilesystemProbe) observe(path string, mtime time.Time) {
	prior, known := f.mtimes[path]
	f.mtimes[path] = mtime
	if !known {
		return // baseline only, per spec.md §4.1
	}
	if mtime.Equal(prior) {
		return
	}

	event := model.RawEvent{
		EventType: model.EventFileModified,
		FilePath:  path,
		FileHash:  hashFile(path),
	}
	attachToMostRecent(f.mgr, event)
}

// hashFile computes a best-effort sha256 of path's contents, matching
// original_source's utils/hash_utils.py. Returns "" on any read failure —
// never fatal, never reported as an error.
func hashFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
