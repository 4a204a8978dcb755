// Package rawstore is the agent's append-only, per-event-type raw journal
// (spec.md §4.1). Every event accepted by the Context Manager is written
// here unconditionally, before any cleaning, deduplication, or
// aggregation — it is the forensic ground truth the cleaned payloads are
// derived from. Grounded on
// original_source/agent-test/sentinel_agent/raw_store/writer.py.
package rawstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// sinks maps an event type to the journal file it's appended to. File
// events funnel into one sink — mirroring the original writer.py, where
// file_created/modified/deleted all land in filesystem_raw.jsonl.
var sinks = map[model.EventType]string{
	model.EventProcessStart:       "process_raw.jsonl",
	model.EventNetworkConnect:     "network_raw.jsonl",
	model.EventFileCreated:        "filesystem_raw.jsonl",
	model.EventFileModified:       "filesystem_raw.jsonl",
	model.EventFileDeleted:        "filesystem_raw.jsonl",
	model.EventUnauthorizedAccess: "access_raw.jsonl",
	model.EventHighMemoryUsage:    "memory_raw.jsonl",
	model.EventPersistenceCreated: "persistence_raw.jsonl",
	model.EventPrivilegeContext:   "privilege_raw.jsonl",
}

// Store appends raw events to per-event-type LDJSON files under dir, one
// mutex per sink so unrelated event types never contend.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Store rooted at dir, creating it if necessary.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) lockFor(filename string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[filename]
	if !ok {
		l = &sync.Mutex{}
		s.locks[filename] = l
	}
	return l
}

// Write appends event to its sink file. An event type with no known sink
// is dropped silently, matching the original writer's behavior for
// unrecognized types.
func (s *Store) Write(event model.RawEvent) {
	filename, ok := sinks[event.EventType]
	if !ok {
		return
	}

	line, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("raw store: marshal failed", zap.Error(err), zap.String("event_type", string(event.EventType)))
		return
	}

	path := filepath.Join(s.dir, filename)
	lock := s.lockFor(filename)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("raw store: open failed", zap.Error(err), zap.String("path", path))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("raw store: write failed", zap.Error(err), zap.String("path", path))
	}
}

// Dir returns the root directory the store writes into, for the
// retention sweeper.
func (s *Store) Dir() string {
	return s.dir
}
