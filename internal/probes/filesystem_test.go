package probes

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

type fakeAttacher struct {
	events []model.RawEvent
}

func (f *fakeAttacher) AddEvent(contextID string, event model.RawEvent) {
	f.events = append(f.events, event)
}

func (f *fakeAttacher) MostRecent() (string, bool) {
	return "ctx-1", true
}

func TestFilesystemProbeFirstSightingEmitsNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	attacher := &fakeAttacher{}
	probe := NewFilesystemProbe([]string{dir}, attacher, zap.NewNop())

	probe.tick()
	assert.Empty(t, attacher.events)
}

func TestFilesystemProbeReportsModification(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	attacher := &fakeAttacher{}
	probe := NewFilesystemProbe([]string{dir}, attacher, zap.NewNop())
	probe.tick()
	require.Empty(t, attacher.events)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	probe.tick()
	require.Len(t, attacher.events, 1)
	assert.Equal(t, model.EventFileModified, attacher.events[0].EventType)
	assert.Equal(t, path, attacher.events[0].FilePath)
}

func TestPersistenceProbeReportsOnlyNewEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.desktop"), []byte(""), 0o644))

	attacher := &fakeAttacher{}
	probe := NewPersistenceProbe(dir, attacher, zap.NewNop())

	probe.tick()
	require.Len(t, attacher.events, 1)
	assert.Equal(t, model.EventPersistenceCreated, attacher.events[0].EventType)

	probe.tick()
	assert.Len(t, attacher.events, 1, "re-ticking with no new entries must not re-report")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.desktop"), []byte(""), 0o644))
	probe.tick()
	assert.Len(t, attacher.events, 2)
}

func TestPrivilegeProbeReportsContextEachTick(t *testing.T) {
	attacher := &fakeAttacher{}
	probe := NewPrivilegeProbe(nil, attacher, zap.NewNop())

	probe.tick()
	require.Len(t, attacher.events, 1)
	assert.Equal(t, model.EventPrivilegeContext, attacher.events[0].EventType)
}
