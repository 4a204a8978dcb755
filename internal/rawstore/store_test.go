package rawstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/clock"
)

func TestWriteAppendsToSinkFile(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	store.Write(model.RawEvent{EventType: model.EventProcessStart, PID: 1})
	store.Write(model.RawEvent{EventType: model.EventProcessStart, PID: 2})

	data, err := os.ReadFile(filepath.Join(dir, "process_raw.jsonl"))
	require.NoError(t, err)
	assert.Len(t, splitLines(data), 2)
}

func TestWriteIgnoresUnknownEventType(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	store.Write(model.RawEvent{EventType: "totally_unknown"})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRetentionSweeperRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	store.Write(model.RawEvent{EventType: model.EventProcessStart})

	path := filepath.Join(dir, "process_raw.jsonl")
	old := time.Now().Add(-7 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	clk := clock.NewFake(time.Now())
	sweeper := NewRetentionSweeper(store, 6*time.Hour, clk, zaptest.NewLogger(t))
	sweeper.sweep()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, string(data[start:i]))
			}
			start = i + 1
		}
	}
	return lines
}
