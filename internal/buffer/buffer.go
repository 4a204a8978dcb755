// Package buffer is the agent's durable outbound queue (spec.md §4.5):
// two line-delimited JSON FIFO files, main and retry, serialized by a
// single lock. Grounded directly on
// original_source/agent-test/sentinel_agent/buffer/queue.py
// (enqueue/dequeue_batch/move_to_retry), generalized from a package-level
// singleton into a reusable Buffer type.
package buffer

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// Buffer persists CleanContexts across process restarts in two
// line-delimited JSON files under dir; writes append, and DequeueBatch
// rewrites a file with the lines it did not pop.
type Buffer struct {
	mu        sync.Mutex
	mainPath  string
	retryPath string
}

// New constructs a Buffer rooted at dir, creating it if necessary.
func New(dir string) (*Buffer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Buffer{
		mainPath:  dir + "/clean_context_queue.jsonl",
		retryPath: dir + "/retry_queue.jsonl",
	}, nil
}

// Enqueue appends ctx to the main queue.
func (b *Buffer) Enqueue(ctx model.CleanContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return appendLine(b.mainPath, ctx)
}

// DequeueBatch atomically pops up to n items off the front of the main
// queue. If the main queue is empty, it falls back to the retry queue —
// giving previously-failed batches another attempt on a later sender
// pass (spec.md §4.6 failure semantics) without a separate scheduler.
func (b *Buffer) DequeueBatch(n int) ([]model.CleanContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch, err := popFront(b.mainPath, n)
	if err != nil {
		return nil, err
	}
	if len(batch) > 0 {
		return batch, nil
	}
	return popFront(b.retryPath, n)
}

// MoveToRetry appends batch to the retry queue. Callers have already
// removed batch from the main queue via DequeueBatch.
func (b *Buffer) MoveToRetry(batch []model.CleanContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, item := range batch {
		if err := appendLine(b.retryPath, item); err != nil {
			return err
		}
	}
	return nil
}

func appendLine(path string, ctx model.CleanContext) error {
	line, err := json.Marshal(ctx)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// popFront reads every line of path, returns the first n decoded as
// CleanContexts, and rewrites path with the remaining lines — mirroring
// queue.py's read-all/slice/rewrite dequeue_batch.
func popFront(path string, n int) ([]model.CleanContext, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, nil
	}
	if n > len(lines) {
		n = len(lines)
	}
	batchLines, remaining := lines[:n], lines[n:]

	if err := rewrite(path, remaining); err != nil {
		return nil, err
	}

	batch := make([]model.CleanContext, 0, len(batchLines))
	for _, line := range batchLines {
		var ctx model.CleanContext
		if err := json.Unmarshal([]byte(line), &ctx); err != nil {
			continue
		}
		batch = append(batch, ctx)
	}
	return batch, nil
}

func rewrite(path string, lines []string) error {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
