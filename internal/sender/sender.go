// Package sender is the agent's periodic outbound loop (spec.md §4.6): pop
// a batch from the Buffer, POST it to the ingest endpoint, and requeue on
// any failure. The HTTP client shape (context-scoped requests, a shared
// *http.Client with a fixed timeout, JSON marshal/status-check) is
// grounded on apps/discovery-service/internal/client/scanner_client.go.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// Queue is the narrow capability the Sender needs from the Buffer.
type Queue interface {
	DequeueBatch(n int) ([]model.CleanContext, error)
	MoveToRetry(batch []model.CleanContext) error
}

// Sender periodically drains Queue and posts batches to the ingest
// endpoint.
type Sender struct {
	queue      Queue
	url        string
	maxBatch   int
	httpClient *http.Client
	logger     *zap.Logger
}

// New constructs a Sender. timeout bounds each POST (spec.md default 5s).
func New(queue Queue, url string, maxBatch int, timeout time.Duration, logger *zap.Logger) *Sender {
	if maxBatch <= 0 {
		maxBatch = 10
	}
	return &Sender{
		queue:      queue,
		url:        url,
		maxBatch:   maxBatch,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Run ticks at interval until ctx is canceled; each tick performs one
// send pass. The sender never blocks a probe or the context watcher —
// callers run it in its own goroutine.
func (s *Sender) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Pass(ctx)
		}
	}
}

// Pass pops one batch and attempts delivery, moving it to the retry
// queue on any failure (spec.md §4.6 steps 1-5). A pass that finds an
// empty queue is a no-op.
func (s *Sender) Pass(ctx context.Context) {
	batch, err := s.queue.DequeueBatch(s.maxBatch)
	if err != nil {
		s.logger.Error("sender: dequeue failed", zap.Error(err))
		return
	}
	if len(batch) == 0 {
		return
	}

	if err := s.post(ctx, batch); err != nil {
		s.logger.Warn("sender: post failed, moving batch to retry queue",
			zap.Error(err), zap.Int("batch_size", len(batch)))
		if rerr := s.queue.MoveToRetry(batch); rerr != nil {
			s.logger.Error("sender: move to retry failed", zap.Error(rerr))
		}
		return
	}

	s.logger.Debug("sender: batch delivered", zap.Int("batch_size", len(batch)))
}

func (s *Sender) post(ctx context.Context, batch []model.CleanContext) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("sender: marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sender: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sender: http do: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sender: unexpected status %d", resp.StatusCode)
	}
	return nil
}
