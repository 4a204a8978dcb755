package sender

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

type fakeQueue struct {
	batch       []model.CleanContext
	retried     []model.CleanContext
	dequeueHits int32
}

func (q *fakeQueue) DequeueBatch(n int) ([]model.CleanContext, error) {
	atomic.AddInt32(&q.dequeueHits, 1)
	b := q.batch
	q.batch = nil
	return b, nil
}

func (q *fakeQueue) MoveToRetry(batch []model.CleanContext) error {
	q.retried = append(q.retried, batch...)
	return nil
}

func TestPassDeliversOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	q := &fakeQueue{batch: []model.CleanContext{{ContextID: "a"}}}
	s := New(q, srv.URL, 10, time.Second, zaptest.NewLogger(t))

	s.Pass(context.Background())
	assert.Empty(t, q.retried)
}

func TestPassMovesToRetryOnFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	q := &fakeQueue{batch: []model.CleanContext{{ContextID: "a"}}}
	s := New(q, srv.URL, 10, time.Second, zaptest.NewLogger(t))

	s.Pass(context.Background())
	require.Len(t, q.retried, 1)
	assert.Equal(t, "a", q.retried[0].ContextID)
}

func TestPassEmptyQueueIsNoop(t *testing.T) {
	q := &fakeQueue{}
	s := New(q, "http://unused.invalid", 10, time.Second, zaptest.NewLogger(t))

	s.Pass(context.Background())
	assert.Empty(t, q.retried)
	assert.Equal(t, int32(1), q.dequeueHits)
}
