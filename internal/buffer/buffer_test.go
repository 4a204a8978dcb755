package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, b.Enqueue(model.CleanContext{ContextID: "a"}))
	require.NoError(t, b.Enqueue(model.CleanContext{ContextID: "b"}))
	require.NoError(t, b.Enqueue(model.CleanContext{ContextID: "c"}))

	batch, err := b.DequeueBatch(2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].ContextID)
	assert.Equal(t, "b", batch[1].ContextID)

	rest, err := b.DequeueBatch(10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ContextID)
}

func TestDequeueBatchEmptyReturnsNil(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)

	batch, err := b.DequeueBatch(10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestMoveToRetryThenDequeueFallsBackToRetryQueue(t *testing.T) {
	b, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, b.MoveToRetry([]model.CleanContext{{ContextID: "failed-1"}}))

	batch, err := b.DequeueBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "failed-1", batch[0].ContextID)
}
