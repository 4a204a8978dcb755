package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

func testDevice(id string) model.DeviceIdentity {
	return model.DeviceIdentity{DeviceID: id, Hostname: "box-" + id}
}

func TestUpsertDeviceReportsNewThenExisting(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1_700_000_000, 0)

	isNew, err := m.UpsertDevice(context.Background(), testDevice("dev-1"), now)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = m.UpsertDevice(context.Background(), testDevice("dev-1"), now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestGetSetTrustScoreRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_, err := m.UpsertDevice(ctx, testDevice("dev-1"), now)
	require.NoError(t, err)

	score, err := m.GetTrustScore(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, score)

	require.NoError(t, m.SetTrustScore(ctx, "dev-1", 82.5))
	score, err = m.GetTrustScore(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 82.5, score)
}

func TestUpdateTrustScoreAppliesFnToCurrentValue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_, err := m.UpsertDevice(ctx, testDevice("dev-1"), now)
	require.NoError(t, err)

	updated, err := m.UpdateTrustScore(ctx, "dev-1", func(current float64) float64 {
		return current - 20.0
	})
	require.NoError(t, err)
	assert.Equal(t, 80.0, updated)

	score, err := m.GetTrustScore(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 80.0, score)
}

func TestUpdateTrustScoreUnknownDeviceErrors(t *testing.T) {
	m := NewMemory()
	_, err := m.UpdateTrustScore(context.Background(), "missing", func(current float64) float64 { return current })
	assert.Error(t, err)
}

func TestGetTrustScoreUnknownDeviceErrors(t *testing.T) {
	m := NewMemory()
	_, err := m.GetTrustScore(context.Background(), "missing")
	assert.Error(t, err)
}

func TestInsertEventsProjectsProcessActivity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	events := []model.CleanEvent{
		{
			EventType:   model.EventProcessStart,
			Timestamp:   float64(now.Unix()),
			PID:         42,
			ProcessName: "bash",
			Details:     map[string]interface{}{"cmdline": "bash -c whoami", "user": "root"},
		},
		{
			EventType: model.EventFileCreated,
			Timestamp: float64(now.Unix()),
			Details:   map[string]interface{}{"file_path": "/tmp/x"},
		},
	}

	require.NoError(t, m.InsertEvents(ctx, "dev-1", "ctx-1", events, now))

	all, err := m.ListRecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	activity, err := m.ListProcessActivity(ctx, "dev-1", 10)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "bash", activity[0].ProcessName)
	assert.Equal(t, "bash -c whoami", activity[0].Cmdline)
}

func TestListEventsByDeviceFiltersAndLimits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	events := []model.CleanEvent{{EventType: model.EventProcessStart, Timestamp: 1}}
	require.NoError(t, m.InsertEvents(ctx, "dev-1", "ctx-1", events, now))
	require.NoError(t, m.InsertEvents(ctx, "dev-2", "ctx-2", events, now))

	dev1Events, err := m.ListEventsByDevice(ctx, "dev-1", 10)
	require.NoError(t, err)
	require.Len(t, dev1Events, 1)
	assert.Equal(t, "dev-1", dev1Events[0].DeviceID)
}

func TestListDevicesOrdersByLastSeenDescending(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	_, err := m.UpsertDevice(ctx, testDevice("dev-old"), base)
	require.NoError(t, err)
	_, err = m.UpsertDevice(ctx, testDevice("dev-new"), base.Add(time.Hour))
	require.NoError(t, err)

	devices, err := m.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "dev-new", devices[0].DeviceID)
}
