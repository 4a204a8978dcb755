package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

func TestCleanScenarioProcessNetworkActivity(t *testing.T) {
	ctx := model.Context{
		ContextID: "ctx-1",
		Device:    model.DeviceIdentity{DeviceID: "dev-1"},
		CreatedAt: 1000,
		Events: []model.RawEvent{
			{EventType: model.EventProcessStart, Timestamp: 1000, PID: 42},
			{EventType: model.EventNetworkConnect, Timestamp: 1001, PID: 42, RemoteAddr: "10.0.0.1"},
			{EventType: model.EventNetworkConnect, Timestamp: 1002, PID: 42, RemoteAddr: "10.0.0.2"},
			{EventType: model.EventNetworkConnect, Timestamp: 1010, PID: 42, RemoteAddr: "10.0.0.3"},
		},
	}

	out := Clean(ctx)
	assert.Equal(t, "process_network_activity", out.PayloadType)
	require.Len(t, out.Events, 4)
}

func TestDeduplicateDropsWithinWindow(t *testing.T) {
	events := []model.CleanEvent{
		{EventType: model.EventNetworkConnect, Timestamp: 100, PID: 1},
		{EventType: model.EventNetworkConnect, Timestamp: 101, PID: 1}, // within 2s, dropped
		{EventType: model.EventNetworkConnect, Timestamp: 103, PID: 1}, // 3s after last kept
	}
	out := deduplicate(events)
	require.Len(t, out, 2)
	assert.Equal(t, float64(100), out[0].Timestamp)
	assert.Equal(t, float64(103), out[1].Timestamp)
}

func TestAggregateCountsConsecutiveRuns(t *testing.T) {
	events := []model.CleanEvent{
		{EventType: model.EventNetworkConnect, PID: 1, Timestamp: 1},
		{EventType: model.EventNetworkConnect, PID: 1, Timestamp: 5},
		{EventType: model.EventProcessStart, PID: 2, Timestamp: 10},
	}
	out := aggregate(events)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Count)
	assert.Equal(t, 1, out[1].Count)
}

func TestValidateDropsMissingFields(t *testing.T) {
	events := []model.CleanEvent{
		{EventType: "", Timestamp: 10},
		{EventType: model.EventProcessStart, Timestamp: 0},
		{EventType: model.EventProcessStart, Timestamp: 10},
	}
	out := validate(events)
	require.Len(t, out, 1)
}

func TestClassifyRulePriority(t *testing.T) {
	cases := []struct {
		name     string
		events   []model.CleanEvent
		expected string
	}{
		{"persistence wins over everything", []model.CleanEvent{
			{EventType: model.EventPersistenceCreated},
			{EventType: model.EventProcessStart},
			{EventType: model.EventNetworkConnect},
		}, "persistence_activity"},
		{"process+network", []model.CleanEvent{
			{EventType: model.EventProcessStart},
			{EventType: model.EventNetworkConnect},
		}, "process_network_activity"},
		{"filesystem only", []model.CleanEvent{
			{EventType: model.EventFileModified},
		}, "filesystem_activity"},
		{"process only", []model.CleanEvent{
			{EventType: model.EventProcessStart},
		}, "process_execution"},
		{"network only", []model.CleanEvent{
			{EventType: model.EventNetworkConnect},
		}, "network_activity"},
		{"unknown", []model.CleanEvent{
			{EventType: model.EventHighMemoryUsage},
		}, "unknown"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, Classify(c.events))
		})
	}
}
