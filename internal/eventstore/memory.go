package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// Memory is an in-process Querier used by ingest handler tests, so each
// test constructs an isolated instance instead of sharing database state
// (spec.md Design Notes).
type Memory struct {
	mu       sync.Mutex
	devices  map[string]DeviceRecord
	events   []EventRecord
	process  []ProcessActivityRecord
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{devices: make(map[string]DeviceRecord)}
}

func (m *Memory) UpsertDevice(ctx context.Context, device model.DeviceIdentity, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.devices[device.DeviceID]
	if ok {
		rec.LastSeen = now
		rec.Hostname = device.Hostname
		rec.OS = device.OS
		rec.OSVersion = device.OSVersion
		rec.Architecture = device.Architecture
		m.devices[device.DeviceID] = rec
		return false, nil
	}

	m.devices[device.DeviceID] = DeviceRecord{
		DeviceID:     device.DeviceID,
		Hostname:     device.Hostname,
		OS:           device.OS,
		OSVersion:    device.OSVersion,
		Architecture: device.Architecture,
		TrustScore:   100.0,
		LastSeen:     now,
		CreatedAt:    now,
	}
	return true, nil
}

func (m *Memory) GetTrustScore(ctx context.Context, deviceID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.devices[deviceID]
	if !ok {
		return 0, errNotFound(deviceID)
	}
	return rec.TrustScore, nil
}

func (m *Memory) SetTrustScore(ctx context.Context, deviceID string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.devices[deviceID]
	if !ok {
		return errNotFound(deviceID)
	}
	rec.TrustScore = score
	m.devices[deviceID] = rec
	return nil
}

// UpdateTrustScore holds m.mu across the read and the write so concurrent
// callers serialize on the same device rather than racing (spec.md §5).
func (m *Memory) UpdateTrustScore(ctx context.Context, deviceID string, fn func(current float64) float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.devices[deviceID]
	if !ok {
		return 0, errNotFound(deviceID)
	}
	rec.TrustScore = fn(rec.TrustScore)
	m.devices[deviceID] = rec
	return rec.TrustScore, nil
}

func (m *Memory) InsertEvents(ctx context.Context, deviceID, contextID string, events []model.CleanEvent, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ev := range events {
		m.events = append(m.events, EventRecord{
			EventID:    uuid.NewString(),
			DeviceID:   deviceID,
			ContextID:  contextID,
			Event:      ev,
			IngestedAt: now,
		})
		if ev.EventType == model.EventProcessStart {
			cmdline, _ := ev.Details["cmdline"].(string)
			user, _ := ev.Details["user"].(string)
			m.process = append(m.process, ProcessActivityRecord{
				EventID:     uuid.NewString(),
				DeviceID:    deviceID,
				PID:         ev.PID,
				ProcessName: ev.ProcessName,
				Cmdline:     cmdline,
				User:        user,
				Timestamp:   timeFromUnix(ev.Timestamp),
			})
		}
	}
	return nil
}

func (m *Memory) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]DeviceRecord, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

func (m *Memory) ListRecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lastN(m.events, limit), nil
}

func (m *Memory) ListEventsByDevice(ctx context.Context, deviceID string, limit int) ([]EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var filtered []EventRecord
	for _, e := range m.events {
		if e.DeviceID == deviceID {
			filtered = append(filtered, e)
		}
	}
	return lastN(filtered, limit), nil
}

func (m *Memory) ListProcessActivity(ctx context.Context, deviceID string, limit int) ([]ProcessActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var filtered []ProcessActivityRecord
	for _, p := range m.process {
		if deviceID == "" || p.DeviceID == deviceID {
			filtered = append(filtered, p)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// lastN returns the newest n elements of events (all of them when n <= 0)
// in insertion order, oldest first. This differs from Postgres, whose
// ORDER BY ingested_at DESC queries return the newest row first.
func lastN(events []EventRecord, n int) []EventRecord {
	if n <= 0 || n >= len(events) {
		out := make([]EventRecord, len(events))
		copy(out, events)
		return out
	}
	out := make([]EventRecord, n)
	copy(out, events[len(events)-n:])
	return out
}

type notFoundError string

func (e notFoundError) Error() string { return "eventstore: device not found: " + string(e) }

func errNotFound(deviceID string) error { return notFoundError(deviceID) }
