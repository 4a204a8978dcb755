// Package cleaner transforms an expired Context's raw events into the
// canonical CleanContext shape: normalize, validate, deduplicate,
// aggregate, and classify (spec.md §4.3, steps 1-5). Grounded on
// original_source/agent-test/sentinel_agent/cleaner/deduplicator.py and
// aggregator.py; the normalize/validate/classify steps have no original
// counterpart and are built directly from spec.md.
package cleaner

import (
	"time"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

const dedupWindow = 2 * time.Second

// Clean runs the full pipeline over ctx and returns the CleanContext ready
// for the Buffer (spec.md §4.3 steps 1-5).
func Clean(ctx model.Context) model.CleanContext {
	normalized := normalize(ctx.Events)
	validated := validate(normalized)
	deduped := deduplicate(validated)
	aggregated := aggregate(deduped)

	return model.CleanContext{
		ContextID:   ctx.ContextID,
		PayloadType: Classify(aggregated),
		Device:      ctx.Device,
		User:        ctx.User,
		CreatedAt:   ctx.CreatedAt,
		Events:      aggregated,
	}
}

// normalize maps each RawEvent onto the canonical
// {context_id, event_type, timestamp, pid?, process_name?, details}
// shape, folding every other field into details.
func normalize(events []model.RawEvent) []model.CleanEvent {
	out := make([]model.CleanEvent, 0, len(events))
	for _, e := range events {
		out = append(out, model.CleanEvent{
			ContextID:   e.ContextID,
			EventType:   e.EventType,
			Timestamp:   e.Timestamp,
			PID:         e.PID,
			ProcessName: e.ProcessName,
			Details:     rawDetails(e),
		})
	}
	return out
}

func rawDetails(e model.RawEvent) map[string]interface{} {
	details := map[string]interface{}{}
	if e.PPID != 0 {
		details["ppid"] = e.PPID
	}
	if e.Cmdline != "" {
		details["cmdline"] = e.Cmdline
	}
	if e.User != "" {
		details["user"] = e.User
	}
	if e.RemoteAddr != "" {
		details["remote_addr"] = e.RemoteAddr
	}
	if e.RemotePort != 0 {
		details["remote_port"] = e.RemotePort
	}
	if e.Status != "" {
		details["status"] = e.Status
	}
	if e.Flags != "" {
		details["flags"] = e.Flags
	}
	if e.FilePath != "" {
		details["file_path"] = e.FilePath
	}
	if e.FileHash != "" {
		details["file_hash"] = e.FileHash
	}
	if e.MemoryMB != 0 {
		details["memory_mb"] = e.MemoryMB
	}
	if e.Path != "" {
		details["path"] = e.Path
	}
	if e.Location != "" {
		details["location"] = e.Location
	}
	if e.IsAdmin {
		details["is_admin"] = e.IsAdmin
	}
	return details
}

// validate drops any event missing event_type or timestamp (spec.md §4.3
// step 2).
func validate(events []model.CleanEvent) []model.CleanEvent {
	out := make([]model.CleanEvent, 0, len(events))
	for _, e := range events {
		if e.EventType == "" || e.Timestamp <= 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

type dedupKey struct {
	eventType model.EventType
	pid       int
}

// deduplicate drops events within a 2-second sliding window of the prior
// event sharing the same (event_type, pid) key (spec.md §4.3 step 3),
// grounded on cleaner/deduplicator.py.
func deduplicate(events []model.CleanEvent) []model.CleanEvent {
	out := make([]model.CleanEvent, 0, len(events))
	seen := make(map[dedupKey]float64)

	for _, e := range events {
		key := dedupKey{e.EventType, e.PID}
		if last, ok := seen[key]; ok && e.Timestamp-last < dedupWindow.Seconds() {
			continue
		}
		seen[key] = e.Timestamp
		out = append(out, e)
	}
	return out
}

// aggregate merges consecutive events sharing (event_type, pid) into one
// record with a count, preserving arrival order (spec.md §4.3 step 4),
// grounded on cleaner/aggregator.py.
func aggregate(events []model.CleanEvent) []model.CleanEvent {
	if len(events) == 0 {
		return nil
	}

	out := make([]model.CleanEvent, 0, len(events))
	current := events[0]
	current.Count = 1

	for _, e := range events[1:] {
		if e.EventType == current.EventType && e.PID == current.PID {
			current.Count++
			continue
		}
		out = append(out, current)
		current = e
		current.Count = 1
	}
	out = append(out, current)
	return out
}

// Classify assigns payload_type from the first matching rule, in order
// (spec.md §4.3 step 5 / §4.7 step 2).
func Classify(events []model.CleanEvent) string {
	var hasPersistence, hasNetworkConnect, hasProcessStart, hasFile bool

	for _, e := range events {
		switch {
		case e.EventType == model.EventPersistenceCreated:
			hasPersistence = true
		case e.EventType.IsNetworkConnectEvent():
			hasNetworkConnect = true
		case e.EventType == model.EventProcessStart:
			hasProcessStart = true
		case e.EventType.IsFileEvent():
			hasFile = true
		}
	}

	switch {
	case hasPersistence:
		return "persistence_activity"
	case hasNetworkConnect && hasProcessStart:
		return "process_network_activity"
	case hasFile:
		return "filesystem_activity"
	case hasProcessStart:
		return "process_execution"
	case hasNetworkConnect:
		return "network_activity"
	default:
		return "unknown"
	}
}
