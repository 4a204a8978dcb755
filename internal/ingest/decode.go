// Package ingest implements the HTTP surface of the Ingestion & Trust
// Service (spec.md §4.7, §6): POST /api/logs and the read-only list
// views, built over echo the way apps/*/internal/handler
// package is (RegisterRoutes(e, deps..., logger), JSON bind + explicit
// status-code helpers), grounded on
// apps/trm-service/internal/handler/handlers.go and
// apps/audit-service/internal/handler/handlers.go.
package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/Vamsirusheel01/sentinel-ai/internal/cleaner"
	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// wirePayload is the permissive decode target for one payload object
// (spec.md §6). Events is kept as raw JSON so each element can be either
// a flat RawEvent-shaped object or a CleanContext event nested under
// "details" — spec.md Open Question (a): "Multiple payload schemas
// coexist... specification canonicalizes both and readers must accept
// either."
type wirePayload struct {
	ContextID   string            `json:"context_id"`
	Device      model.DeviceIdentity `json:"device"`
	PayloadType string            `json:"payload_type"`
	User        string            `json:"user"`
	CreatedAt   float64           `json:"created_at"`
	Events      []json.RawMessage `json:"events"`
	Timestamp   string            `json:"timestamp"`
}

// decodeBody accepts either a single payload object or a JSON array of
// them (spec.md §6) and returns the normalized payloads. An empty array
// or an empty/whitespace body is reported as errEmptyPayload; malformed
// JSON as errInvalidPayload — the handler maps both to HTTP 400.
func decodeBody(body []byte) ([]wirePayload, error) {
	trimmed := trimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyPayload
	}

	if trimmed[0] == '[' {
		var payloads []wirePayload
		if err := json.Unmarshal(trimmed, &payloads); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidPayload, err)
		}
		if len(payloads) == 0 {
			return nil, errEmptyPayload
		}
		return payloads, nil
	}

	var single wirePayload
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if single.Device.DeviceID == "" {
		return nil, errEmptyPayload
	}
	return []wirePayload{single}, nil
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// cleanEvents normalizes every raw JSON event in p into CleanEvents,
// merging a nested "details" object (if present) with the top-level
// fields so either schema variant decodes into the same shape.
func (p wirePayload) cleanEvents() []model.CleanEvent {
	out := make([]model.CleanEvent, 0, len(p.Events))
	for _, raw := range p.Events {
		var flat map[string]interface{}
		if err := json.Unmarshal(raw, &flat); err != nil {
			continue
		}
		out = append(out, eventFromMap(flat))
	}
	return out
}

func eventFromMap(flat map[string]interface{}) model.CleanEvent {
	details := map[string]interface{}{}
	if nested, ok := flat["details"].(map[string]interface{}); ok {
		for k, v := range nested {
			details[k] = v
		}
	}
	for k, v := range flat {
		switch k {
		case "event_type", "timestamp", "context_id", "pid", "process_name", "count", "details":
			continue
		default:
			if _, exists := details[k]; !exists {
				details[k] = v
			}
		}
	}

	ev := model.CleanEvent{Details: details}
	if v, ok := flat["event_type"].(string); ok {
		ev.EventType = model.EventType(v)
	}
	if v, ok := flat["timestamp"].(float64); ok {
		ev.Timestamp = v
	}
	if v, ok := flat["context_id"].(string); ok {
		ev.ContextID = v
	}
	if v, ok := flat["pid"].(float64); ok {
		ev.PID = int(v)
	}
	if v, ok := flat["process_name"].(string); ok {
		ev.ProcessName = v
	}
	if v, ok := flat["count"].(float64); ok {
		ev.Count = int(v)
	}
	return ev
}

// payloadType returns p's classification, computing it from events when
// the agent didn't already set one (spec.md §4.7 step 2).
func (p wirePayload) payloadType(events []model.CleanEvent) string {
	if p.PayloadType != "" {
		return p.PayloadType
	}
	return cleaner.Classify(events)
}
