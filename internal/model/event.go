// Package model holds the data types shared by the agent and the ingestion
// service: raw and clean events, execution contexts, device identity, and
// the wire payload exchanged between the two.
package model

// EventType discriminates the kind of activity a probe observed.
type EventType string

const (
	EventProcessStart          EventType = "process_start"
	EventNetworkConnect        EventType = "network_connect"
	EventFileCreated           EventType = "file_created"
	EventFileModified          EventType = "file_modified"
	EventFileDeleted           EventType = "file_deleted"
	EventUnauthorizedAccess    EventType = "unauthorized_access_attempt"
	EventHighMemoryUsage       EventType = "high_memory_usage"
	EventPersistenceCreated    EventType = "persistence_created"
	EventPrivilegeContext      EventType = "privilege_context"
	EventNetworkConnection     EventType = "network_connection" // legacy alias accepted on ingest
	EventNetworkActivityLegacy EventType = "network_activity"   // legacy alias accepted on ingest
)

// IsFileEvent reports whether the event type begins with "file_", used by
// the payload classifier.
func (t EventType) IsFileEvent() bool {
	return len(t) >= 5 && t[:5] == "file_"
}

// IsNetworkConnectEvent reports whether the event type is any of the
// network-connection aliases, used by the payload classifier and the event
// store's network projection. The Trust Engine's SYN-probe check keeps its
// own event-type set.
func (t EventType) IsNetworkConnectEvent() bool {
	switch t {
	case EventNetworkConnect, EventNetworkConnection, EventNetworkActivityLegacy:
		return true
	default:
		return false
	}
}

// RawEvent is the record a probe hands to the Context Manager, and the
// record persisted verbatim to the Raw Store. ContextID and Timestamp are
// stamped by the Context Manager on attach, never by the probe.
type RawEvent struct {
	EventType   EventType `json:"event_type"`
	Timestamp   float64   `json:"timestamp"`
	ContextID   string    `json:"context_id,omitempty"`
	PID         int       `json:"pid,omitempty"`
	PPID        int       `json:"ppid,omitempty"`
	ProcessName string    `json:"process_name,omitempty"`
	Cmdline     string    `json:"cmdline,omitempty"`
	User        string    `json:"user,omitempty"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
	RemotePort  int       `json:"remote_port,omitempty"`
	Status      string    `json:"status,omitempty"`
	Flags       string    `json:"flags,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	FileHash    string    `json:"file_hash,omitempty"`
	MemoryMB    float64   `json:"memory_mb,omitempty"`
	Path        string    `json:"path,omitempty"`
	Location    string    `json:"location,omitempty"`
	IsAdmin     bool      `json:"is_admin,omitempty"`
}

// Valid reports whether the mandatory event_type/timestamp fields are
// present — the same check the cleaner's validate step applies to
// CleanEvents.
func (e RawEvent) Valid() bool {
	return e.EventType != "" && e.Timestamp > 0
}

// CleanEvent is the canonical, normalized representation produced by the
// cleaner: {context_id, event_type, timestamp, pid?, process_name?,
// details: <original>} per spec.md §4.3 step 1, plus an aggregation Count.
type CleanEvent struct {
	ContextID   string                 `json:"context_id"`
	EventType   EventType              `json:"event_type"`
	Timestamp   float64                `json:"timestamp"`
	PID         int                    `json:"pid,omitempty"`
	ProcessName string                 `json:"process_name,omitempty"`
	Details     map[string]interface{} `json:"details"`
	Count       int                    `json:"count,omitempty"`
}

// ContextStatus is the lifecycle state of an execution Context.
type ContextStatus string

const (
	ContextActive ContextStatus = "active"
	ContextClosed ContextStatus = "closed"
)

// DeviceIdentity is the immutable per-host identity attached to every
// context and reported in every wire payload.
type DeviceIdentity struct {
	DeviceID     string `json:"device_id"`
	Hostname     string `json:"hostname"`
	OS           string `json:"os"`
	OSVersion    string `json:"os_version"`
	Architecture string `json:"architecture"`
	User         string `json:"user"`
}

// Context is the in-memory aggregate rooted at a process_start anchor
// event (spec.md §3).
type Context struct {
	ContextID   string
	Device      DeviceIdentity
	User        string
	CreatedAt   float64
	AnchorEvent RawEvent
	Events      []RawEvent
	Status      ContextStatus
}

// CleanContext is the normalized, deduplicated, aggregated output produced
// at context expiry (spec.md §4.3) and the unit enqueued onto the Buffer.
type CleanContext struct {
	ContextID   string         `json:"context_id"`
	PayloadType string         `json:"payload_type"`
	Device      DeviceIdentity `json:"device"`
	User        string         `json:"user"`
	CreatedAt   float64        `json:"created_at"`
	Events      []CleanEvent   `json:"events"`
}

