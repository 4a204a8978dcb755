// Package eventstore is the server's Event Store (spec.md §3, §4.7):
// device/event/process/file/network tables keyed by UUIDs. No
// repository/db package is checked into the retrieval pack (sqlc output is
// generated, not committed), so this package hand-writes the equivalent
// Querier interface + pgx-backed implementation in the same shape sqlc
// would emit, grounded on the db.Querier construction pattern every
// pattern apps/trm-service/internal/service's
// `db.Querier`, apps/audit-service/cmd/api/main.go's `querier := db.New(pool)`).
package eventstore

import (
	"context"
	"time"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// DeviceRecord is the server's Device Record (spec.md §3).
type DeviceRecord struct {
	DeviceID     string    `json:"device_id"`
	Hostname     string    `json:"hostname"`
	OS           string    `json:"os"`
	OSVersion    string    `json:"os_version"`
	Architecture string    `json:"architecture"`
	TrustScore   float64   `json:"trust_score"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventRecord is one row of the generic events table — the full
// CleanEvent preserved as the audit trail, plus its owning device and a
// server-assigned id (spec.md §4.7 step 3).
type EventRecord struct {
	EventID   string             `json:"event_id"`
	DeviceID  string             `json:"device_id"`
	ContextID string             `json:"context_id"`
	Event     model.CleanEvent   `json:"event"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// ProcessActivityRecord projects process_start events for the
// /api/process-activity list view (spec.md §6).
type ProcessActivityRecord struct {
	EventID     string    `json:"event_id"`
	DeviceID    string    `json:"device_id"`
	PID         int       `json:"pid"`
	ProcessName string    `json:"process_name"`
	Cmdline     string    `json:"cmdline"`
	User        string    `json:"user"`
	Timestamp   time.Time `json:"timestamp"`
}

// Querier is the narrow persistence capability the ingest handler and the
// status/list endpoints need. Satisfied by *Postgres (production) and
// *Memory (tests), so tests can construct isolated instances per spec.md
// Design Notes.
type Querier interface {
	// UpsertDevice inserts device if unseen, or updates last_seen if
	// known, initializing trust_score to 100.0 for new devices (spec.md
	// §4.7 step 1). Reports whether the device was newly created.
	UpsertDevice(ctx context.Context, device model.DeviceIdentity, now time.Time) (isNew bool, err error)

	// GetTrustScore returns device's current score.
	GetTrustScore(ctx context.Context, deviceID string) (float64, error)

	// SetTrustScore persists the updated score directly, bypassing the
	// read-modify-write lock UpdateTrustScore takes. Exposed for tests
	// and for seeding fixtures; request handling must use
	// UpdateTrustScore instead, or two concurrent requests for the same
	// device can each read the same starting score and one update is
	// lost (spec.md §5).
	SetTrustScore(ctx context.Context, deviceID string, score float64) error

	// UpdateTrustScore reads deviceID's current score, passes it to fn,
	// and persists fn's return value, the whole read-modify-write taken
	// under a single row lock (Postgres: `SELECT ... FOR UPDATE` inside
	// a transaction; Memory: the store's mutex held across both steps) —
	// the row-lock half of spec.md §5's "correctness requires either a
	// row lock or an idempotent update expression... ensure no lost
	// updates". Returns the persisted score.
	UpdateTrustScore(ctx context.Context, deviceID string, fn func(current float64) float64) (float64, error)

	// InsertEvents persists every event in a batch to the generic events
	// table plus its type-specific projection, atomically: either all
	// persist or none do (spec.md §4.7 step 3, §7 "storage error...
	// roll back").
	InsertEvents(ctx context.Context, deviceID, contextID string, events []model.CleanEvent, now time.Time) error

	ListDevices(ctx context.Context) ([]DeviceRecord, error)
	ListRecentEvents(ctx context.Context, limit int) ([]EventRecord, error)
	ListEventsByDevice(ctx context.Context, deviceID string, limit int) ([]EventRecord, error)
	ListProcessActivity(ctx context.Context, deviceID string, limit int) ([]ProcessActivityRecord, error)
}
