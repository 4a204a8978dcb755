package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
)

// timeFromUnix converts a fractional-seconds Unix timestamp (the wire
// format every spec.md event carries) into a time.Time.
func timeFromUnix(seconds float64) time.Time {
	return time.Unix(0, int64(seconds*float64(time.Second)))
}

// Postgres is the production Querier, backed by a pgxpool.Pool (wired
// with an otelpgx tracer in cmd/ingestd/main.go exactly as every other
// `apps/*/cmd/api/main.go` wires its pool).
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the schema if it doesn't already exist. Intended for
// local/dev bring-up; production deployments apply migrations out of
// band, as every other service in this codebase does.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS devices (
	device_id     TEXT PRIMARY KEY,
	hostname      TEXT NOT NULL DEFAULT '',
	os            TEXT NOT NULL DEFAULT '',
	os_version    TEXT NOT NULL DEFAULT '',
	architecture  TEXT NOT NULL DEFAULT '',
	trust_score   DOUBLE PRECISION NOT NULL DEFAULT 100.0,
	last_seen     TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	event_id     UUID PRIMARY KEY,
	device_id    TEXT NOT NULL REFERENCES devices(device_id),
	context_id   TEXT NOT NULL DEFAULT '',
	event_type   TEXT NOT NULL,
	payload      JSONB NOT NULL,
	ingested_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_events_device ON events(device_id, ingested_at DESC);

CREATE TABLE IF NOT EXISTS process_events (
	event_id     UUID PRIMARY KEY REFERENCES events(event_id),
	device_id    TEXT NOT NULL REFERENCES devices(device_id),
	pid          INT NOT NULL DEFAULT 0,
	process_name TEXT NOT NULL DEFAULT '',
	cmdline      TEXT NOT NULL DEFAULT '',
	"user"       TEXT NOT NULL DEFAULT '',
	occurred_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS file_events (
	event_id     UUID PRIMARY KEY REFERENCES events(event_id),
	device_id    TEXT NOT NULL REFERENCES devices(device_id),
	file_path    TEXT NOT NULL DEFAULT '',
	file_hash    TEXT NOT NULL DEFAULT '',
	occurred_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS network_events (
	event_id     UUID PRIMARY KEY REFERENCES events(event_id),
	device_id    TEXT NOT NULL REFERENCES devices(device_id),
	remote_addr  TEXT NOT NULL DEFAULT '',
	remote_port  INT NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT '',
	occurred_at  TIMESTAMPTZ NOT NULL
);
`

func (p *Postgres) UpsertDevice(ctx context.Context, device model.DeviceIdentity, now time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE devices SET last_seen = $2, hostname = $3, os = $4, os_version = $5, architecture = $6
		WHERE device_id = $1`,
		device.DeviceID, now, device.Hostname, device.OS, device.OSVersion, device.Architecture,
	)
	if err != nil {
		return false, fmt.Errorf("eventstore: update device: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO devices (device_id, hostname, os, os_version, architecture, trust_score, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, 100.0, $6, $6)
		ON CONFLICT (device_id) DO NOTHING`,
		device.DeviceID, device.Hostname, device.OS, device.OSVersion, device.Architecture, now,
	)
	if err != nil {
		return false, fmt.Errorf("eventstore: insert device: %w", err)
	}
	return true, nil
}

func (p *Postgres) GetTrustScore(ctx context.Context, deviceID string) (float64, error) {
	var score float64
	err := p.pool.QueryRow(ctx, `SELECT trust_score FROM devices WHERE device_id = $1`, deviceID).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("eventstore: get trust score: %w", err)
	}
	return score, nil
}

func (p *Postgres) SetTrustScore(ctx context.Context, deviceID string, score float64) error {
	_, err := p.pool.Exec(ctx, `UPDATE devices SET trust_score = $2 WHERE device_id = $1`, deviceID, score)
	if err != nil {
		return fmt.Errorf("eventstore: set trust score: %w", err)
	}
	return nil
}

// UpdateTrustScore takes Postgres's row-level lock with `SELECT ... FOR
// UPDATE` inside a transaction, so a second concurrent request for the
// same device blocks until this one commits instead of reading the same
// stale score (spec.md §5 "correctness requires either a row lock or an
// idempotent update expression... ensure no lost updates").
func (p *Postgres) UpdateTrustScore(ctx context.Context, deviceID string, fn func(current float64) float64) (float64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("eventstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current float64
	err = tx.QueryRow(ctx, `SELECT trust_score FROM devices WHERE device_id = $1 FOR UPDATE`, deviceID).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("eventstore: lock trust score: %w", err)
	}

	updated := fn(current)
	if _, err := tx.Exec(ctx, `UPDATE devices SET trust_score = $2 WHERE device_id = $1`, deviceID, updated); err != nil {
		return 0, fmt.Errorf("eventstore: update trust score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("eventstore: commit trust score: %w", err)
	}
	return updated, nil
}

// InsertEvents writes every event in one transaction — a storage error
// partway through rolls back the whole batch (spec.md §4.7 step 3, §7).
func (p *Postgres) InsertEvents(ctx context.Context, deviceID, contextID string, events []model.CleanEvent, now time.Time) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("eventstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ev := range events {
		eventID := uuid.New()
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("eventstore: marshal event: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO events (event_id, device_id, context_id, event_type, payload, ingested_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			eventID, deviceID, contextID, string(ev.EventType), payload, now,
		); err != nil {
			return fmt.Errorf("eventstore: insert event: %w", err)
		}

		if err := projectEvent(ctx, tx, eventID, deviceID, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("eventstore: commit tx: %w", err)
	}
	return nil
}

func projectEvent(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, deviceID string, ev model.CleanEvent) error {
	occurredAt := timeFromUnix(ev.Timestamp)

	switch {
	case ev.EventType == model.EventProcessStart:
		cmdline, _ := ev.Details["cmdline"].(string)
		user, _ := ev.Details["user"].(string)
		_, err := tx.Exec(ctx, `
			INSERT INTO process_events (event_id, device_id, pid, process_name, cmdline, "user", occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			eventID, deviceID, ev.PID, ev.ProcessName, cmdline, user, occurredAt,
		)
		return err

	case ev.EventType.IsFileEvent():
		path, _ := ev.Details["file_path"].(string)
		hash, _ := ev.Details["file_hash"].(string)
		_, err := tx.Exec(ctx, `
			INSERT INTO file_events (event_id, device_id, file_path, file_hash, occurred_at)
			VALUES ($1, $2, $3, $4, $5)`,
			eventID, deviceID, path, hash, occurredAt,
		)
		return err

	case ev.EventType.IsNetworkConnectEvent():
		addr, _ := ev.Details["remote_addr"].(string)
		port, _ := ev.Details["remote_port"].(float64)
		status, _ := ev.Details["status"].(string)
		_, err := tx.Exec(ctx, `
			INSERT INTO network_events (event_id, device_id, remote_addr, remote_port, status, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			eventID, deviceID, addr, int(port), status, occurredAt,
		)
		return err

	default:
		return nil // not a projected event type — the generic events row is the only record
	}
}

func (p *Postgres) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT device_id, hostname, os, os_version, architecture, trust_score, last_seen, created_at
		FROM devices ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("eventstore: list devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRecord
	for rows.Next() {
		var d DeviceRecord
		if err := rows.Scan(&d.DeviceID, &d.Hostname, &d.OS, &d.OSVersion, &d.Architecture, &d.TrustScore, &d.LastSeen, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	return p.queryEvents(ctx, `
		SELECT event_id, device_id, context_id, payload, ingested_at FROM events
		ORDER BY ingested_at DESC LIMIT $1`, limit)
}

func (p *Postgres) ListEventsByDevice(ctx context.Context, deviceID string, limit int) ([]EventRecord, error) {
	return p.queryEvents(ctx, `
		SELECT event_id, device_id, context_id, payload, ingested_at FROM events
		WHERE device_id = $2 ORDER BY ingested_at DESC LIMIT $1`, limit, deviceID)
}

func (p *Postgres) queryEvents(ctx context.Context, sql string, args ...interface{}) ([]EventRecord, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var (
			rec     EventRecord
			payload []byte
		)
		if err := rows.Scan(&rec.EventID, &rec.DeviceID, &rec.ContextID, &payload, &rec.IngestedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &rec.Event); err != nil {
			return nil, fmt.Errorf("eventstore: unmarshal event payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) ListProcessActivity(ctx context.Context, deviceID string, limit int) ([]ProcessActivityRecord, error) {
	sql := `
		SELECT event_id, device_id, pid, process_name, cmdline, "user", occurred_at
		FROM process_events`
	args := []interface{}{limit}
	if deviceID != "" {
		sql += ` WHERE device_id = $2`
		args = append(args, deviceID)
	}
	sql += ` ORDER BY occurred_at DESC LIMIT $1`

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("eventstore: list process activity: %w", err)
	}
	defer rows.Close()

	var out []ProcessActivityRecord
	for rows.Next() {
		var r ProcessActivityRecord
		if err := rows.Scan(&r.EventID, &r.DeviceID, &r.PID, &r.ProcessName, &r.Cmdline, &r.User, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
