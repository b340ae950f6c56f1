package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vovarama1992/pare-siga-bridge/internal/storage"
)

var schema = map[storage.Dialect]string{
	storage.SQLite: `
		CREATE TABLE IF NOT EXISTS status_history (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			entity    TEXT NOT NULL,
			status    TEXT NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_status_history_entity ON status_history(entity, timestamp);
	`,
	storage.Postgres: `
		CREATE TABLE IF NOT EXISTS status_history (
			id        BIGSERIAL PRIMARY KEY,
			entity    TEXT NOT NULL,
			status    TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_status_history_entity ON status_history(entity, timestamp);
	`,
}

// SQLRepo stores status history in SQLite or PostgreSQL.
type SQLRepo struct {
	db      *sql.DB
	dialect storage.Dialect
}

func NewRepo(db *sql.DB, dialect storage.Dialect) *SQLRepo {
	return &SQLRepo{db: db, dialect: dialect}
}

// Migrate creates status_history if it does not exist yet.
func (r *SQLRepo) Migrate(ctx context.Context) error {
	ddl, ok := schema[r.dialect]
	if !ok {
		return fmt.Errorf("%w: migrate: unsupported dialect %q", ErrStorage, r.dialect)
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrStorage, err)
	}
	return nil
}

func (r *SQLRepo) RecordStatus(ctx context.Context, entity Side, status Status) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO status_history (entity, status) VALUES (?, ?)
	`), string(entity), string(status))
	if err != nil {
		return fmt.Errorf("%w: record %s=%s: %w", ErrStorage, entity, status, err)
	}
	return nil
}

// LatestStatus falls back to StatusOpen for an entity with no rows.
func (r *SQLRepo) LatestStatus(ctx context.Context, entity Side) (Status, error) {
	var s string
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
		SELECT status FROM status_history
		WHERE entity = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`), string(entity)).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusOpen, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: latest %s: %w", ErrStorage, entity, err)
	}
	return Status(s), nil
}

func (r *SQLRepo) LatestRecord(ctx context.Context, entity Side) (Record, error) {
	recs, err := r.History(ctx, entity, 1)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{Entity: entity, Status: StatusOpen}, nil
	}
	return recs[0], nil
}

// History returns up to limit records for entity, newest first.
func (r *SQLRepo) History(ctx context.Context, entity Side, limit int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(`
		SELECT id, entity, status, timestamp
		FROM status_history
		WHERE entity = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`), string(entity), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: history %s: %w", ErrStorage, entity, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var ent, st string
		var ts any
		if err := rows.Scan(&rec.ID, &ent, &st, &ts); err != nil {
			return nil, fmt.Errorf("%w: history %s: %w", ErrStorage, entity, err)
		}
		if rec.RecordedAt, err = parseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("%w: history %s: %w", ErrStorage, entity, err)
		}
		rec.Entity = Side(ent)
		rec.Status = Status(st)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: history %s: %w", ErrStorage, entity, err)
	}
	return out, nil
}

// parseTimestamp accepts both driver-decoded times and SQLite's
// CURRENT_TIMESTAMP text form.
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.ParseInLocation(time.DateTime, t, time.UTC)
	case []byte:
		return time.ParseInLocation(time.DateTime, string(t), time.UTC)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}
