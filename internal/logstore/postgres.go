package logstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

// PostgresStore persists log lines across restarts. Schema matches the
// in-memory contract; metadata is stored as JSONB.
type PostgresStore struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS instrument_logs (
	id            TEXT PRIMARY KEY,
	instrument_id TEXT NOT NULL,
	timestamp     TIMESTAMPTZ NOT NULL,
	level         TEXT NOT NULL,
	message       TEXT NOT NULL,
	metadata      JSONB
);
CREATE INDEX IF NOT EXISTS idx_instrument_logs_instrument
	ON instrument_logs (instrument_id, timestamp DESC);
`

func NewPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init log schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Insert(entries []domain.LogEntry) (int, error) {
	inserted := 0
	for _, e := range entries {
		var meta []byte
		if e.Metadata != nil {
			var err error
			meta, err = json.Marshal(e.Metadata)
			if err != nil {
				return inserted, fmt.Errorf("marshal metadata: %w", err)
			}
		}
		_, err := s.db.Exec(
			`INSERT INTO instrument_logs (id, instrument_id, timestamp, level, message, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			e.ID, e.InstrumentID, e.Timestamp, e.Level, e.Message, meta)
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

type logRow struct {
	ID           string    `db:"id"`
	InstrumentID string    `db:"instrument_id"`
	Timestamp    time.Time `db:"timestamp"`
	Level        string    `db:"level"`
	Message      string    `db:"message"`
	Metadata     []byte    `db:"metadata"`
}

func (s *PostgresStore) Recent(instrumentID, level string, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT id, instrument_id, timestamp, level, message, metadata
		FROM instrument_logs WHERE 1=1`
	args := []any{}
	if instrumentID != "" {
		args = append(args, instrumentID)
		query += fmt.Sprintf(" AND instrument_id = $%d", len(args))
	}
	if level != "" {
		args = append(args, level)
		query += fmt.Sprintf(" AND level = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	var rows []logRow
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]domain.LogEntry, 0, len(rows))
	for _, r := range rows {
		e := domain.LogEntry{
			ID:           r.ID,
			InstrumentID: r.InstrumentID,
			Timestamp:    r.Timestamp,
			Level:        r.Level,
			Message:      r.Message,
		}
		if len(r.Metadata) > 0 {
			_ = json.Unmarshal(r.Metadata, &e.Metadata)
		}
		out = append(out, e)
	}
	return out, nil
}
