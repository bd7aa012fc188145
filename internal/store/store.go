// Package store upserts flattened survey records into Postgres.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const table = "survey_records"

const ddl = `
CREATE TABLE IF NOT EXISTS ` + table + ` (
    chat_id      BIGINT PRIMARY KEY,
    survey       TEXT NOT NULL,
    payload      JSONB NOT NULL,
    extracted_at TIMESTAMPTZ NOT NULL
);`

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Row is one persisted record: the projected columns as a JSON payload,
// keyed by the chat identifier.
type Row struct {
	ChatID      int64
	Payload     map[string]any
	ExtractedAt time.Time
}

// UpsertBatch writes every row in one transaction, replacing a previous
// extraction of the same chat. Failed extractions never reach this point.
func (s *Store) UpsertBatch(ctx context.Context, survey string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table: %w", err)
	}

	for _, row := range rows {
		payload, err := json.Marshal(row.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for chat %d: %w", row.ChatID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO `+table+` (chat_id, survey, payload, extracted_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (chat_id) DO UPDATE
			SET survey = EXCLUDED.survey,
			    payload = EXCLUDED.payload,
			    extracted_at = EXCLUDED.extracted_at`,
			row.ChatID, survey, payload, row.ExtractedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert chat %d: %w", row.ChatID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
