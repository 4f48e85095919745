// Package audit records completed requests to Postgres when a database is
// configured. Writes are best-effort: a failed insert is logged and never
// surfaced to the caller.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"docverify/internal/logger"
)

// Entry is one completed request.
type Entry struct {
	ID        uuid.UUID
	Endpoint  string
	Filename  string
	Mode      string
	Outcome   string
	CreatedAt time.Time
}

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS request_audit (
	id         UUID PRIMARY KEY,
	endpoint   TEXT NOT NULL,
	filename   TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL DEFAULT '',
	outcome    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open creates the pool, verifies connectivity and ensures the audit table
// exists.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "docverify"

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(dialCtx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	log := logger.WithComponent("audit")
	log.Info().Msg("audit store connected")

	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO request_audit (id, endpoint, filename, mode, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Endpoint, e.Filename, e.Mode, e.Outcome, e.CreatedAt)
	return err
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// NopStore is the disabled audit trail used when no DATABASE_URL is set.
type NopStore struct{}

func (NopStore) Insert(context.Context, Entry) error { return nil }
func (NopStore) Close()                              {}
