package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the connection pool used for report rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore writes report rows into Postgres. Assumed schema:
//
//	CREATE TABLE fetch_reports (
//	    id BIGSERIAL PRIMARY KEY,
//	    deployment TEXT NOT NULL,
//	    items_inserted INTEGER NOT NULL,
//	    time_started TIMESTAMPTZ NOT NULL,
//	    time_ended TIMESTAMPTZ NOT NULL,
//	    report JSONB NOT NULL,
//	    created_at TIMESTAMPTZ DEFAULT NOW()
//	);
type PostgresStore struct {
	pool  execCloser
	table string
}

// NewPostgresStore connects a pool and returns a report store.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("reports.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStoreWithPool(pool, cfg.Table)
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool execCloser, table string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "fetch_reports"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// SaveReport inserts one row for the finished run.
func (s *PostgresStore) SaveReport(ctx context.Context, deployment string, report *fetch.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (deployment, items_inserted, time_started, time_ended, report) VALUES ($1, $2, $3, $4, $5)`,
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query,
		deployment,
		report.ItemsInserted,
		report.TimeStarted,
		report.TimeEnded,
		payload,
	); err != nil {
		return fmt.Errorf("insert report row: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
