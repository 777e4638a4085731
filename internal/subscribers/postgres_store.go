package subscribers

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable holds subscribers when no table is configured.
const DefaultTable = "subscribers"

// PostgresConfig controls the connection pool used for the subscriber table.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore keeps subscribers in a table with one row per address:
//
//	CREATE TABLE subscribers (
//	    position   BIGINT NOT NULL,
//	    email      TEXT PRIMARY KEY,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type PostgresStore struct {
	pool  pool
	table string
}

// NewPostgresStore connects to Postgres and creates the table if needed.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("subscribers.postgres.dsn is required")
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewPostgresStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithPool builds a store from an existing pool.
func NewPostgresStoreWithPool(p pool, table string) (*PostgresStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresStore{pool: p, table: table}, nil
}

// EnsureSchema creates the subscriber table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	position BIGINT NOT NULL,
	email TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Load returns addresses in insertion order.
func (s *PostgresStore) Load(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT email FROM %s ORDER BY position", s.table))
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan subscribers: %w", err)
	}
	if emails == nil {
		emails = []string{}
	}
	return emails, nil
}

// Save replaces the table contents in one transaction.
func (s *PostgresStore) Save(ctx context.Context, emails []string) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("clear subscribers: %w", err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (position, email) VALUES ($1, $2)", s.table)
	for i, email := range emails {
		if _, err = tx.Exec(ctx, insert, int64(i), email); err != nil {
			return fmt.Errorf("insert subscriber %s: %w", email, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit subscribers: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
