// Package postgres opens a pooled lib/pq connection and applies versioned
// schema migrations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
)

const migrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Client owns the connection pool.
type Client struct {
	DB     *sql.DB
	logger *slog.Logger
}

// New opens the pool described by cfg and pings it.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return Wrap(db, cfg.Database), nil
}

// Wrap adopts an already open pool.
func Wrap(db *sql.DB, database string) *Client {
	return &Client{
		DB:     db,
		logger: slog.Default().With("component", "postgres", "database", database),
	}
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close releases the pool.
func (c *Client) Close() error {
	return c.DB.Close()
}

// Migrate brings the schema up to date. statements[i] is migration version
// i+1; versions already recorded in schema_migrations are skipped and each
// new one is applied and recorded in its own transaction. It returns the
// number of migrations applied.
func (c *Client) Migrate(ctx context.Context, statements []string) (int, error) {
	if _, err := c.DB.ExecContext(ctx, migrationsTable); err != nil {
		return 0, fmt.Errorf("creating schema_migrations: %w", err)
	}
	var current int
	if err := c.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if current > len(statements) {
		return 0, fmt.Errorf("database schema version %d is newer than this binary (%d)", current, len(statements))
	}

	applied := 0
	for version := current + 1; version <= len(statements); version++ {
		err := c.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, statements[version-1]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d: %w", version, err)
		}
		applied++
	}
	c.logger.Info("schema up to date", "version", len(statements), "applied", applied)
	return applied, nil
}

// InTx runs fn in a transaction, committing on success and rolling back on
// error.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
