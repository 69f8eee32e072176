package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Register the pgx driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDB wraps the shared connection pool. The event store and the saga
// instance repository share this pool but never share an open transaction.
type PostgresDB struct {
	Pool   *sql.DB
	logger *slog.Logger
}

// NewPostgresDB opens the connection pool for the given uri, applies the
// pool limits, and verifies connectivity with a bounded ping.
func NewPostgresDB(
	ctx context.Context,
	uri string,
	maxOpenConns int,
	maxIdleConns int,
	maxIdleTime time.Duration,
	logger *slog.Logger,
) (*PostgresDB, error) {

	if uri == "" {
		return nil, fmt.Errorf("database uri string is empty")
	}

	pool, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	pool.SetMaxOpenConns(maxOpenConns)
	pool.SetMaxIdleConns(maxIdleConns)
	pool.SetConnMaxIdleTime(maxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.PingContext(pingCtx); err != nil {
		if closeErr := pool.Close(); closeErr != nil {
			logger.Error("failed to close pool after ping error", "closeError", closeErr)
		}
		logger.Error("database ping failed", "error", err)
		// Keep driver details out of the returned error.
		return nil, fmt.Errorf("unable to verify database connection")
	}

	logger.Info("database connection pool established",
		"maxOpenConns", maxOpenConns,
		"maxIdleConns", maxIdleConns,
		"maxIdleTime", maxIdleTime,
	)

	return &PostgresDB{Pool: pool, logger: logger}, nil
}

// Close drains and closes the connection pool.
func (db *PostgresDB) Close() {
	if db.Pool == nil {
		return
	}
	db.logger.Info("closing database connection pool")
	if err := db.Pool.Close(); err != nil {
		db.logger.Error("error closing database connection pool", "error", err)
	}
}
