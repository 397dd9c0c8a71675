package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"riffrate/internal/logging"
)

const (
	dbMaxOpenConns    = 10
	dbMaxIdleConns    = 5
	dbConnMaxLifetime = 30 * time.Minute

	dbPingTimeout  = 5 * time.Second
	dbMaxWait      = 30 * time.Second
	dbFirstBackoff = 500 * time.Millisecond
	dbMaxBackoff   = 5 * time.Second
)

// openDatabase opens the review document database and waits for it to accept
// connections, backing off between pings until dbMaxWait elapses.
func openDatabase(ctx context.Context, dsn string, logger *logging.Logger) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	if err := waitForDatabase(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Zerolog().Info().
		Str("host", connCfg.Host).
		Str("database", connCfg.Database).
		Msg("connected to postgres")
	return db, nil
}

func waitForDatabase(ctx context.Context, db *sql.DB, logger *logging.Logger) error {
	deadline := time.Now().Add(dbMaxWait)
	backoff := dbFirstBackoff

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil || time.Now().Add(backoff).After(deadline) {
			return fmt.Errorf("ping database after %d attempts: %w", attempt, err)
		}

		logger.Zerolog().Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", backoff).
			Msg("postgres not ready")

		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, dbMaxBackoff)
	}
}
