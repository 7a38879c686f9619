package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres pool sizing. The settlement worker holds at most one
// connection per partition, so the pool stays small.
const (
	pgMaxConns        = 25
	pgMinConns        = 2
	pgMaxConnLifetime = time.Hour
	pgMaxConnIdleTime = 30 * time.Minute
	pgConnectAttempts = 3
	pgRetryInterval   = 2 * time.Second
)

// PoolConfig parses url and applies the pool limits.
func PoolConfig(url string) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pc.MaxConns = pgMaxConns
	pc.MinConns = pgMinConns
	pc.MaxConnLifetime = pgMaxConnLifetime
	pc.MaxConnIdleTime = pgMaxConnIdleTime
	pc.ConnConfig.ConnectTimeout = 5 * time.Second
	return pc, nil
}

// OpenPostgres connects a pgx pool, retrying while the server comes up.
func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pc, err := PoolConfig(url)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt < pgConnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pgRetryInterval):
			}
		}
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			lastErr = err
			continue
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			lastErr = err
			continue
		}
		return pool, nil
	}
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", pgConnectAttempts, lastErr)
}
