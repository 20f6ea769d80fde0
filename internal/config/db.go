package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
)

const (
	dbMaxOpen     = 20
	dbMaxIdle     = 10
	dbIdleTime    = 5 * time.Minute
	dbLifetime    = time.Hour
	dbPingTimeout = 3 * time.Second
)

// NewDB opens a pgx-backed pool and pings it before returning.
func NewDB(dsn string, debug bool) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DB DSN")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpen)
	db.SetMaxIdleConns(dbMaxIdle)
	db.SetConnMaxIdleTime(dbIdleTime)
	db.SetConnMaxLifetime(dbLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if debug {
		logServerIdentity(ctx, db)
	}
	return db, nil
}

func logServerIdentity(ctx context.Context, db *sql.DB) {
	var user, name, version string
	row := db.QueryRowContext(ctx, "SELECT current_user, current_database(), current_setting('server_version')")
	if err := row.Scan(&user, &name, &version); err != nil {
		logger.Logger.Warn().Err(err).Msg("db identity query failed")
		return
	}
	logger.Logger.Info().
		Str("db_user", user).
		Str("db_name", name).
		Str("db_version", version).
		Msg("db connected")
}
