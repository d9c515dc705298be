// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/unclebandit/campaignhq-backend/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	conn, err := sql.Open(driver, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	if driver == "sqlite" {
		// one writer; avoids SQLITE_BUSY inside transactions
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	if log != nil {
		log.Info("connected to database", zap.String("driver", driver), zap.String("host", cfg.Host), zap.String("name", cfg.Name))
	}
	return conn, nil
}

// Migrate applies every embedded migration that has not run yet.
func Migrate(ctx context.Context, conn *sql.DB, driver string) error {
	dialect := goose.DialectPostgres
	if driver == "sqlite" {
		dialect = goose.DialectSQLite3
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, conn, sub)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Placeholder returns the bind-variable style for the driver.
func Placeholder(driver string) sq.PlaceholderFormat {
	if driver == "sqlite" {
		return sq.Question
	}
	return sq.Dollar
}
