package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/unclebandit/campaignhq-backend/internal/db"
)

// store is the shared plumbing of every repository: the handle plus the driver name,
// which decides the placeholder style.
type store struct {
	DB     *sql.DB
	Driver string
}

func (s store) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(db.Placeholder(s.Driver))
}

// rebind rewrites '?' placeholders for the current driver.
func (s store) rebind(query string) string {
	out, err := db.Placeholder(s.Driver).ReplacePlaceholders(query)
	if err != nil {
		return query
	}
	return out
}

func (s store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
