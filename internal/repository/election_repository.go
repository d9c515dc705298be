package repository

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

// ElectionRepositoryInterface defines methods used by the importer and the results endpoint
type ElectionRepositoryInterface interface {
	UpsertCounty(ctx context.Context, c model.County) error
	UpsertResult(ctx context.Context, r model.ElectionResult) error
	GetCounty(ctx context.Context, fips string) (*model.County, error)
	ListResults(ctx context.Context, fips string) ([]model.ElectionResult, error)
}

// ElectionRepository stores imported county shapes and historical results.
type ElectionRepository struct {
	store
}

func NewElectionRepository(conn *sql.DB, driver string) *ElectionRepository {
	return &ElectionRepository{store{DB: conn, Driver: driver}}
}

// UpsertCounty inserts a county or replaces the stored one with the same FIPS.
func (r *ElectionRepository) UpsertCounty(ctx context.Context, c model.County) error {
	_, err := r.DB.ExecContext(ctx, r.rebind(`
		INSERT INTO counties (fips, name, state, geometry)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (fips) DO UPDATE
		SET name = excluded.name, state = excluded.state, geometry = excluded.geometry`),
		c.FIPS, c.Name, c.State, string(c.Geometry))
	return err
}

// UpsertResult is keyed on (fips, year).
func (r *ElectionRepository) UpsertResult(ctx context.Context, res model.ElectionResult) error {
	_, err := r.DB.ExecContext(ctx, r.rebind(`
		INSERT INTO election_results (fips, year, county, state, democratic, republican, other, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fips, year) DO UPDATE
		SET county = excluded.county, state = excluded.state, democratic = excluded.democratic,
		    republican = excluded.republican, other = excluded.other, total = excluded.total`),
		res.FIPS, res.Year, res.County, res.State, res.Democratic, res.Republican, res.Other, res.Total)
	return err
}

func (r *ElectionRepository) GetCounty(ctx context.Context, fips string) (*model.County, error) {
	var (
		c        model.County
		geometry string
	)
	err := r.DB.QueryRowContext(ctx, r.rebind(`SELECT fips, name, state, geometry FROM counties WHERE fips = ?`), fips).
		Scan(&c.FIPS, &c.Name, &c.State, &geometry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, err
	}
	if geometry != "" {
		c.Geometry = []byte(geometry)
	}
	return &c, nil
}

// ListResults returns every stored year for a county, oldest first.
func (r *ElectionRepository) ListResults(ctx context.Context, fips string) ([]model.ElectionResult, error) {
	rows, err := r.DB.QueryContext(ctx, r.rebind(`
		SELECT fips, year, county, state, democratic, republican, other, total
		FROM election_results WHERE fips = ? ORDER BY year ASC`), fips)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.ElectionResult{}
	for rows.Next() {
		var e model.ElectionResult
		if err := rows.Scan(&e.FIPS, &e.Year, &e.County, &e.State, &e.Democratic, &e.Republican, &e.Other, &e.Total); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}
