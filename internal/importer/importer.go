package importer

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/repository"
)

// Report summarizes one import run.
type Report struct {
	Format   string     `json:"format"`
	Rows     int        `json:"rows"`
	Upserted int        `json:"upserted"`
	Errors   []RowError `json:"errors,omitempty"`
}

// Importer upserts parsed rows by their natural key, so re-running a file is harmless.
type Importer struct {
	Repo   repository.ElectionRepositoryInterface
	Logger *zap.Logger
}

func New(repo repository.ElectionRepositoryInterface, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{Repo: repo, Logger: log}
}

func (im *Importer) log() *zap.Logger {
	if im.Logger == nil {
		return zap.NewNop()
	}
	return im.Logger
}

func (im *Importer) ImportResults(ctx context.Context, r io.Reader) (*Report, error) {
	format, results, rowErrs, rows, err := parseResults(r)
	if err != nil {
		return nil, err
	}
	report := &Report{Format: format, Rows: rows, Errors: rowErrs}
	im.logRowErrors(rowErrs)

	for _, res := range results {
		if err := im.Repo.UpsertResult(ctx, res); err != nil {
			return report, fmt.Errorf("upsert result %s/%d: %w", res.FIPS, res.Year, err)
		}
		report.Upserted++
	}
	im.log().Info("election results imported",
		zap.String("format", format),
		zap.Int("rows", report.Rows),
		zap.Int("upserted", report.Upserted),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (im *Importer) ImportCounties(ctx context.Context, r io.Reader) (*Report, error) {
	counties, rowErrs, err := ParseCountiesGeoJSON(r)
	if err != nil {
		return nil, err
	}
	report := &Report{Format: FormatGeoJSON, Rows: len(counties) + len(rowErrs), Errors: rowErrs}
	im.logRowErrors(rowErrs)

	for _, c := range counties {
		if err := im.Repo.UpsertCounty(ctx, c); err != nil {
			return report, fmt.Errorf("upsert county %s: %w", c.FIPS, err)
		}
		report.Upserted++
	}
	im.log().Info("counties imported",
		zap.Int("rows", report.Rows),
		zap.Int("upserted", report.Upserted),
		zap.Int("errors", len(report.Errors)))
	return report, nil
}

func (im *Importer) logRowErrors(rowErrs []RowError) {
	for _, e := range rowErrs {
		im.log().Warn("import row skipped", zap.Int("line", e.Line), zap.String("reason", e.Reason))
	}
}
