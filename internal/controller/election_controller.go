package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/importer"
	"github.com/unclebandit/campaignhq-backend/internal/repository"
)

// ElectionController serves imported county data.
type ElectionController struct {
	Repo   repository.ElectionRepositoryInterface
	Logger *zap.Logger
}

// GetCountyResults returns one county with its results, oldest year first.
func (c *ElectionController) GetCountyResults(w http.ResponseWriter, r *http.Request) {
	fips := importer.NormalizeFIPS(chi.URLParam(r, "fips"))

	county, err := c.Repo.GetCounty(r.Context(), fips)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	results, err := c.Repo.ListResults(r.Context(), fips)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"county":  county,
		"results": results,
	})
}
