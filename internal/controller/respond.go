package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the shared sentinel errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, appErrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, appErrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, appErrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, appErrors.ErrIllegalTransition), errors.Is(err, appErrors.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, appErrors.ErrGeneration), errors.Is(err, appErrors.ErrProviderUnavailable):
		status = http.StatusBadGateway
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return appErrors.NewValidation("body", "invalid request body: "+err.Error())
	}
	return nil
}

// actorFrom reads the acting user from the identity headers set by the upstream gateway.
func actorFrom(r *http.Request) model.Actor {
	return model.Actor{
		ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Role: model.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
	}
}

// requireActor rejects requests that carry no actor id.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderActorID) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + HeaderActorID + " header"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
