package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Controllers groups everything NewRouter mounts.
type Controllers struct {
	Campaigns *CampaignController
	Messages  *MessageController
	Elections *ElectionController
	Logger    *zap.Logger
}

func NewRouter(c Controllers) chi.Router {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/audience-profiles", c.Campaigns.ListAudienceProfiles)

	// Campaign routes
	r.Get("/campaigns", c.Campaigns.ListCampaigns)
	r.Get("/campaigns/{id}", c.Campaigns.GetCampaign)
	r.Get("/campaigns/{id}/prompt", c.Campaigns.PreviewPrompt)
	r.Get("/campaigns/{id}/messages", c.Messages.ListMessages)

	// Message routes
	r.Get("/messages/{id}", c.Messages.GetMessage)
	r.Get("/messages/{id}/versions", c.Messages.ListVersions)

	if c.Elections != nil {
		r.Get("/counties/{fips}/results", c.Elections.GetCountyResults)
	}

	r.Group(func(r chi.Router) {
		r.Use(requireActor)

		r.Post("/campaigns", c.Campaigns.CreateCampaign)
		r.Put("/campaigns/{id}/profile", c.Campaigns.UpdateProfile)
		r.Post("/campaigns/{id}/messages", c.Messages.CreateMessage)

		r.Post("/messages/bulk/{action}", c.Messages.Bulk)
		r.Put("/messages/{id}", c.Messages.UpdateMessage)
		r.Delete("/messages/{id}", c.Messages.DeleteMessage)
		r.Post("/messages/{id}/submit", c.Messages.Submit())
		r.Post("/messages/{id}/approve", c.Messages.Approve())
		r.Post("/messages/{id}/reject", c.Messages.Reject())
		r.Post("/messages/{id}/request-changes", c.Messages.RequestChanges())
		r.Post("/messages/{id}/resubmit", c.Messages.Resubmit())
		r.Post("/messages/{id}/schedule", c.Messages.Schedule)
		r.Post("/messages/{id}/archive", c.Messages.Archive())
		r.Post("/messages/{id}/publish", c.Messages.Publish)
		r.Post("/messages/{id}/versions", c.Messages.AddVersion)
		r.Post("/messages/{id}/versions/generate", c.Messages.GenerateVersion)
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
