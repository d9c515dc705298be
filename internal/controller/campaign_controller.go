// internal/controller/campaign_controller.go
package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/audience"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Profiles        *audience.Registry
	Logger          *zap.Logger
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string                `json:"name"`
		Description string                `json:"description"`
		Profile     model.CampaignProfile `json:"profile"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, c.Logger, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), actorFrom(r), body.Name, body.Description, body.Profile)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(),
		queryInt(r, "page"), queryInt(r, "page_size"), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile model.CampaignProfile
	if err := decode(r, &profile); err != nil {
		writeError(w, c.Logger, err)
		return
	}

	campaign, err := c.CampaignService.UpdateProfile(r.Context(), actorFrom(r), chi.URLParam(r, "id"), profile)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// PreviewPrompt shows the generation instructions for ?profile=<audience id>.
func (c *CampaignController) PreviewPrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile := r.URL.Query().Get("profile")

	instructions, err := c.CampaignService.PreviewPrompt(r.Context(), id, profile)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"campaign_id":  id,
		"profile":      profile,
		"instructions": instructions,
	})
}

func (c *CampaignController) ListAudienceProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": c.Profiles.List()})
}
