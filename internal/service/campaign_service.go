package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/authz"
	"github.com/unclebandit/campaignhq-backend/internal/cache"
	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/prompt"
	"github.com/unclebandit/campaignhq-backend/internal/repository"
)

// ProfileSupplier returns the candidate record behind a campaign.
type ProfileSupplier interface {
	CampaignProfile(ctx context.Context, campaignID string) (model.CampaignProfile, error)
}

const defaultProfileTTL = 5 * time.Minute

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Authz        *authz.Authorizer
	Compiler     *prompt.Compiler
	Cache        cache.Cache
	ProfileTTL   time.Duration
	Logger       *zap.Logger
}

func (s *CampaignService) cache() cache.Cache {
	if s.Cache == nil {
		return cache.Noop{}
	}
	return s.Cache
}

func profileKey(campaignID string) string {
	return "campaign-profile:" + campaignID
}

func (s *CampaignService) CreateCampaign(ctx context.Context, actor model.Actor, name, description string, profile model.CampaignProfile) (*model.Campaign, error) {
	if err := checkActor(s.Authz, actor, authz.ActManageCampaign); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.NewValidation("name", "must not be empty")
	}

	c := &model.Campaign{
		Name:        name,
		Description: strings.TrimSpace(description),
		Profile:     profile,
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	orNop(s.Logger).Info("campaign created", zap.String("campaign_id", c.ID), zap.String("actor_id", actor.ID))
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, search string) ([]model.Campaign, map[string]int, error) {
	page, pageSize, offset := clampPage(page, pageSize)

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, strings.TrimSpace(search))
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}
	return campaigns, paginationMeta(page, pageSize, total), nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, id)
}

// UpdateProfile replaces the campaign profile and drops the cached copy.
func (s *CampaignService) UpdateProfile(ctx context.Context, actor model.Actor, id string, profile model.CampaignProfile) (*model.Campaign, error) {
	if err := checkActor(s.Authz, actor, authz.ActManageCampaign); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.UpdateProfile(ctx, id, profile); err != nil {
		return nil, err
	}
	if err := s.cache().Delete(ctx, profileKey(id)); err != nil {
		orNop(s.Logger).Warn("profile cache invalidation failed", zap.String("campaign_id", id), zap.Error(err))
	}
	return s.CampaignRepo.GetByID(ctx, id)
}

// CampaignProfile is a read-through lookup. Cache faults are logged and bypassed.
func (s *CampaignService) CampaignProfile(ctx context.Context, campaignID string) (model.CampaignProfile, error) {
	log := orNop(s.Logger)
	key := profileKey(campaignID)

	raw, ok, err := s.cache().Get(ctx, key)
	if err != nil {
		log.Warn("profile cache read failed", zap.String("campaign_id", campaignID), zap.Error(err))
	}
	if ok {
		var p model.CampaignProfile
		if err := json.Unmarshal(raw, &p); err == nil {
			return p, nil
		}
		log.Warn("discarding unreadable cached profile", zap.String("campaign_id", campaignID))
	}

	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return model.CampaignProfile{}, err
	}

	ttl := s.ProfileTTL
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	if raw, err := json.Marshal(c.Profile); err == nil {
		if err := s.cache().Set(ctx, key, raw, ttl); err != nil {
			log.Warn("profile cache write failed", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}
	return c.Profile, nil
}

// PreviewPrompt returns the instructions a generated version for audienceID would use.
func (s *CampaignService) PreviewPrompt(ctx context.Context, campaignID, audienceID string) (string, error) {
	if strings.TrimSpace(audienceID) == "" {
		return "", appErrors.NewValidation("profile", "must not be empty")
	}
	profile, err := s.CampaignProfile(ctx, campaignID)
	if err != nil {
		return "", err
	}
	return s.Compiler.CompileFor(profile, audienceID)
}
