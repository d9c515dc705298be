package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/authz"
	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/events"
	"github.com/unclebandit/campaignhq-backend/internal/generation"
	"github.com/unclebandit/campaignhq-backend/internal/lifecycle"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/prompt"
	"github.com/unclebandit/campaignhq-backend/internal/repository"
)

// MessageService owns the message lifecycle: authoring, review and versions.
// Publishing lives in Dispatcher.
type MessageService struct {
	Repo            repository.MessageRepositoryInterface
	Campaigns       ProfileSupplier
	Authz           *authz.Authorizer
	Machine         *lifecycle.Machine
	Compiler        *prompt.Compiler
	Generator       generation.Generator
	Events          events.Publisher
	Logger          *zap.Logger
	BulkConcurrency int
}

type CreateMessageInput struct {
	CampaignID   string              `json:"campaignId"`
	Title        string              `json:"title"`
	Content      string              `json:"content"`
	Platform     model.Platform      `json:"platform"`
	ApprovalTier *model.ApprovalTier `json:"approvalTier,omitempty"`
}

// UpdateMessageInput carries a partial edit. A non-zero Revision must match the stored one.
type UpdateMessageInput struct {
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
	Revision int     `json:"revision,omitempty"`
}

// MessageDetails is a message together with its logs.
type MessageDetails struct {
	Message   *model.Message         `json:"message"`
	Versions  []model.Version        `json:"versions"`
	Approvals []model.Approval       `json:"approvals"`
	History   []model.PublishHistory `json:"publishHistory"`
}

func checkActor(a *authz.Authorizer, actor model.Actor, act authz.Action) error {
	if a == nil {
		return fmt.Errorf("no authorizer configured: %w", appErrors.ErrForbidden)
	}
	return a.Check(actor, act)
}

func (s *MessageService) machine() *lifecycle.Machine {
	if s.Machine == nil {
		return lifecycle.New()
	}
	return s.Machine
}

func (s *MessageService) CreateMessage(ctx context.Context, actor model.Actor, in CreateMessageInput) (*model.Message, error) {
	if err := checkActor(s.Authz, actor, authz.ActCreate); err != nil {
		return nil, err
	}
	if !in.Platform.Valid() {
		return nil, appErrors.NewValidation("platform", fmt.Sprintf("unknown platform %q", in.Platform))
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, appErrors.NewValidation("title", "must not be empty")
	}
	if in.ApprovalTier != nil && !in.ApprovalTier.Valid() {
		return nil, appErrors.NewValidation("approvalTier", fmt.Sprintf("unknown tier %q", *in.ApprovalTier))
	}
	if _, err := s.Campaigns.CampaignProfile(ctx, in.CampaignID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		CampaignID:   in.CampaignID,
		AuthorID:     actor.ID,
		Title:        strings.TrimSpace(in.Title),
		Content:      in.Content,
		Platform:     in.Platform,
		ApprovalTier: in.ApprovalTier,
		State:        model.Draft{},
	}
	if err := s.Repo.Create(ctx, msg); err != nil {
		return nil, err
	}
	orNop(s.Logger).Info("message created",
		zap.String("message_id", msg.ID),
		zap.String("campaign_id", msg.CampaignID),
		zap.String("actor_id", actor.ID))
	s.emit(ctx, "message.created", msg, nil, actor)
	return msg, nil
}

func (s *MessageService) GetMessage(ctx context.Context, id string) (*MessageDetails, error) {
	msg, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.Repo.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	approvals, err := s.Repo.ListApprovals(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.Repo.ListPublishHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return &MessageDetails{Message: msg, Versions: versions, Approvals: approvals, History: history}, nil
}

func (s *MessageService) ListMessages(ctx context.Context, campaignID string, status model.MessageStatus, platform model.Platform, page, pageSize int) ([]*model.Message, map[string]int, error) {
	if platform != "" && !platform.Valid() {
		return nil, nil, appErrors.NewValidation("platform", fmt.Sprintf("unknown platform %q", platform))
	}
	page, pageSize, offset := clampPage(page, pageSize)
	messages, total, err := s.Repo.List(ctx, repository.MessageFilter{
		CampaignID: campaignID,
		Status:     status,
		Platform:   platform,
		Offset:     offset,
		Limit:      pageSize,
	})
	if err != nil {
		return nil, nil, err
	}
	return messages, paginationMeta(page, pageSize, total), nil
}

// UpdateContent edits a message that is still with its author (DRAFT or CHANGES_REQUESTED).
func (s *MessageService) UpdateContent(ctx context.Context, actor model.Actor, id string, in UpdateMessageInput) (*model.Message, error) {
	if err := checkActor(s.Authz, actor, authz.ActEdit); err != nil {
		return nil, err
	}
	msg, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch msg.State.(type) {
	case model.Draft, model.ChangesRequested:
	default:
		return nil, appErrors.NewIllegalTransition(string(msg.Status()), "edit")
	}
	if in.Revision != 0 && in.Revision != msg.Revision {
		return nil, fmt.Errorf("message %s is at revision %d: %w", id, msg.Revision, appErrors.ErrConflict)
	}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, appErrors.NewValidation("title", "must not be empty")
		}
		msg.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		msg.Content = *in.Content
	}
	if err := s.Repo.UpdateContent(ctx, msg); err != nil {
		return nil, err
	}
	orNop(s.Logger).Info("message edited", zap.String("message_id", id), zap.String("actor_id", actor.ID))
	return msg, nil
}

// SetApprovalTier attaches the externally computed risk tier.
func (s *MessageService) SetApprovalTier(ctx context.Context, actor model.Actor, id string, tier model.ApprovalTier) (*model.Message, error) {
	if err := checkActor(s.Authz, actor, authz.ActEdit); err != nil {
		return nil, err
	}
	if !tier.Valid() {
		return nil, appErrors.NewValidation("approvalTier", fmt.Sprintf("unknown tier %q", tier))
	}
	msg, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Status().Terminal() {
		return nil, appErrors.NewIllegalTransition(string(msg.Status()), "set-tier")
	}
	msg.ApprovalTier = &tier
	if err := s.Repo.UpdateContent(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteDraft removes a message that never entered review.
func (s *MessageService) DeleteDraft(ctx context.Context, actor model.Actor, id string) error {
	msg, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.Authz == nil {
		return checkActor(nil, actor, authz.ActDeleteAny)
	}
	if err := s.Authz.CanDeleteDraft(actor, msg.AuthorID); err != nil {
		return err
	}
	if _, ok := msg.State.(model.Draft); !ok {
		return appErrors.NewIllegalTransition(string(msg.Status()), "delete")
	}
	if err := s.Repo.Delete(ctx, msg); err != nil {
		return err
	}
	orNop(s.Logger).Info("draft deleted", zap.String("message_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (s *MessageService) Submit(ctx context.Context, actor model.Actor, id string) (*model.Message, error) {
	return s.transition(ctx, actor, id, authz.ActSubmit, func(msg *model.Message) (*lifecycle.Transition, error) {
		return s.machine().Submit(msg, actor)
	})
}

func (s *MessageService) Approve(ctx context.Context, actor model.Actor, id, comments string) (*model.Message, error) {
	return s.transition(ctx, actor, id, authz.ActApprove, func(msg *model.Message) (*lifecycle.Transition, error) {
		return s.machine().Approve(msg, actor, comments)
	})
}

func (s *MessageService) Reject(ctx context.Context, actor model.Actor, id, comments string) (*model.Message, error) {
	return s.transition(ctx, actor, id, authz.ActReject, func(msg *model.Message) (*lifecycle.Transition, error) {
		return s.machine().Reject(msg, actor, comments)
	})
}

func (s *MessageService) RequestChanges(ctx context.Context, actor model.Actor, id, comments string) (*model.Message, error) {
	return s.transition(ctx, actor, id, authz.ActRequestChanges, func(msg *model.Message) (*lifecycle.Transition, error) {
		return s.machine().RequestChanges(msg, actor, comments)
	})
}

func (s *MessageService) Resubmit(ctx context.Context, actor model.Actor, id string) (*model.Message, error) {
	return s.transition(ctx, actor, id, authz.ActResubmit, func(msg *model.Message) (*lifecycle.Transition, error) {
		return s.machine().Resubmit(msg, actor)
	})
}

func (s *MessageService) Schedule(ctx context.Context, actor model.Actor, id string, at time.Time) (*model.Message, error) {
	return s.transition(ctx, actor, id, authz.ActSchedule, func(msg *model.Message) (*lifecycle.Transition, error) {
		return s.machine().Schedule(msg, at)
	})
}

func (s *MessageService) Archive(ctx context.Context, actor model.Actor, id string) (*model.Message, error) {
	return s.transition(ctx, actor, id, authz.ActArchive, func(msg *model.Message) (*lifecycle.Transition, error) {
		return s.machine().Archive(msg)
	})
}

// transition loads the message, applies one lifecycle step and persists the new state
// and its approval row in a single revision-guarded write.
func (s *MessageService) transition(ctx context.Context, actor model.Actor, id string, act authz.Action, apply func(*model.Message) (*lifecycle.Transition, error)) (*model.Message, error) {
	if err := checkActor(s.Authz, actor, act); err != nil {
		return nil, err
	}
	msg, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := apply(msg)
	if err != nil {
		return nil, err
	}

	msg.State = tr.To
	if err := s.Repo.SaveTransition(ctx, msg, tr.Approval, nil); err != nil {
		return nil, err
	}

	orNop(s.Logger).Info("message transitioned",
		zap.String("message_id", msg.ID),
		zap.String("from", string(tr.From.Status())),
		zap.String("to", string(tr.To.Status())),
		zap.String("actor_id", actor.ID))
	s.emit(ctx, "message."+string(tr.Action), msg, tr.From, actor)
	return msg, nil
}

func (s *MessageService) emit(ctx context.Context, typ string, msg *model.Message, from model.MessageState, actor model.Actor) {
	publishEvent(ctx, s.Events, s.Logger, typ, msg, from, actor, "")
}

// publishEvent never fails the caller; a lost event is only logged.
func publishEvent(ctx context.Context, pub events.Publisher, log *zap.Logger, typ string, msg *model.Message, from model.MessageState, actor model.Actor, platform model.Platform) {
	if pub == nil {
		return
	}
	evt := events.Event{
		Type:       typ,
		MessageID:  msg.ID,
		CampaignID: msg.CampaignID,
		To:         string(msg.Status()),
		ActorID:    actor.ID,
		Platform:   string(platform),
		At:         time.Now().UTC(),
	}
	if from != nil {
		evt.From = string(from.Status())
	}
	if err := pub.Publish(ctx, evt); err != nil {
		orNop(log).Warn("lifecycle event not delivered", zap.String("type", typ), zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// GenerateVersion asks the generator for an audience-adapted rewrite and stores it.
// A generator failure returns ErrGeneration and leaves the message untouched.
func (s *MessageService) GenerateVersion(ctx context.Context, actor model.Actor, messageID, audienceID string) (*model.Version, error) {
	if err := checkActor(s.Authz, actor, authz.ActVersion); err != nil {
		return nil, err
	}
	msg, err := s.versionable(ctx, messageID)
	if err != nil {
		return nil, err
	}
	profile, err := s.Campaigns.CampaignProfile(ctx, msg.CampaignID)
	if err != nil {
		return nil, err
	}
	instructions, err := s.Compiler.CompileFor(profile, audienceID)
	if err != nil {
		return nil, err
	}
	if s.Generator == nil {
		return nil, fmt.Errorf("no generator configured: %w", appErrors.ErrGeneration)
	}

	content, err := s.Generator.Generate(ctx, instructions, msg.Content)
	if err == nil && strings.TrimSpace(content) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		orNop(s.Logger).Warn("version generation failed",
			zap.String("message_id", messageID),
			zap.String("profile", audienceID),
			zap.Error(err))
		if !errors.Is(err, appErrors.ErrGeneration) {
			err = fmt.Errorf("%w: %v", appErrors.ErrGeneration, err)
		}
		return nil, err
	}
	return s.storeVersion(ctx, actor, messageID, audienceID, content)
}

// AddVersion stores caller-supplied content for an audience.
func (s *MessageService) AddVersion(ctx context.Context, actor model.Actor, messageID, audienceID, content string) (*model.Version, error) {
	if err := checkActor(s.Authz, actor, authz.ActVersion); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, appErrors.NewValidation("content", "must not be empty")
	}
	if s.Compiler != nil && s.Compiler.Registry != nil {
		if _, ok := s.Compiler.Registry.Get(audienceID); !ok {
			return nil, appErrors.NewValidation("versionProfile", fmt.Sprintf("unknown audience profile %q", audienceID))
		}
	}
	if _, err := s.versionable(ctx, messageID); err != nil {
		return nil, err
	}
	return s.storeVersion(ctx, actor, messageID, audienceID, content)
}

func (s *MessageService) ListVersions(ctx context.Context, messageID string) ([]model.Version, error) {
	if _, err := s.Repo.GetByID(ctx, messageID); err != nil {
		return nil, err
	}
	return s.Repo.ListVersions(ctx, messageID)
}

func (s *MessageService) versionable(ctx context.Context, messageID string) (*model.Message, error) {
	msg, err := s.Repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, ok := msg.State.(model.Archived); ok {
		return nil, appErrors.NewIllegalTransition(string(msg.Status()), "add-version")
	}
	return msg, nil
}

func (s *MessageService) storeVersion(ctx context.Context, actor model.Actor, messageID, audienceID, content string) (*model.Version, error) {
	v := &model.Version{
		MessageID:      messageID,
		VersionProfile: audienceID,
		Content:        content,
		CreatedBy:      actor.ID,
	}
	if err := s.Repo.AddVersion(ctx, v); err != nil {
		return nil, err
	}
	orNop(s.Logger).Info("version added",
		zap.String("message_id", messageID),
		zap.String("profile", audienceID),
		zap.String("actor_id", actor.ID))
	return v, nil
}
