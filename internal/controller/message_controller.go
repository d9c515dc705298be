package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/service"
)

// MessageController exposes authoring, review, versions and publishing.
type MessageController struct {
	Messages   *service.MessageService
	Dispatcher *service.Dispatcher
	Logger     *zap.Logger
}

func (c *MessageController) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var in service.CreateMessageInput
	if err := decode(r, &in); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	in.CampaignID = chi.URLParam(r, "id")

	msg, err := c.Messages.CreateMessage(r.Context(), actorFrom(r), in)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (c *MessageController) ListMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	messages, pagination, err := c.Messages.ListMessages(r.Context(),
		chi.URLParam(r, "id"),
		model.MessageStatus(q.Get("status")),
		model.Platform(q.Get("platform")),
		queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       messages,
		"pagination": pagination,
	})
}

func (c *MessageController) GetMessage(w http.ResponseWriter, r *http.Request) {
	details, err := c.Messages.GetMessage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// UpdateMessage applies a content edit, a tier change, or both.
func (c *MessageController) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		service.UpdateMessageInput
		ApprovalTier *model.ApprovalTier `json:"approvalTier"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	id, actor := chi.URLParam(r, "id"), actorFrom(r)
	editing := body.Title != nil || body.Content != nil
	if !editing && body.ApprovalTier == nil {
		writeError(w, c.Logger, appErrors.NewValidation("body", "nothing to update"))
		return
	}

	var (
		msg *model.Message
		err error
	)
	if editing {
		if msg, err = c.Messages.UpdateContent(r.Context(), actor, id, body.UpdateMessageInput); err != nil {
			writeError(w, c.Logger, err)
			return
		}
	}
	if body.ApprovalTier != nil {
		if msg, err = c.Messages.SetApprovalTier(r.Context(), actor, id, *body.ApprovalTier); err != nil {
			writeError(w, c.Logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, msg)
}

func (c *MessageController) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := c.Messages.DeleteDraft(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewBody struct {
	Comments string `json:"comments"`
}

// transition adapts a lifecycle call that takes no request body.
func (c *MessageController) transition(fn func(ctx context.Context, actor model.Actor, id string) (*model.Message, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := fn(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, c.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// review adapts a lifecycle call that carries reviewer comments.
func (c *MessageController) review(fn func(ctx context.Context, actor model.Actor, id, comments string) (*model.Message, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body reviewBody
		if err := decode(r, &body); err != nil {
			writeError(w, c.Logger, err)
			return
		}
		msg, err := fn(r.Context(), actorFrom(r), chi.URLParam(r, "id"), body.Comments)
		if err != nil {
			writeError(w, c.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func (c *MessageController) Submit() http.HandlerFunc {
	return c.transition(c.Messages.Submit)
}

func (c *MessageController) Resubmit() http.HandlerFunc {
	return c.transition(c.Messages.Resubmit)
}

func (c *MessageController) Archive() http.HandlerFunc {
	return c.transition(c.Messages.Archive)
}

func (c *MessageController) Approve() http.HandlerFunc {
	return c.review(c.Messages.Approve)
}

func (c *MessageController) Reject() http.HandlerFunc {
	return c.review(c.Messages.Reject)
}

func (c *MessageController) RequestChanges() http.HandlerFunc {
	return c.review(c.Messages.RequestChanges)
}

func (c *MessageController) Schedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ScheduledFor *time.Time `json:"scheduledFor"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	if body.ScheduledFor == nil {
		writeError(w, c.Logger, appErrors.NewValidation("scheduledFor", "is required"))
		return
	}

	msg, err := c.Messages.Schedule(r.Context(), actorFrom(r), chi.URLParam(r, "id"), *body.ScheduledFor)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// Publish sends the message now, or queues it for the worker when ?async=true.
func (c *MessageController) Publish(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Platform  model.Platform   `json:"platform"`
		Platforms []model.Platform `json:"platforms"`
		service.PublishSettings
	}
	if err := decode(r, &body); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	platforms := body.Platforms
	if body.Platform != "" {
		platforms = append(platforms, body.Platform)
	}
	id, actor := chi.URLParam(r, "id"), actorFrom(r)

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		job := service.PublishJob{MessageID: id, Platforms: platforms, Settings: body.PublishSettings}
		if err := c.Dispatcher.Enqueue(r.Context(), actor, job); err != nil {
			writeError(w, c.Logger, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"message_id": id,
			"platforms":  platforms,
			"status":     "queued",
		})
		return
	}

	results, err := c.Dispatcher.PublishAll(r.Context(), actor, id, platforms, body.PublishSettings)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": results})
}

func (c *MessageController) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := c.Messages.ListVersions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": versions})
}

type versionBody struct {
	VersionProfile string `json:"versionProfile"`
	Content        string `json:"content"`
}

func (c *MessageController) AddVersion(w http.ResponseWriter, r *http.Request) {
	var body versionBody
	if err := decode(r, &body); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	v, err := c.Messages.AddVersion(r.Context(), actorFrom(r), chi.URLParam(r, "id"), body.VersionProfile, body.Content)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (c *MessageController) GenerateVersion(w http.ResponseWriter, r *http.Request) {
	var body versionBody
	if err := decode(r, &body); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	v, err := c.Messages.GenerateVersion(r.Context(), actorFrom(r), chi.URLParam(r, "id"), body.VersionProfile)
	if err != nil {
		writeError(w, c.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

type bulkBody struct {
	IDs      []string `json:"ids"`
	Comments string   `json:"comments"`
}

// Bulk runs one review action over a list of ids. Per-item failures are reported in
// the body; the request itself still succeeds.
func (c *MessageController) Bulk(w http.ResponseWriter, r *http.Request) {
	var body bulkBody
	if err := decode(r, &body); err != nil {
		writeError(w, c.Logger, err)
		return
	}
	ctx, actor := r.Context(), actorFrom(r)

	var res *service.BulkResult
	switch action := chi.URLParam(r, "action"); action {
	case "approve":
		res = c.Messages.BulkApprove(ctx, actor, body.IDs, body.Comments)
	case "reject":
		res = c.Messages.BulkReject(ctx, actor, body.IDs, body.Comments)
	case "archive":
		res = c.Messages.BulkArchive(ctx, actor, body.IDs)
	case "submit":
		res = c.Messages.BulkSubmit(ctx, actor, body.IDs)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown bulk action " + strconv.Quote(action)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}
