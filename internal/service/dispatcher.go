package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/authz"
	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/events"
	"github.com/unclebandit/campaignhq-backend/internal/lifecycle"
	"github.com/unclebandit/campaignhq-backend/internal/model"
	"github.com/unclebandit/campaignhq-backend/internal/provider"
	"github.com/unclebandit/campaignhq-backend/internal/queue"
	"github.com/unclebandit/campaignhq-backend/internal/repository"
)

const (
	DefaultProviderTimeout = 15 * time.Second
	DefaultPublishTopic    = "message_publish"
	schedulerActorID       = "scheduler"

	// providerGrace bounds how long an attempt waits for a provider to report back
	// once its context is done.
	providerGrace = 250 * time.Millisecond
)

// ErrPublishNotRecorded marks a publish the provider accepted whose state change could
// not be saved. The SUCCESS history row is the record; the send must not be repeated.
var ErrPublishNotRecorded = errors.New("publish accepted but message state not saved")

// PublishSettings are the per-call options handed to the provider.
type PublishSettings struct {
	Recipients     []string          `json:"recipients,omitempty"`
	Subject        string            `json:"subject,omitempty"`
	VersionProfile string            `json:"versionProfile,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// PublishResult is the outcome of one attempt against one platform.
type PublishResult struct {
	MessageID   string              `json:"messageId"`
	Platform    model.Platform      `json:"platform"`
	Status      model.PublishStatus `json:"status"`
	ExternalID  string              `json:"externalId,omitempty"`
	Error       string              `json:"error,omitempty"`
	PublishedAt *time.Time          `json:"publishedAt,omitempty"`
}

// PublishJob is the queued form of a publish request.
type PublishJob struct {
	MessageID string           `json:"messageId"`
	Platforms []model.Platform `json:"platforms"`
	Settings  PublishSettings  `json:"settings"`
	ActorID   string           `json:"actorId"`
	ActorRole model.Role       `json:"actorRole"`
}

func (j PublishJob) Actor() model.Actor {
	return model.Actor{ID: j.ActorID, Role: j.ActorRole}
}

// DueReport summarizes one PublishDue sweep.
type DueReport struct {
	Due       int `json:"due"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Dispatcher hands approved messages to platform providers. A provider failure is
// recorded as a FAILED history row and never changes the message state.
type Dispatcher struct {
	Repo         repository.MessageRepositoryInterface
	Providers    *provider.Registry
	Authz        *authz.Authorizer
	Machine      *lifecycle.Machine
	Events       events.Publisher
	Queue        queue.Queue
	Topic        string
	Timeout      time.Duration
	DueBatchSize int
	Logger       *zap.Logger

	metricsOnce sync.Once
	attempts    metric.Int64Counter
}

func (d *Dispatcher) machine() *lifecycle.Machine {
	if d.Machine == nil {
		return lifecycle.New()
	}
	return d.Machine
}

func (d *Dispatcher) now() time.Time {
	if d.Machine == nil || d.Machine.Now == nil {
		return time.Now().UTC()
	}
	return d.Machine.Now().UTC()
}

func (d *Dispatcher) timeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultProviderTimeout
	}
	return d.Timeout
}

func (d *Dispatcher) topic() string {
	if d.Topic == "" {
		return DefaultPublishTopic
	}
	return d.Topic
}

func (d *Dispatcher) countAttempt(ctx context.Context, platform model.Platform, status model.PublishStatus) {
	d.metricsOnce.Do(func() {
		c, err := otel.Meter("campaignhq/dispatcher").Int64Counter("campaignhq.publish.attempts",
			metric.WithDescription("Provider publish attempts by platform and outcome"))
		if err != nil {
			orNop(d.Logger).Warn("publish counter unavailable", zap.Error(err))
			return
		}
		d.attempts = c
	})
	if d.attempts == nil {
		return
	}
	d.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", string(platform)),
		attribute.String("status", string(status)),
	))
}

// Publish sends the message to one platform.
func (d *Dispatcher) Publish(ctx context.Context, actor model.Actor, messageID string, platform model.Platform, settings PublishSettings) (*PublishResult, error) {
	results, err := d.PublishAll(ctx, actor, messageID, []model.Platform{platform}, settings)
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// PublishAll makes one attempt per platform and records one history row for each.
// The message becomes PUBLISHED when at least one platform accepted it.
func (d *Dispatcher) PublishAll(ctx context.Context, actor model.Actor, messageID string, platforms []model.Platform, settings PublishSettings) ([]PublishResult, error) {
	if err := checkActor(d.Authz, actor, authz.ActPublish); err != nil {
		return nil, err
	}
	msg, err := d.Repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return d.publish(ctx, actor, msg, platforms, settings)
}

func (d *Dispatcher) publish(ctx context.Context, actor model.Actor, msg *model.Message, platforms []model.Platform, settings PublishSettings) ([]PublishResult, error) {
	platforms = dedupePlatforms(platforms)
	if len(platforms) == 0 {
		return nil, appErrors.NewValidation("platforms", "at least one platform is required")
	}
	for _, p := range platforms {
		if !p.Valid() {
			return nil, appErrors.NewValidation("platform", fmt.Sprintf("unknown platform %q", p))
		}
	}
	if err := lifecycle.CheckPublishable(msg); err != nil {
		return nil, err
	}
	content, err := d.resolveContent(ctx, msg, settings.VersionProfile)
	if err != nil {
		return nil, err
	}

	rows := make([]model.PublishHistory, 0, len(platforms))
	succeeded := false
	for _, p := range platforms {
		row := d.attempt(ctx, msg, p, content, settings, actor)
		if row.Status == model.PublishSuccess {
			succeeded = true
		}
		rows = append(rows, row)
	}

	// the providers have been called; outcomes are persisted even if the caller went away
	ctx = context.WithoutCancel(ctx)
	from := msg.State
	if succeeded {
		tr, err := d.machine().MarkPublished(msg, d.now())
		if err != nil {
			return nil, err
		}
		msg.State = tr.To
		if err := d.Repo.SaveTransition(ctx, msg, nil, rows); err != nil {
			if aerr := d.Repo.AppendPublishHistory(ctx, rows...); aerr != nil {
				orNop(d.Logger).Error("publish history lost", zap.String("message_id", msg.ID), zap.Error(aerr))
			}
			orNop(d.Logger).Error("published message state not saved", zap.String("message_id", msg.ID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPublishNotRecorded, err)
		}
		orNop(d.Logger).Info("message transitioned",
			zap.String("message_id", msg.ID),
			zap.String("from", string(from.Status())),
			zap.String("to", string(msg.Status())),
			zap.String("actor_id", actor.ID))
		publishEvent(ctx, d.Events, d.Logger, "message.publish", msg, from, actor, platforms[0])
	} else {
		if err := d.Repo.AppendPublishHistory(ctx, rows...); err != nil {
			return nil, err
		}
		publishEvent(ctx, d.Events, d.Logger, "message.publish_failed", msg, from, actor, platforms[0])
	}

	results := make([]PublishResult, len(rows))
	for i, row := range rows {
		results[i] = PublishResult{
			MessageID:   row.MessageID,
			Platform:    row.Platform,
			Status:      row.Status,
			ExternalID:  row.ExternalID,
			Error:       row.Error,
			PublishedAt: row.PublishedAt,
		}
	}
	return results, nil
}

func (d *Dispatcher) resolveContent(ctx context.Context, msg *model.Message, versionProfile string) (string, error) {
	if versionProfile == "" {
		return msg.Content, nil
	}
	versions, err := d.Repo.ListVersions(ctx, msg.ID)
	if err != nil {
		return "", err
	}
	// latest version for the profile wins
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].VersionProfile == versionProfile {
			return versions[i].Content, nil
		}
	}
	return "", appErrors.NewValidation("versionProfile", fmt.Sprintf("message has no %q version", versionProfile))
}

type sendOutcome struct {
	res provider.SendResult
	err error
}

// attempt performs one bounded provider call and turns its outcome into a history row.
func (d *Dispatcher) attempt(ctx context.Context, msg *model.Message, platform model.Platform, content string, settings PublishSettings, actor model.Actor) (row model.PublishHistory) {
	row = model.PublishHistory{
		MessageID:   msg.ID,
		Platform:    platform,
		Status:      model.PublishFailed,
		AttemptedBy: actor.ID,
	}
	defer func() {
		row.CreatedAt = d.now()
		d.countAttempt(ctx, platform, row.Status)
		if row.Status == model.PublishFailed {
			orNop(d.Logger).Warn("publish attempt failed",
				zap.String("message_id", msg.ID),
				zap.String("platform", string(platform)),
				zap.String("reason", row.Error))
		}
	}()

	var prov provider.Provider
	if d.Providers != nil {
		prov, _ = d.Providers.For(msg.CampaignID, platform)
	}
	if prov == nil {
		row.Error = fmt.Sprintf("no provider configured for %s", platform)
		return row
	}

	subject := settings.Subject
	if subject == "" {
		subject = msg.Title
	}
	req := provider.SendRequest{
		Recipients: settings.Recipients,
		Subject:    subject,
		Content:    content,
		Metadata:   settings.Metadata,
	}

	timeout := d.timeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan sendOutcome, 1)
	go func() {
		res, err := prov.Send(callCtx, req)
		done <- sendOutcome{res: res, err: err}
	}()

	var out sendOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		// an answer that arrives with the deadline still counts
		select {
		case out = <-done:
		case <-time.After(providerGrace):
			out.err = callCtx.Err()
		}
	}

	switch {
	case out.err != nil && ctx.Err() != nil:
		row.Error = fmt.Sprintf("publish aborted: %v", ctx.Err())
	case errors.Is(out.err, context.DeadlineExceeded):
		row.Error = fmt.Sprintf("provider timeout after %s", timeout)
	case out.err != nil:
		row.Error = out.err.Error()
	case out.res.Status != provider.StatusSent:
		row.Error = out.res.Error
		if row.Error == "" {
			row.Error = "provider reported failure"
		}
	default:
		at := d.now()
		row.Status = model.PublishSuccess
		row.ExternalID = out.res.ID
		row.PublishedAt = &at
	}
	return row
}

// PublishDue publishes SCHEDULED messages whose time has come. Each gets a single
// attempt on its own platform; failures stay SCHEDULED for the next sweep.
func (d *Dispatcher) PublishDue(ctx context.Context, at time.Time) (*DueReport, error) {
	due, err := d.Repo.ListDueScheduled(ctx, at, d.DueBatchSize)
	if err != nil {
		return nil, err
	}
	report := &DueReport{Due: len(due)}
	actor := model.Actor{ID: schedulerActorID, Role: model.RoleOwner}
	for _, msg := range due {
		results, err := d.publish(ctx, actor, msg, []model.Platform{msg.Platform}, PublishSettings{})
		if err != nil {
			report.Failed++
			orNop(d.Logger).Warn("scheduled publish skipped", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		if results[0].Status == model.PublishSuccess {
			report.Published++
		} else {
			report.Failed++
		}
	}
	orNop(d.Logger).Info("due messages processed",
		zap.Int("due", report.Due),
		zap.Int("published", report.Published),
		zap.Int("failed", report.Failed))
	return report, nil
}

// Enqueue hands a publish request to the worker queue after the same checks Publish makes.
func (d *Dispatcher) Enqueue(ctx context.Context, actor model.Actor, job PublishJob) error {
	if err := checkActor(d.Authz, actor, authz.ActPublish); err != nil {
		return err
	}
	if d.Queue == nil {
		return errors.New("no publish queue configured")
	}
	if len(job.Platforms) == 0 {
		return appErrors.NewValidation("platforms", "at least one platform is required")
	}
	msg, err := d.Repo.GetByID(ctx, job.MessageID)
	if err != nil {
		return err
	}
	if err := lifecycle.CheckPublishable(msg); err != nil {
		return err
	}
	job.ActorID, job.ActorRole = actor.ID, actor.Role
	if err := d.Queue.Publish(d.topic(), job); err != nil {
		return fmt.Errorf("enqueue publish job: %w", err)
	}
	orNop(d.Logger).Info("publish job queued", zap.String("message_id", job.MessageID), zap.String("actor_id", actor.ID))
	return nil
}

func dedupePlatforms(in []model.Platform) []model.Platform {
	seen := make(map[model.Platform]bool, len(in))
	out := make([]model.Platform, 0, len(in))
	for _, p := range in {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
