package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/campaignhq-backend/internal/errors"
	"github.com/unclebandit/campaignhq-backend/internal/queue"
)

// PublishWorker executes queued publish jobs. Provider failures are recorded by the
// dispatcher and acknowledged; only infrastructure errors go back to the queue.
type PublishWorker struct {
	Dispatcher *Dispatcher
	Logger     *zap.Logger
}

// Constructor
func NewPublishWorker(d *Dispatcher, log *zap.Logger) *PublishWorker {
	return &PublishWorker{Dispatcher: d, Logger: log}
}

// Start subscribes the worker to the publish topic.
func (w *PublishWorker) Start(q queue.Queue, topic string) error {
	if topic == "" {
		topic = DefaultPublishTopic
	}
	return q.Subscribe(topic, w.Handle)
}

// Handle processes one job payload as delivered by either queue backend.
func (w *PublishWorker) Handle(payload any) error {
	log := orNop(w.Logger)
	job, err := DecodePublishJob(payload)
	if err != nil {
		return queue.Permanent(err)
	}

	results, err := w.Dispatcher.PublishAll(context.Background(), job.Actor(), job.MessageID, job.Platforms, job.Settings)
	if err != nil {
		if errors.Is(err, ErrPublishNotRecorded) {
			log.Error("publish job sent but not recorded", zap.String("message_id", job.MessageID), zap.Error(err))
			return queue.Permanent(err)
		}
		if permanentJobError(err) {
			log.Warn("publish job rejected", zap.String("message_id", job.MessageID), zap.Error(err))
			return queue.Permanent(err)
		}
		return err
	}
	for _, r := range results {
		log.Info("publish job attempt",
			zap.String("message_id", r.MessageID),
			zap.String("platform", string(r.Platform)),
			zap.String("status", string(r.Status)))
	}
	return nil
}

func permanentJobError(err error) bool {
	for _, target := range []error{
		appErrors.ErrValidation,
		appErrors.ErrIllegalTransition,
		appErrors.ErrForbidden,
		appErrors.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// DecodePublishJob accepts a PublishJob value or its JSON encoding.
func DecodePublishJob(payload any) (PublishJob, error) {
	var raw []byte
	switch p := payload.(type) {
	case PublishJob:
		return p, nil
	case *PublishJob:
		if p == nil {
			return PublishJob{}, errors.New("nil publish job")
		}
		return *p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case string:
		raw = []byte(p)
	default:
		return PublishJob{}, fmt.Errorf("unexpected publish job payload %T", payload)
	}

	var job PublishJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return PublishJob{}, fmt.Errorf("decode publish job: %w", err)
	}
	if job.MessageID == "" {
		return PublishJob{}, errors.New("publish job without message id")
	}
	return job, nil
}
