package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/config"
)

// publishTimeout bounds every backend write so a slow broker never stalls a transition.
const publishTimeout = 2 * time.Second

// Event describes one lifecycle change of a message.
type Event struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"messageId"`
	CampaignID string    `json:"campaignId"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	ActorID    string    `json:"actorId,omitempty"`
	Platform   string    `json:"platform,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher fans lifecycle events out to an external bus.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NewFromConfig builds the configured backend. Unknown or incomplete settings fall
// back to noop with a warning.
func NewFromConfig(cfg config.EventsConfig, log *zap.Logger) Publisher {
	switch cfg.Backend {
	case "kafka":
		brokers := cfg.Brokers()
		if len(brokers) == 0 {
			log.Warn("kafka events requested without brokers; using noop")
			return Noop{}
		}
		log.Info("kafka event publisher enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
		return NewKafka(brokers, cfg.KafkaTopic)
	case "redis":
		p, err := NewRedis(cfg.RedisURL, cfg.RedisStream, cfg.RedisMaxLen)
		if err != nil {
			log.Warn("redis events disabled", zap.Error(err))
			return Noop{}
		}
		log.Info("redis stream event publisher enabled", zap.String("stream", cfg.RedisStream))
		return p
	default:
		return Noop{}
	}
}

func encode(evt Event) []byte {
	b, _ := json.Marshal(evt)
	return b
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps events in memory; used by tests and the dev server.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
