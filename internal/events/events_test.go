package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/unclebandit/campaignhq-backend/internal/config"
)

func TestNewFromConfigFallsBackToNoop(t *testing.T) {
	log := zap.NewNop()

	assert.IsType(t, Noop{}, NewFromConfig(config.EventsConfig{Backend: "noop"}, log))
	assert.IsType(t, Noop{}, NewFromConfig(config.EventsConfig{Backend: "kafka", KafkaBrokers: " , "}, log))
	assert.IsType(t, Noop{}, NewFromConfig(config.EventsConfig{Backend: "redis", RedisURL: "://bad"}, log))

	p := NewFromConfig(config.EventsConfig{Backend: "kafka", KafkaBrokers: "localhost:9092"}, log)
	assert.IsType(t, &kafkaPublisher{}, p)
	assert.NoError(t, p.Close())
}

func TestRecorderKeepsOrder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	assert.NoError(t, r.Publish(ctx, Event{Type: "submitted", MessageID: "m1"}))
	assert.NoError(t, r.Publish(ctx, Event{Type: "approved", MessageID: "m1"}))

	got := r.Events()
	assert.Len(t, got, 2)
	assert.Equal(t, "approved", got[1].Type)
}
