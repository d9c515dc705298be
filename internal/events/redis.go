package events

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

type redisPublisher struct {
	cli    *redis.Client
	stream string
	maxLen int64
}

// NewRedis publishes to a Redis stream, trimmed approximately to maxLen entries.
func NewRedis(url, stream string, maxLen int64) (Publisher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	return NewRedisWithClient(redis.NewClient(opt), stream, maxLen), nil
}

func NewRedisWithClient(cli *redis.Client, stream string, maxLen int64) Publisher {
	if stream == "" {
		stream = "message-lifecycle"
	}
	return &redisPublisher{cli: cli, stream: stream, maxLen: maxLen}
}

func (p *redisPublisher) Publish(ctx context.Context, evt Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// single 'data' field keeps the stream schema-free
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"type": evt.Type, "message_id": evt.MessageID, "data": string(encode(evt))},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return p.cli.XAdd(ctx, args).Err()
}

func (p *redisPublisher) Close() error {
	return p.cli.Close()
}
