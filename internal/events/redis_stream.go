package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStreamPublisher appends events to a Redis stream with fields type, data and timestamp.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewRedisStreamPublisher maxLen <= 0 disables trimming.
func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type":      string(event.Type),
			"data":      string(data),
			"timestamp": event.OccurredAt.Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}

	p.logger.Debug("Event published to stream",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("type", string(event.Type)),
	)
	return nil
}
