package notify

import (
	"context"
	"fmt"

	"referral-earnings-go/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSink publishes events on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects using a redis:// URL and verifies the connection.
func NewRedisSink(ctx context.Context, cfg models.RedisConfig) (*RedisSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis sink requires a URL")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = EventName
	}
	zap.L().Info("Redis sink connected", zap.String("addr", opts.Addr), zap.String("channel", channel))
	return NewRedisSinkWithClient(client, channel), nil
}

func NewRedisSinkWithClient(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, event models.EarningsEvent) error {
	payload, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
