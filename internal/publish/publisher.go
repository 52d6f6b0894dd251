package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"buildwatch/internal/config"
	"buildwatch/internal/logging"
	"buildwatch/internal/status"
)

const (
	keyPrefix      = "buildwatch:pipeline:"
	publishTimeout = 5 * time.Second
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Publisher writes status changes to Redis.
type Publisher struct {
	client  redisClient
	channel string
	logger  *slog.Logger
}

// New connects to the configured Redis server. It returns nil when no URL is
// configured.
func New(cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	raw := strings.TrimSpace(cfg.Redis.URL)
	if raw == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return newPublisher(redis.NewClient(opts), cfg.Redis.Channel, logger), nil
}

func newPublisher(client redisClient, channel string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		logger:  logging.NewComponentLogger(logger, "publisher"),
	}
}

// Publish sends one change and records it as the pipeline's latest event.
func (p *Publisher) Publish(ctx context.Context, change status.StatusChange) error {
	payload, err := json.Marshal(NewEvent(change))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	if err := p.client.Set(ctx, keyPrefix+change.Pipeline.ID, payload, 0).Err(); err != nil {
		return fmt.Errorf("store latest event: %w", err)
	}
	return nil
}

// Run publishes changes until ctx ends or the stream closes.
func (p *Publisher) Run(ctx context.Context, changes <-chan status.StatusChange) error {
	pingCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	if err := p.client.Ping(pingCtx).Err(); err != nil {
		logging.WarnWithContext(p.logger, "redis unreachable", "redis_ping_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "each change is still attempted"),
		)
	}
	cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if err := p.Publish(ctx, change); err != nil {
				logging.WarnWithContext(p.logger, "change not published", "redis_publish_failed",
					logging.Error(err),
					logging.String(logging.FieldPipelineID, change.Pipeline.ID),
					logging.String(logging.FieldChangeID, change.ID),
				)
				continue
			}
			p.logger.Debug("change published",
				logging.String(logging.FieldPipelineID, change.Pipeline.ID),
				logging.String(logging.FieldChangeID, change.ID),
			)
		}
	}
}

// Close releases the Redis connection pool.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
