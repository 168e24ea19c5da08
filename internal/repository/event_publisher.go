package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
)

// EventPublisher fans grievance lifecycle events out on a Redis pub/sub
// channel for notification consumers (email, push) living outside this
// service.
type EventPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewEventPublisher constructs a publisher. A nil client turns Publish into a no-op.
func NewEventPublisher(client *redis.Client, channel string, logger *zap.Logger) *EventPublisher {
	if channel == "" {
		channel = "grievances.events"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{client: client, channel: channel, logger: logger}
}

// Publish serialises the event and publishes it, returning the number of
// subscribers that received it.
func (p *EventPublisher) Publish(ctx context.Context, event models.GrievanceEvent) (int64, error) {
	if p.client == nil {
		return 0, nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal grievance event: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	if receivers == 0 {
		p.logger.Debug("grievance event had no subscribers", zap.String("channel", p.channel), zap.String("type", string(event.Type)))
	}
	return receivers, nil
}

// Channel reports the channel events are published on.
func (p *EventPublisher) Channel() string {
	return p.channel
}

// Close releases the underlying Redis connection if present.
func (p *EventPublisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
