// Package events fans document changes out to an organization's live
// subscribers over Redis pub/sub.
package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the Redis channel carrying one organization's events.
func Channel(orgID uuid.UUID) string {
	return "org:" + orgID.String() + ":documents"
}

// RedisPublisher publishes events as JSON. A failed publish is logged and
// dropped; the write that produced it has already committed.
type RedisPublisher struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewRedisPublisher(client redis.UniversalClient, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	// Detached from the request so a client hanging up right after the
	// write still gets its event out.
	ctx = context.WithoutCancel(ctx)
	if err := p.client.Publish(ctx, Channel(event.OrganizationID), payload).Err(); err != nil {
		p.logger.Warn("publish event",
			zap.String("type", string(event.Type)),
			zap.String("org_id", event.OrganizationID.String()),
			zap.Error(err),
		)
	}
}

// NopPublisher drops every event. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.Event) {}
