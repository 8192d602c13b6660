package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/service"

	"github.com/rabbitmq/amqp091-go"
)

// Cache is the part of the graph service a consumer drives.
type Cache interface {
	EvictLocal(campaignID, branchID string)
	RefreshEntity(ctx context.Context, campaignID, branchID string, kind service.EntityKind, entityID string) error
}

// HandleMessage applies one invalidation to the local cache. Messages from
// origin itself are ignored.
func HandleMessage(ctx context.Context, cache Cache, origin string, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode invalidation: %w", err)
	}
	if msg.CampaignID == "" {
		return fmt.Errorf("invalidation without campaign id")
	}
	if msg.Origin == origin {
		return nil
	}

	if msg.EntityKind == "" || msg.EntityID == "" {
		cache.EvictLocal(msg.CampaignID, msg.BranchID)
		return nil
	}
	err := cache.RefreshEntity(ctx, msg.CampaignID, msg.BranchID, service.EntityKind(msg.EntityKind), msg.EntityID)
	if err != nil {
		logger.Warn("[Queue] Incremental refresh failed, graph evicted",
			"campaign_id", msg.CampaignID, "entity_kind", msg.EntityKind, "entity_id", msg.EntityID, "err", err)
	}
	return nil
}

// Consume binds an exclusive queue to the exchange and applies every
// invalidation until ctx is done or the channel closes.
func Consume(ctx context.Context, ch *amqp091.Channel, exchange, origin string, cache Cache) error {
	q, err := ch.QueueDeclare(
		"",
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare invalidation queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, BindingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind invalidation queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"graph-invalidation-"+origin,
		false, // autoAck
		true,  // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume invalidation queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("invalidation channel closed")
			}
			if err := HandleMessage(ctx, cache, origin, d.Body); err != nil {
				logger.Error("[Queue] Dropping invalid invalidation message", "err", err)
				if err := d.Nack(false, false); err != nil {
					logger.Error("[Queue] Failed to nack message", "err", err)
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				logger.Error("[Queue] Failed to ack message", "err", err)
			}
		}
	}
}
