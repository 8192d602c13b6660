package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/OFFIS-RIT/rulegraph/backend/pkg/service"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

// Message is the wire form of a graph invalidation.
type Message struct {
	Origin     string `json:"origin"`
	CampaignID string `json:"campaignId"`
	BranchID   string `json:"branchId"`
	EntityKind string `json:"entityKind,omitempty"`
	EntityID   string `json:"entityId,omitempty"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher implements service.Notifier over a RabbitMQ channel.
type Publisher struct {
	mu       sync.Mutex
	ch       channel
	exchange string
	origin   string
}

// NewPublisher creates a publisher with a random origin id. Consumers in the
// same process skip messages carrying that id.
func NewPublisher(ch channel, exchange string) (*Publisher, error) {
	origin, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, exchange: exchange, origin: origin}, nil
}

// Origin identifies this process on the exchange.
func (p *Publisher) Origin() string {
	return p.origin
}

func (p *Publisher) PublishInvalidation(ctx context.Context, inv service.Invalidation) error {
	body, err := json.Marshal(Message{
		Origin:     p.origin,
		CampaignID: inv.CampaignID,
		BranchID:   inv.BranchID,
		EntityKind: string(inv.EntityKind),
		EntityID:   inv.EntityID,
	})
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   time.Now(),
	}

	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(inv.CampaignID), false, false, publishing)
}
