package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/rulegraph/backend/internal/util"
	"github.com/OFFIS-RIT/rulegraph/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "graph_invalidation"

// Init dials RabbitMQ, retrying with backoff while the broker starts up.
func Init(ctx context.Context) *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := util.RetryWithBackoff(ctx, 5, time.Second, func(context.Context) (*amqp091.Connection, error) {
		return amqp091.Dial(connURL)
	})
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupExchange declares the topic exchange invalidations are published on.
func SetupExchange(ch *amqp091.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}

// BindingKey matches the routing key of every campaign. "#" is used because
// campaign ids may contain dots and "*" matches a single word only.
const BindingKey = "campaign.#"

// RoutingKey is the topic an invalidation for campaignID is published under.
func RoutingKey(campaignID string) string {
	return "campaign." + campaignID
}
