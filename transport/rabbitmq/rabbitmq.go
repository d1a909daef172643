// Package rabbitmq publishes envelopes to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/drblury/omnibridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// ExchangeKind is the kind of the declared exchange.
const ExchangeKind = "topic"

// ExchangeDeclarer declares the exchange on a short-lived channel. Tests
// replace it to avoid a broker.
var ExchangeDeclarer = func(url, exchange string) error {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	// Non-durable, matching what publishers and consumers already declare.
	return ch.ExchangeDeclare(exchange, ExchangeKind, false, false, false, false, nil)
}

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

var closeConnection = func(conn *amqp.ConnectionWrapper) error {
	return conn.Close()
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

func init() {
	transport.Register(TransportName, Build, transport.RabbitMQCapabilities)
	transport.Alias("amqp", TransportName)
}

// PublisherConfig returns the Watermill AMQP config publishing every topic
// to exchange, using the topic as the routing key. Messages are sent with
// the transient delivery mode.
func PublisherConfig(url, exchange string) amqp.Config {
	cfg := amqp.NewNonDurablePubSubConfig(url, amqp.GenerateQueueNameTopicName)
	cfg.Exchange.GenerateName = func(string) string { return exchange }
	cfg.Exchange.Type = ExchangeKind
	cfg.Exchange.Durable = false
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	return cfg
}

// Build declares the exchange and creates a publisher on a reconnecting
// connection.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetRabbitMQURL()
	exchange := cfg.GetExchange()
	if exchange == "" {
		return transport.Transport{}, fmt.Errorf("rabbitmq: exchange is required")
	}

	if err := ExchangeDeclarer(url, exchange); err != nil {
		return transport.Transport{}, fmt.Errorf("rabbitmq: declare exchange %q: %w", exchange, err)
	}
	logger.Info("Declared exchange", watermill.LogFields{"exchange": exchange, "kind": ExchangeKind})

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   url,
		TLSConfig: nil,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(PublisherConfig(url, exchange), logger, conn)
	if err != nil {
		_ = closeConnection(conn)
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher: publisher,
		Closers:   []io.Closer{conn},
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}
