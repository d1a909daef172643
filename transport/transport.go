// Package transport defines the egress transport contract of the bridge.
// Each broker implementation lives in its own sub-package and registers a
// Builder with the registry.
package transport

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport is a connected egress publisher. Closers are released after the
// publisher, in order, for resources the publisher does not own (a shared
// broker connection, an SDK client).
type Transport struct {
	Publisher message.Publisher
	Closers   []io.Closer
}

// Close closes the publisher and then every extra closer, joining failures.
func (t Transport) Close() error {
	var errs []error
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	for _, c := range t.Closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// None is the egress system name that disables publishing.
const None = "none"

// Disabled reports whether name selects no transport: empty or "none" in any
// case.
func Disabled(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.EqualFold(name, None)
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports.
// This interface allows transports to access only the config they need
// without depending on the full config package.
type Config interface {
	// GetEgressSystem returns the transport name.
	GetEgressSystem() string

	// RabbitMQ
	GetRabbitMQURL() string
	GetExchange() string

	// NATS and JetStream
	GetNATSURL() string
	GetJetStreamStream() string

	// Kafka
	GetKafkaBrokers() []string

	// IO
	GetEgressFile() string

	// HTTP
	GetHTTPPublishURL() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}
