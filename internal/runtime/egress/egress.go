// Package egress republishes decoded envelopes to the configured broker under
// the trade.<source_id> routing key.
package egress

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/omnibridge/internal/runtime/envelope"
	errspkg "github.com/drblury/omnibridge/internal/runtime/errors"
	"github.com/drblury/omnibridge/internal/runtime/ids"
	"github.com/drblury/omnibridge/internal/runtime/logging"
	"github.com/drblury/omnibridge/internal/runtime/metadata"
	"github.com/drblury/omnibridge/transport"
)

// RoutingKeyPrefix is prepended to the source id to form the routing key.
const RoutingKeyPrefix = "trade."

// RoutingKey returns the routing key for envelopes from sourceID.
func RoutingKey(sourceID string) string {
	return RoutingKeyPrefix + sourceID
}

// Channel is the egress side of the router. It is either NoEgress or a
// *Connected publisher.
type Channel interface {
	// Publish republishes e. NoEgress drops it and returns nil.
	Publish(ctx context.Context, e envelope.EventEnvelope) error
	// Enabled reports whether envelopes reach a broker.
	Enabled() bool
	// Name is the transport name, "none" for NoEgress.
	Name() string
	Close() error
}

// NoEgress is the degraded channel used when no broker is configured or the
// broker could not be reached at startup.
var NoEgress Channel = noEgress{}

type noEgress struct{}

func (noEgress) Publish(context.Context, envelope.EventEnvelope) error { return nil }
func (noEgress) Enabled() bool                                         { return false }
func (noEgress) Name() string                                          { return transport.None }
func (noEgress) Close() error                                          { return nil }

// Connected publishes through a built transport.
type Connected struct {
	name      string
	transport transport.Transport
	caps      transport.Capabilities
	logger    logging.ServiceLogger
}

// New wraps an already built transport.
func New(name string, tr transport.Transport, caps transport.Capabilities, logger logging.ServiceLogger) (*Connected, error) {
	if tr.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if caps.Name == "" {
		caps.Name = name
	}
	return &Connected{name: name, transport: tr, caps: caps, logger: logger}, nil
}

// Connect builds the transport selected by cfg. It never fails: a missing or
// unreachable broker is logged as a BrokerConnectError and NoEgress is
// returned so the router keeps observing.
func Connect(ctx context.Context, cfg transport.Config, logger logging.ServiceLogger) Channel {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg == nil {
		logger.Error("egress disabled", errspkg.ErrConfigRequired, nil)
		return NoEgress
	}

	name := strings.TrimSpace(cfg.GetEgressSystem())
	if transport.Disabled(name) {
		logger.Info("egress disabled", logging.LogFields{"egress": transport.None})
		return NoEgress
	}

	log := logger.With(logging.LogFields{"egress": name})
	tr, err := transport.Build(ctx, cfg, logging.NewWatermillAdapter(log))
	if err != nil {
		log.Error("broker unavailable, continuing without egress", &errspkg.BrokerConnectError{Transport: name, Err: err}, nil)
		return NoEgress
	}

	ch, err := New(transport.DefaultRegistry.Resolve(name), tr, transport.GetCapabilities(name), log)
	if err != nil {
		_ = tr.Close()
		log.Error("broker unavailable, continuing without egress", &errspkg.BrokerConnectError{Transport: name, Err: err}, nil)
		return NoEgress
	}
	log.Info("egress connected", nil)
	return ch
}

func (c *Connected) Publish(ctx context.Context, e envelope.EventEnvelope) error {
	key := RoutingKey(e.SourceID)
	if err := ctx.Err(); err != nil {
		return &errspkg.PublishError{RoutingKey: key, Err: err}
	}

	payload, err := envelope.Encode(e)
	if err != nil {
		return &errspkg.PublishError{RoutingKey: key, Err: err}
	}
	if !c.caps.Accepts(len(payload)) {
		return &errspkg.PublishError{
			RoutingKey: key,
			Err:        fmt.Errorf("%d byte envelope exceeds %s limit of %d bytes", len(payload), c.caps.Name, c.caps.MaxMessageSize),
		}
	}

	msg := message.NewMessage(ids.NewMessageID(), payload)
	msg.SetContext(ctx)
	metadata.ForEnvelope(e, key).Apply(msg)

	if err := c.transport.Publisher.Publish(key, msg); err != nil {
		return &errspkg.PublishError{RoutingKey: key, Err: err}
	}
	c.logger.Trace("envelope published", logging.LogFields{
		"routing_key":  key,
		"message_uuid": msg.UUID,
		"bytes":        len(payload),
	})
	return nil
}

func (c *Connected) Enabled() bool { return true }

func (c *Connected) Name() string { return c.name }

// Capabilities returns the limits of the underlying transport.
func (c *Connected) Capabilities() transport.Capabilities { return c.caps }

// Publisher returns the underlying Watermill publisher.
func (c *Connected) Publisher() message.Publisher { return c.transport.Publisher }

// Close releases the publisher and its broker connection.
func (c *Connected) Close() error {
	return c.transport.Close()
}
