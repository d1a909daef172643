// Package jetstream publishes envelopes into a NATS JetStream stream. The
// routing key is appended to the stream name to form the subject, so
// trade.GW1 lands on OMNI.trade.GW1.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/omnibridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats-jetstream"

const (
	// DefaultStreamName is used when no stream is configured.
	DefaultStreamName = "OMNI"

	// DefaultMaxAge bounds how long the stream keeps envelopes.
	DefaultMaxAge = 24 * time.Hour
)

var errClosed = errors.New("jetstream: publisher is closed")

// JetStream is the subset of nats.JetStreamContext used by the publisher.
type JetStream interface {
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Connect opens the NATS connection. The returned func closes it.
var Connect = func(url string) (JetStream, func(), error) {
	nc, err := nats.Connect(url, nats.Name("omnibridge"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return js, nc.Close, nil
}

func init() {
	transport.Register(TransportName, Build, transport.NATSJetStreamCapabilities)
	transport.Alias("jetstream", TransportName)
}

// Build connects to NATS and makes sure the stream exists.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	stream := cfg.GetJetStreamStream()
	if stream == "" {
		stream = DefaultStreamName
	}

	js, closeConn, err := Connect(cfg.GetNATSURL())
	if err != nil {
		return transport.Transport{}, err
	}

	p := &Publisher{js: js, stream: stream, closeConn: closeConn, logger: logger}
	if err := p.ensureStream(); err != nil {
		closeConn()
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: p}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Publisher implements message.Publisher on top of JetStream.
type Publisher struct {
	js        JetStream
	stream    string
	closeConn func()
	logger    watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

func (p *Publisher) ensureStream() error {
	streamCfg := &nats.StreamConfig{
		Name:      p.stream,
		Subjects:  []string{p.stream + ".>"},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    DefaultMaxAge,
	}

	if _, err := p.js.AddStream(streamCfg); err != nil {
		if _, updateErr := p.js.UpdateStream(streamCfg); updateErr != nil {
			return fmt.Errorf("jetstream: ensure stream %q: %w", p.stream, errors.Join(err, updateErr))
		}
		p.logger.Info("JetStream stream updated", watermill.LogFields{"stream": p.stream})
		return nil
	}
	p.logger.Info("JetStream stream ready", watermill.LogFields{"stream": p.stream})
	return nil
}

// Subject maps a routing key onto the stream's subject space.
func (p *Publisher) Subject(routingKey string) string {
	return p.stream + "." + routingKey
}

// Publish stores every message under the routing key's subject. Metadata
// travels as NATS headers and the message UUID as Nats-Msg-Id for dedup.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errClosed
	}

	subject := p.Subject(topic)
	for _, msg := range messages {
		headers := nats.Header{}
		for k, v := range msg.Metadata {
			headers.Set(k, v)
		}
		headers.Set(nats.MsgIdHdr, msg.UUID)

		if _, err := p.js.PublishMsg(&nats.Msg{Subject: subject, Data: msg.Payload, Header: headers}); err != nil {
			return fmt.Errorf("jetstream: publish %s: %w", subject, err)
		}
	}
	return nil
}

// Close closes the NATS connection. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.closeConn != nil {
		p.closeConn()
	}
	return nil
}
