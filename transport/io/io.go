// Package io appends every forwarded envelope to a JSON-lines file. It is a
// broker-free tap for debugging and replay tooling.
package io

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/omnibridge/internal/runtime/jsoncodec"
	"github.com/drblury/omnibridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "io"

// DefaultFilePath is the default file path if none is specified.
const DefaultFilePath = "omnibridge-egress.log"

var errClosed = errors.New("io: publisher closed")

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return NewPublisher(filePath, logger)
}

func init() {
	transport.Register(TransportName, Build, transport.IOCapabilities)
	transport.Alias("file", TransportName)
}

// Build opens the tap file.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	filePath := cfg.GetEgressFile()
	if filePath == "" {
		filePath = DefaultFilePath
	}

	pub, err := PublisherFactory(filePath, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: pub}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.IOCapabilities
}

// Record is one line of the tap file. Payload is base64 in JSON.
type Record struct {
	UUID       string            `json:"uuid"`
	RoutingKey string            `json:"routing_key"`
	Metadata   map[string]string `json:"metadata"`
	Payload    []byte            `json:"payload"`
	WrittenAt  time.Time         `json:"written_at"`
}

// Publisher writes messages to a file, one JSON record per line.
type Publisher struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	logger watermill.LoggerAdapter
	now    func() time.Time
}

// NewPublisher opens filePath for appending, creating it if needed.
func NewPublisher(filePath string, logger watermill.LoggerAdapter) (*Publisher, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("io: open %s: %w", filePath, err)
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	logger.Info("Writing egress tap", watermill.LogFields{"file": filePath})
	return &Publisher{f: f, w: bufio.NewWriter(f), logger: logger, now: time.Now}, nil
}

// Publish appends messages and flushes them before returning.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil {
		return errClosed
	}

	for _, msg := range messages {
		err := jsoncodec.WriteLine(p.w, Record{
			UUID:       msg.UUID,
			RoutingKey: topic,
			Metadata:   msg.Metadata,
			Payload:    msg.Payload,
			WrittenAt:  p.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("io: write record: %w", err)
		}
	}
	return p.w.Flush()
}

// Close flushes and closes the file. Further publishes fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil {
		return nil
	}
	flushErr := p.w.Flush()
	closeErr := p.f.Close()
	p.f = nil
	return errors.Join(flushErr, closeErr)
}

// ReadFile returns every record in a tap file, skipping blank lines.
func ReadFile(filePath string) ([]Record, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := jsoncodec.ReadLines[Record](f)
	if err != nil {
		return records, fmt.Errorf("io: %w", err)
	}
	return records, nil
}
