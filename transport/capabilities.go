package transport

// Capabilities describes what an egress backend offers to downstream
// consumers and the limits the bridge must respect when publishing.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// SupportsPatternRouting indicates consumers can subscribe by routing-key
	// pattern, e.g. trade.# on a topic exchange or trade.> on NATS.
	SupportsPatternRouting bool

	// SupportsOrdering indicates messages published under one routing key
	// arrive in publish order.
	SupportsOrdering bool

	// SupportsTracing indicates the transport carries message metadata as
	// headers, so trace context survives the hop.
	SupportsTracing bool

	// Persistent indicates published messages are stored by the broker.
	Persistent bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// Accepts reports whether a body of size bytes fits the transport limit.
func (c Capabilities) Accepts(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsTracing:  true,
	}

	// RabbitMQCapabilities for RabbitMQ topic exchanges. Messages are sent
	// non-persistent; the broker default max message size is 128 MiB.
	RabbitMQCapabilities = Capabilities{
		Name:                   "rabbitmq",
		SupportsPatternRouting: true,
		SupportsOrdering:       true,
		SupportsTracing:        true,
		MaxMessageSize:         128 << 20,
	}

	// NATSCapabilities for NATS Core subjects.
	NATSCapabilities = Capabilities{
		Name:                   "nats",
		SupportsPatternRouting: true,
		SupportsTracing:        true,
		MaxMessageSize:         1 << 20, // Default 1MB
	}

	// NATSJetStreamCapabilities for NATS JetStream streams.
	NATSJetStreamCapabilities = Capabilities{
		Name:                   "nats-jetstream",
		SupportsPatternRouting: true,
		SupportsOrdering:       true,
		SupportsTracing:        true,
		Persistent:             true,
		MaxMessageSize:         1 << 20, // Default 1MB
	}

	// KafkaCapabilities for Apache Kafka topics.
	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsTracing:  true,
		Persistent:       true,
		MaxMessageSize:   1 << 20, // Default 1MB
	}

	// AWSCapabilities for AWS SNS topics.
	AWSCapabilities = Capabilities{
		Name:            "aws",
		SupportsTracing: true,
		MaxMessageSize:  256 * 1024,
	}

	// HTTPCapabilities for webhook delivery.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}

	// IOCapabilities for the JSON-lines file tap.
	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
		Persistent:       true,
	}
)
