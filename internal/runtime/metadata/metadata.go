// Package metadata defines the headers attached to every published envelope.
package metadata

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/omnibridge/internal/runtime/envelope"
)

// Header keys set on outgoing broker messages.
const (
	KeySourceID    = "source_id"
	KeyPayloadKind = "payload_kind"
	KeyTimestampNs = "timestamp_ns"
	KeyRoutingKey  = "routing_key"
)

// Metadata represents the headers carried alongside an envelope.
type Metadata map[string]string

// ForEnvelope builds the headers describing e published under routingKey.
// The timestamp header is omitted when the producer did not set one.
func ForEnvelope(e envelope.EventEnvelope, routingKey string) Metadata {
	md := Metadata{
		KeySourceID:    e.SourceID,
		KeyPayloadKind: e.Kind().String(),
		KeyRoutingKey:  routingKey,
	}
	if e.TimestampNs != 0 {
		md[KeyTimestampNs] = strconv.FormatInt(e.TimestampNs, 10)
	}
	return md
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// Apply copies the headers onto msg, overwriting keys already present.
func (m Metadata) Apply(msg *message.Message) {
	for k, v := range m {
		msg.Metadata.Set(k, v)
	}
}

// FromMessage reads the headers back from a Watermill message.
func FromMessage(msg *message.Message) Metadata {
	md := make(Metadata, len(msg.Metadata))
	for k, v := range msg.Metadata {
		md[k] = v
	}
	return md
}
