// Package omnibridge routes trading events from gateway processes to a
// message broker. Gateways PUSH protobuf EventFrame envelopes to a ZeroMQ
// PULL socket; the bridge decodes each one, logs a summary by payload kind,
// and republishes the envelope under the routing key trade.<source_id>.
//
// Run wires everything from Config: it connects the egress broker, binds
// the ingress socket and drives the router loop until the context ends.
// NewBridge and NewRouter expose the same pieces for embedding and tests.
//
// # Transports
//
// OMNI_EGRESS selects where envelopes go:
//   - rabbitmq: topic exchange omni.topic (default)
//   - nats: core NATS, subject = routing key
//   - nats-jetstream: JetStream stream, subject = <stream>.<routing key>
//   - kafka: topic = routing key
//   - aws: SNS topic named after the routing key with dots as dashes
//   - http: POST to <base URL><routing key>
//   - io: JSON-lines tap file
//   - channel: in-memory Go channels for embedding and tests
//   - none: observation only
//
// A broker that cannot be reached at startup is logged and the bridge keeps
// running without egress. A bind failure stops startup.
//
// # Failure handling
//
// Malformed envelopes, empty messages and publish failures are logged and
// skipped. Receive errors are paced with exponential backoff and can be made
// fatal with CORE_MAX_RECEIVE_ERRORS.
package omnibridge
