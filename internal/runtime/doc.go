/*
Package runtime hosts the router loop of the bridge.

# Architecture Overview

One goroutine runs the loop. Each turn it:

 1. receives a message from the ZeroMQ PULL socket (package ingress)
 2. takes frame 0 and decodes it as an EventFrame (package envelope)
 3. logs a per-kind summary (package observe)
 4. republishes the envelope under trade.<source_id> (package egress)

Receive and Publish are the only calls that block.

# Package Structure

  - config: environment configuration, dotenv loading and validation
  - envelope: the EventEnvelope model and its protobuf wire codec
  - errors: sentinels and typed errors shared by every stage
  - ingress: the bound PULL socket
  - observe: summaries of decoded envelopes
  - egress: NoEgress or a Connected broker publisher
  - metadata, ids: headers and ULID message ids of published messages
  - logging: the ServiceLogger contract over slog and Watermill

# Failure Policy

A bind failure is fatal and is reported before the router exists. A broker
that cannot be reached degrades egress to NoEgress for the process lifetime.
Decode and publish failures are logged and the envelope is dropped. Receive
failures are logged and paced with exponential backoff; when
CORE_MAX_RECEIVE_ERRORS is positive, that many in a row stop the router with
ErrReceiveErrorsExceeded.

# Metrics

RouterMetrics exposes omnibridge_router_* counters through a
MetricsServer on /metrics. Every decoded envelope is handled inside an
OpenTelemetry span named RouteEnvelope.
*/
package runtime
