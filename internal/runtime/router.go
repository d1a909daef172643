package runtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/omnibridge/internal/runtime/config"
	"github.com/drblury/omnibridge/internal/runtime/egress"
	"github.com/drblury/omnibridge/internal/runtime/envelope"
	errspkg "github.com/drblury/omnibridge/internal/runtime/errors"
	"github.com/drblury/omnibridge/internal/runtime/ingress"
	"github.com/drblury/omnibridge/internal/runtime/logging"
	"github.com/drblury/omnibridge/internal/runtime/observe"
)

// TracerName names the tracer used for per-envelope spans.
const TracerName = "omnibridge-router"

// State is the router lifecycle state.
type State int32

const (
	// StateRunning is entered at construction and held while the loop runs.
	StateRunning State = iota
	// StateTerminated is entered when Run returns.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Source delivers raw ingress messages. *ingress.Adapter implements it.
type Source interface {
	Receive(ctx context.Context) (ingress.RawMessage, error)
}

// RouterOption customises a Router.
type RouterOption func(*Router)

// WithMetrics records loop activity into m.
func WithMetrics(m *RouterMetrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) RouterOption {
	return func(r *Router) { r.tracer = t }
}

// WithBackoff sets the pacing policy between consecutive receive errors.
func WithBackoff(newBackOff func() backoff.BackOff) RouterOption {
	return func(r *Router) { r.newBackOff = newBackOff }
}

// Router pulls one message at a time from a Source, decodes it, logs a
// summary and republishes it to the egress channel.
type Router struct {
	source     Source
	egress     egress.Channel
	observer   *observe.Observer
	logger     logging.ServiceLogger
	metrics    *RouterMetrics
	tracer     trace.Tracer
	newBackOff func() backoff.BackOff
	maxErrors  int

	state atomic.Int32
}

// NewRouter wires source to channel. A nil channel runs observation-only.
func NewRouter(cfg config.Config, logger logging.ServiceLogger, source Source, channel egress.Channel, opts ...RouterOption) (*Router, error) {
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if source == nil {
		return nil, errspkg.ErrSourceRequired
	}
	if channel == nil {
		channel = egress.NoEgress
	}

	r := &Router{
		source:     source,
		egress:     channel,
		observer:   observe.New(logger, observe.WithTicks(cfg.LogTicks)),
		logger:     logger,
		tracer:     otel.Tracer(TracerName),
		newBackOff: defaultBackOff,
		maxErrors:  cfg.MaxConsecutiveReceiveErrors,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.state.Store(int32(StateRunning))
	return r, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// State returns the current lifecycle state.
func (r *Router) State() State {
	return State(r.state.Load())
}

// Run loops until ctx is cancelled, returning nil, or until the configured
// number of consecutive receive errors is reached, returning an error
// matching ErrReceiveErrorsExceeded.
func (r *Router) Run(ctx context.Context) error {
	defer r.state.Store(int32(StateTerminated))

	r.metrics.setEgressConnected(r.egress.Enabled())
	r.logger.Info("router running", logging.LogFields{
		"egress":             r.egress.Name(),
		"max_receive_errors": r.maxErrors,
	})

	pacing := r.newBackOff()
	consecutive := 0
	for {
		raw, err := r.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("router stopped", nil)
				return nil
			}
			consecutive++
			r.metrics.recordReceiveError()
			r.logger.Error("receive failed", err, logging.LogFields{"consecutive": consecutive})
			if r.maxErrors > 0 && consecutive >= r.maxErrors {
				return fmt.Errorf("%w: %d in a row, last: %w", errspkg.ErrReceiveErrorsExceeded, consecutive, err)
			}
			if !wait(ctx, pacing.NextBackOff()) {
				r.logger.Info("router stopped", nil)
				return nil
			}
			continue
		}
		if consecutive > 0 {
			consecutive = 0
			pacing.Reset()
		}
		r.route(ctx, raw)
	}
}

func (r *Router) route(ctx context.Context, raw ingress.RawMessage) {
	r.metrics.recordReceived()

	frame, ok := raw.Envelope()
	if !ok {
		r.metrics.recordEmpty()
		r.logger.Debug("message without frames skipped", nil)
		return
	}

	e, err := envelope.Decode(frame)
	if err != nil {
		r.metrics.recordDecodeError()
		r.logger.Error("decode failed", err, logging.LogFields{"bytes": len(frame)})
		return
	}

	kind := e.Kind().String()
	ctx, span := r.tracer.Start(ctx, "RouteEnvelope", trace.WithAttributes(
		attribute.String("source_id", e.SourceID),
		attribute.String("payload_kind", kind),
	))
	defer span.End()

	r.observer.Observe(e)
	r.metrics.recordEvent(kind)

	if !r.egress.Enabled() {
		return
	}
	if err := r.egress.Publish(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		r.metrics.recordPublishError(kind)
		r.logger.Error("publish failed, envelope dropped", err, logging.LogFields{
			"routing_key":  egress.RoutingKey(e.SourceID),
			"payload_kind": kind,
		})
		return
	}
	r.metrics.recordPublished(kind)
}

// wait sleeps for d unless ctx ends first. It reports whether the loop
// should continue.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
