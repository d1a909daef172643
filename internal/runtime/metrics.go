package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/omnibridge/internal/runtime/logging"
)

// RouterMetrics counts what the router loop sees. A nil *RouterMetrics is
// valid and records nothing.
type RouterMetrics struct {
	mu sync.Mutex

	receivedTotal      prometheus.Counter
	receiveErrorsTotal prometheus.Counter
	emptyTotal         prometheus.Counter
	decodeErrorsTotal  prometheus.Counter
	eventsTotal        *prometheus.CounterVec
	publishedTotal     *prometheus.CounterVec
	publishErrorsTotal *prometheus.CounterVec
	egressConnected    prometheus.Gauge

	registerer prometheus.Registerer
	registered bool
}

func newRouterCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "omnibridge",
		Subsystem: "router",
		Name:      name,
		Help:      help,
	})
}

func newRouterCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omnibridge",
			Subsystem: "router",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewRouterMetrics creates the router collectors. A nil registerer uses the
// Prometheus default registerer.
func NewRouterMetrics(registerer prometheus.Registerer) *RouterMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RouterMetrics{
		registerer:         registerer,
		receivedTotal:      newRouterCounter("received_total", "Messages received from the ingress socket"),
		receiveErrorsTotal: newRouterCounter("receive_errors_total", "Ingress receive failures"),
		emptyTotal:         newRouterCounter("empty_messages_total", "Messages received without any frame"),
		decodeErrorsTotal:  newRouterCounter("decode_errors_total", "Frames that could not be decoded as an envelope"),
		eventsTotal:        newRouterCounterVec("events_total", "Decoded envelopes by payload kind", []string{"kind"}),
		publishedTotal:     newRouterCounterVec("published_total", "Envelopes published to the broker by payload kind", []string{"kind"}),
		publishErrorsTotal: newRouterCounterVec("publish_errors_total", "Envelopes the broker did not accept by payload kind", []string{"kind"}),
		egressConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "omnibridge",
			Subsystem: "router",
			Name:      "egress_connected",
			Help:      "1 when envelopes are forwarded to a broker, 0 in observation-only mode",
		}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *RouterMetrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.receivedTotal,
		m.receiveErrorsTotal,
		m.emptyTotal,
		m.decodeErrorsTotal,
		m.eventsTotal,
		m.publishedTotal,
		m.publishErrorsTotal,
		m.egressConnected,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *RouterMetrics) recordReceived() {
	if m != nil {
		m.receivedTotal.Inc()
	}
}

func (m *RouterMetrics) recordReceiveError() {
	if m != nil {
		m.receiveErrorsTotal.Inc()
	}
}

func (m *RouterMetrics) recordEmpty() {
	if m != nil {
		m.emptyTotal.Inc()
	}
}

func (m *RouterMetrics) recordDecodeError() {
	if m != nil {
		m.decodeErrorsTotal.Inc()
	}
}

func (m *RouterMetrics) recordEvent(kind string) {
	if m != nil {
		m.eventsTotal.WithLabelValues(kind).Inc()
	}
}

func (m *RouterMetrics) recordPublished(kind string) {
	if m != nil {
		m.publishedTotal.WithLabelValues(kind).Inc()
	}
}

func (m *RouterMetrics) recordPublishError(kind string) {
	if m != nil {
		m.publishErrorsTotal.WithLabelValues(kind).Inc()
	}
}

func (m *RouterMetrics) setEgressConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.egressConnected.Set(1)
		return
	}
	m.egressConnected.Set(0)
}

// MetricsServer exposes a Prometheus gatherer on /metrics.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   logging.ServiceLogger
}

// NewMetricsServer listens on port (0 picks a free one) and serves gatherer.
func NewMetricsServer(port int, gatherer prometheus.Gatherer, logger logging.ServiceLogger) (*MetricsServer, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.Nop()
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("metrics: listen on port %d: %w", port, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &MetricsServer{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: listener,
		logger:   logger,
	}, nil
}

// Addr is the address the server listens on.
func (s *MetricsServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve blocks until ctx is cancelled, then shuts the server down.
func (s *MetricsServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", logging.LogFields{"address": s.listener.Addr().String()})
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		return nil
	}
}
