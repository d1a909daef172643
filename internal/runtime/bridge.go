package runtime

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/omnibridge/internal/runtime/config"
	"github.com/drblury/omnibridge/internal/runtime/egress"
	errspkg "github.com/drblury/omnibridge/internal/runtime/errors"
	"github.com/drblury/omnibridge/internal/runtime/ingress"
	"github.com/drblury/omnibridge/internal/runtime/logging"
)

// BridgeDependencies lets embedding programs and tests replace the pieces
// NewBridge would otherwise build from Config.
type BridgeDependencies struct {
	// Egress, when set, is used instead of connecting the configured broker.
	Egress egress.Channel
	// Registry receives the router metrics. Defaults to a fresh registry.
	Registry *prometheus.Registry
	// RouterOptions are appended to the options NewBridge derives.
	RouterOptions []RouterOption
}

// Bridge owns the ingress socket, the egress channel and the router.
type Bridge struct {
	cfg     config.Config
	logger  logging.ServiceLogger
	ingress *ingress.Adapter
	egress  egress.Channel
	router  *Router
	metrics *RouterMetrics
	reg     *prometheus.Registry
}

// NewBridge validates cfg, connects egress and binds ingress, in that
// order. An unreachable broker only degrades egress; a bind failure is
// returned as *errors.BindError.
func NewBridge(ctx context.Context, cfg config.Config, logger logging.ServiceLogger, deps BridgeDependencies) (*Bridge, error) {
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := errspkg.NewConfigValidationError(cfg.Validate()); err != nil {
		return nil, err
	}
	logger.Info("starting omnibridge", logging.LogFields{
		"config":         cfg.String(),
		"egress_enabled": cfg.EgressEnabled(),
	})

	channel := deps.Egress
	if channel == nil {
		channel = egress.Connect(ctx, cfg, logger)
	}

	adapter, err := ingress.Bind(ctx, cfg.IngressBind, logger)
	if err != nil {
		_ = channel.Close()
		return nil, err
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := NewRouterMetrics(reg)
	if err := metrics.Register(); err != nil {
		_ = adapter.Close()
		_ = channel.Close()
		return nil, err
	}

	opts := append([]RouterOption{WithMetrics(metrics)}, deps.RouterOptions...)
	router, err := NewRouter(cfg, logger, adapter, channel, opts...)
	if err != nil {
		_ = adapter.Close()
		_ = channel.Close()
		return nil, err
	}

	return &Bridge{
		cfg:     cfg,
		logger:  logger,
		ingress: adapter,
		egress:  channel,
		router:  router,
		metrics: metrics,
		reg:     reg,
	}, nil
}

// Ingress returns the bound ingress adapter.
func (b *Bridge) Ingress() *ingress.Adapter { return b.ingress }

// Egress returns the egress channel in use.
func (b *Bridge) Egress() egress.Channel { return b.egress }

// Router returns the router driven by Run.
func (b *Bridge) Router() *Router { return b.router }

// Run serves metrics when enabled and runs the router until ctx ends or the
// router gives up. Ingress and egress are closed before it returns.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsDone := make(chan error, 1)
	if b.cfg.MetricsEnabled {
		srv, err := NewMetricsServer(b.cfg.MetricsPort, b.reg, b.logger)
		if err != nil {
			b.close()
			return err
		}
		go func() { metricsDone <- srv.Serve(ctx) }()
	} else {
		metricsDone <- nil
	}

	// Closing the socket unblocks a pending Receive.
	go func() {
		<-ctx.Done()
		_ = b.ingress.Close()
	}()

	runErr := b.router.Run(ctx)
	cancel()

	metricsErr := <-metricsDone
	b.close()
	b.logger.Info("omnibridge stopped", nil)
	return errors.Join(runErr, metricsErr)
}

// close releases ingress and egress. Failures are logged only, the process
// is stopping anyway.
func (b *Bridge) close() {
	if err := b.ingress.Close(); err != nil {
		b.logger.Debug("ingress close", logging.LogFields{"error": err.Error()})
	}
	if err := b.egress.Close(); err != nil {
		b.logger.Error("egress close failed", err, nil)
	}
}
