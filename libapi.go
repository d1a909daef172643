package omnibridge

import (
	"context"
	"io"

	runtimepkg "github.com/drblury/omnibridge/internal/runtime"
	configpkg "github.com/drblury/omnibridge/internal/runtime/config"
	egresspkg "github.com/drblury/omnibridge/internal/runtime/egress"
	envelopepkg "github.com/drblury/omnibridge/internal/runtime/envelope"
	errspkg "github.com/drblury/omnibridge/internal/runtime/errors"
	idspkg "github.com/drblury/omnibridge/internal/runtime/ids"
	ingresspkg "github.com/drblury/omnibridge/internal/runtime/ingress"
	loggingpkg "github.com/drblury/omnibridge/internal/runtime/logging"
	metadatapkg "github.com/drblury/omnibridge/internal/runtime/metadata"
	observepkg "github.com/drblury/omnibridge/internal/runtime/observe"
	"github.com/drblury/omnibridge/transport"
	_ "github.com/drblury/omnibridge/transport/transports"
)

type (
	Config             = configpkg.Config
	Bridge             = runtimepkg.Bridge
	BridgeDependencies = runtimepkg.BridgeDependencies
	Router             = runtimepkg.Router
	RouterOption       = runtimepkg.RouterOption
	RouterMetrics      = runtimepkg.RouterMetrics
	RouterState        = runtimepkg.State
	Source             = runtimepkg.Source

	EventEnvelope = envelopepkg.EventEnvelope
	Kind          = envelopepkg.Kind
	Payload       = envelopepkg.Payload
	Tick          = envelopepkg.Tick
	Account       = envelopepkg.Account
	Position      = envelopepkg.Position
	Order         = envelopepkg.Order
	Trade         = envelopepkg.Trade
	Other         = envelopepkg.Other

	RawMessage     = ingresspkg.RawMessage
	IngressAdapter = ingresspkg.Adapter

	EgressChannel   = egresspkg.Channel
	ConnectedEgress = egresspkg.Connected

	Summary  = observepkg.Summary
	Observer = observepkg.Observer

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	BindError             = errspkg.BindError
	BrokerConnectError    = errspkg.BrokerConnectError
	DecodeError           = errspkg.DecodeError
	TransportError        = errspkg.TransportError
	PublishError          = errspkg.PublishError
	ConfigValidationError = errspkg.ConfigValidationError

	// Transport registry
	TransportBuilder      = transport.Builder
	TransportConfig       = transport.Config
	TransportRegistry     = transport.Registry
	TransportCapabilities = transport.Capabilities
)

var (
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	LoadConfigFile = configpkg.LoadFile

	NewBridge        = runtimepkg.NewBridge
	NewRouter        = runtimepkg.NewRouter
	NewRouterMetrics = runtimepkg.NewRouterMetrics
	WithMetrics      = runtimepkg.WithMetrics
	WithTracer       = runtimepkg.WithTracer
	WithBackoff      = runtimepkg.WithBackoff

	Encode = envelopepkg.Encode
	Decode = envelopepkg.Decode

	Bind = ingresspkg.Bind

	Connect    = egresspkg.Connect
	NewEgress  = egresspkg.New
	RoutingKey = egresspkg.RoutingKey
	NoEgress   = egresspkg.NoEgress

	Summarize   = observepkg.Summarize
	NewObserver = observepkg.New
	WithTicks   = observepkg.WithTicks

	ForEnvelope = metadatapkg.ForEnvelope

	NewMessageID = idspkg.NewMessageID

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.Nop

	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.Register

	ErrConfigRequired        = errspkg.ErrConfigRequired
	ErrLoggerRequired        = errspkg.ErrLoggerRequired
	ErrSourceRequired        = errspkg.ErrSourceRequired
	ErrPublisherRequired     = errspkg.ErrPublisherRequired
	ErrReceiveErrorsExceeded = errspkg.ErrReceiveErrorsExceeded
	ErrBind                  = errspkg.ErrBind
	ErrBrokerConnect         = errspkg.ErrBrokerConnect
	ErrDecode                = errspkg.ErrDecode
	ErrTransport             = errspkg.ErrTransport
	ErrPublish               = errspkg.ErrPublish
)

// Router states.
const (
	StateRunning    = runtimepkg.StateRunning
	StateTerminated = runtimepkg.StateTerminated
)

// Header keys set on every published message.
const (
	MetadataKeySourceID    = metadatapkg.KeySourceID
	MetadataKeyPayloadKind = metadatapkg.KeyPayloadKind
	MetadataKeyTimestampNs = metadatapkg.KeyTimestampNs
	MetadataKeyRoutingKey  = metadatapkg.KeyRoutingKey
)

// NewLogger builds the process logger from cfg's format and level.
func NewLogger(w io.Writer, cfg Config) (ServiceLogger, error) {
	return loggingpkg.New(w, cfg.LogFormat, cfg.LogLevel)
}

// Run builds a Bridge from cfg and runs it until ctx ends. It returns the
// configuration or bind error that prevented startup, or the error that
// stopped the router.
func Run(ctx context.Context, cfg Config, logger ServiceLogger) error {
	b, err := runtimepkg.NewBridge(ctx, cfg, logger, runtimepkg.BridgeDependencies{})
	if err != nil {
		return err
	}
	return b.Run(ctx)
}
