// Package cli implements the omnibridge command line.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drblury/omnibridge"
)

// RunFunc starts the bridge. Tests replace it to inspect the final config.
type RunFunc func(ctx context.Context, cfg omnibridge.Config, logger omnibridge.ServiceLogger) error

type options struct {
	envFiles    []string
	ingress     string
	egress      string
	exchange    string
	metricsPort int
	logLevel    string
	logFormat   string
	logTicks    bool
}

// NewRootCommand returns the omnibridge command. A nil run uses omnibridge.Run.
func NewRootCommand(run RunFunc) *cobra.Command {
	if run == nil {
		run = omnibridge.Run
	}
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "omnibridge",
		Short: "Route gateway trading events from ZeroMQ to a message broker",
		Long: `omnibridge binds a ZeroMQ PULL socket, decodes the protobuf EventFrame
envelopes gateways push to it, logs a summary of each and republishes it
to the configured broker under the routing key trade.<source_id>.

Configuration comes from the environment (CORE_ZMQ_BIND, RABBITMQ_URL,
OMNI_EGRESS, ...), optionally loaded from --env-file. Flags override both.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := omnibridge.LoadConfigFile(opts.envFiles...)
			if err != nil {
				return err
			}
			applyFlags(cmd, opts, &cfg)

			logger, err := omnibridge.NewLogger(cmd.OutOrStdout(), cfg)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			return run(cmd.Context(), cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv file(s) to load before reading the environment")
	flags.StringVar(&opts.ingress, "ingress", "", "ZeroMQ PULL bind address (CORE_ZMQ_BIND)")
	flags.StringVar(&opts.egress, "egress", "", "egress transport: rabbitmq, nats, nats-jetstream, kafka, aws, http, io, channel, none (OMNI_EGRESS)")
	flags.StringVar(&opts.exchange, "exchange", "", "RabbitMQ topic exchange (OMNI_EXCHANGE)")
	flags.IntVar(&opts.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (CORE_METRICS_PORT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (CORE_LOG_LEVEL)")
	flags.StringVar(&opts.logFormat, "log-format", "", "text or json (CORE_LOG_FORMAT)")
	flags.BoolVar(&opts.logTicks, "log-ticks", false, "log tick summaries at debug level (CORE_LOG_TICKS)")

	return cmd
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, opts *options, cfg *omnibridge.Config) {
	flags := cmd.Flags()
	if flags.Changed("ingress") {
		cfg.IngressBind = opts.ingress
	}
	if flags.Changed("egress") {
		cfg.EgressSystem = opts.egress
	}
	if flags.Changed("exchange") {
		cfg.Exchange = opts.exchange
	}
	if flags.Changed("metrics-port") {
		cfg.MetricsPort = opts.metricsPort
		cfg.MetricsEnabled = true
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = opts.logFormat
	}
	if flags.Changed("log-ticks") {
		cfg.LogTicks = opts.logTicks
	}
}

// ExitCode maps the error returned by the command onto the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 0
	default:
		return 1
	}
}
