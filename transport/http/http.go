// Package http forwards envelopes as webhook POSTs. The routing key is
// path-escaped and appended to the configured base URL, e.g.
// http://hub/events/trade.GW1.
package http

import (
	"context"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/omnibridge/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// ContentType is set on every request; bodies are encoded envelopes.
const ContentType = "application/x-protobuf"

// RequestTimeout bounds each webhook call.
const RequestTimeout = 5 * time.Second

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

func init() {
	transport.Register(TransportName, Build, transport.HTTPCapabilities)
	transport.Alias("webhook", TransportName)
}

// Build creates the webhook publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	baseURL := cfg.GetHTTPPublishURL()
	if baseURL == "" {
		return transport.Transport{}, fmt.Errorf("http: publish URL is required")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: marshalRequest(baseURL),
			Client:             &nethttp.Client{Timeout: RequestTimeout},
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher}, nil
}

func marshalRequest(baseURL string) http.MarshalMessageFunc {
	return func(topic string, msg *message.Message) (*nethttp.Request, error) {
		req, err := http.DefaultMarshalMessageFunc(baseURL+url.PathEscape(topic), msg)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", ContentType)
		return req, nil
	}
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
