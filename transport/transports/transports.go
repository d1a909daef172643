// Package transports imports every built-in egress transport so each one
// registers itself with the default registry.
package transports

import (
	_ "github.com/drblury/omnibridge/transport/aws"
	_ "github.com/drblury/omnibridge/transport/channel"
	_ "github.com/drblury/omnibridge/transport/http"
	_ "github.com/drblury/omnibridge/transport/io"
	_ "github.com/drblury/omnibridge/transport/jetstream"
	_ "github.com/drblury/omnibridge/transport/kafka"
	_ "github.com/drblury/omnibridge/transport/nats"
	_ "github.com/drblury/omnibridge/transport/rabbitmq"
)
