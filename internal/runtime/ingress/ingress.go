// Package ingress receives raw envelope frames from a ZeroMQ PULL socket.
package ingress

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/go-zeromq/zmq4"

	errspkg "github.com/drblury/omnibridge/internal/runtime/errors"
	"github.com/drblury/omnibridge/internal/runtime/logging"
)

// Socket is the subset of zmq4.Socket the adapter uses.
type Socket interface {
	Listen(endpoint string) error
	Recv() (zmq4.Msg, error)
	Addr() net.Addr
	Close() error
}

// SocketFactory creates the PULL socket. Tests replace it with a fake.
var SocketFactory = func(ctx context.Context) Socket {
	return zmq4.NewPull(ctx)
}

// RawMessage is one received message: an ordered list of opaque frames.
type RawMessage struct {
	Frames [][]byte
}

// Envelope returns frame 0, the encoded envelope. Further frames are ignored.
// ok is false when the message carries no frames.
func (m RawMessage) Envelope() ([]byte, bool) {
	if len(m.Frames) == 0 {
		return nil, false
	}
	return m.Frames[0], true
}

// Adapter owns the bound PULL socket.
type Adapter struct {
	address string
	socket  Socket
	logger  logging.ServiceLogger
	closed  atomic.Bool
}

// Bind opens a PULL socket listening on address. The socket is closed when
// ctx is cancelled.
func Bind(ctx context.Context, address string, logger logging.ServiceLogger) (*Adapter, error) {
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	socket := SocketFactory(ctx)
	if err := socket.Listen(address); err != nil {
		_ = socket.Close()
		return nil, &errspkg.BindError{Address: address, Err: err}
	}
	logger.Info("ingress listening", logging.LogFields{"address": address})
	return &Adapter{address: address, socket: socket, logger: logger}, nil
}

// Receive blocks until a message arrives. A peer disconnecting surfaces from
// zmq4 as io.EOF; it is logged at debug level and receiving continues.
// Socket failures are returned as *errors.TransportError; a cancelled ctx
// returns ctx.Err().
func (a *Adapter) Receive(ctx context.Context) (RawMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return RawMessage{}, err
		}
		msg, err := a.socket.Recv()
		if err == nil {
			return RawMessage{Frames: msg.Frames}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RawMessage{}, ctxErr
		}
		if errors.Is(err, io.EOF) && !a.closed.Load() {
			a.logger.Debug("ingress peer disconnected", logging.LogFields{"address": a.address})
			continue
		}
		return RawMessage{}, &errspkg.TransportError{Op: "receive", Err: err}
	}
}

// Address is the configured bind address.
func (a *Adapter) Address() string {
	return a.address
}

// Addr is the address the socket actually listens on, which differs from
// Address when binding port 0.
func (a *Adapter) Addr() net.Addr {
	return a.socket.Addr()
}

func (a *Adapter) Close() error {
	a.closed.Store(true)
	if err := a.socket.Close(); err != nil {
		return &errspkg.TransportError{Op: "close", Err: err}
	}
	return nil
}
