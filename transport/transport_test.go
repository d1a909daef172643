package transport_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/omnibridge/transport"
	"github.com/drblury/omnibridge/transport/transporttest"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestConfig_Interface(t *testing.T) {
	var _ transport.Config = (*transporttest.Config)(nil)
}

func TestTransportClose(t *testing.T) {
	pub := &transporttest.Publisher{}
	var order []string
	tr := transport.Transport{
		Publisher: pub,
		Closers: []io.Closer{
			closerFunc(func() error { order = append(order, "conn"); return nil }),
			closerFunc(func() error { order = append(order, "client"); return nil }),
		},
	}

	assert.NoError(t, tr.Close())
	assert.True(t, pub.Closed)
	assert.Equal(t, []string{"conn", "client"}, order)
}

func TestTransportCloseJoinsErrors(t *testing.T) {
	connErr := errors.New("conn already closed")
	tr := transport.Transport{
		Publisher: &transporttest.Publisher{},
		Closers:   []io.Closer{closerFunc(func() error { return connErr })},
	}

	assert.ErrorIs(t, tr.Close(), connErr)
}

func TestTransportCloseEmpty(t *testing.T) {
	assert.NoError(t, transport.Transport{}.Close())
}

func TestDisabled(t *testing.T) {
	for name, want := range map[string]bool{
		"":         true,
		"none":     true,
		" NONE ":   true,
		"rabbitmq": false,
		"nonesuch": false,
	} {
		assert.Equal(t, want, transport.Disabled(name), "%q", name)
	}
}
