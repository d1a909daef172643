package http

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	watermillhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/omnibridge/transport"
	"github.com/drblury/omnibridge/transport/transporttest"
)

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, TransportName, transport.DefaultRegistry.Resolve("webhook"))
	assert.Equal(t, transport.HTTPCapabilities, Capabilities())
}

type received struct {
	path        string
	requestURI  string
	contentType string
	uuid        string
	body        []byte
}

func webhook(t *testing.T, status int) (*httptest.Server, func() []received) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []received
	)
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, received{
			path:        r.URL.Path,
			requestURI:  r.RequestURI,
			contentType: r.Header.Get("Content-Type"),
			uuid:        r.Header.Get(watermillhttp.HeaderUUID),
			body:        body,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), reqs...)
	}
}

func TestBuild(t *testing.T) {
	t.Run("posts envelope under routing key path", func(t *testing.T) {
		srv, requests := webhook(t, nethttp.StatusAccepted)

		tr, err := Build(context.Background(), &transporttest.Config{HTTPPublishURL: srv.URL + "/events"}, watermill.NopLogger{})
		require.NoError(t, err)
		defer tr.Close()

		msg := message.NewMessage("id-1", []byte{0x12, 0x03, 'G', 'W', '1'})
		require.NoError(t, tr.Publisher.Publish("trade.GW1", msg))

		reqs := requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/events/trade.GW1", reqs[0].path)
		assert.Equal(t, ContentType, reqs[0].contentType)
		assert.Equal(t, "id-1", reqs[0].uuid)
		assert.Equal(t, []byte{0x12, 0x03, 'G', 'W', '1'}, reqs[0].body)
	})

	t.Run("escapes reserved characters in routing key", func(t *testing.T) {
		srv, requests := webhook(t, nethttp.StatusAccepted)

		tr, err := Build(context.Background(), &transporttest.Config{HTTPPublishURL: srv.URL + "/events/"}, watermill.NopLogger{})
		require.NoError(t, err)
		defer tr.Close()

		require.NoError(t, tr.Publisher.Publish("trade.desk/1?x=y#z", message.NewMessage("id-3", []byte("x"))))

		reqs := requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "/events/trade.desk%2F1%3Fx=y%23z", reqs[0].requestURI)
		assert.Equal(t, "/events/trade.desk/1?x=y#z", reqs[0].path)
	})

	t.Run("server error fails publish", func(t *testing.T) {
		srv, _ := webhook(t, nethttp.StatusServiceUnavailable)

		tr, err := Build(context.Background(), &transporttest.Config{HTTPPublishURL: srv.URL + "/events/"}, watermill.NopLogger{})
		require.NoError(t, err)
		defer tr.Close()

		assert.Error(t, tr.Publisher.Publish("trade.GW1", message.NewMessage("id-2", []byte("x"))))
	})

	t.Run("requires url", func(t *testing.T) {
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "publish URL is required")
	})

	t.Run("returns error when publisher factory fails", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		PublisherFactory = func(watermillhttp.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), &transporttest.Config{HTTPPublishURL: "http://hub/events/"}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "publisher error")
	})
}
