package egress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/omnibridge/internal/runtime/envelope"
	errspkg "github.com/drblury/omnibridge/internal/runtime/errors"
	"github.com/drblury/omnibridge/internal/runtime/ids"
	"github.com/drblury/omnibridge/internal/runtime/logging/logtest"
	"github.com/drblury/omnibridge/internal/runtime/metadata"
	"github.com/drblury/omnibridge/transport"
	_ "github.com/drblury/omnibridge/transport/channel"
	"github.com/drblury/omnibridge/transport/transporttest"
)

var tradeEnvelope = envelope.EventEnvelope{
	TimestampNs: 1702449000000000000,
	SourceID:    "CTP1",
	Payload:     envelope.Trade{TradeID: "T1", Symbol: "IF2312", Direction: "Buy", Offset: "Open", Price: 4500, Volume: 2},
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "trade.GW1", RoutingKey("GW1"))
	assert.Equal(t, "trade.CTP1", RoutingKey("CTP1"))
	assert.Equal(t, "trade.", RoutingKey(""))
}

func TestNoEgress(t *testing.T) {
	assert.NoError(t, NoEgress.Publish(context.Background(), tradeEnvelope))
	assert.False(t, NoEgress.Enabled())
	assert.Equal(t, "none", NoEgress.Name())
	assert.NoError(t, NoEgress.Close())
}

func TestConnectDisabled(t *testing.T) {
	for _, system := range []string{"", "none", "NONE", " None "} {
		rec := logtest.New()
		ch := Connect(context.Background(), &transporttest.Config{EgressSystem: system}, rec)
		assert.Equal(t, NoEgress, ch, system)
		assert.Len(t, rec.ByMsg("egress disabled"), 1)
	}
}

func TestConnectFailureDegrades(t *testing.T) {
	rec := logtest.New()

	ch := Connect(context.Background(), &transporttest.Config{EgressSystem: "carrier-pigeon"}, rec)

	assert.Equal(t, NoEgress, ch)
	errs := rec.ByLevel("error")
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0].Err, errspkg.ErrBrokerConnect))
	var connectErr *errspkg.BrokerConnectError
	require.ErrorAs(t, errs[0].Err, &connectErr)
	assert.Equal(t, "carrier-pigeon", connectErr.Transport)
}

func TestConnectChannelPublishesUnderRoutingKey(t *testing.T) {
	rec := logtest.New()
	ch := Connect(context.Background(), &transporttest.Config{EgressSystem: "gochannel"}, rec)
	require.True(t, ch.Enabled())
	assert.Equal(t, "channel", ch.Name())
	t.Cleanup(func() { _ = ch.Close() })

	connected, ok := ch.(*Connected)
	require.True(t, ok)
	pubSub, ok := connected.Publisher().(*gochannel.GoChannel)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := pubSub.Subscribe(ctx, "trade.CTP1")
	require.NoError(t, err)

	require.NoError(t, ch.Publish(ctx, tradeEnvelope))

	select {
	case msg := <-messages:
		msg.Ack()
		decoded, err := envelope.Decode(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, tradeEnvelope, decoded)

		md := metadata.FromMessage(msg)
		assert.Equal(t, "CTP1", md[metadata.KeySourceID])
		assert.Equal(t, "trade", md[metadata.KeyPayloadKind])
		assert.Equal(t, "trade.CTP1", md[metadata.KeyRoutingKey])
		assert.Equal(t, "1702449000000000000", md[metadata.KeyTimestampNs])

		_, err = ids.Timestamp(msg.UUID)
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("no message forwarded")
	}
}

func TestPublishWrapsBrokerError(t *testing.T) {
	pub := &transporttest.Publisher{Err: errors.New("channel closed by broker")}
	ch, err := New("rabbitmq", transport.Transport{Publisher: pub}, transport.RabbitMQCapabilities, nil)
	require.NoError(t, err)

	err = ch.Publish(context.Background(), envelope.EventEnvelope{SourceID: "GW1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrPublish)
	var publishErr *errspkg.PublishError
	require.ErrorAs(t, err, &publishErr)
	assert.Equal(t, "trade.GW1", publishErr.RoutingKey)
	assert.Contains(t, err.Error(), "channel closed by broker")
}

func TestPublishRejectsOversizedEnvelope(t *testing.T) {
	pub := &transporttest.Publisher{}
	caps := transport.Capabilities{Name: "tiny", MaxMessageSize: 8}
	ch, err := New("tiny", transport.Transport{Publisher: pub}, caps, nil)
	require.NoError(t, err)

	err = ch.Publish(context.Background(), tradeEnvelope)

	assert.ErrorIs(t, err, errspkg.ErrPublish)
	assert.Contains(t, err.Error(), "exceeds tiny limit of 8 bytes")
	assert.Empty(t, pub.Calls())
}

func TestPublishCancelledContext(t *testing.T) {
	pub := &transporttest.Publisher{}
	ch, err := New("channel", transport.Transport{Publisher: pub}, transport.ChannelCapabilities, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = ch.Publish(ctx, tradeEnvelope)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.Calls())
}

func TestPublishRecordsTopic(t *testing.T) {
	pub := &transporttest.Publisher{}
	ch, err := New("channel", transport.Transport{Publisher: pub}, transport.ChannelCapabilities, nil)
	require.NoError(t, err)

	require.NoError(t, ch.Publish(context.Background(), envelope.EventEnvelope{SourceID: "GW1", Payload: envelope.Tick{Symbol: "rb2405"}}))

	calls := pub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "trade.GW1", calls[0].Topic)
	require.Len(t, calls[0].Messages, 1)
	assert.Equal(t, "tick", calls[0].Messages[0].Metadata.Get(metadata.KeyPayloadKind))
	assert.Empty(t, calls[0].Messages[0].Metadata.Get(metadata.KeyTimestampNs))

	require.NoError(t, ch.Close())
	assert.True(t, pub.Closed)
}

func TestNewRequiresPublisher(t *testing.T) {
	_, err := New("channel", transport.Transport{}, transport.ChannelCapabilities, nil)
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)
}
