package io

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/omnibridge/transport"
	"github.com/drblury/omnibridge/transport/transporttest"
)

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, TransportName, transport.DefaultRegistry.Resolve("file"))
	assert.Equal(t, transport.IOCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	t.Run("opens configured file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tap.log")

		tr, err := Build(context.Background(), &transporttest.Config{EgressFile: path}, watermill.NopLogger{})
		require.NoError(t, err)
		defer tr.Close()

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("falls back to default path", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		var gotPath string
		PublisherFactory = func(filePath string, logger watermill.LoggerAdapter) (message.Publisher, error) {
			gotPath = filePath
			return &transporttest.Publisher{}, nil
		}

		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Equal(t, DefaultFilePath, gotPath)
	})

	t.Run("fails on unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "tap.log")
		_, err := Build(context.Background(), &transporttest.Config{EgressFile: path}, watermill.NopLogger{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "io: open")
	})
}

func TestPublisher_PublishAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.log")
	pub, err := NewPublisher(path, nil)
	require.NoError(t, err)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	first := message.NewMessage("id-1", []byte{0x12, 0x04, 'C', 'T', 'P', '1'})
	first.Metadata.Set("source_id", "CTP1")
	second := message.NewMessage("id-2", []byte("second"))

	require.NoError(t, pub.Publish("trade.CTP1", first))
	require.NoError(t, pub.Publish("trade.GW1", second))
	require.NoError(t, pub.Close())

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "id-1", records[0].UUID)
	assert.Equal(t, "trade.CTP1", records[0].RoutingKey)
	assert.Equal(t, "CTP1", records[0].Metadata["source_id"])
	assert.Equal(t, []byte{0x12, 0x04, 'C', 'T', 'P', '1'}, records[0].Payload)
	assert.True(t, records[0].WrittenAt.Equal(fixed))
	assert.Equal(t, "trade.GW1", records[1].RoutingKey)
}

func TestPublisher_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.log")
	for i := 0; i < 2; i++ {
		pub, err := NewPublisher(path, watermill.NopLogger{})
		require.NoError(t, err)
		require.NoError(t, pub.Publish("trade.GW1", message.NewMessage(watermill.NewUUID(), []byte("x"))))
		require.NoError(t, pub.Close())
	}

	records, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestPublisher_Close(t *testing.T) {
	pub, err := NewPublisher(filepath.Join(t.TempDir(), "tap.log"), nil)
	require.NoError(t, err)

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
	assert.ErrorIs(t, pub.Publish("trade.GW1", message.NewMessage("id", nil)), errClosed)
}

func TestReadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"uuid\":\"a\"}\n\nnot json\n"), 0o600))

	records, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Len(t, records, 1)
}
