package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wmCall struct {
	level  string
	msg    string
	fields watermill.LogFields
	err    error
}

// wmSink implements watermill.LoggerAdapter; children append to the same calls.
type wmSink struct {
	calls *[]wmCall
	bound watermill.LogFields
}

func newWMSink() *wmSink { return &wmSink{calls: &[]wmCall{}} }

func (s *wmSink) add(level, msg string, err error, fields watermill.LogFields) {
	*s.calls = append(*s.calls, wmCall{level: level, msg: msg, fields: s.bound.Add(fields), err: err})
}

func (s *wmSink) Error(msg string, err error, fields watermill.LogFields) {
	s.add("error", msg, err, fields)
}
func (s *wmSink) Info(msg string, fields watermill.LogFields)  { s.add("info", msg, nil, fields) }
func (s *wmSink) Debug(msg string, fields watermill.LogFields) { s.add("debug", msg, nil, fields) }
func (s *wmSink) Trace(msg string, fields watermill.LogFields) { s.add("trace", msg, nil, fields) }

func (s *wmSink) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &wmSink{calls: s.calls, bound: s.bound.Add(fields)}
}

type svcCall struct {
	level  string
	msg    string
	fields LogFields
}

// svcSink implements ServiceLogger.
type svcSink struct {
	calls *[]svcCall
	bound LogFields
}

func (s *svcSink) add(level, msg string, fields LogFields) {
	merged := LogFields{}
	for k, v := range s.bound {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	*s.calls = append(*s.calls, svcCall{level: level, msg: msg, fields: merged})
}

func (s *svcSink) With(fields LogFields) ServiceLogger {
	return &svcSink{calls: s.calls, bound: fields}
}
func (s *svcSink) Debug(msg string, fields LogFields)          { s.add("debug", msg, fields) }
func (s *svcSink) Info(msg string, fields LogFields)           { s.add("info", msg, fields) }
func (s *svcSink) Error(msg string, _ error, fields LogFields) { s.add("error", msg, fields) }
func (s *svcSink) Trace(msg string, fields LogFields)          { s.add("trace", msg, fields) }

func TestServiceLoggerForwardsToWatermill(t *testing.T) {
	sink := newWMSink()
	logger := NewWatermillServiceLogger(sink)
	publishErr := errors.New("channel closed")

	logger.Debug("envelope decoded", LogFields{"payload_kind": "trade"})
	logger.Trace("tick suppressed", LogFields{"source_id": "GW1"})
	logger.Error("publish failed", publishErr, LogFields{"routing_key": "trade.GW1"})
	logger.With(LogFields{"component": "router"}).Info("router running", nil)

	calls := *sink.calls
	require.Len(t, calls, 4)
	assert.Equal(t, "debug", calls[0].level)
	assert.Equal(t, "trade", calls[0].fields["payload_kind"])
	assert.Equal(t, "trace", calls[1].level)
	assert.Equal(t, "error", calls[2].level)
	assert.ErrorIs(t, calls[2].err, publishErr)
	assert.Equal(t, "router running", calls[3].msg)
	assert.Equal(t, "router", calls[3].fields["component"])
}

func TestWatermillAdapterForwardsToServiceLogger(t *testing.T) {
	sink := &svcSink{calls: &[]svcCall{}}
	adapter := NewWatermillAdapter(sink)

	adapter.Debug("sending message", watermill.LogFields{"topic": "trade.GW1"})
	adapter.Info("connected", nil)
	adapter.Trace("published", nil)
	adapter.Error("cannot publish", errors.New("boom"), nil)
	adapter.With(watermill.LogFields{"exchange": "omni.topic"}).Info("declared", nil)

	calls := *sink.calls
	require.Len(t, calls, 5)
	assert.Equal(t, []string{"debug", "info", "trace", "error", "info"},
		[]string{calls[0].level, calls[1].level, calls[2].level, calls[3].level, calls[4].level})
	assert.Equal(t, "trade.GW1", calls[0].fields["topic"])
	assert.Equal(t, "omni.topic", calls[4].fields["exchange"])
}

func TestConstructorsRejectNil(t *testing.T) {
	assert.Panics(t, func() { NewWatermillServiceLogger(nil) })
	assert.Panics(t, func() { NewSlogServiceLogger(nil) })
	assert.Panics(t, func() { NewWatermillAdapter(nil) })
}

func TestFieldConversionKeepsNil(t *testing.T) {
	assert.Nil(t, toWatermillFields(nil))
	assert.Nil(t, fromWatermillFields(watermill.LogFields{}))
	assert.Equal(t, LogFields{"bytes": 42}, fromWatermillFields(toWatermillFields(LogFields{"bytes": 42})))
}

func TestNewSlogServiceLoggerWritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogServiceLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	logger.Info("egress connected", LogFields{"transport": "rabbitmq"})

	assert.Contains(t, buf.String(), `msg="egress connected"`)
	assert.Contains(t, buf.String(), "transport=rabbitmq")
}

func TestNew(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, FormatJSON, "info")
		require.NoError(t, err)

		logger.Info("router running", LogFields{"ingress": "tcp://127.0.0.1:5555"})
		assert.Contains(t, buf.String(), `"msg":"router running"`)
		assert.Contains(t, buf.String(), `"ingress":"tcp://127.0.0.1:5555"`)
	})

	t.Run("level filters lower entries", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(&buf, FormatText, "warn")
		require.NoError(t, err)

		logger.Debug("hidden", nil)
		logger.Info("hidden", nil)
		logger.Error("shown", errors.New("boom"), nil)
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, "xml", "info")
		assert.ErrorContains(t, err, `unsupported log format "xml"`)
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, FormatText, "loud")
		assert.ErrorContains(t, err, `log level "loud"`)
	})
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().With(LogFields{"a": 1}).Error("ignored", errors.New("boom"), nil)
	})
}
