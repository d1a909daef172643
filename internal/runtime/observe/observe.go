// Package observe turns decoded envelopes into human-readable summaries.
package observe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/drblury/omnibridge/internal/runtime/envelope"
	"github.com/drblury/omnibridge/internal/runtime/logging"
)

// Summary is the observation produced for one envelope.
type Summary struct {
	Kind envelope.Kind
	// Suppressed is set for high-frequency kinds that are not logged by default.
	Suppressed bool
	Line       string
	Fields     logging.LogFields
}

// Summarize classifies e and formats its summary line. It has no side effects.
func Summarize(e envelope.EventEnvelope) Summary {
	fields := logging.LogFields{"source_id": e.SourceID, "payload_kind": e.Kind().String()}

	switch p := e.Payload.(type) {
	case nil:
		return Summary{
			Kind:   envelope.KindEmpty,
			Line:   fmt.Sprintf("empty event from %s", e.SourceID),
			Fields: fields,
		}
	case envelope.Tick:
		fields["symbol"] = p.Symbol
		fields["last_price"] = p.LastPrice
		return Summary{
			Kind:       envelope.KindTick,
			Suppressed: true,
			Line:       fmt.Sprintf("tick %s last_price=%s", p.Symbol, formatNumber(p.LastPrice)),
			Fields:     fields,
		}
	case envelope.Account:
		fields["account_id"] = p.AccountID
		fields["balance"] = p.Balance
		fields["available"] = p.Available
		return Summary{
			Kind: envelope.KindAccount,
			Line: fmt.Sprintf("account %s balance=%s available=%s",
				p.AccountID, formatNumber(p.Balance), formatNumber(p.Available)),
			Fields: fields,
		}
	case envelope.Position:
		fields["symbol"] = p.Symbol
		fields["direction"] = p.Direction
		fields["volume"] = p.Volume
		return Summary{
			Kind:   envelope.KindPosition,
			Line:   fmt.Sprintf("position %s direction=%s volume=%d", p.Symbol, p.Direction, p.Volume),
			Fields: fields,
		}
	case envelope.Order:
		fields["symbol"] = p.Symbol
		fields["status"] = p.Status
		fields["price"] = p.Price
		fields["volume"] = p.Volume
		return Summary{
			Kind: envelope.KindOrder,
			Line: fmt.Sprintf("order %s status=%s price=%s volume=%d",
				p.Symbol, p.Status, formatNumber(p.Price), p.Volume),
			Fields: fields,
		}
	case envelope.Trade:
		fields["symbol"] = p.Symbol
		fields["price"] = p.Price
		fields["volume"] = p.Volume
		return Summary{
			Kind:   envelope.KindTrade,
			Line:   fmt.Sprintf("trade %s price=%s volume=%d", p.Symbol, formatNumber(p.Price), p.Volume),
			Fields: fields,
		}
	case envelope.Other:
		fields["tag"] = int32(p.Tag)
		return Summary{
			Kind:   envelope.KindOther,
			Line:   fmt.Sprintf("other event from %s (tag %d)", e.SourceID, p.Tag),
			Fields: fields,
		}
	default:
		fields["payload_kind"] = envelope.KindOther.String()
		return Summary{
			Kind:   envelope.KindOther,
			Line:   fmt.Sprintf("other event from %s (%T)", e.SourceID, p),
			Fields: fields,
		}
	}
}

// formatNumber prints v without trailing zeros but keeps one decimal place,
// so 4500 reads 4500.0.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// Observer logs envelope summaries.
type Observer struct {
	logger   logging.ServiceLogger
	logTicks bool
}

// Option configures an Observer.
type Option func(*Observer)

// WithTicks logs tick summaries at debug level instead of dropping them.
func WithTicks(enabled bool) Option {
	return func(o *Observer) { o.logTicks = enabled }
}

// New returns an Observer writing to logger.
func New(logger logging.ServiceLogger, opts ...Option) *Observer {
	if logger == nil {
		logger = logging.Nop()
	}
	o := &Observer{logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Observe logs the summary of e and returns it.
func (o *Observer) Observe(e envelope.EventEnvelope) Summary {
	s := Summarize(e)
	if s.Suppressed {
		if o.logTicks {
			o.logger.Debug(s.Line, s.Fields)
		}
		return s
	}
	o.logger.Info(s.Line, s.Fields)
	return s
}
