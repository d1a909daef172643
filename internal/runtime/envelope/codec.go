package envelope

import (
	"fmt"
	"math"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	errspkg "github.com/drblury/omnibridge/internal/runtime/errors"
)

// Envelope field numbers.
const (
	fieldTimestampNs protowire.Number = 1
	fieldSourceID    protowire.Number = 2

	// FirstPayloadField is the lowest field number of the payload one-of.
	FirstPayloadField protowire.Number = 10

	fieldTick     protowire.Number = 10
	fieldAccount  protowire.Number = 11
	fieldPosition protowire.Number = 12
	fieldOrder    protowire.Number = 13
	fieldTrade    protowire.Number = 14
)

// Encode serialises e. The output is deterministic for a given value: fields
// are written in ascending number order and proto3 zero values are omitted.
// The only failure is an Other payload with a tag outside the open payload range.
func Encode(e EventEnvelope) ([]byte, error) {
	var b []byte
	b = appendInt64(b, fieldTimestampNs, e.TimestampNs)
	b = appendString(b, fieldSourceID, e.SourceID)

	switch p := e.Payload.(type) {
	case nil:
	case Tick:
		b = appendMessage(b, fieldTick, p.appendFields(nil))
	case Account:
		b = appendMessage(b, fieldAccount, p.appendFields(nil))
	case Position:
		b = appendMessage(b, fieldPosition, p.appendFields(nil))
	case Order:
		b = appendMessage(b, fieldOrder, p.appendFields(nil))
	case Trade:
		b = appendMessage(b, fieldTrade, p.appendFields(nil))
	case Other:
		if isKnownPayloadField(p.Tag) || p.Tag < FirstPayloadField || p.Tag > protowire.MaxValidNumber {
			return nil, fmt.Errorf("%w: other payload tag %d is reserved", errspkg.ErrInvalidPayload, p.Tag)
		}
		b = appendMessage(b, p.Tag, p.Raw)
	}
	return b, nil
}

// Decode parses b into an envelope. It never panics; malformed input returns a
// *errors.DecodeError. An envelope with more than one payload field is rejected.
func Decode(b []byte) (EventEnvelope, error) {
	var e EventEnvelope
	s := fieldScanner{b: b}
	for s.more() {
		start := s.pos
		num, typ, err := s.tag()
		if err != nil {
			return EventEnvelope{}, err
		}

		switch {
		case num == fieldTimestampNs:
			e.TimestampNs, err = s.readInt64(num, typ)
		case num == fieldSourceID:
			e.SourceID, err = s.readString(num, typ)
		case isKnownPayloadField(num) || (num >= FirstPayloadField && typ == protowire.BytesType):
			var p Payload
			p, err = s.payload(num, typ)
			if err == nil && e.Payload != nil {
				err = &errspkg.DecodeError{Offset: start, Reason: "envelope carries more than one payload"}
			}
			e.Payload = p
		default:
			err = s.skip(num, typ)
		}
		if err != nil {
			return EventEnvelope{}, err
		}
	}
	return e, nil
}

func isKnownPayloadField(num protowire.Number) bool {
	return num >= fieldTick && num <= fieldTrade
}

func (s *fieldScanner) payload(num protowire.Number, typ protowire.Type) (Payload, error) {
	raw, err := s.readBytes(num, typ)
	if err != nil {
		return nil, err
	}
	sub := fieldScanner{b: raw, pos: s.pos - len(raw)}

	switch num {
	case fieldTick:
		return sub.tick()
	case fieldAccount:
		return sub.account()
	case fieldPosition:
		return sub.position()
	case fieldOrder:
		return sub.order()
	case fieldTrade:
		return sub.trade()
	}

	other := Other{Tag: num}
	if len(raw) > 0 {
		other.Raw = append([]byte(nil), raw...)
	}
	return other, nil
}

func (t Tick) appendFields(b []byte) []byte {
	b = appendString(b, 1, t.Exchange)
	b = appendString(b, 2, t.Symbol)
	b = appendDouble(b, 3, t.LastPrice)
	b = appendInt64(b, 4, t.Volume)
	b = appendDouble(b, 5, t.OpenInterest)
	return b
}

func (s *fieldScanner) tick() (Tick, error) {
	var t Tick
	err := s.each(func(num protowire.Number, typ protowire.Type) (err error) {
		switch num {
		case 1:
			t.Exchange, err = s.readString(num, typ)
		case 2:
			t.Symbol, err = s.readString(num, typ)
		case 3:
			t.LastPrice, err = s.readDouble(num, typ)
		case 4:
			t.Volume, err = s.readInt64(num, typ)
		case 5:
			t.OpenInterest, err = s.readDouble(num, typ)
		default:
			err = s.skip(num, typ)
		}
		return err
	})
	return t, err
}

func (a Account) appendFields(b []byte) []byte {
	b = appendString(b, 1, a.AccountID)
	b = appendDouble(b, 2, a.Balance)
	b = appendDouble(b, 3, a.Available)
	b = appendDouble(b, 4, a.Frozen)
	return b
}

func (s *fieldScanner) account() (Account, error) {
	var a Account
	err := s.each(func(num protowire.Number, typ protowire.Type) (err error) {
		switch num {
		case 1:
			a.AccountID, err = s.readString(num, typ)
		case 2:
			a.Balance, err = s.readDouble(num, typ)
		case 3:
			a.Available, err = s.readDouble(num, typ)
		case 4:
			a.Frozen, err = s.readDouble(num, typ)
		default:
			err = s.skip(num, typ)
		}
		return err
	})
	return a, err
}

func (p Position) appendFields(b []byte) []byte {
	b = appendString(b, 1, p.Symbol)
	b = appendString(b, 2, p.Direction)
	b = appendInt64(b, 3, p.Volume)
	b = appendDouble(b, 4, p.OpenPrice)
	b = appendDouble(b, 5, p.LastPrice)
	b = appendDouble(b, 6, p.PnL)
	return b
}

func (s *fieldScanner) position() (Position, error) {
	var p Position
	err := s.each(func(num protowire.Number, typ protowire.Type) (err error) {
		switch num {
		case 1:
			p.Symbol, err = s.readString(num, typ)
		case 2:
			p.Direction, err = s.readString(num, typ)
		case 3:
			p.Volume, err = s.readInt64(num, typ)
		case 4:
			p.OpenPrice, err = s.readDouble(num, typ)
		case 5:
			p.LastPrice, err = s.readDouble(num, typ)
		case 6:
			p.PnL, err = s.readDouble(num, typ)
		default:
			err = s.skip(num, typ)
		}
		return err
	})
	return p, err
}

func (o Order) appendFields(b []byte) []byte {
	b = appendString(b, 1, o.OrderID)
	b = appendString(b, 2, o.Symbol)
	b = appendString(b, 3, o.Direction)
	b = appendString(b, 4, o.Offset)
	b = appendDouble(b, 5, o.Price)
	b = appendInt64(b, 6, o.Volume)
	b = appendString(b, 7, o.Status)
	return b
}

func (s *fieldScanner) order() (Order, error) {
	var o Order
	err := s.each(func(num protowire.Number, typ protowire.Type) (err error) {
		switch num {
		case 1:
			o.OrderID, err = s.readString(num, typ)
		case 2:
			o.Symbol, err = s.readString(num, typ)
		case 3:
			o.Direction, err = s.readString(num, typ)
		case 4:
			o.Offset, err = s.readString(num, typ)
		case 5:
			o.Price, err = s.readDouble(num, typ)
		case 6:
			o.Volume, err = s.readInt64(num, typ)
		case 7:
			o.Status, err = s.readString(num, typ)
		default:
			err = s.skip(num, typ)
		}
		return err
	})
	return o, err
}

func (t Trade) appendFields(b []byte) []byte {
	b = appendString(b, 1, t.TradeID)
	b = appendString(b, 2, t.Symbol)
	b = appendString(b, 3, t.Direction)
	b = appendString(b, 4, t.Offset)
	b = appendDouble(b, 5, t.Price)
	b = appendInt64(b, 6, t.Volume)
	return b
}

func (s *fieldScanner) trade() (Trade, error) {
	var t Trade
	err := s.each(func(num protowire.Number, typ protowire.Type) (err error) {
		switch num {
		case 1:
			t.TradeID, err = s.readString(num, typ)
		case 2:
			t.Symbol, err = s.readString(num, typ)
		case 3:
			t.Direction, err = s.readString(num, typ)
		case 4:
			t.Offset, err = s.readString(num, typ)
		case 5:
			t.Price, err = s.readDouble(num, typ)
		case 6:
			t.Volume, err = s.readInt64(num, typ)
		default:
			err = s.skip(num, typ)
		}
		return err
	})
	return t, err
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// appendDouble omits only positive zero so that -0 survives a round trip.
func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	bits := math.Float64bits(v)
	if bits == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, bits)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// appendMessage always writes the field, even with an empty body, so that a
// zero-valued payload keeps its one-of presence.
func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

// fieldScanner walks a protobuf message. pos is the offset of b[0] within the
// outermost buffer and is only used for error reporting.
type fieldScanner struct {
	b   []byte
	pos int
}

func (s *fieldScanner) more() bool { return len(s.b) > 0 }

func (s *fieldScanner) advance(n int) {
	s.b = s.b[n:]
	s.pos += n
}

func (s *fieldScanner) each(fn func(num protowire.Number, typ protowire.Type) error) error {
	for s.more() {
		num, typ, err := s.tag()
		if err != nil {
			return err
		}
		if err := fn(num, typ); err != nil {
			return err
		}
	}
	return nil
}

func (s *fieldScanner) tag() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(s.b)
	if n < 0 {
		return 0, 0, s.fail(n)
	}
	s.advance(n)
	return num, typ, nil
}

func (s *fieldScanner) readBytes(num protowire.Number, typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, s.mismatch(num, typ)
	}
	v, n := protowire.ConsumeBytes(s.b)
	if n < 0 {
		return nil, s.fail(n)
	}
	s.advance(n)
	return v, nil
}

func (s *fieldScanner) readString(num protowire.Number, typ protowire.Type) (string, error) {
	v, err := s.readBytes(num, typ)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(v) {
		return "", &errspkg.DecodeError{
			Offset: s.pos - len(v),
			Reason: fmt.Sprintf("field %d is not valid UTF-8", num),
		}
	}
	return string(v), nil
}

func (s *fieldScanner) readDouble(num protowire.Number, typ protowire.Type) (float64, error) {
	if typ != protowire.Fixed64Type {
		return 0, s.mismatch(num, typ)
	}
	v, n := protowire.ConsumeFixed64(s.b)
	if n < 0 {
		return 0, s.fail(n)
	}
	s.advance(n)
	return math.Float64frombits(v), nil
}

func (s *fieldScanner) readInt64(num protowire.Number, typ protowire.Type) (int64, error) {
	if typ != protowire.VarintType {
		return 0, s.mismatch(num, typ)
	}
	v, n := protowire.ConsumeVarint(s.b)
	if n < 0 {
		return 0, s.fail(n)
	}
	s.advance(n)
	return int64(v), nil
}

func (s *fieldScanner) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, s.b)
	if n < 0 {
		return s.fail(n)
	}
	s.advance(n)
	return nil
}

func (s *fieldScanner) fail(code int) error {
	return &errspkg.DecodeError{Offset: s.pos, Reason: protowire.ParseError(code).Error()}
}

func (s *fieldScanner) mismatch(num protowire.Number, typ protowire.Type) error {
	return &errspkg.DecodeError{
		Offset: s.pos,
		Reason: fmt.Sprintf("field %d has unexpected wire type %d", num, typ),
	}
}
