// Package envelope defines the event envelope moved through the bridge and its
// protobuf binary encoding (see proto/omni/v1/envelope.proto).
package envelope

import "google.golang.org/protobuf/encoding/protowire"

// Kind identifies which payload variant an envelope carries.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindTick
	KindAccount
	KindPosition
	KindOrder
	KindTrade
	KindOther
)

var kindNames = [...]string{
	KindEmpty:    "empty",
	KindTick:     "tick",
	KindAccount:  "account",
	KindPosition: "position",
	KindOrder:    "order",
	KindTrade:    "trade",
	KindOther:    "other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "other"
}

// Kinds lists every payload kind, empty included.
func Kinds() []Kind {
	return []Kind{KindEmpty, KindTick, KindAccount, KindPosition, KindOrder, KindTrade, KindOther}
}

// EventEnvelope is the unit of transport. Payload is nil for an empty
// envelope and otherwise holds exactly one of the payload types below.
type EventEnvelope struct {
	TimestampNs int64
	SourceID    string
	Payload     Payload
}

// Kind reports the payload kind, KindEmpty when no payload is set.
func (e EventEnvelope) Kind() Kind {
	if e.Payload == nil {
		return KindEmpty
	}
	return e.Payload.Kind()
}

// Payload is the sealed one-of of envelope payload types.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Tick is a market-data snapshot.
type Tick struct {
	Exchange     string
	Symbol       string
	LastPrice    float64
	Volume       int64
	OpenInterest float64
}

// Account is the funding state of a trading account.
type Account struct {
	AccountID string
	Balance   float64
	Available float64
	Frozen    float64
}

// Position is an open-position snapshot.
type Position struct {
	Symbol    string
	Direction string
	Volume    int64
	OpenPrice float64
	LastPrice float64
	PnL       float64
}

// Order is an order lifecycle update.
type Order struct {
	OrderID   string
	Symbol    string
	Direction string
	Offset    string
	Price     float64
	Volume    int64
	Status    string
}

// Trade is an execution report.
type Trade struct {
	TradeID   string
	Symbol    string
	Direction string
	Offset    string
	Price     float64
	Volume    int64
}

// Other carries a payload kind unknown to this build. Tag is its field number
// on the wire and Raw the undecoded message body, so it can be forwarded as is.
// An empty body is represented by a nil Raw: Encode writes nil and []byte{}
// identically and Decode always returns nil for it.
type Other struct {
	Tag protowire.Number
	Raw []byte
}

func (Tick) Kind() Kind     { return KindTick }
func (Account) Kind() Kind  { return KindAccount }
func (Position) Kind() Kind { return KindPosition }
func (Order) Kind() Kind    { return KindOrder }
func (Trade) Kind() Kind    { return KindTrade }
func (Other) Kind() Kind    { return KindOther }

func (Tick) isPayload()     {}
func (Account) isPayload()  {}
func (Position) isPayload() {}
func (Order) isPayload()    {}
func (Trade) isPayload()    {}
func (Other) isPayload()    {}
