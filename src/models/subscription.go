package models

import (
	"fmt"
	"strings"
	"time"
)

// StreamKind identifies one of the streaming endpoints of the trade API.
type StreamKind string

const (
	KindQuote        StreamKind = "quote"
	KindOrderBook    StreamKind = "order_book"
	KindLatestTrades StreamKind = "latest_trades"
	KindBars         StreamKind = "bars"
	KindOrderTrade   StreamKind = "order_trade"
)

// -----------------------------------------------------------------------------

// DataType is the set of own-account data a subscription wants.
type DataType uint8

const (
	DataTypeOrders DataType = 1 << iota
	DataTypeTrades

	DataTypeNone DataType = 0
	DataTypeAll           = DataTypeOrders | DataTypeTrades
)

func (d DataType) Has(other DataType) bool {
	return other != DataTypeNone && d&other == other
}

func (d DataType) String() string {
	switch d {
	case DataTypeAll:
		return "all"
	case DataTypeOrders:
		return "orders"
	case DataTypeTrades:
		return "trades"
	}
	return "none"
}

// ParseDataType accepts "all" (or empty), "orders" and "trades".
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return DataTypeAll, nil
	case "orders":
		return DataTypeOrders, nil
	case "trades":
		return DataTypeTrades, nil
	}
	return DataTypeNone, fmt.Errorf("unknown data type %q", s)
}

// -----------------------------------------------------------------------------

// OrderTradeAction is the verb of a command sent on the own-order/trade stream.
type OrderTradeAction int

const (
	ActionSubscribe OrderTradeAction = iota
	ActionUnsubscribe
)

func (a OrderTradeAction) String() string {
	if a == ActionUnsubscribe {
		return "unsubscribe"
	}
	return "subscribe"
}

// MOrderTradeCommand is one entry of the own-order/trade command queue.
type MOrderTradeCommand struct {
	Action    OrderTradeAction
	DataType  DataType
	AccountID string
}

// -----------------------------------------------------------------------------

// MSubscription is the application-side description of a stream subscription.
type MSubscription struct {
	ID        string     `json:"id"`
	Kind      StreamKind `json:"kind"`
	Symbols   []string   `json:"symbols,omitempty"`
	Timeframe string     `json:"timeframe,omitempty"`
	AccountID string     `json:"account_id,omitempty"`
	DataType  DataType   `json:"-"`
}

// RunnerState is the lifecycle state of a stream runner.
type RunnerState string

const (
	StateIdle         RunnerState = "idle"
	StateStreaming    RunnerState = "streaming"
	StateReconnecting RunnerState = "reconnecting"
	StateTerminated   RunnerState = "terminated"
)

// MSubscriptionStatus is a point-in-time view of a runner.
type MSubscriptionStatus struct {
	Subscription MSubscription `json:"subscription"`
	State        RunnerState   `json:"state"`
	Reconnects   int           `json:"reconnects"`
	Events       int64         `json:"events"`
	LastEventAt  time.Time     `json:"last_event_at"`
}
