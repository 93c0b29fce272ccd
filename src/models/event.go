package models

import (
	"time"

	"google.golang.org/protobuf/proto"
)

// MStreamEvent is one decoded item received on a stream. Payload is the
// broker message (a quote, an order book, a bar, an order state or a trade).
type MStreamEvent struct {
	Kind           StreamKind
	SubscriptionID string
	Payload        proto.Message
	ReceivedAt     time.Time
}

// MStreamError reports a stream failure to the application. Terminal is set
// when the runner stopped for good.
type MStreamError struct {
	Kind           StreamKind
	SubscriptionID string
	Err            error
	Terminal       bool
	At             time.Time
}

// MTokenDetails is the session metadata bound to a token.
type MTokenDetails struct {
	AccountIDs []string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ReadOnly   bool
}
