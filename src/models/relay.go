package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Relay message pushed to WebSocket clients
// -----------------------------------------------------------------------------

type MRelayMessage struct {
	Type           string          `json:"type"` // "INITIAL" or "UPDATE"
	Kind           StreamKind      `json:"kind"`
	SubscriptionID string          `json:"subscription_id"`
	ReceivedAt     int64           `json:"received_at"`
	Payload        json.RawMessage `json:"payload"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string       `json:"command"`
	Kinds   []StreamKind `json:"kinds"`
}

// MAddSubscriptionRequest is the body of POST /api/subscriptions.
type MAddSubscriptionRequest struct {
	Kind      StreamKind `json:"kind" binding:"required"`
	Symbols   []string   `json:"symbols"`
	Timeframe string     `json:"timeframe"`
	AccountID string     `json:"account_id"`
	DataType  string     `json:"data_type"`
}
