package interfaces

import "tradeapi-connector/src/models"

// -----------------------------------------------------------------------------
// IEventRelay defines the interface for pushing stream events to external
// listeners (WebSocket clients of the observer).
// -----------------------------------------------------------------------------

type IEventRelay interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes one event to every connected listener and keeps it in
	// the recent-events buffer of its kind.
	Broadcast(event models.MStreamEvent)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
