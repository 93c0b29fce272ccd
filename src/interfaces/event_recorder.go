package interfaces

import "tradeapi-connector/src/models"

// -----------------------------------------------------------------------------
// IEventRecorder defines the contract for persisting received stream events.
// -----------------------------------------------------------------------------

type IEventRecorder interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveEvents inserts a batch of events.
	SaveEvents(events []models.MStreamEvent) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes events older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
