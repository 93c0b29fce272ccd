package interfaces

import (
	"context"
	"sync"

	"tradeapi-connector/src/models"
)

// -----------------------------------------------------------------------------
// IRunner is a long-lived stream subscription driven by its own goroutine.
// -----------------------------------------------------------------------------

type IRunner interface {

	// ID returns the subscription correlation id
	ID() string

	// -----------------------------------------------------------------------------

	// Start launches the receive loop.
	// ctx: controls the lifecycle (cancellation terminates the runner)
	// wg: WaitGroup to signal when the runner has fully stopped
	Start(ctx context.Context, wg *sync.WaitGroup)

	// -----------------------------------------------------------------------------

	// Stop terminates the runner. Calling it twice is harmless.
	Stop()

	// -----------------------------------------------------------------------------

	// Status returns a point-in-time snapshot
	Status() models.MSubscriptionStatus
}
