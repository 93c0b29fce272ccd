package main

import (
	"context"
	"time"

	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
)

const (
	flushInterval   = time.Second
	flushBatchSize  = 1000
	cleanupInterval = time.Hour
)

// -----------------------------------------------------------------------------

// runEventLoop batches queued events into the store until ctx is done. The
// last batch is flushed on exit.
func runEventLoop(ctx context.Context, eventsChan <-chan models.MStreamEvent, recorder interfaces.IEventRecorder, appLogger *logger.Logger) {
	flushTicker := time.NewTicker(flushInterval)
	defer flushTicker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	batch := make([]models.MStreamEvent, 0, flushBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if recorder != nil {
			start := time.Now()
			if err := recorder.SaveEvents(batch); err != nil {
				appLogger.Error("Failed to store %d event(s): %v", len(batch), err)
			} else {
				appLogger.Debug("Stored %d event(s) in %s", len(batch), time.Since(start))
			}
		}
		batch = batch[:0]
	}

	appLogger.Info("Starting event loop...")
	for {
		select {
		case ev := <-eventsChan:
			batch = append(batch, ev)
			if len(batch) >= flushBatchSize {
				flush()
			}

		case <-flushTicker.C:
			flush()

		case <-cleanupTicker.C:
			if recorder != nil {
				if err := recorder.CleanupOldData(); err != nil {
					appLogger.Warning("Cleanup failed: %v", err)
				}
			}

		case <-ctx.Done():
			// drain what is already queued
			for {
				select {
				case ev := <-eventsChan:
					batch = append(batch, ev)
					continue
				default:
				}
				break
			}
			flush()
			return
		}
	}
}
