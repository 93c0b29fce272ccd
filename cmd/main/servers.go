package main

import (
	"tradeapi-connector/src/client"
	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
)

// -----------------------------------------------------------------------------

// startServer runs the relay server in the background.
func startServer(srv interfaces.IEventRelay, appLogger *logger.Logger) {
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

// wireEvents subscribes the event queue and the relay to every dispatcher.
// Handlers must not block: a full queue drops the event for storage only.
func wireEvents(conn *client.Client, eventsChan chan<- models.MStreamEvent, relay interfaces.IEventRelay, appLogger *logger.Logger) {
	forward := func(ev models.MStreamEvent) {
		if relay != nil {
			relay.Broadcast(ev)
		}
		select {
		case eventsChan <- ev:
		default:
			appLogger.Warning("event queue full, %s event of %s not stored", ev.Kind, ev.SubscriptionID)
		}
	}

	conn.OnQuote.SubscribeFunc(forward)
	conn.OnOrderBook.SubscribeFunc(forward)
	conn.OnLatestTrades.SubscribeFunc(forward)
	conn.OnBar.SubscribeFunc(forward)
	conn.OnOrder.SubscribeFunc(forward)
	conn.OnTrade.SubscribeFunc(forward)

	conn.OnError.SubscribeFunc(func(e models.MStreamError) {
		if e.Terminal {
			appLogger.Error("%s stream %s stopped: %v", e.Kind, e.SubscriptionID, e.Err)
			return
		}
		appLogger.Warning("%s stream %s disrupted: %v", e.Kind, e.SubscriptionID, e.Err)
	})
}
