package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"tradeapi-connector/src/config"
	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
	"tradeapi-connector/src/server"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)
	defer appLogger.Sync()

	// Lifecycle Management
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Setup Components
	recorder, err := setupRecorder(conf, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init event store: %v", err)
	}

	conn, err := setupClient(ctx, conf, appLogger)
	if err != nil {
		appLogger.Critical("Failed to connect: %v", err)
	}
	defer conn.Close()

	// 5. Relay server and event queue
	var relay interfaces.IEventRelay
	if conf.Port != 0 {
		relay = server.NewFastAPIServer(conf.MConfig, appLogger.Named("server"), conn)
		startServer(relay, appLogger)
		defer relay.Stop()
	}

	eventsChan := make(chan models.MStreamEvent, 4096)
	wireEvents(conn, eventsChan, relay, appLogger)

	// 6. Subscriptions listed in the configuration
	subscribeConfigured(conn, conf, recorder, appLogger)

	// 7. Run Main Loop (Blocking)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runEventLoop(ctx, eventsChan, recorder, appLogger)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down...")
	case <-conn.Done():
		appLogger.Info("Client closed, shutting down...")
		stop()
	}
	wg.Wait()

	if recorder != nil {
		recorder.Close()
	}
	appLogger.Info("Shutdown complete.")
}
