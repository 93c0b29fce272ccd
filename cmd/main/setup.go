package main

import (
	"context"

	"tradeapi-connector/src/client"
	"tradeapi-connector/src/config"
	"tradeapi-connector/src/credentials"
	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
	"tradeapi-connector/src/storage"
)

// -----------------------------------------------------------------------------

// setupRecorder opens the event store selected in the config; nil when
// recording is disabled.
func setupRecorder(conf *config.Config, appLogger *logger.Logger) (interfaces.IEventRecorder, error) {
	recorder, err := storage.NewRecorder(conf, appLogger.Named("storage"))
	if err != nil || recorder == nil {
		return nil, err
	}
	if err := recorder.Initialize(); err != nil {
		return nil, err
	}
	if err := recorder.CleanupOldData(); err != nil {
		appLogger.Warning("Initial cleanup failed: %v", err)
	}
	return recorder, nil
}

// -----------------------------------------------------------------------------

// setupCredentials prefers the secret file, then the environment (.env).
func setupCredentials(conf *config.Config) (interfaces.ICredentialProvider, error) {
	var chain credentials.Chain
	if conf.Credentials.SecretPath != "" {
		chain = append(chain, credentials.NewFileStore(conf.Credentials.SecretPath))
	}
	env, err := credentials.NewEnvProvider(conf.Credentials.EnvFile, conf.Credentials.EnvVar)
	if err != nil {
		return nil, err
	}
	return append(chain, env), nil
}

// -----------------------------------------------------------------------------

func setupClient(ctx context.Context, conf *config.Config, appLogger *logger.Logger) (*client.Client, error) {
	creds, err := setupCredentials(conf)
	if err != nil {
		return nil, err
	}
	return client.New(ctx, conf, client.Options{
		Credentials: creds,
		Logger:      appLogger.Named("client"),
	})
}

// -----------------------------------------------------------------------------

// symbolExpander is implemented by stores that can resolve table references
// in symbol lists.
type symbolExpander interface {
	ExpandSymbols(raw []string) ([]string, error)
}

type subscriptionRegistry interface {
	RegisterSubscriptions(subs []models.MSubscription) error
}

// subscribeConfigured starts every subscription listed in the config.
// Failures are logged and skipped.
func subscribeConfigured(conn *client.Client, conf *config.Config, recorder interfaces.IEventRecorder, appLogger *logger.Logger) {
	expand := func(symbols []string) []string { return symbols }
	if expander, ok := recorder.(symbolExpander); ok {
		expand = func(symbols []string) []string {
			expanded, err := expander.ExpandSymbols(symbols)
			if err != nil {
				appLogger.Error("Failed to expand symbols %v: %v", symbols, err)
			}
			return expanded
		}
	}

	var subs []models.MSubscription
	add := func(sub models.MSubscription) {
		id, err := conn.Subscribe(sub)
		if err != nil {
			appLogger.Error("Failed to subscribe %s %v: %v", sub.Kind, sub.Symbols, err)
			return
		}
		sub.ID = id
		subs = append(subs, sub)
	}

	cfg := conf.Subscriptions
	for _, symbols := range cfg.Quotes {
		add(models.MSubscription{Kind: models.KindQuote, Symbols: expand(symbols)})
	}
	for _, symbol := range expand(cfg.OrderBooks) {
		add(models.MSubscription{Kind: models.KindOrderBook, Symbols: []string{symbol}})
	}
	for _, symbol := range expand(cfg.LatestTrades) {
		add(models.MSubscription{Kind: models.KindLatestTrades, Symbols: []string{symbol}})
	}
	for _, bars := range cfg.Bars {
		add(models.MSubscription{Kind: models.KindBars, Symbols: []string{bars.Symbol}, Timeframe: bars.Timeframe})
	}

	for _, ot := range cfg.OrderTrades {
		types, _ := models.ParseDataType(ot.DataType) // validated with the config
		// an empty account id covers every account of the session
		if _, err := conn.SubscribeOrderTrade(ot.AccountID, types); err != nil {
			appLogger.Error("Failed to subscribe orders/trades of %q: %v", ot.AccountID, err)
		}
	}

	if registry, ok := recorder.(subscriptionRegistry); ok {
		if err := registry.RegisterSubscriptions(subs); err != nil {
			appLogger.Warning("Failed to register subscriptions: %v", err)
		}
	}
	appLogger.Info("%d subscription(s) active", len(conn.Subscriptions()))
}
