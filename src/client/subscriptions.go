package client

import (
	"context"
	"fmt"
	"time"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/models"
	"tradeapi-connector/src/stream"
	"tradeapi-connector/src/tradeapi"
	"tradeapi-connector/src/utils"

	"google.golang.org/protobuf/proto"
)

// -----------------------------------------------------------------------------
// One-way market data streams
// -----------------------------------------------------------------------------

// SubscribeQuote streams quotes of symbols ("ticker@mic").
func (c *Client) SubscribeQuote(symbols ...string) (string, error) {
	return c.Subscribe(models.MSubscription{Kind: models.KindQuote, Symbols: symbols})
}

// SubscribeOrderBook streams the order book of symbol.
func (c *Client) SubscribeOrderBook(symbol string) (string, error) {
	return c.Subscribe(models.MSubscription{Kind: models.KindOrderBook, Symbols: []string{symbol}})
}

// SubscribeLatestTrades streams anonymous trades of symbol.
func (c *Client) SubscribeLatestTrades(symbol string) (string, error) {
	return c.Subscribe(models.MSubscription{Kind: models.KindLatestTrades, Symbols: []string{symbol}})
}

// SubscribeBars streams bars of symbol; timeframe is "M1".."QR1" or a broker
// enum name.
func (c *Client) SubscribeBars(symbol, timeframe string) (string, error) {
	return c.Subscribe(models.MSubscription{Kind: models.KindBars, Symbols: []string{symbol}, Timeframe: timeframe})
}

// Subscribe starts a one-way stream and returns its correlation id. An id is
// generated when sub.ID is empty.
func (c *Client) Subscribe(sub models.MSubscription) (string, error) {
	if c.ctx.Err() != nil {
		return "", fmt.Errorf("client is closed")
	}
	if len(sub.Symbols) == 0 {
		return "", fmt.Errorf("%s subscription needs at least one symbol", sub.Kind)
	}
	binding, ok := tradeapi.Binding(sub.Kind)
	if !ok || sub.Kind == models.KindOrderTrade {
		return "", fmt.Errorf("unsupported stream kind %q", sub.Kind)
	}
	dispatch, err := c.dispatcher(sub.Kind)
	if err != nil {
		return "", err
	}
	req, err := c.schema.BuildSubscribeRequest(sub)
	if err != nil {
		return "", err
	}
	if _, err := c.schema.New(binding.Response); err != nil {
		return "", err
	}
	if sub.ID == "" {
		sub.ID = newSubscriptionID()
	}

	conn := c.cfg.Connection
	scheduler := utils.NewMarketScheduler(sub.Symbols, c.logger.Named("calendar"))
	log := c.logger.Named(string(sub.Kind))

	runner := stream.NewRunner(stream.RunnerConfig{
		Subscription: sub,
		Open: func(ctx context.Context) (stream.Receiver, error) {
			return stream.OpenServerStream(ctx, c.session, binding.Method, req, func() (proto.Message, error) {
				return c.schema.New(binding.Response)
			})
		},
		Dispatch: func(resp proto.Message) int {
			now := time.Now()
			items := binding.Events(resp)
			for _, item := range items {
				dispatch.Trigger(models.MStreamEvent{Kind: sub.Kind, SubscriptionID: sub.ID, Payload: item, ReceivedAt: now})
			}
			return len(items)
		},
		OnError: c.OnError.Trigger,
		Backoff: stream.Backoff{
			Delay:  time.Duration(conn.ReconnectDelaySeconds) * time.Second,
			Jitter: conn.ReconnectJitter,
			Sleep:  c.sleep,
		},
		StallTimeout: time.Duration(conn.StallTimeoutSeconds) * time.Second,
		MarketOpen:   scheduler.AnyMarketOpenAt,
		Logger:       log,
	})

	if err := c.manager.Add(runner); err != nil {
		return "", err
	}
	return sub.ID, nil
}

// Unsubscribe stops the one-way stream with the given id.
func (c *Client) Unsubscribe(id string) error {
	if id == stream.OrderTradeID {
		return fmt.Errorf("use UnsubscribeOrderTrade for the order/trade stream")
	}
	return c.manager.Remove(id)
}

// Subscriptions lists every runner with its state.
func (c *Client) Subscriptions() []models.MSubscriptionStatus {
	return c.manager.Statuses()
}

// -----------------------------------------------------------------------------
// Own orders and trades
// -----------------------------------------------------------------------------

func (c *Client) newOrderTradeRunner() *stream.OrderTradeRunner {
	conn := c.cfg.Connection
	binding, _ := tradeapi.Binding(models.KindOrderTrade)

	return stream.NewOrderTradeRunner(stream.OrderTradeConfig{
		Open: func(ctx context.Context) (stream.BidiStream, error) {
			return stream.OpenBidiStream(ctx, c.session, binding.Method, func() (proto.Message, error) {
				return c.schema.New(binding.Response)
			})
		},
		Build:    c.schema.BuildOrderTradeRequest,
		Dispatch: c.dispatchOrderTrade,
		OnError:  c.OnError.Trigger,
		Backoff: stream.Backoff{
			Delay:  time.Duration(conn.ReconnectDelaySeconds) * time.Second,
			Jitter: conn.ReconnectJitter,
			Sleep:  c.sleep,
		},
		Logger: c.logger.Named("order_trade"),
	})
}

func (c *Client) dispatchOrderTrade(resp proto.Message) int {
	now := time.Now()
	orders := tradeapi.List(resp, "orders")
	for _, o := range orders {
		c.OnOrder.Trigger(models.MStreamEvent{Kind: models.KindOrderTrade, SubscriptionID: stream.OrderTradeID, Payload: o, ReceivedAt: now})
	}
	trades := tradeapi.List(resp, "trades")
	for _, t := range trades {
		c.OnTrade.Trigger(models.MStreamEvent{Kind: models.KindOrderTrade, SubscriptionID: stream.OrderTradeID, Payload: t, ReceivedAt: now})
	}
	return len(orders) + len(trades)
}

// orderTradeAccounts checks the order/trade preconditions and resolves the
// target accounts: an empty id means every account of the session.
func (c *Client) orderTradeAccounts(accountID string) ([]string, error) {
	if c.ctx.Err() != nil {
		return nil, fmt.Errorf("client is closed")
	}
	if !c.schema.Has(tradeapi.OrderTradeRequest) {
		return nil, helpers.NewSchemaError(tradeapi.OrderTradeRequest+" is not in the schema", nil)
	}
	if accountID != "" {
		return []string{accountID}, nil
	}
	accounts := c.AccountIDs()
	if len(accounts) == 0 {
		return nil, helpers.NewConfigurationError("account id is empty and the session has no accounts", nil)
	}
	return accounts, nil
}

// SubscribeOrderTrade asks for own orders and/or trades of account, or of
// every account when accountID is empty. The single order/trade stream opens
// on the first call.
func (c *Client) SubscribeOrderTrade(accountID string, types models.DataType) (string, error) {
	accounts, err := c.orderTradeAccounts(accountID)
	if err != nil {
		return "", err
	}
	for _, account := range accounts {
		c.orders.Subscribe(account, types)
	}
	return stream.OrderTradeID, nil
}

// UnsubscribeOrderTrade drops types for account (every account when empty).
func (c *Client) UnsubscribeOrderTrade(accountID string, types models.DataType) error {
	accounts, err := c.orderTradeAccounts(accountID)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		c.orders.Unsubscribe(account, types)
	}
	return nil
}

// SetOrderTradeTypes moves account (every account when empty) to exactly the
// given data types.
func (c *Client) SetOrderTradeTypes(accountID string, types models.DataType) error {
	accounts, err := c.orderTradeAccounts(accountID)
	if err != nil {
		return err
	}
	for _, account := range accounts {
		c.orders.SetTypes(account, types)
	}
	return nil
}

// OrderTradeState returns the desired order/trade subscriptions per account.
func (c *Client) OrderTradeState() map[string]models.DataType {
	return c.orders.Desired()
}
