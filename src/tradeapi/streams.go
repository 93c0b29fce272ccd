package tradeapi

import (
	"tradeapi-connector/src/convert"
	"tradeapi-connector/src/models"

	"google.golang.org/protobuf/proto"
)

// StreamBinding maps a stream kind to its wire method and messages.
type StreamBinding struct {
	Kind     models.StreamKind
	Method   string
	Request  string
	Response string
	// Items lists the repeated fields whose elements are dispatched one by one.
	// Empty means the whole response is a single event.
	Items []string
}

var bindings = map[models.StreamKind]StreamBinding{
	models.KindQuote: {
		Kind: models.KindQuote, Method: MethodSubscribeQuote,
		Request: SubscribeQuoteRequest, Response: SubscribeQuoteResponse,
		Items: []string{"quote"},
	},
	models.KindOrderBook: {
		Kind: models.KindOrderBook, Method: MethodSubscribeOrderBook,
		Request: SubscribeOrderBookRequest, Response: SubscribeOrderBookResponse,
		Items: []string{"order_book"},
	},
	models.KindLatestTrades: {
		Kind: models.KindLatestTrades, Method: MethodSubscribeLatestTrades,
		Request: SubscribeLatestTradesRequest, Response: SubscribeLatestTradesResponse,
	},
	models.KindBars: {
		Kind: models.KindBars, Method: MethodSubscribeBars,
		Request: SubscribeBarsRequest, Response: SubscribeBarsResponse,
	},
	models.KindOrderTrade: {
		Kind: models.KindOrderTrade, Method: MethodSubscribeOrderTrade,
		Request: OrderTradeRequest, Response: OrderTradeResponse,
		Items: []string{"orders", "trades"},
	},
}

// Binding returns the wire binding of kind.
func Binding(kind models.StreamKind) (StreamBinding, bool) {
	b, ok := bindings[kind]
	return b, ok
}

// Events splits a one-way stream response into dispatchable payloads.
func (b StreamBinding) Events(resp proto.Message) []proto.Message {
	if len(b.Items) == 0 {
		return []proto.Message{resp}
	}
	var out []proto.Message
	for _, name := range b.Items {
		out = append(out, List(resp, name)...)
	}
	return out
}

// -----------------------------------------------------------------------------

// BuildSubscribeRequest creates the opening request of a one-way stream.
func (s *Schema) BuildSubscribeRequest(sub models.MSubscription) (proto.Message, error) {
	b, ok := Binding(sub.Kind)
	if !ok || sub.Kind == models.KindOrderTrade {
		return nil, errUnsupportedKind(sub.Kind)
	}

	fields := map[string]any{}
	switch sub.Kind {
	case models.KindQuote:
		fields["symbols"] = sub.Symbols
	case models.KindBars:
		fields["timeframe"] = convert.BrokerTimeframe(sub.Timeframe)
		fallthrough
	default:
		if len(sub.Symbols) > 0 {
			fields["symbol"] = sub.Symbols[0]
		}
	}
	return s.Build(b.Request, fields)
}

// BuildOrderTradeRequest converts one queued command to its wire request.
func (s *Schema) BuildOrderTradeRequest(cmd models.MOrderTradeCommand) (proto.Message, error) {
	action := ActionSubscribe
	if cmd.Action == models.ActionUnsubscribe {
		action = ActionUnsubscribe
	}
	dataType := DataTypeAll
	switch cmd.DataType {
	case models.DataTypeOrders:
		dataType = DataTypeOrders
	case models.DataTypeTrades:
		dataType = DataTypeTrades
	}
	return s.Build(OrderTradeRequest, map[string]any{
		"action":     action,
		"data_type":  dataType,
		"account_id": cmd.AccountID,
	})
}
