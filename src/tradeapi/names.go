package tradeapi

// Full method names of the broker's v1 gRPC API.
const (
	MethodAuth         = "/grpc.tradeapi.v1.auth.AuthService/Auth"
	MethodTokenDetails = "/grpc.tradeapi.v1.auth.AuthService/TokenDetails"

	MethodExchanges = "/grpc.tradeapi.v1.assets.AssetsService/Exchanges"
	MethodAssets    = "/grpc.tradeapi.v1.assets.AssetsService/Assets"
	MethodGetAsset  = "/grpc.tradeapi.v1.assets.AssetsService/GetAsset"

	MethodSubscribeQuote        = "/grpc.tradeapi.v1.marketdata.MarketDataService/SubscribeQuote"
	MethodSubscribeOrderBook    = "/grpc.tradeapi.v1.marketdata.MarketDataService/SubscribeOrderBook"
	MethodSubscribeLatestTrades = "/grpc.tradeapi.v1.marketdata.MarketDataService/SubscribeLatestTrades"
	MethodSubscribeBars         = "/grpc.tradeapi.v1.marketdata.MarketDataService/SubscribeBars"

	MethodSubscribeOrderTrade = "/grpc.tradeapi.v1.orders.OrdersService/SubscribeOrderTrade"
)

// Message full names.
const (
	AuthRequest          = "grpc.tradeapi.v1.auth.AuthRequest"
	AuthResponse         = "grpc.tradeapi.v1.auth.AuthResponse"
	TokenDetailsRequest  = "grpc.tradeapi.v1.auth.TokenDetailsRequest"
	TokenDetailsResponse = "grpc.tradeapi.v1.auth.TokenDetailsResponse"

	ExchangesRequest  = "grpc.tradeapi.v1.assets.ExchangesRequest"
	ExchangesResponse = "grpc.tradeapi.v1.assets.ExchangesResponse"
	AssetsRequest     = "grpc.tradeapi.v1.assets.AssetsRequest"
	AssetsResponse    = "grpc.tradeapi.v1.assets.AssetsResponse"
	GetAssetRequest   = "grpc.tradeapi.v1.assets.GetAssetRequest"
	GetAssetResponse  = "grpc.tradeapi.v1.assets.GetAssetResponse"

	SubscribeQuoteRequest         = "grpc.tradeapi.v1.marketdata.SubscribeQuoteRequest"
	SubscribeQuoteResponse        = "grpc.tradeapi.v1.marketdata.SubscribeQuoteResponse"
	SubscribeOrderBookRequest     = "grpc.tradeapi.v1.marketdata.SubscribeOrderBookRequest"
	SubscribeOrderBookResponse    = "grpc.tradeapi.v1.marketdata.SubscribeOrderBookResponse"
	SubscribeLatestTradesRequest  = "grpc.tradeapi.v1.marketdata.SubscribeLatestTradesRequest"
	SubscribeLatestTradesResponse = "grpc.tradeapi.v1.marketdata.SubscribeLatestTradesResponse"
	SubscribeBarsRequest          = "grpc.tradeapi.v1.marketdata.SubscribeBarsRequest"
	SubscribeBarsResponse         = "grpc.tradeapi.v1.marketdata.SubscribeBarsResponse"

	OrderTradeRequest  = "grpc.tradeapi.v1.orders.OrderTradeRequest"
	OrderTradeResponse = "grpc.tradeapi.v1.orders.OrderTradeResponse"
)

// Enum value names of OrderTradeRequest.
const (
	ActionSubscribe   = "ACTION_SUBSCRIBE"
	ActionUnsubscribe = "ACTION_UNSUBSCRIBE"

	DataTypeAll    = "DATA_TYPE_ALL"
	DataTypeOrders = "DATA_TYPE_ORDERS"
	DataTypeTrades = "DATA_TYPE_TRADES"
)
