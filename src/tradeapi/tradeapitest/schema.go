// Package tradeapitest provides a reduced broker schema and an in-process
// broker server for tests.
package tradeapitest

import (
	"tradeapi-connector/src/tradeapi"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var (
	str      = tradeapi.StringField
	strs     = tradeapi.RepeatedStringField
	msgs     = func(name string, n int32, typ string) *descriptorpb.FieldDescriptorProto { return tradeapi.MessageField(name, n, typ, true) }
	message  = tradeapi.NewMessageProto
	enumVal  = tradeapi.EnumValue
	enumType = tradeapi.NewEnumProto
)

// DescriptorSet returns the auth, assets, market data and orders files with
// the fields the connector touches.
func DescriptorSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{
		protodesc.ToFileDescriptorProto(timestamppb.File_google_protobuf_timestamp_proto),
		tradeapi.AuthFileDescriptor(),
		assetsFile(),
		marketDataFile(),
		ordersFile(),
	}}
}

// Schema links DescriptorSet into a schema. It panics on invalid descriptors.
func Schema() *tradeapi.Schema {
	s, err := tradeapi.SchemaFromDescriptorSet(DescriptorSet())
	if err != nil {
		panic(err)
	}
	return s
}

func file(name, pkg string, messages []*descriptorpb.DescriptorProto, enums ...*descriptorpb.EnumDescriptorProto) *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String(name),
		Package:     proto.String(pkg),
		Syntax:      proto.String("proto3"),
		MessageType: messages,
		EnumType:    enums,
	}
}

func assetsFile() *descriptorpb.FileDescriptorProto {
	const pkg = ".grpc.tradeapi.v1.assets."
	return file("grpc/tradeapi/v1/assets/assets_service.proto", "grpc.tradeapi.v1.assets", []*descriptorpb.DescriptorProto{
		message("ExchangesRequest"),
		message("Exchange", str("mic", 1), str("name", 2)),
		message("ExchangesResponse", msgs("exchanges", 1, pkg+"Exchange")),
		message("AssetsRequest"),
		message("Asset", str("symbol", 1), str("id", 2), str("ticker", 3), str("mic", 4), str("isin", 5), str("type", 6), str("name", 7)),
		message("AssetsResponse", msgs("assets", 1, pkg+"Asset")),
		message("GetAssetRequest", str("symbol", 1), str("account_id", 2)),
		message("GetAssetResponse",
			str("board", 1), str("id", 2), str("ticker", 3), str("mic", 4), str("isin", 5), str("type", 6), str("name", 7),
			tradeapi.Int32Field("decimals", 8), tradeapi.Int64Field("min_step", 9)),
	})
}

func marketDataFile() *descriptorpb.FileDescriptorProto {
	const pkg = ".grpc.tradeapi.v1.marketdata."
	return file("grpc/tradeapi/v1/marketdata/marketdata_service.proto", "grpc.tradeapi.v1.marketdata", []*descriptorpb.DescriptorProto{
		message("Quote", str("symbol", 1), str("bid", 2), str("ask", 3), str("last", 4)),
		message("SubscribeQuoteRequest", strs("symbols", 1)),
		message("SubscribeQuoteResponse", msgs("quote", 1, pkg+"Quote")),
		message("StreamOrderBook", str("symbol", 1)),
		message("SubscribeOrderBookRequest", str("symbol", 1)),
		message("SubscribeOrderBookResponse", msgs("order_book", 1, pkg+"StreamOrderBook")),
		message("SubscribeLatestTradesRequest", str("symbol", 1)),
		message("SubscribeLatestTradesResponse", str("symbol", 1), str("price", 2)),
		message("SubscribeBarsRequest", str("symbol", 1), tradeapi.EnumField("timeframe", 2, pkg+"TimeFrame")),
		message("SubscribeBarsResponse", str("symbol", 1), str("close", 2)),
	}, enumType("TimeFrame",
		enumVal("TIME_FRAME_UNSPECIFIED", 0),
		enumVal("TIME_FRAME_M1", 1),
		enumVal("TIME_FRAME_M5", 5),
		enumVal("TIME_FRAME_M15", 9),
		enumVal("TIME_FRAME_M30", 11),
		enumVal("TIME_FRAME_H1", 12),
		enumVal("TIME_FRAME_H2", 13),
		enumVal("TIME_FRAME_H4", 15),
		enumVal("TIME_FRAME_H8", 17),
		enumVal("TIME_FRAME_D", 19),
		enumVal("TIME_FRAME_W", 20),
		enumVal("TIME_FRAME_MN", 21),
		enumVal("TIME_FRAME_QR", 22),
	))
}

func ordersFile() *descriptorpb.FileDescriptorProto {
	const pkg = ".grpc.tradeapi.v1.orders."
	request := message("OrderTradeRequest",
		tradeapi.EnumField("action", 1, pkg+"OrderTradeRequest.Action"),
		tradeapi.EnumField("data_type", 2, pkg+"OrderTradeRequest.DataType"),
		str("account_id", 3),
	)
	request.EnumType = []*descriptorpb.EnumDescriptorProto{
		enumType("Action",
			enumVal("ACTION_UNSPECIFIED", 0),
			enumVal("ACTION_SUBSCRIBE", 1),
			enumVal("ACTION_UNSUBSCRIBE", 2)),
		enumType("DataType",
			enumVal("DATA_TYPE_ALL", 0),
			enumVal("DATA_TYPE_ORDERS", 1),
			enumVal("DATA_TYPE_TRADES", 2)),
	}
	return file("grpc/tradeapi/v1/orders/orders_service.proto", "grpc.tradeapi.v1.orders", []*descriptorpb.DescriptorProto{
		request,
		message("OrderState", str("order_id", 1), str("account_id", 2), str("status", 3)),
		message("AccountTrade", str("trade_id", 1), str("account_id", 2), str("symbol", 3)),
		message("OrderTradeResponse", msgs("orders", 1, pkg+"OrderState"), msgs("trades", 2, pkg+"AccountTrade")),
	})
}
