package tradeapitest

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"tradeapi-connector/src/tradeapi"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Asset is one instrument known to the fake broker.
type Asset struct {
	Ticker string
	MIC    string
	Board  string
	Name   string
}

// Broker is an in-process imitation of the trade API. Fill the exported
// fields before Start; read the recorded traffic through the accessors.
type Broker struct {
	Schema     *tradeapi.Schema
	Secret     string
	Token      string
	AccountIDs []string
	Exchanges  []string
	Assets     []Asset

	// Quotes are sent on every SubscribeQuote stream before it idles.
	Quotes []proto.Message
	// FailQuoteStreams makes the first N SubscribeQuote calls fail with Unavailable.
	FailQuoteStreams int
	// OrderTradeReplies is sent once per stream after the first request.
	OrderTradeReplies []proto.Message

	mu            sync.Mutex
	authCalls     int
	quoteStreams  int
	authorization map[string][]string
	orderTrade    []proto.Message
	orderTradeCh  chan proto.Message

	listener *bufconn.Listener
	server   *grpc.Server
}

// -----------------------------------------------------------------------------

// Start serves the broker on an in-memory listener and returns the dial
// options that reach it. The server stops on test cleanup.
func (b *Broker) Start(t testing.TB) []grpc.DialOption {
	t.Helper()
	if b.Schema == nil {
		b.Schema = Schema()
	}
	b.authorization = make(map[string][]string)
	b.orderTradeCh = make(chan proto.Message, 64)

	b.listener = bufconn.Listen(1 << 20)
	b.server = grpc.NewServer()
	for _, desc := range b.serviceDescs() {
		b.server.RegisterService(desc, b)
	}
	go func() { _ = b.server.Serve(b.listener) }()
	t.Cleanup(b.server.Stop)

	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return b.listener.DialContext(ctx)
		}),
	}
}

// Target is the dial target matching the options returned by Start.
const Target = "passthrough:///bufnet"

// Stop closes every open stream with Unavailable.
func (b *Broker) Stop() {
	b.server.Stop()
}

// -----------------------------------------------------------------------------
// Accessors
// -----------------------------------------------------------------------------

func (b *Broker) AuthCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authCalls
}

func (b *Broker) QuoteStreams() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quoteStreams
}

// Authorization returns the authorization headers received for method.
func (b *Broker) Authorization(method string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authorization[method]...)
}

// OrderTradeRequests returns every request received on order/trade streams.
func (b *Broker) OrderTradeRequests() []proto.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]proto.Message(nil), b.orderTrade...)
}

// NextOrderTradeRequest waits for the next order/trade request.
func (b *Broker) NextOrderTradeRequest(timeout time.Duration) (proto.Message, bool) {
	select {
	case req := <-b.orderTradeCh:
		return req, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (b *Broker) record(ctx context.Context, method string) {
	md, _ := metadata.FromIncomingContext(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authorization[method] = append(b.authorization[method], md.Get("authorization")...)
}

func (b *Broker) checkToken(ctx context.Context) error {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get("authorization") {
		if v == b.Token {
			return nil
		}
	}
	return status.Error(codes.Unauthenticated, "invalid token")
}

// -----------------------------------------------------------------------------
// Service descriptions
// -----------------------------------------------------------------------------

type unaryFunc func(ctx context.Context, req proto.Message) (proto.Message, error)

func (b *Broker) unary(service, name, requestType string, fn unaryFunc) grpc.MethodDesc {
	method := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			req, err := b.Schema.New(requestType)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			if err := dec(req); err != nil {
				return nil, err
			}
			b.record(ctx, method)
			return fn(ctx, req)
		},
	}
}

func (b *Broker) serviceDescs() []*grpc.ServiceDesc {
	const (
		auth       = "grpc.tradeapi.v1.auth.AuthService"
		assets     = "grpc.tradeapi.v1.assets.AssetsService"
		marketData = "grpc.tradeapi.v1.marketdata.MarketDataService"
		orders     = "grpc.tradeapi.v1.orders.OrdersService"
	)
	return []*grpc.ServiceDesc{
		{
			ServiceName: auth,
			HandlerType: (*any)(nil),
			Methods: []grpc.MethodDesc{
				b.unary(auth, "Auth", tradeapi.AuthRequest, b.auth),
				b.unary(auth, "TokenDetails", tradeapi.TokenDetailsRequest, b.tokenDetails),
			},
		},
		{
			ServiceName: assets,
			HandlerType: (*any)(nil),
			Methods: []grpc.MethodDesc{
				b.unary(assets, "Exchanges", tradeapi.ExchangesRequest, b.exchanges),
				b.unary(assets, "Assets", tradeapi.AssetsRequest, b.assets),
				b.unary(assets, "GetAsset", tradeapi.GetAssetRequest, b.getAsset),
			},
		},
		{
			ServiceName: marketData,
			HandlerType: (*any)(nil),
			Streams: []grpc.StreamDesc{
				{StreamName: "SubscribeQuote", ServerStreams: true, Handler: b.subscribeQuote},
				{StreamName: "SubscribeOrderBook", ServerStreams: true, Handler: b.idleStream(tradeapi.SubscribeOrderBookRequest)},
				{StreamName: "SubscribeLatestTrades", ServerStreams: true, Handler: b.idleStream(tradeapi.SubscribeLatestTradesRequest)},
				{StreamName: "SubscribeBars", ServerStreams: true, Handler: b.idleStream(tradeapi.SubscribeBarsRequest)},
			},
		},
		{
			ServiceName: orders,
			HandlerType: (*any)(nil),
			Streams: []grpc.StreamDesc{
				{StreamName: "SubscribeOrderTrade", ServerStreams: true, ClientStreams: true, Handler: b.subscribeOrderTrade},
			},
		},
	}
}

// -----------------------------------------------------------------------------
// Unary handlers
// -----------------------------------------------------------------------------

func (b *Broker) auth(_ context.Context, req proto.Message) (proto.Message, error) {
	b.mu.Lock()
	b.authCalls++
	b.mu.Unlock()

	if tradeapi.String(req, "secret") != b.Secret {
		return nil, status.Error(codes.Unauthenticated, "invalid secret")
	}
	return b.Schema.Build(tradeapi.AuthResponse, map[string]any{"token": b.Token})
}

func (b *Broker) tokenDetails(_ context.Context, req proto.Message) (proto.Message, error) {
	if tradeapi.String(req, "token") != b.Token {
		return nil, status.Error(codes.Unauthenticated, "unknown token")
	}
	resp, err := b.Schema.Build(tradeapi.TokenDetailsResponse, map[string]any{"account_ids": b.AccountIDs})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	now := time.Now()
	setTimestamp(resp, "created_at", now)
	setTimestamp(resp, "expires_at", now.Add(15*time.Minute))
	return resp, nil
}

func (b *Broker) exchanges(ctx context.Context, _ proto.Message) (proto.Message, error) {
	if err := b.checkToken(ctx); err != nil {
		return nil, err
	}
	resp, err := b.Schema.New(tradeapi.ExchangesResponse)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	for _, mic := range b.Exchanges {
		appendItem(resp, "exchanges", map[string]string{"mic": mic, "name": mic})
	}
	return resp, nil
}

func (b *Broker) assets(ctx context.Context, _ proto.Message) (proto.Message, error) {
	if err := b.checkToken(ctx); err != nil {
		return nil, err
	}
	resp, err := b.Schema.New(tradeapi.AssetsResponse)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	for _, a := range b.Assets {
		appendItem(resp, "assets", map[string]string{
			"symbol": a.Ticker + "@" + a.MIC, "ticker": a.Ticker, "mic": a.MIC, "name": a.Name,
		})
	}
	return resp, nil
}

func (b *Broker) getAsset(ctx context.Context, req proto.Message) (proto.Message, error) {
	if err := b.checkToken(ctx); err != nil {
		return nil, err
	}
	symbol := tradeapi.String(req, "symbol")
	for _, a := range b.Assets {
		if a.Ticker+"@"+a.MIC == symbol {
			return b.Schema.Build(tradeapi.GetAssetResponse, map[string]any{
				"board": a.Board, "ticker": a.Ticker, "mic": a.MIC, "name": a.Name,
				"decimals": 2, "min_step": 1,
			})
		}
	}
	return nil, status.Errorf(codes.NotFound, "asset %s not found", symbol)
}

// -----------------------------------------------------------------------------
// Stream handlers
// -----------------------------------------------------------------------------

func (b *Broker) subscribeQuote(_ any, stream grpc.ServerStream) error {
	req, err := b.Schema.New(tradeapi.SubscribeQuoteRequest)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	b.record(stream.Context(), tradeapi.MethodSubscribeQuote)
	if err := b.checkToken(stream.Context()); err != nil {
		return err
	}

	b.mu.Lock()
	b.quoteStreams++
	fail := b.quoteStreams <= b.FailQuoteStreams
	b.mu.Unlock()
	if fail {
		return status.Error(codes.Unavailable, "stream reset by peer")
	}

	for _, q := range b.Quotes {
		if err := stream.SendMsg(q); err != nil {
			return err
		}
	}
	<-stream.Context().Done()
	return nil
}

func (b *Broker) idleStream(requestType string) grpc.StreamHandler {
	return func(_ any, stream grpc.ServerStream) error {
		req, err := b.Schema.New(requestType)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		<-stream.Context().Done()
		return nil
	}
}

func (b *Broker) subscribeOrderTrade(_ any, stream grpc.ServerStream) error {
	b.record(stream.Context(), tradeapi.MethodSubscribeOrderTrade)
	if err := b.checkToken(stream.Context()); err != nil {
		return err
	}

	replied := false
	for {
		req, err := b.Schema.New(tradeapi.OrderTradeRequest)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.RecvMsg(req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		b.mu.Lock()
		b.orderTrade = append(b.orderTrade, req)
		b.mu.Unlock()
		select {
		case b.orderTradeCh <- req:
		default:
		}

		if !replied {
			replied = true
			for _, resp := range b.OrderTradeReplies {
				if err := stream.SendMsg(resp); err != nil {
					return err
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Message helpers
// -----------------------------------------------------------------------------

func setTimestamp(msg proto.Message, name string, t time.Time) {
	m := msg.ProtoReflect()
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	ts := m.Mutable(fd).Message()
	ts.Set(ts.Descriptor().Fields().ByName("seconds"), protoreflect.ValueOfInt64(t.Unix()))
	ts.Set(ts.Descriptor().Fields().ByName("nanos"), protoreflect.ValueOfInt32(int32(t.Nanosecond())))
}

func appendItem(msg proto.Message, name string, fields map[string]string) {
	m := msg.ProtoReflect()
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	list := m.Mutable(fd).List()
	item := list.NewElement().Message()
	for k, v := range fields {
		item.Set(item.Descriptor().Fields().ByName(protoreflect.Name(k)), protoreflect.ValueOfString(v))
	}
	list.Append(protoreflect.ValueOfMessage(item))
}

// Quote builds a quote stream response carrying one quote per symbol.
func Quote(schema *tradeapi.Schema, last string, symbols ...string) proto.Message {
	resp, err := schema.New(tradeapi.SubscribeQuoteResponse)
	if err != nil {
		panic(err)
	}
	for _, s := range symbols {
		appendItem(resp, "quote", map[string]string{"symbol": s, "last": last})
	}
	return resp
}

// OrderTrade builds an order/trade stream response.
func OrderTrade(schema *tradeapi.Schema, orderIDs, tradeIDs []string) proto.Message {
	resp, err := schema.New(tradeapi.OrderTradeResponse)
	if err != nil {
		panic(err)
	}
	for _, id := range orderIDs {
		appendItem(resp, "orders", map[string]string{"order_id": id})
	}
	for _, id := range tradeIDs {
		appendItem(resp, "trades", map[string]string{"trade_id": id})
	}
	return resp
}
