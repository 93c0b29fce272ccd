package rpc

import (
	"context"
	"testing"
	"time"

	"tradeapi-connector/src/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type scriptedConn struct {
	errs  []error
	calls int
}

func (c *scriptedConn) Invoke(_ context.Context, _ string, _ any, reply any, _ ...grpc.CallOption) error {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return err
		}
	}
	reply.(*wrapperspb.StringValue).Value = "ok"
	return nil
}

func (c *scriptedConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, status.Error(codes.Unimplemented, "no streams")
}

func TestCallRetriesAfterRateLimit(t *testing.T) {
	conn := &scriptedConn{errs: []error{
		status.Error(codes.ResourceExhausted, "Too many requests"),
		status.Error(codes.Unavailable, "Too many requests, slow down"),
		nil,
	}}
	var sleeps []time.Duration
	caller := NewCaller(conn, logger.FromZap(zaptest.NewLogger(t), "rpc"),
		WithCooldown(time.Minute),
		WithSleep(func(_ context.Context, d time.Duration) bool {
			sleeps = append(sleeps, d)
			return true
		}))

	resp := &wrapperspb.StringValue{}
	ok := caller.Call(context.Background(), "/svc/Method", wrapperspb.String("req"), resp)

	assert.True(t, ok)
	assert.Equal(t, "ok", resp.Value)
	assert.Equal(t, 3, conn.calls)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, sleeps)
}

func TestCallStopsWhenContextEndsDuringCooldown(t *testing.T) {
	conn := &scriptedConn{errs: []error{status.Error(codes.ResourceExhausted, "too many requests")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	caller := NewCaller(conn, logger.FromZap(zaptest.NewLogger(t), "rpc"), WithCooldown(time.Hour))

	assert.False(t, caller.Call(ctx, "/svc/Method", wrapperspb.String("req"), &wrapperspb.StringValue{}))
	assert.Equal(t, 1, conn.calls)
}

func TestCallDoesNotWaitOnOversizedResponse(t *testing.T) {
	tooLarge := status.Error(codes.ResourceExhausted, "grpc: received message larger than max (5242880 vs. 4194304)")
	conn := &scriptedConn{errs: []error{tooLarge, tooLarge, tooLarge}}
	sleeps := 0
	caller := NewCaller(conn, logger.FromZap(zaptest.NewLogger(t), "rpc"),
		WithSleep(func(context.Context, time.Duration) bool {
			sleeps++
			return true
		}))

	ok := caller.Call(context.Background(), "/svc/Method", wrapperspb.String("req"), &wrapperspb.StringValue{})

	assert.False(t, ok)
	assert.Equal(t, 1, conn.calls)
	assert.Equal(t, 0, sleeps)
}

func TestCallReturnsAbsentOnError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	conn := &scriptedConn{errs: []error{status.Error(codes.InvalidArgument, "bad symbol")}}
	caller := NewCaller(conn, logger.FromZap(zap.New(core), "rpc"))

	ok := caller.Call(context.Background(), "/svc/Method", wrapperspb.String("req"), &wrapperspb.StringValue{})

	assert.False(t, ok)
	assert.Equal(t, 1, conn.calls)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestQuietMethodFailsSilently(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	conn := &scriptedConn{errs: []error{status.Error(codes.NotFound, "no such asset")}}
	caller := NewCaller(conn, logger.FromZap(zap.New(core), "rpc"))

	ok := caller.Call(context.Background(), "/grpc.tradeapi.v1.assets.AssetsService/GetAsset", wrapperspb.String("SBER@RTSX"), &wrapperspb.StringValue{})

	assert.False(t, ok)
	assert.Equal(t, 0, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}
