package stream

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tradeapi-connector/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type fakeBidi struct {
	ctx  context.Context
	sent chan string
	in   chan proto.Message
	fail chan error
}

func (f *fakeBidi) Send(m proto.Message) error {
	if err := f.ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	f.sent <- m.(*wrapperspb.StringValue).GetValue()
	return nil
}

func (f *fakeBidi) Recv() (proto.Message, error) {
	select {
	case m := <-f.in:
		return m, nil
	case err := <-f.fail:
		return nil, err
	case <-f.ctx.Done():
		return nil, status.FromContextError(f.ctx.Err()).Err()
	}
}

func (f *fakeBidi) CloseSend() error { return nil }

func encodeCommand(cmd models.MOrderTradeCommand) (proto.Message, error) {
	return wrapperspb.String(fmt.Sprintf("%s:%s:%s", cmd.Action, cmd.DataType, cmd.AccountID)), nil
}

func nextSent(t *testing.T, s *fakeBidi) string {
	t.Helper()
	select {
	case v := <-s.sent:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("nothing sent on the stream")
		return ""
	}
}

func nextStream(t *testing.T, streams chan *fakeBidi) *fakeBidi {
	t.Helper()
	select {
	case s := <-streams:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not opened")
		return nil
	}
}

type orderTradeFixture struct {
	runner  *OrderTradeRunner
	streams chan *fakeBidi
	release chan struct{}
	errs    chan models.MStreamError
	events  atomic.Int32
}

func newOrderTradeFixture(t *testing.T) *orderTradeFixture {
	f := &orderTradeFixture{
		streams: make(chan *fakeBidi, 4),
		release: make(chan struct{}),
		errs:    make(chan models.MStreamError, 4),
	}
	f.runner = NewOrderTradeRunner(OrderTradeConfig{
		Open: func(ctx context.Context) (BidiStream, error) {
			s := &fakeBidi{ctx: ctx, sent: make(chan string, 16), in: make(chan proto.Message, 4), fail: make(chan error, 1)}
			f.streams <- s
			return s, nil
		},
		Build: encodeCommand,
		Dispatch: func(proto.Message) int {
			f.events.Add(1)
			return 1
		},
		OnError: func(e models.MStreamError) { f.errs <- e },
		Backoff: Backoff{Sleep: func(ctx context.Context, _ time.Duration) bool {
			select {
			case <-f.release:
				return true
			case <-ctx.Done():
				return false
			}
		}},
		Logger: testLogger(t),
	})
	return f
}

func TestOrderTradeStreamOpensOnFirstSubscribe(t *testing.T) {
	f := newOrderTradeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.runner.Start(ctx, nil)
	assert.Equal(t, models.StateIdle, f.runner.Status().State)

	f.runner.Subscribe("A", models.DataTypeAll)
	s := nextStream(t, f.streams)

	// replay of the desired state, then the queued command itself
	assert.Equal(t, "subscribe:all:A", nextSent(t, s))
	assert.Equal(t, "subscribe:all:A", nextSent(t, s))

	s.in <- wrapperspb.String("order")
	require.Eventually(t, func() bool { return f.events.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestOrderTradeReplaysDesiredStateBeforeQueuedCommands(t *testing.T) {
	f := newOrderTradeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.runner.Subscribe("A", models.DataTypeAll)
	f.runner.Start(ctx, nil)

	first := nextStream(t, f.streams)
	nextSent(t, first)
	nextSent(t, first)

	first.fail <- status.Error(codes.Unavailable, "transport is closing")
	require.Eventually(t, func() bool {
		return f.runner.Status().State == models.StateReconnecting
	}, time.Second, 5*time.Millisecond)

	// issued while disconnected
	f.runner.Unsubscribe("A", models.DataTypeTrades)
	close(f.release)

	second := nextStream(t, f.streams)
	assert.Equal(t, "subscribe:orders:A", nextSent(t, second))
	assert.Equal(t, "unsubscribe:trades:A", nextSent(t, second))
	assert.Equal(t, 1, f.runner.Status().Reconnects)
}

func TestSetTypesProducesTwoEntries(t *testing.T) {
	f := newOrderTradeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.runner.Start(ctx, nil)

	f.runner.Subscribe("A", models.DataTypeOrders)
	s := nextStream(t, f.streams)
	nextSent(t, s)
	nextSent(t, s)

	f.runner.SetTypes("A", models.DataTypeTrades)
	assert.Equal(t, "subscribe:trades:A", nextSent(t, s))
	assert.Equal(t, "unsubscribe:orders:A", nextSent(t, s))
	assert.Equal(t, map[string]models.DataType{"A": models.DataTypeTrades}, f.runner.Desired())
}

func TestOrderTradeStopsOnCancel(t *testing.T) {
	f := newOrderTradeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	f.runner.Start(ctx, &wg)
	f.runner.Subscribe("A", models.DataTypeAll)
	nextStream(t, f.streams)

	cancel()
	wg.Wait()
	assert.Equal(t, models.StateTerminated, f.runner.Status().State)
}

func TestOrderTradeTerminatesOnCancelledStream(t *testing.T) {
	f := newOrderTradeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.runner.Start(ctx, nil)
	f.runner.Subscribe("A", models.DataTypeAll)
	s := nextStream(t, f.streams)

	s.fail <- status.Error(codes.Canceled, "grpc: the client connection is closing")

	select {
	case <-f.runner.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not terminate")
	}
	select {
	case e := <-f.errs:
		assert.True(t, e.Terminal)
		assert.Equal(t, OrderTradeID, e.SubscriptionID)
	default:
		t.Fatal("termination was not reported")
	}
	assert.Empty(t, f.streams, "no reconnect after cancellation")
	assert.Equal(t, models.StateTerminated, f.runner.Status().State)
}

func TestOrderTradeIdleRunnerStopsWithParent(t *testing.T) {
	f := newOrderTradeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	f.runner.Start(ctx, &wg)
	cancel()
	wg.Wait()

	select {
	case <-f.runner.Done():
	default:
		t.Fatal("idle runner outlived its context")
	}

	f.runner.Subscribe("A", models.DataTypeAll)
	assert.Empty(t, f.streams)
	assert.Equal(t, models.StateTerminated, f.runner.Status().State)
}

func TestConcurrentCommandsKeepQueueInStepWithTable(t *testing.T) {
	f := newOrderTradeFixture(t)
	types := []models.DataType{models.DataTypeNone, models.DataTypeOrders, models.DataTypeTrades, models.DataTypeAll}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				switch rand.IntN(3) {
				case 0:
					f.runner.SetTypes("A", types[rand.IntN(len(types))])
				case 1:
					f.runner.Subscribe("A", types[1+rand.IntN(3)])
				default:
					f.runner.Unsubscribe("A", types[1+rand.IntN(3)])
				}
			}
		}()
	}
	wg.Wait()

	// not started: every command is still queued, in wire order
	fold := NewDesiredState()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for f.runner.queue.Len() > 0 {
		cmd, err := f.runner.queue.Dequeue(ctx)
		require.NoError(t, err)
		fold.Apply(cmd)
	}
	assert.Equal(t, f.runner.Desired(), fold.Snapshot())
}
