package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"

	"google.golang.org/protobuf/proto"
)

// OrderTradeID is the subscription id of the single own-order/trade runner.
const OrderTradeID = "ORDER_TRADE"

// OrderTradeConfig wires the bidirectional runner to a transport.
type OrderTradeConfig struct {
	Open     func(ctx context.Context) (BidiStream, error)
	Build    func(cmd models.MOrderTradeCommand) (proto.Message, error)
	Dispatch func(resp proto.Message) int
	OnError  func(models.MStreamError)
	Backoff  Backoff
	Logger   *logger.Logger
}

// OrderTradeRunner owns the own-order/trade stream of a client. Commands
// go through a queue; the desired state is replayed on every new stream
// before queued commands.
type OrderTradeRunner struct {
	cfg     OrderTradeConfig
	queue   *CommandQueue[models.MOrderTradeCommand]
	desired *DesiredState
	status  runnerStatus
	done    chan struct{}

	// cmdMu keeps the queue in the same order as the folds of the table
	cmdMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

func NewOrderTradeRunner(cfg OrderTradeConfig) *OrderTradeRunner {
	cfg.Backoff = cfg.Backoff.withDefaults()
	if cfg.Logger == nil {
		cfg.Logger = logger.NewLogger(nil, "order_trade")
	}
	r := &OrderTradeRunner{
		cfg:     cfg,
		queue:   NewCommandQueue[models.MOrderTradeCommand](),
		desired: NewDesiredState(),
		done:    make(chan struct{}),
	}
	r.status.sub = models.MSubscription{ID: OrderTradeID, Kind: models.KindOrderTrade}
	r.status.state = models.StateIdle
	return r
}

func (r *OrderTradeRunner) ID() string {
	return OrderTradeID
}

func (r *OrderTradeRunner) Status() models.MSubscriptionStatus {
	return r.status.snapshot()
}

func (r *OrderTradeRunner) Done() <-chan struct{} {
	return r.done
}

// Desired returns the current account table.
func (r *OrderTradeRunner) Desired() map[string]models.DataType {
	return r.desired.Snapshot()
}

// -----------------------------------------------------------------------------

// Start launches the runner under ctx. It stays idle until the first
// command arrives, then opens the stream. wg may be nil.
func (r *OrderTradeRunner) Start(ctx context.Context, wg *sync.WaitGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		r.run(runCtx)
	}()
}

// Stop terminates the stream.
func (r *OrderTradeRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// -----------------------------------------------------------------------------

// Subscribe asks for types on account.
func (r *OrderTradeRunner) Subscribe(accountID string, types models.DataType) {
	r.submit(models.MOrderTradeCommand{Action: models.ActionSubscribe, DataType: types, AccountID: accountID})
}

// Unsubscribe drops types on account.
func (r *OrderTradeRunner) Unsubscribe(accountID string, types models.DataType) {
	r.submit(models.MOrderTradeCommand{Action: models.ActionUnsubscribe, DataType: types, AccountID: accountID})
}

// SetTypes moves account to exactly want: one subscribe entry for the added
// types and one unsubscribe entry for the removed ones.
func (r *OrderTradeRunner) SetTypes(accountID string, want models.DataType) {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()

	current := r.desired.Get(accountID)
	if added := want &^ current; added != models.DataTypeNone {
		r.apply(models.MOrderTradeCommand{Action: models.ActionSubscribe, DataType: added, AccountID: accountID})
	}
	if removed := current &^ want; removed != models.DataTypeNone {
		r.apply(models.MOrderTradeCommand{Action: models.ActionUnsubscribe, DataType: removed, AccountID: accountID})
	}
}

func (r *OrderTradeRunner) submit(cmd models.MOrderTradeCommand) {
	r.cmdMu.Lock()
	defer r.cmdMu.Unlock()
	r.apply(cmd)
}

// apply folds cmd into the table and queues it. Callers hold cmdMu.
func (r *OrderTradeRunner) apply(cmd models.MOrderTradeCommand) {
	if cmd.DataType == models.DataTypeNone {
		return
	}
	r.desired.Apply(cmd)
	r.queue.Enqueue(cmd)
}

// -----------------------------------------------------------------------------

func (r *OrderTradeRunner) run(ctx context.Context) {
	log := r.cfg.Logger
	defer close(r.done)
	defer r.status.set(models.StateTerminated)

	if r.queue.Wait(ctx) != nil {
		return
	}

	for {
		err := r.connect(ctx)
		if ctx.Err() != nil {
			log.Info("order/trade stream terminated")
			return
		}
		if helpers.IsCancelled(err) {
			log.Info("order/trade stream terminated: %v", err)
			r.report(err, true)
			return
		}

		log.Warning("order/trade stream disrupted: %v", err)
		r.report(err, false)
		r.status.set(models.StateReconnecting)
		if !r.cfg.Backoff.wait(ctx) {
			return
		}
	}
}

func (r *OrderTradeRunner) connect(ctx context.Context) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.cfg.Open(connCtx)
	if err != nil {
		return err
	}
	r.status.set(models.StateStreaming)

	var feeder sync.WaitGroup
	feeder.Add(1)
	go func() {
		defer feeder.Done()
		r.feed(connCtx, stream)
	}()
	// the feeder must have requeued any unsent command before a new
	// connection starts its own feeder
	defer feeder.Wait()
	defer cancel()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("stream closed by server: %w", err)
			}
			return err
		}
		if n := r.cfg.Dispatch(resp); n > 0 {
			r.status.seen(n, time.Now())
		}
	}
}

// feed sends the desired-state replay and then queued commands until the
// connection ends.
func (r *OrderTradeRunner) feed(ctx context.Context, stream BidiStream) {
	log := r.cfg.Logger

	for _, cmd := range r.desired.Replay() {
		if !r.send(stream, cmd) {
			return
		}
		log.Debug("replayed %s %s for %s", cmd.Action, cmd.DataType, cmd.AccountID)
	}

	for {
		cmd, err := r.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		if !r.send(stream, cmd) {
			r.queue.Requeue(cmd)
			return
		}
		log.Debug("sent %s %s for %s", cmd.Action, cmd.DataType, cmd.AccountID)
	}
}

func (r *OrderTradeRunner) send(stream BidiStream, cmd models.MOrderTradeCommand) bool {
	req, err := r.cfg.Build(cmd)
	if err != nil {
		// a command that cannot be encoded will never succeed
		r.cfg.Logger.Error("dropping order/trade command for %s: %v", cmd.AccountID, err)
		return true
	}
	if err := stream.Send(req); err != nil {
		r.cfg.Logger.Debug("order/trade send failed: %v", err)
		return false
	}
	return true
}

func (r *OrderTradeRunner) report(err error, terminal bool) {
	if r.cfg.OnError == nil {
		return
	}
	r.cfg.OnError(models.MStreamError{
		Kind:           models.KindOrderTrade,
		SubscriptionID: OrderTradeID,
		Err:            err,
		Terminal:       terminal,
		At:             time.Now(),
	})
}
