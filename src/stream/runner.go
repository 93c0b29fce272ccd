package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"

	"google.golang.org/protobuf/proto"
)

const (
	DefaultReconnectDelay  = 5 * time.Second
	DefaultReconnectJitter = 0.2
	MinStallTimeout        = 10 * time.Millisecond
)

var errStalled = errors.New("no data received within the stall timeout")

// -----------------------------------------------------------------------------

// Backoff controls the pause between reconnect attempts.
type Backoff struct {
	Delay  time.Duration
	Jitter float64
	// Sleep waits for d unless ctx ends first; it returns false in that case.
	Sleep func(ctx context.Context, d time.Duration) bool
}

func (b Backoff) withDefaults() Backoff {
	if b.Delay <= 0 {
		b.Delay = DefaultReconnectDelay
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	if b.Sleep == nil {
		b.Sleep = helpers.SleepContext
	}
	return b
}

func (b Backoff) wait(ctx context.Context) bool {
	return b.Sleep(ctx, helpers.JitteredDelay(b.Delay, b.Jitter))
}

// -----------------------------------------------------------------------------

// runnerStatus is the bookkeeping shared by both runner kinds.
type runnerStatus struct {
	mu          sync.Mutex
	sub         models.MSubscription
	state       models.RunnerState
	reconnects  int
	lastEventAt time.Time
	events      atomic.Int64
}

func (s *runnerStatus) set(state models.RunnerState) {
	s.mu.Lock()
	s.state = state
	if state == models.StateReconnecting {
		s.reconnects++
	}
	s.mu.Unlock()
}

func (s *runnerStatus) seen(n int, at time.Time) {
	s.events.Add(int64(n))
	s.mu.Lock()
	s.lastEventAt = at
	s.mu.Unlock()
}

func (s *runnerStatus) snapshot() models.MSubscriptionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.MSubscriptionStatus{
		Subscription: s.sub,
		State:        s.state,
		Reconnects:   s.reconnects,
		Events:       s.events.Load(),
		LastEventAt:  s.lastEventAt,
	}
}

// -----------------------------------------------------------------------------

// RunnerConfig describes one one-way subscription.
type RunnerConfig struct {
	Subscription models.MSubscription
	// Open starts the stream. It is called again after every disruption.
	Open func(ctx context.Context) (Receiver, error)
	// Dispatch delivers one response and returns the number of events in it.
	Dispatch func(resp proto.Message) int
	// OnError is told about every disruption (optional).
	OnError func(models.MStreamError)
	Backoff Backoff
	// StallTimeout drops a connection that stays silent this long while
	// MarketOpen reports true. Zero disables the watchdog; positive values
	// are raised to MinStallTimeout.
	StallTimeout time.Duration
	MarketOpen   func(time.Time) bool
	Logger       *logger.Logger
}

// Runner keeps one server-streaming subscription alive until stopped.
type Runner struct {
	cfg    RunnerConfig
	status runnerStatus
	done   chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

func NewRunner(cfg RunnerConfig) *Runner {
	cfg.Backoff = cfg.Backoff.withDefaults()
	if cfg.StallTimeout > 0 && cfg.StallTimeout < MinStallTimeout {
		cfg.StallTimeout = MinStallTimeout
	}
	if cfg.MarketOpen == nil {
		cfg.MarketOpen = func(time.Time) bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewLogger(nil, "stream")
	}
	r := &Runner{cfg: cfg, done: make(chan struct{})}
	r.status.sub = cfg.Subscription
	r.status.state = models.StateIdle
	return r
}

func (r *Runner) ID() string {
	return r.cfg.Subscription.ID
}

func (r *Runner) Status() models.MSubscriptionStatus {
	return r.status.snapshot()
}

// Done is closed once the runner terminated.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// -----------------------------------------------------------------------------

// Start launches the receive loop. wg may be nil.
func (r *Runner) Start(ctx context.Context, wg *sync.WaitGroup) {
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

// Stop terminates the runner.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// -----------------------------------------------------------------------------

func (r *Runner) run(ctx context.Context) {
	sub := r.cfg.Subscription
	log := r.cfg.Logger
	defer close(r.done)
	defer r.status.set(models.StateTerminated)

	for {
		err := r.connect(ctx)
		if ctx.Err() != nil {
			log.Info("%s stream %s terminated", sub.Kind, sub.ID)
			return
		}
		if helpers.IsCancelled(err) {
			// the channel was closed underneath the runner
			log.Info("%s stream %s terminated: %v", sub.Kind, sub.ID, err)
			r.report(err, true)
			return
		}

		log.Warning("%s stream %s disrupted: %v", sub.Kind, sub.ID, err)
		r.report(err, false)
		r.status.set(models.StateReconnecting)
		if !r.cfg.Backoff.wait(ctx) {
			log.Info("%s stream %s terminated during backoff", sub.Kind, sub.ID)
			return
		}
	}
}

// connect runs one stream until it fails and returns the failure.
func (r *Runner) connect(ctx context.Context) error {
	connCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	recv, err := r.cfg.Open(connCtx)
	if err != nil {
		return err
	}
	r.status.set(models.StateStreaming)

	var last atomic.Int64
	last.Store(time.Now().UnixNano())
	if r.cfg.StallTimeout > 0 {
		go r.watch(connCtx, cancel, &last)
	}

	for {
		resp, err := recv.Recv()
		if err != nil {
			if errors.Is(context.Cause(connCtx), errStalled) && ctx.Err() == nil {
				return errStalled
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("stream closed by server: %w", err)
			}
			return err
		}
		now := time.Now()
		last.Store(now.UnixNano())
		if n := r.cfg.Dispatch(resp); n > 0 {
			r.status.seen(n, now)
		}
	}
}

// watch cancels the connection when no message arrived within the stall
// timeout during trading hours.
func (r *Runner) watch(ctx context.Context, cancel context.CancelCauseFunc, last *atomic.Int64) {
	timeout := r.cfg.StallTimeout
	ticker := time.NewTicker(timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			silent := now.Sub(time.Unix(0, last.Load()))
			if silent >= timeout && r.cfg.MarketOpen(now) {
				r.cfg.Logger.Warning("%s stream %s silent for %s, reconnecting", r.cfg.Subscription.Kind, r.ID(), silent.Round(time.Second))
				cancel(errStalled)
				return
			}
		}
	}
}

func (r *Runner) report(err error, terminal bool) {
	if r.cfg.OnError == nil {
		return
	}
	r.cfg.OnError(models.MStreamError{
		Kind:           r.cfg.Subscription.Kind,
		SubscriptionID: r.cfg.Subscription.ID,
		Err:            err,
		Terminal:       terminal,
		At:             time.Now(),
	})
}
