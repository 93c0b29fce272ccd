package rpc

import (
	"context"
	"strings"
	"time"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

const DefaultCooldown = 60 * time.Second

// -----------------------------------------------------------------------------

// Caller runs unary requests through an authenticated channel. Rate-limited
// calls wait out the cooldown and try again; every other failure is reported
// as an absent response.
type Caller struct {
	conn     grpc.ClientConnInterface
	logger   *logger.Logger
	cooldown time.Duration
	quiet    map[string]struct{}
	sleep    func(ctx context.Context, d time.Duration) bool
}

// Option customizes a Caller.
type Option func(*Caller)

// WithCooldown sets the wait after a rate-limit rejection.
func WithCooldown(d time.Duration) Option {
	return func(c *Caller) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithQuietMethods suppresses error logs for methods whose failures are
// expected (probing lookups). Names may be full ("/pkg.Svc/Method") or bare.
func WithQuietMethods(methods ...string) Option {
	return func(c *Caller) {
		for _, m := range methods {
			c.quiet[m] = struct{}{}
		}
	}
}

// WithSleep replaces the cooldown wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(c *Caller) {
		c.sleep = sleep
	}
}

func NewCaller(conn grpc.ClientConnInterface, log *logger.Logger, opts ...Option) *Caller {
	c := &Caller{
		conn:     conn,
		logger:   log,
		cooldown: DefaultCooldown,
		quiet:    map[string]struct{}{"GetAsset": {}},
		sleep:    helpers.SleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// -----------------------------------------------------------------------------

// Call invokes method and fills resp. It returns false when no response is
// available: the call failed or ctx ended while waiting out a rate limit.
func (c *Caller) Call(ctx context.Context, method string, req, resp proto.Message) bool {
	c.logger.Debug("request %s: %s", method, text(req))

	for {
		err := c.conn.Invoke(ctx, method, req, resp)
		if err == nil {
			c.logger.Debug("response %s: %s", method, text(resp))
			return true
		}

		if helpers.IsRateLimited(err) {
			c.logger.Warning("rate limit hit on %s, retrying in %s", method, c.cooldown)
			if !c.sleep(ctx, c.cooldown) {
				return false
			}
			continue
		}

		if !c.isQuiet(method) {
			c.logger.Error("call %s failed (%s): %v; request: %s", method, helpers.Code(err), err, text(req))
		}
		return false
	}
}

func (c *Caller) isQuiet(method string) bool {
	if _, ok := c.quiet[method]; ok {
		return true
	}
	if i := strings.LastIndex(method, "/"); i >= 0 {
		_, ok := c.quiet[method[i+1:]]
		return ok
	}
	return false
}

func text(m proto.Message) string {
	if m == nil {
		return "<nil>"
	}
	return prototext.MarshalOptions{}.Format(m)
}
