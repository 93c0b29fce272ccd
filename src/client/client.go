package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradeapi-connector/src/config"
	"tradeapi-connector/src/events"
	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
	"tradeapi-connector/src/rpc"
	"tradeapi-connector/src/session"
	"tradeapi-connector/src/stream"
	"tradeapi-connector/src/tradeapi"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Options carry the collaborators of a Client that do not come from the
// configuration file.
type Options struct {
	Credentials interfaces.ICredentialProvider
	// Schema overrides connection.schema_path and the global registry.
	Schema      *tradeapi.Schema
	Logger      *logger.Logger
	DialOptions []grpc.DialOption
	// Sleep replaces real waits (cooldowns and reconnect backoff).
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Client is the application-facing connector: one channel, one session,
// any number of stream subscriptions and a dispatcher per event kind.
type Client struct {
	cfg     *config.Config
	logger  *logger.Logger
	schema  *tradeapi.Schema
	session *session.Session
	caller  *rpc.Caller
	manager *stream.Manager
	orders  *stream.OrderTradeRunner
	sleep   func(ctx context.Context, d time.Duration) bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	refMu     sync.RWMutex
	exchanges proto.Message
	assets    proto.Message

	OnQuote        *events.Event[models.MStreamEvent]
	OnOrderBook    *events.Event[models.MStreamEvent]
	OnLatestTrades *events.Event[models.MStreamEvent]
	OnBar          *events.Event[models.MStreamEvent]
	OnOrder        *events.Event[models.MStreamEvent]
	OnTrade        *events.Event[models.MStreamEvent]
	OnError        *events.Event[models.MStreamError]
}

// -----------------------------------------------------------------------------

// New dials the broker, authenticates, loads the account list and the
// exchange and asset references. Authentication failures are returned.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewLogger(cfg.MConfig, "client")
	}
	if opts.Credentials == nil {
		return nil, helpers.NewConfigurationError("no credential provider given", nil)
	}

	schema := opts.Schema
	if schema == nil {
		var err error
		if schema, err = loadSchema(cfg.Connection.SchemaPath); err != nil {
			return nil, err
		}
	}

	conn, err := session.Dial(cfg.Connection.Target, cfg.Connection.Insecure, opts.DialOptions...)
	if err != nil {
		return nil, helpers.NewConfigurationError("cannot create channel", err)
	}

	var auth interfaces.IAuthenticator
	if cfg.Connection.AuthScheme != config.AuthSchemeAPIKey {
		auth = tradeapi.NewAuthenticator(conn, schema)
	}
	sess := session.New(conn, opts.Credentials, auth, session.Options{
		Scheme: cfg.Connection.AuthScheme,
		TTL:    time.Duration(cfg.Connection.TokenTTLSeconds) * time.Second,
		Logger: log.Named("session"),
	})
	if err := sess.Start(ctx); err != nil {
		sess.Close()
		return nil, err
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = helpers.SleepContext
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:     cfg,
		logger:  log,
		schema:  schema,
		session: sess,
		caller: rpc.NewCaller(sess, log.Named("rpc"),
			rpc.WithCooldown(time.Duration(cfg.Connection.RateLimitCooldownSeconds)*time.Second),
			rpc.WithQuietMethods(cfg.Connection.QuietMethods...),
			rpc.WithSleep(sleep)),
		manager: stream.NewManager(rootCtx, log.Named("streams")),
		sleep:   sleep,
		ctx:     rootCtx,
		cancel:  cancel,

		OnQuote:        events.NewEvent[models.MStreamEvent]("quote", log),
		OnOrderBook:    events.NewEvent[models.MStreamEvent]("order_book", log),
		OnLatestTrades: events.NewEvent[models.MStreamEvent]("latest_trades", log),
		OnBar:          events.NewEvent[models.MStreamEvent]("bars", log),
		OnOrder:        events.NewEvent[models.MStreamEvent]("order", log),
		OnTrade:        events.NewEvent[models.MStreamEvent]("trade", log),
		OnError:        events.NewEvent[models.MStreamError]("stream_error", log),
	}

	c.orders = c.newOrderTradeRunner()
	if err := c.manager.Add(c.orders); err != nil {
		c.Close()
		return nil, err
	}

	c.loadReferenceData(ctx)
	log.Info("connected to %s, accounts: %s", cfg.Connection.Target, strings.Join(sess.AccountIDs(), ", "))
	return c, nil
}

func loadSchema(path string) (*tradeapi.Schema, error) {
	if path == "" {
		return tradeapi.NewSchema(nil), nil
	}
	return tradeapi.LoadSchema(path)
}

// -----------------------------------------------------------------------------

// Close stops every stream and closes the channel. Calling it again is a no-op.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.manager.Stop()
		err = c.session.Close()
	})
	return err
}

// Done is closed when the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// -----------------------------------------------------------------------------

// AccountIDs returns the accounts the session token grants access to.
func (c *Client) AccountIDs() []string {
	return c.session.AccountIDs()
}

// TokenDetails refreshes and returns the session token metadata.
func (c *Client) TokenDetails(ctx context.Context) (models.MTokenDetails, error) {
	return c.session.TokenDetails(ctx)
}

// Schema exposes the message resolver used by the client.
func (c *Client) Schema() *tradeapi.Schema {
	return c.schema
}

// Conn returns the authenticated channel for generated service stubs.
func (c *Client) Conn() grpc.ClientConnInterface {
	return c.session
}

// -----------------------------------------------------------------------------

// Call performs a unary request. It returns false when no response is
// available; errors are logged, rate limits are waited out.
func (c *Client) Call(ctx context.Context, method string, req, resp proto.Message) bool {
	return c.caller.Call(ctx, method, req, resp)
}

// CallByName builds the request from fields and returns the response, or nil
// when the call produced none. Schema errors are returned.
func (c *Client) CallByName(ctx context.Context, method, request string, fields map[string]any, response string) (proto.Message, error) {
	req, err := c.schema.Build(request, fields)
	if err != nil {
		return nil, err
	}
	resp, err := c.schema.New(response)
	if err != nil {
		return nil, err
	}
	if !c.caller.Call(ctx, method, req, resp) {
		return nil, nil
	}
	return resp, nil
}

// -----------------------------------------------------------------------------

// newSubscriptionID returns 16 upper-case hex characters.
func newSubscriptionID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:16])
}

func (c *Client) dispatcher(kind models.StreamKind) (*events.Event[models.MStreamEvent], error) {
	switch kind {
	case models.KindQuote:
		return c.OnQuote, nil
	case models.KindOrderBook:
		return c.OnOrderBook, nil
	case models.KindLatestTrades:
		return c.OnLatestTrades, nil
	case models.KindBars:
		return c.OnBar, nil
	}
	return nil, fmt.Errorf("no dispatcher for stream kind %q", kind)
}
