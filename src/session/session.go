package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"sync"
	"time"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	SchemeJWT    = "jwt"
	SchemeAPIKey = "api_key"

	DefaultTTL = 15 * time.Minute
)

// -----------------------------------------------------------------------------

// Options tune a Session. Zero values select the defaults.
type Options struct {
	Scheme string
	TTL    time.Duration
	Now    func() time.Time
	Logger *logger.Logger
}

// Session owns the channel to the broker and keeps a valid session token.
// It implements grpc.ClientConnInterface: every call made through it
// authenticates first and carries the token as metadata.
type Session struct {
	conn   grpc.ClientConnInterface
	creds  interfaces.ICredentialProvider
	auth   interfaces.IAuthenticator
	scheme string
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger

	mu         sync.Mutex
	token      string
	issuedAt   time.Time
	accountIDs []string

	closeOnce sync.Once
	closeErr  error
}

var _ grpc.ClientConnInterface = (*Session)(nil)

// -----------------------------------------------------------------------------

// Dial opens the TLS channel to target (plaintext when insecureConn is set).
// The connection is lazy: nothing goes over the wire until the first call.
func Dial(target string, insecureConn bool, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	transport := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if insecureConn {
		transport = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(transport)}, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel to %s: %w", target, err)
	}
	return conn, nil
}

// -----------------------------------------------------------------------------

// New wraps an open channel. auth may be nil with the API-key scheme.
func New(conn grpc.ClientConnInterface, creds interfaces.ICredentialProvider, auth interfaces.IAuthenticator, opts Options) *Session {
	s := &Session{
		conn:   conn,
		creds:  creds,
		auth:   auth,
		scheme: opts.Scheme,
		ttl:    opts.TTL,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if s.scheme == "" {
		s.scheme = SchemeJWT
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logger.NewLogger(nil, "session")
	}
	return s
}

// -----------------------------------------------------------------------------

// Authenticate makes sure a token younger than the TTL is held. Concurrent
// callers wait for a single exchange.
func (s *Session) Authenticate(ctx context.Context) error {
	_, err := s.currentToken(ctx)
	return err
}

func (s *Session) currentToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheme == SchemeAPIKey {
		if s.token == "" {
			secret, err := s.creds.Secret(ctx)
			if err != nil {
				return "", err
			}
			s.token = secret
			s.issuedAt = s.now()
		}
		return s.token, nil
	}

	now := s.now()
	if s.token != "" && now.Sub(s.issuedAt) <= s.ttl {
		return s.token, nil
	}

	secret, err := s.creds.Secret(ctx)
	if err != nil {
		return "", err
	}
	if s.auth == nil {
		return "", helpers.NewAuthError("no authenticator configured", nil)
	}
	token, err := s.auth.Auth(ctx, secret)
	if err != nil {
		return "", err
	}

	s.token = token
	s.issuedAt = now
	s.logger.Debug("session token renewed")
	return token, nil
}

// -----------------------------------------------------------------------------

// TokenDetails authenticates if needed and returns the token metadata.
func (s *Session) TokenDetails(ctx context.Context) (models.MTokenDetails, error) {
	token, err := s.currentToken(ctx)
	if err != nil {
		return models.MTokenDetails{}, err
	}
	if s.auth == nil {
		return models.MTokenDetails{}, helpers.NewAuthError("no authenticator configured", nil)
	}
	return s.auth.TokenDetails(ctx, token)
}

// -----------------------------------------------------------------------------

// Start authenticates and loads the account list. Failures are returned to the
// caller and not retried.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Authenticate(ctx); err != nil {
		return helpers.NewAuthError("initial authentication failed", err)
	}

	if s.scheme == SchemeAPIKey && s.auth == nil {
		return nil
	}

	details, err := s.TokenDetails(ctx)
	if err != nil {
		return helpers.NewAuthError("failed to load token details", err)
	}

	s.mu.Lock()
	s.accountIDs = append([]string(nil), details.AccountIDs...)
	s.mu.Unlock()

	s.logger.Info("session started, %d account(s) available", len(details.AccountIDs))
	return nil
}

// AccountIDs returns the accounts bound to the token at Start.
func (s *Session) AccountIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.accountIDs...)
}

// -----------------------------------------------------------------------------

// outgoing attaches the credential metadata to ctx.
func (s *Session) outgoing(ctx context.Context) (context.Context, error) {
	token, err := s.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	if s.scheme == SchemeAPIKey {
		return metadata.AppendToOutgoingContext(ctx, "x-api-key", token), nil
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", token), nil
}

// Invoke performs a unary call with a fresh token.
func (s *Session) Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error {
	callCtx, err := s.outgoing(ctx)
	if err != nil {
		return err
	}
	return s.conn.Invoke(callCtx, method, args, reply, opts...)
}

// NewStream opens a stream with a fresh token.
func (s *Session) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	callCtx, err := s.outgoing(ctx)
	if err != nil {
		return nil, err
	}
	return s.conn.NewStream(callCtx, desc, method, opts...)
}

// -----------------------------------------------------------------------------

// Close releases the channel. Further calls fail with codes.Canceled.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if closer, ok := s.conn.(io.Closer); ok {
			s.closeErr = closer.Close()
		}
		s.logger.Info("channel closed")
	})
	return s.closeErr
}
