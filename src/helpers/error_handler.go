package helpers

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ConnectorError struct {
	Message string
	Cause   error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type AuthError struct{ ConnectorError }
type ConfigurationError struct{ ConnectorError }
type SchemaError struct{ ConnectorError }
type StorageError struct{ ConnectorError }

func NewAuthError(message string, cause error) error {
	return &AuthError{ConnectorError{Message: message, Cause: cause}}
}

func NewConfigurationError(message string, cause error) error {
	return &ConfigurationError{ConnectorError{Message: message, Cause: cause}}
}

func NewSchemaError(message string, cause error) error {
	return &SchemaError{ConnectorError{Message: message, Cause: cause}}
}

func NewStorageError(message string, cause error) error {
	return &StorageError{ConnectorError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// gRPC status classification
// -----------------------------------------------------------------------------

const rateLimitDetail = "too many requests"

// Code returns the gRPC status code carried by err (codes.Unknown for plain
// errors, codes.OK for nil).
func Code(err error) codes.Code {
	return status.Code(err)
}

// IsRateLimited reports whether the remote side rejected the call because of
// its request rate limit. Only the "too many requests" detail counts: gRPC
// also reports local failures such as oversized messages as ResourceExhausted.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(st.Message()), rateLimitDetail)
}

// IsCancelled reports a deliberate shutdown: a cancelled call, a closed
// channel or a done context.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return status.Code(err) == codes.Canceled
}

// -----------------------------------------------------------------------------
// Backoff
// -----------------------------------------------------------------------------

// JitteredDelay returns base plus a random share of base in [0, fraction).
func JitteredDelay(base time.Duration, fraction float64) time.Duration {
	if base <= 0 || fraction <= 0 {
		return base
	}
	return base + time.Duration(rand.Float64()*fraction*float64(base))
}

// SleepContext waits for d or until ctx is done. It returns false when the
// context ended first.
func SleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
