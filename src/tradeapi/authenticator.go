package tradeapi

import (
	"context"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/models"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// Authenticator talks to AuthService over a raw channel (no session metadata).
type Authenticator struct {
	conn   grpc.ClientConnInterface
	schema *Schema
}

func NewAuthenticator(conn grpc.ClientConnInterface, schema *Schema) *Authenticator {
	return &Authenticator{conn: conn, schema: schema}
}

// -----------------------------------------------------------------------------

// Auth exchanges the API secret for a JWT session token.
func (a *Authenticator) Auth(ctx context.Context, secret string) (string, error) {
	req, err := a.schema.Build(AuthRequest, map[string]any{"secret": secret})
	if err != nil {
		return "", err
	}
	resp, err := a.schema.New(AuthResponse)
	if err != nil {
		return "", err
	}

	if err := a.conn.Invoke(ctx, MethodAuth, req, resp); err != nil {
		return "", helpers.NewAuthError("auth exchange failed", err)
	}

	token := String(resp, "token")
	if token == "" {
		return "", helpers.NewAuthError("auth service returned an empty token", nil)
	}
	return token, nil
}

// -----------------------------------------------------------------------------

// TokenDetails returns the accounts and validity window bound to token.
func (a *Authenticator) TokenDetails(ctx context.Context, token string) (models.MTokenDetails, error) {
	req, err := a.schema.Build(TokenDetailsRequest, map[string]any{"token": token})
	if err != nil {
		return models.MTokenDetails{}, err
	}
	resp, err := a.schema.New(TokenDetailsResponse)
	if err != nil {
		return models.MTokenDetails{}, err
	}

	if err := a.conn.Invoke(ctx, MethodTokenDetails, req, resp); err != nil {
		return models.MTokenDetails{}, helpers.NewAuthError("token details request failed", err)
	}

	return models.MTokenDetails{
		AccountIDs: Strings(resp, "account_ids"),
		CreatedAt:  Time(resp, "created_at"),
		ExpiresAt:  Time(resp, "expires_at"),
		ReadOnly:   Bool(resp, "readonly"),
	}, nil
}
