package interfaces

import (
	"context"

	"tradeapi-connector/src/models"
)

// -----------------------------------------------------------------------------
// ICredentialProvider supplies the long-lived API secret.
// -----------------------------------------------------------------------------

type ICredentialProvider interface {
	Secret(ctx context.Context) (string, error)
}

// -----------------------------------------------------------------------------
// IAuthenticator performs the token exchange against the auth service.
// -----------------------------------------------------------------------------

type IAuthenticator interface {

	// Auth exchanges the secret for a short-lived session token.
	Auth(ctx context.Context, secret string) (string, error)

	// -----------------------------------------------------------------------------

	// TokenDetails returns the metadata bound to a token.
	TokenDetails(ctx context.Context, token string) (models.MTokenDetails, error)
}
