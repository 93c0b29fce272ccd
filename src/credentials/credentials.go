package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"tradeapi-connector/src/helpers"

	"github.com/joho/godotenv"
)

// -----------------------------------------------------------------------------
// Static
// -----------------------------------------------------------------------------

// Static returns a fixed secret. Useful for tests and for applications that
// load the secret themselves.
type Static string

func (s Static) Secret(context.Context) (string, error) {
	if s == "" {
		return "", helpers.NewAuthError("empty secret", nil)
	}
	return string(s), nil
}

// -----------------------------------------------------------------------------
// Environment
// -----------------------------------------------------------------------------

// EnvProvider reads the secret from an environment variable, optionally loading
// a .env file first.
type EnvProvider struct {
	EnvFile string
	EnvVar  string
}

// NewEnvProvider creates a provider for the given variable. When envFile is
// set it is loaded once with godotenv; variables already set in the process
// environment win.
func NewEnvProvider(envFile, envVar string) (*EnvProvider, error) {
	if envVar == "" {
		return nil, helpers.NewConfigurationError("credentials env var is empty", nil)
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, helpers.NewConfigurationError(fmt.Sprintf("failed to load env file '%s'", envFile), err)
		}
	}
	return &EnvProvider{EnvFile: envFile, EnvVar: envVar}, nil
}

func (p *EnvProvider) Secret(context.Context) (string, error) {
	secret := strings.TrimSpace(os.Getenv(p.EnvVar))
	if secret == "" {
		return "", helpers.NewAuthError(fmt.Sprintf("environment variable %s is not set", p.EnvVar), nil)
	}
	return secret, nil
}

// -----------------------------------------------------------------------------
// File store
// -----------------------------------------------------------------------------

// FileStore keeps the secret in a single owner-readable file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Secret(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", helpers.NewAuthError(fmt.Sprintf("failed to read secret file '%s'", f.Path), err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", helpers.NewAuthError(fmt.Sprintf("secret file '%s' is empty", f.Path), nil)
	}
	return secret, nil
}

// Save writes the secret with 0600 permissions, replacing any previous one.
func (f *FileStore) Save(secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return helpers.NewConfigurationError("refusing to save an empty secret", nil)
	}
	if err := os.WriteFile(f.Path, []byte(secret+"\n"), 0600); err != nil {
		return helpers.NewStorageError(fmt.Sprintf("failed to write secret file '%s'", f.Path), err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(f.Path, 0600)
}

// -----------------------------------------------------------------------------
// Chain
// -----------------------------------------------------------------------------

type secretSource interface {
	Secret(ctx context.Context) (string, error)
}

// Chain tries each provider in order and returns the first secret found.
type Chain []secretSource

func (c Chain) Secret(ctx context.Context) (string, error) {
	var lastErr error
	for _, p := range c {
		secret, err := p.Secret(ctx)
		if err == nil {
			return secret, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = helpers.NewAuthError("no credential provider configured", nil)
	}
	return "", lastErr
}
