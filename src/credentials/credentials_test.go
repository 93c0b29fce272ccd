package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tradeapi-connector/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	secret, err := Static("abc").Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", secret)

	_, err = Static("").Secret(context.Background())
	var authErr *helpers.AuthError
	assert.True(t, errors.As(err, &authErr))
}

func TestEnvProviderLoadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CONNECTOR_TEST_SECRET=from-file\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("CONNECTOR_TEST_SECRET") })

	p, err := NewEnvProvider(envFile, "CONNECTOR_TEST_SECRET")
	require.NoError(t, err)

	secret, err := p.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-file", secret)
}

func TestEnvProviderMissingVariable(t *testing.T) {
	t.Setenv("CONNECTOR_TEST_MISSING", "")

	p, err := NewEnvProvider("", "CONNECTOR_TEST_MISSING")
	require.NoError(t, err)

	_, err = p.Secret(context.Background())
	assert.Error(t, err)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	store := NewFileStore(path)

	require.NoError(t, store.Save("  token-secret "))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	secret, err := store.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-secret", secret)

	assert.Error(t, store.Save(""))
}

func TestChainFallsThrough(t *testing.T) {
	chain := Chain{NewFileStore(filepath.Join(t.TempDir(), "absent")), Static("second")}

	secret, err := chain.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", secret)

	_, err = Chain{}.Secret(context.Background())
	assert.Error(t, err)
}
