package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("name: observer\n"))
	require.NoError(t, err)

	conn := cfg.Connection
	assert.Equal(t, DefaultTarget, conn.Target)
	assert.Equal(t, AuthSchemeJWT, conn.AuthScheme)
	assert.Equal(t, DefaultTokenTTLSeconds, conn.TokenTTLSeconds)
	assert.Equal(t, DefaultRateLimitCooldownSeconds, conn.RateLimitCooldownSeconds)
	assert.Equal(t, DefaultReconnectDelaySeconds, conn.ReconnectDelaySeconds)
	assert.Equal(t, DefaultReconnectJitter, conn.ReconnectJitter)
	assert.Equal(t, []string{"/grpc.tradeapi.v1.assets.AssetsService/GetAsset"}, conn.QuietMethods)
	assert.Equal(t, DefaultCredentialsEnvVar, cfg.Credentials.EnvVar)
	assert.Equal(t, "none", cfg.Storage.DBType)
	assert.Equal(t, 0, cfg.Port)
}

func TestParseReadsSubscriptions(t *testing.T) {
	data := []byte(`
name: observer
port: 8000
connection:
  auth_scheme: api_key
  stall_timeout_seconds: 90
storage:
  db_type: sqlite
  db_path: events.db
subscriptions:
  quotes:
    - [SBER@MISX, GAZP@MISX]
  bars:
    - symbol: SBER@MISX
      timeframe: M5
  order_trades:
    - account_id: A1
      data_type: trades
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, AuthSchemeAPIKey, cfg.Connection.AuthScheme)
	assert.Equal(t, 90, cfg.Connection.StallTimeoutSeconds)
	assert.Equal(t, [][]string{{"SBER@MISX", "GAZP@MISX"}}, cfg.Subscriptions.Quotes)
	assert.Equal(t, "M5", cfg.Subscriptions.Bars[0].Timeframe)
	assert.Equal(t, "A1", cfg.Subscriptions.OrderTrades[0].AccountID)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown scheme":   "name: x\nconnection: {auth_scheme: oauth}\n",
		"bad port":         "name: x\nport: 80\n",
		"jitter too large": "name: x\nconnection: {reconnect_jitter: 2}\n",
		"sqlite path":      "name: x\nstorage: {db_type: sqlite}\n",
		"postgres dsn":     "name: x\nstorage: {db_type: postgres}\n",
		"unknown db":       "name: x\nstorage: {db_type: mysql}\n",
		"empty quote list": "name: x\nsubscriptions: {quotes: [[]]}\n",
		"bars timeframe":   "name: x\nsubscriptions: {bars: [{symbol: SBER@MISX}]}\n",
		"data type":        "name: x\nsubscriptions: {order_trades: [{data_type: positions}]}\n",
		"empty name":       "port: 8000\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Connection.Target = "localhost:50051"
	cfg.Connection.Insecure = true
	require.NoError(t, cfg.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:50051", loaded.Connection.Target)
	assert.True(t, loaded.Connection.Insecure)

	_, err = NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
