package config

import (
	"fmt"
	"os"
	"strings"

	"tradeapi-connector/src/models"

	"gopkg.in/yaml.v3"
)

// Defaults observed on the broker's v1 gRPC endpoint.
const (
	DefaultTarget                   = "api.finam.ru:443"
	DefaultTokenTTLSeconds          = 15 * 60
	DefaultRateLimitCooldownSeconds = 60
	DefaultReconnectDelaySeconds    = 5
	DefaultReconnectJitter          = 0.2
	DefaultRecentEvents             = 100
	DefaultRetentionDays            = 7
	DefaultCredentialsEnvVar        = "TRADEAPI_SECRET"

	AuthSchemeJWT    = "jwt"
	AuthSchemeAPIKey = "api_key"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from YAML bytes, fills defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Default returns a configuration with every default applied.
func Default() *Config {
	config := &Config{MConfig: &models.MConfig{Name: "tradeapi-connector"}}
	config.ApplyDefaults()
	return config
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills zero values with the documented defaults
func (c *Config) ApplyDefaults() {
	conn := &c.Connection
	if conn.Target == "" {
		conn.Target = DefaultTarget
	}
	if conn.AuthScheme == "" {
		conn.AuthScheme = AuthSchemeJWT
	}
	if conn.TokenTTLSeconds == 0 {
		conn.TokenTTLSeconds = DefaultTokenTTLSeconds
	}
	if conn.RateLimitCooldownSeconds == 0 {
		conn.RateLimitCooldownSeconds = DefaultRateLimitCooldownSeconds
	}
	if conn.ReconnectDelaySeconds == 0 {
		conn.ReconnectDelaySeconds = DefaultReconnectDelaySeconds
	}
	if conn.ReconnectJitter == 0 {
		conn.ReconnectJitter = DefaultReconnectJitter
	}
	if conn.QuietMethods == nil {
		conn.QuietMethods = []string{"/grpc.tradeapi.v1.assets.AssetsService/GetAsset"}
	}

	if c.Credentials.EnvVar == "" {
		c.Credentials.EnvVar = DefaultCredentialsEnvVar
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = DefaultRetentionDays
	}
	if c.RecentEvents == 0 {
		c.RecentEvents = DefaultRecentEvents
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Relay server is optional; a zero port disables it
	if c.Port != 0 && (c.Port <= 1024 || c.Port > 65535) {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Connection configuration
	conn := c.Connection
	if conn.Target == "" {
		return fmt.Errorf("connection target cannot be empty")
	}
	if conn.AuthScheme != AuthSchemeJWT && conn.AuthScheme != AuthSchemeAPIKey {
		return fmt.Errorf("unsupported auth scheme: %s", conn.AuthScheme)
	}
	if conn.TokenTTLSeconds < 0 {
		return fmt.Errorf("token ttl cannot be negative")
	}
	if conn.RateLimitCooldownSeconds < 0 || conn.ReconnectDelaySeconds < 0 {
		return fmt.Errorf("cooldown and reconnect delay cannot be negative")
	}
	if conn.ReconnectJitter < 0 || conn.ReconnectJitter > 1 {
		return fmt.Errorf("reconnect jitter must be within [0, 1]")
	}
	if conn.StallTimeoutSeconds < 0 {
		return fmt.Errorf("stall timeout cannot be negative")
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("data retention days must be greater than 0")
	}

	// Validate Subscriptions
	for i, symbols := range c.Subscriptions.Quotes {
		if len(symbols) == 0 {
			return fmt.Errorf("quote subscription %d must have at least one symbol", i)
		}
	}
	for i, bars := range c.Subscriptions.Bars {
		if bars.Symbol == "" || bars.Timeframe == "" {
			return fmt.Errorf("bars subscription %d needs symbol and timeframe", i)
		}
	}
	for i, ot := range c.Subscriptions.OrderTrades {
		if _, err := models.ParseDataType(ot.DataType); err != nil {
			return fmt.Errorf("order/trade subscription %d: %w", i, err)
		}
	}
	for _, symbol := range append(append([]string{}, c.Subscriptions.OrderBooks...), c.Subscriptions.LatestTrades...) {
		if strings.TrimSpace(symbol) == "" {
			return fmt.Errorf("subscription symbol cannot be empty")
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
