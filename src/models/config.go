package models

// MConfig Structure
type MConfig struct {
	Name          string               `yaml:"name"`
	Host          string               `yaml:"host"`
	Port          int                  `yaml:"port"`
	LogLevel      string               `yaml:"log_level"`
	LogFile       MLogFileConfig       `yaml:"log_file"`
	Connection    MConnectionConfig    `yaml:"connection"`
	Credentials   MCredentialsConfig   `yaml:"credentials"`
	Storage       MStorageConfig       `yaml:"storage"`
	Subscriptions MSubscriptionsConfig `yaml:"subscriptions"`
	RecentEvents  int                  `yaml:"recent_events"`
}

type MLogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MConnectionConfig describes the remote trade API endpoint and the timing
// policies of the session, the call wrapper and the stream runners.
type MConnectionConfig struct {
	Target                   string   `yaml:"target"`
	Insecure                 bool     `yaml:"insecure"`
	AuthScheme               string   `yaml:"auth_scheme"` // "jwt" or "api_key"
	TokenTTLSeconds          int      `yaml:"token_ttl_seconds"`
	RateLimitCooldownSeconds int      `yaml:"rate_limit_cooldown_seconds"`
	ReconnectDelaySeconds    int      `yaml:"reconnect_delay_seconds"`
	ReconnectJitter          float64  `yaml:"reconnect_jitter"`
	StallTimeoutSeconds      int      `yaml:"stall_timeout_seconds"`
	SchemaPath               string   `yaml:"schema_path"`
	QuietMethods             []string `yaml:"quiet_methods"`
}

type MCredentialsConfig struct {
	EnvFile    string `yaml:"env_file"`
	EnvVar     string `yaml:"env_var"`
	SecretPath string `yaml:"secret_path"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // "sqlite", "postgres" or "none"
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MSubscriptionsConfig struct {
	Quotes       [][]string                `yaml:"quotes"`
	OrderBooks   []string                  `yaml:"order_books"`
	LatestTrades []string                  `yaml:"latest_trades"`
	Bars         []MBarsSubscriptionConfig `yaml:"bars"`
	OrderTrades  []MOrderTradeSubscription `yaml:"order_trades"`
}

type MBarsSubscriptionConfig struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"` // M1, M5, H1, D1 ...
}

type MOrderTradeSubscription struct {
	AccountID string `yaml:"account_id"` // empty = every account bound to the token
	DataType  string `yaml:"data_type"`  // "all", "orders" or "trades"
}
