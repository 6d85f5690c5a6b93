package config

import "time"

// BridgeConfig is the root configuration for the interface bridge.
type BridgeConfig struct {
	Interface InterfaceConfig `yaml:"interface"`
	Broker    BrokerConfig    `yaml:"broker"`
	Retry     RetryConfig     `yaml:"retry"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Journal   JournalConfig   `yaml:"journal"`
}

// InterfaceConfig locates the web interface that hands out broker settings.
type InterfaceConfig struct {
	URL            string        `yaml:"url"`              // e.g. http://alice.local:5000
	OriginHost     string        `yaml:"origin_host"`      // replaces "localhost" broker hosts; defaults to the URL host
	ClientIDPrefix string        `yaml:"client_id_prefix"` // MQTT client id prefix
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// BrokerConfig holds MQTT transport settings. Host and port come from the
// interface on every attempt.
type BrokerConfig struct {
	Scheme         string        `yaml:"scheme"` // ws, wss, tcp or ssl
	Path           string        `yaml:"path"`   // WebSocket path
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
}

// RetryConfig holds the fixed reconnect delays. A zero connection_lost_delay
// reconnects immediately.
type RetryConfig struct {
	ParameterFetchDelay time.Duration `yaml:"parameter_fetch_delay"`
	TransportOpenDelay  time.Duration `yaml:"transport_open_delay"`
	ConnectionLostDelay time.Duration `yaml:"connection_lost_delay"`
}

// WatchdogConfig holds heartbeat liveness timing.
type WatchdogConfig struct {
	Period     time.Duration `yaml:"period"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// JournalConfig enables recording availability transitions to PostgreSQL.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DB            DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
