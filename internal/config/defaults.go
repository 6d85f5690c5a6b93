package config

import (
	"net/url"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultInterfaceURL        = "http://localhost:5000"
	DefaultClientIDPrefix      = "ProjectAliceInterface"
	DefaultRequestTimeout      = 10 * time.Second
	DefaultBrokerScheme        = "ws"
	DefaultBrokerPath          = "/mqtt"
	DefaultConnectTimeout      = 5 * time.Second
	DefaultKeepAlive           = 30 * time.Second
	DefaultParameterFetchDelay = 5 * time.Second
	DefaultTransportOpenDelay  = 5 * time.Second
	DefaultWatchdogPeriod      = 2 * time.Second
	DefaultStaleAfter          = 4 * time.Second
	DefaultServerPort          = 8090
	DefaultShutdownTimeout     = 10 * time.Second
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 4
	DefaultMinConns            = 1
	DefaultBatchSize           = 100
	DefaultFlushInterval       = 1 * time.Second
	DefaultBufferSize          = 1000
)

func (c *BridgeConfig) applyDefaults() {
	// Interface defaults
	if c.Interface.URL == "" {
		c.Interface.URL = DefaultInterfaceURL
	}
	if c.Interface.OriginHost == "" {
		if u, err := url.Parse(c.Interface.URL); err == nil {
			c.Interface.OriginHost = u.Hostname()
		}
	}
	if c.Interface.ClientIDPrefix == "" {
		c.Interface.ClientIDPrefix = DefaultClientIDPrefix
	}
	if c.Interface.RequestTimeout == 0 {
		c.Interface.RequestTimeout = DefaultRequestTimeout
	}

	// Broker defaults
	if c.Broker.Scheme == "" {
		c.Broker.Scheme = DefaultBrokerScheme
	}
	if c.Broker.Path == "" {
		c.Broker.Path = DefaultBrokerPath
	}
	if c.Broker.ConnectTimeout == 0 {
		c.Broker.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Broker.KeepAlive == 0 {
		c.Broker.KeepAlive = DefaultKeepAlive
	}

	// Retry defaults; connection_lost_delay stays 0 (immediate)
	if c.Retry.ParameterFetchDelay == 0 {
		c.Retry.ParameterFetchDelay = DefaultParameterFetchDelay
	}
	if c.Retry.TransportOpenDelay == 0 {
		c.Retry.TransportOpenDelay = DefaultTransportOpenDelay
	}

	// Watchdog defaults
	if c.Watchdog.Period == 0 {
		c.Watchdog.Period = DefaultWatchdogPeriod
	}
	if c.Watchdog.StaleAfter == 0 {
		c.Watchdog.StaleAfter = DefaultStaleAfter
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.DB)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
