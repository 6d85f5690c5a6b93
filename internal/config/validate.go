package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *BridgeConfig) Validate() error {
	u, err := url.Parse(c.Interface.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("interface.url must be an absolute URL, got %q", c.Interface.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("interface.url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Interface.ClientIDPrefix == "" {
		return errors.New("interface.client_id_prefix is required")
	}
	if c.Interface.RequestTimeout <= 0 {
		return errors.New("interface.request_timeout must be > 0")
	}

	switch c.Broker.Scheme {
	case "ws", "wss", "tcp", "ssl":
	default:
		return fmt.Errorf("broker.scheme must be one of ws, wss, tcp, ssl, got %q", c.Broker.Scheme)
	}
	if (c.Broker.Scheme == "ws" || c.Broker.Scheme == "wss") && !strings.HasPrefix(c.Broker.Path, "/") {
		return fmt.Errorf("broker.path must start with /, got %q", c.Broker.Path)
	}
	if c.Broker.ConnectTimeout <= 0 {
		return errors.New("broker.connect_timeout must be > 0")
	}

	if c.Retry.ParameterFetchDelay < 0 {
		return errors.New("retry.parameter_fetch_delay must be >= 0")
	}
	if c.Retry.TransportOpenDelay < 0 {
		return errors.New("retry.transport_open_delay must be >= 0")
	}
	if c.Retry.ConnectionLostDelay < 0 {
		return errors.New("retry.connection_lost_delay must be >= 0")
	}

	if c.Watchdog.Period <= 0 {
		return errors.New("watchdog.period must be > 0")
	}
	if c.Watchdog.StaleAfter < c.Watchdog.Period {
		return fmt.Errorf("watchdog.stale_after (%s) cannot be shorter than watchdog.period (%s)",
			c.Watchdog.StaleAfter, c.Watchdog.Period)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Journal.Enabled {
		if err := c.Journal.DB.validate("journal.database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
	}

	return nil
}

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("unknown level %q", level)
	}
	return l, nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
