package connection

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/alice-bridge/internal/model"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
	ErrTimeout      = errors.New("operation timeout")
	ErrStopped      = errors.New("connection manager stopped")
)

// ConfigProvider supplies broker parameters for one connection attempt.
type ConfigProvider interface {
	FetchConnectionParameters(ctx context.Context) (model.ConnectionParameters, error)
}

// ConfigProviderFunc is a function adapter for ConfigProvider.
type ConfigProviderFunc func(ctx context.Context) (model.ConnectionParameters, error)

func (f ConfigProviderFunc) FetchConnectionParameters(ctx context.Context) (model.ConnectionParameters, error) {
	return f(ctx)
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	OriginHost     string        // Replaces the "localhost" broker host
	ClientIDPrefix string        // Client id = prefix + random suffix
	ConnectTimeout time.Duration // Transport open timeout
	FetchTimeout   time.Duration // Parameter fetch timeout
	Retry          RetryPolicy
	Topics         []string // Subscribed on every successful open
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ClientIDPrefix: "ProjectAliceInterface",
		ConnectTimeout: 5 * time.Second,
		FetchTimeout:   10 * time.Second,
		Retry:          DefaultRetryPolicy(),
		Topics:         model.InterfaceTopics(),
	}
}

// Snapshot is a point-in-time view of the manager for status reporting.
type Snapshot struct {
	State          model.ConnectionState `json:"-"`
	StateName      string                `json:"state"`
	ClientID       string                `json:"client_id"`
	Broker         string                `json:"broker,omitempty"`
	Attempts       int64                 `json:"attempts"`
	LastError      string                `json:"last_error,omitempty"`
	ConnectedSince time.Time             `json:"connected_since,omitzero"`
	NextRetryAt    time.Time             `json:"next_retry_at,omitzero"`
}
