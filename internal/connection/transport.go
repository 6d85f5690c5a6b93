package connection

import "time"

// ConnectOptions describe one transport open.
type ConnectOptions struct {
	Host     string
	Port     int
	ClientID string
	Timeout  time.Duration
}

// Callbacks receive transport events. They may be invoked from any goroutine.
// Exactly one of OnSuccess or OnFailure is called per Connect.
type Callbacks struct {
	OnSuccess        func()
	OnFailure        func(err error)
	OnMessage        func(topic string, payload []byte)
	OnConnectionLost func(err error)
}

// Transport is the broker client primitive set used by the Manager.
// A Transport is used for a single connection attempt.
type Transport interface {
	// Connect opens the session asynchronously.
	Connect(opts ConnectOptions, cb Callbacks)

	// Subscribe requests delivery for topic. It does not wait for the broker.
	Subscribe(topic string) error

	// Close tears the session down. Safe to call more than once.
	Close()
}

// TransportFactory builds a fresh Transport for each attempt.
type TransportFactory func() Transport
