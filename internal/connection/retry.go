package connection

import "time"

// RetryTrigger identifies why a new connection attempt is needed.
type RetryTrigger int

const (
	// TriggerParameterFetch: the config provider failed or reported failure.
	TriggerParameterFetch RetryTrigger = iota
	// TriggerTransportOpen: the transport could not open a session.
	TriggerTransportOpen
	// TriggerConnectionLost: an established session dropped.
	TriggerConnectionLost
)

// String returns the trigger name used in logs.
func (t RetryTrigger) String() string {
	switch t {
	case TriggerParameterFetch:
		return "parameter_fetch"
	case TriggerTransportOpen:
		return "transport_open"
	case TriggerConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// RetryPolicy maps each trigger to a fixed delay. There is no attempt limit
// and no backoff growth.
type RetryPolicy struct {
	ParameterFetchDelay time.Duration
	TransportOpenDelay  time.Duration
	ConnectionLostDelay time.Duration // 0 reconnects eagerly
}

// DefaultRetryPolicy backs off 5s when a connection cannot be established and
// reconnects immediately when an established one is lost.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		ParameterFetchDelay: 5 * time.Second,
		TransportOpenDelay:  5 * time.Second,
		ConnectionLostDelay: 0,
	}
}

// Delay returns the wait before the next attempt for trigger.
func (p RetryPolicy) Delay(trigger RetryTrigger) time.Duration {
	switch trigger {
	case TriggerParameterFetch:
		return p.ParameterFetchDelay
	case TriggerTransportOpen:
		return p.TransportOpenDelay
	case TriggerConnectionLost:
		return p.ConnectionLostDelay
	default:
		return p.TransportOpenDelay
	}
}
