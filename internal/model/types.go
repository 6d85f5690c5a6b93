package model

import (
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Connection Types
// -----------------------------------------------------------------------------

// LocalhostSentinel is the broker host value the core reports when the broker
// runs on the same machine as the web interface.
const LocalhostSentinel = "localhost"

// ConnectionParameters identify the broker endpoint for one connection attempt.
type ConnectionParameters struct {
	Host string
	Port int
}

// WithOrigin rewrites the localhost sentinel to the interface's own host.
func (p ConnectionParameters) WithOrigin(originHost string) ConnectionParameters {
	if p.Host == LocalhostSentinel && originHost != "" {
		p.Host = originHost
	}
	return p
}

// ConnectionState is the lifecycle state of the broker connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Event Types
// -----------------------------------------------------------------------------

// EventKind selects which subscriber list an event is delivered to.
type EventKind string

const (
	EventConnected EventKind = "connected"
	EventMessage   EventKind = "message"
)

// Message is a raw inbound broker message.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// TopicLeaf returns the last path segment of the topic.
func (m Message) TopicLeaf() string {
	if i := strings.LastIndex(m.Topic, "/"); i >= 0 {
		return m.Topic[i+1:]
	}
	return m.Topic
}

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topics published by the assistant core that the interface listens to.
const (
	TopicTrainingStatus          = "projectalice/nlu/trainingStatus"
	TopicSkillInstructions       = "projectalice/skills/instructions"
	TopicCoreHeartbeat           = "projectalice/devices/coreHeartbeat"
	TopicCoreReconnection        = "projectalice/devices/coreReconnection"
	TopicCoreDisconnection       = "projectalice/devices/coreDisconnection"
	TopicCoreConfigUpdateWarning = "projectalice/skills/coreConfigUpdateWarning"
	TopicResourceUsage           = "projectalice/devices/resourceUsage"
)

// InterfaceTopics returns the fixed subscription set issued on every connect.
func InterfaceTopics() []string {
	return []string{
		TopicTrainingStatus,
		TopicSkillInstructions,
		TopicCoreHeartbeat,
		TopicCoreReconnection,
		TopicCoreDisconnection,
		TopicCoreConfigUpdateWarning,
		TopicResourceUsage,
	}
}
