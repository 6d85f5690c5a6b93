package router

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/alice-bridge/internal/model"
)

// Router interprets raw broker messages and drives the watchdog and the view.
type Router interface {
	// Handle routes one message. It is registered on the message event and
	// never returns an error: malformed payloads are logged and dropped.
	Handle(msg *model.Message) error

	// Stats returns current router statistics.
	Stats() Stats
}

// router is the internal implementation.
type router struct {
	liveness Liveness
	view     View
	logger   *slog.Logger

	mu              sync.RWMutex
	received        int64
	routed          int64
	parseErrors     int64
	unknownMessages int64
}

// NewRouter creates a new Message Router.
func NewRouter(liveness Liveness, view View, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		liveness: liveness,
		view:     view,
		logger:   logger,
	}
}

// Stats returns current statistics.
func (r *router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		UnknownMessages:  r.unknownMessages,
	}
}

// Handle parses and routes a single message.
func (r *router) Handle(msg *model.Message) error {
	if msg == nil {
		return nil
	}

	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	var err error

	switch msg.Topic {
	case model.TopicCoreHeartbeat:
		r.liveness.RecordHeartbeat()

	case model.TopicCoreDisconnection:
		r.liveness.MarkGoingDown()

	case model.TopicCoreReconnection:
		r.liveness.MarkReconnected()

	case model.TopicTrainingStatus:
		err = r.handleTrainingStatus(msg)

	case model.TopicSkillInstructions:
		err = r.handleInstructions(msg)

	case model.TopicCoreConfigUpdateWarning:
		err = r.handleConfigWarning(msg)

	case model.TopicResourceUsage:
		err = r.handleResourceUsage(msg)

	default:
		r.logger.Debug("skipping message topic", "topic", msg.Topic)
		r.mu.Lock()
		r.unknownMessages++
		r.mu.Unlock()
		return nil
	}

	if err != nil {
		r.logger.Warn("failed to parse message",
			"topic", msg.Topic,
			"payload_size", len(msg.Payload),
			"error", err,
		)
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return nil
	}

	r.mu.Lock()
	r.routed++
	r.mu.Unlock()
	return nil
}

func (r *router) handleTrainingStatus(msg *model.Message) error {
	status, err := DecodePayload(msg.Topic, msg.Payload).String("status")
	if err != nil {
		return err
	}

	switch status {
	case TrainingStatusTraining, TrainingStatusFailed, TrainingStatusDone:
		r.view.SetTrainingStatus(status)
		return nil
	default:
		return fmt.Errorf("unknown training status %q", status)
	}
}

func (r *router) handleInstructions(msg *model.Message) error {
	text, err := DecodePayload(msg.Topic, msg.Payload).String("instructions")
	if err != nil {
		return err
	}
	r.view.AppendInstructions(text)
	return nil
}

// handleConfigWarning replaces the unavailable banner with the config alert.
func (r *router) handleConfigWarning(msg *model.Message) error {
	p := DecodePayload(msg.Topic, msg.Payload)

	skill, err := p.String("skill")
	if err != nil {
		return err
	}
	key, err := p.String("key")
	if err != nil {
		return err
	}
	value, err := p.Value("value")
	if err != nil {
		return err
	}

	r.liveness.Dismiss()
	r.view.AddConfigWarning(skill, key, value)
	return nil
}

func (r *router) handleResourceUsage(msg *model.Message) error {
	p := DecodePayload(msg.Topic, msg.Payload)

	var usage ResourceUsage
	var err error
	if usage.CPU, err = p.Float("cpu"); err != nil {
		return err
	}
	if usage.RAM, err = p.Float("ram"); err != nil {
		return err
	}
	if usage.SWP, err = p.Float("swp"); err != nil {
		return err
	}

	r.view.SetResourceUsage(usage)
	return nil
}
