package connection

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/alice-bridge/internal/eventloop"
	"github.com/rickgao/alice-bridge/internal/fanout"
	"github.com/rickgao/alice-bridge/internal/model"
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClientIDSuffix replaces the random client id suffix generator.
func WithClientIDSuffix(fn func() string) ManagerOption {
	return func(m *Manager) {
		m.suffix = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager owns the broker connection. All state transitions run on the
// event loop; transport and provider callbacks are posted back to it.
type Manager struct {
	cfg          ManagerConfig
	loop         *eventloop.Loop
	registry     *fanout.Registry
	provider     ConfigProvider
	newTransport TransportFactory
	suffix       func() string
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned
	started    bool
	stopped    bool
	generation uint64
	transport  Transport
	retryTimer *clock.Timer

	state atomic.Int32

	// Status snapshot, written on the loop, read anywhere
	mu             sync.RWMutex
	clientID       string
	broker         string
	attempts       int64
	lastErr        error
	connectedSince time.Time
	nextRetryAt    time.Time
}

// NewManager creates a new Connection Manager.
func NewManager(
	cfg ManagerConfig,
	loop *eventloop.Loop,
	registry *fanout.Registry,
	provider ConfigProvider,
	newTransport TransportFactory,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		cfg:          cfg,
		loop:         loop,
		registry:     registry,
		provider:     provider,
		newTransport: newTransport,
		suffix:       randomSuffix,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.state.Store(int32(model.StateDisconnected))
	return m
}

// RegisterSubscriber adds cb to the fan-out list for kind. This is the only
// integration point for code reacting to connectivity and messages.
func (m *Manager) RegisterSubscriber(kind model.EventKind, cb fanout.Callback) {
	m.loop.Post(func() {
		m.registry.Register(kind, cb)
	})
}

// Start begins connecting. Calling it more than once has no effect.
func (m *Manager) Start(ctx context.Context) error {
	if !m.loop.Post(func() {
		if m.started {
			return
		}
		m.started = true
		m.ctx, m.cancel = context.WithCancel(ctx)
		m.connect()
	}) {
		return ErrStopped
	}
	return nil
}

// Stop closes the current transport and ignores every later callback. It is
// meant for process shutdown only.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	return m.loop.Do(ctx, func() {
		m.stopped = true
		if m.cancel != nil {
			m.cancel()
		}
		if m.retryTimer != nil {
			m.retryTimer.Stop()
		}
		m.closeTransport()
		m.setState(model.StateDisconnected)
	})
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	return model.ConnectionState(m.state.Load())
}

// Snapshot returns current connection statistics.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := m.State()
	s := Snapshot{
		State:          state,
		StateName:      state.String(),
		ClientID:       m.clientID,
		Broker:         m.broker,
		Attempts:       m.attempts,
		ConnectedSince: m.connectedSince,
		NextRetryAt:    m.nextRetryAt,
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

// connect starts a full attempt: new client id, fresh parameters, new transport.
func (m *Manager) connect() {
	if m.stopped {
		return
	}

	m.generation++
	gen := m.generation
	m.retryTimer = nil

	m.closeTransport()
	m.setState(model.StateConnecting)

	clientID := m.cfg.ClientIDPrefix + m.suffix()
	m.mu.Lock()
	m.clientID = clientID
	m.attempts++
	attempt := m.attempts
	m.connectedSince = time.Time{}
	m.nextRetryAt = time.Time{}
	m.mu.Unlock()

	m.logger.Info("connecting to broker",
		"attempt", attempt,
		"client_id", clientID,
	)

	ctx := m.ctx
	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
		defer cancel()

		params, err := m.provider.FetchConnectionParameters(fetchCtx)
		m.loop.Post(func() {
			m.onParameters(gen, clientID, params, err)
		})
	}()
}

// onParameters opens the transport once broker parameters are known.
func (m *Manager) onParameters(gen uint64, clientID string, params model.ConnectionParameters, err error) {
	if m.superseded(gen) {
		return
	}

	if err != nil {
		m.logger.Warn("failed fetching broker settings", "error", err)
		m.retry(TriggerParameterFetch, err)
		return
	}

	params = params.WithOrigin(m.cfg.OriginHost)
	broker := net.JoinHostPort(params.Host, strconv.Itoa(params.Port))

	m.mu.Lock()
	m.broker = broker
	m.mu.Unlock()

	m.logger.Debug("opening broker session", "broker", broker, "client_id", clientID)

	t := m.newTransport()
	m.transport = t
	t.Connect(ConnectOptions{
		Host:     params.Host,
		Port:     params.Port,
		ClientID: clientID,
		Timeout:  m.cfg.ConnectTimeout,
	}, Callbacks{
		OnSuccess: func() {
			m.loop.Post(func() { m.onOpen(gen) })
		},
		OnFailure: func(err error) {
			m.loop.Post(func() { m.onOpenFailed(gen, err) })
		},
		OnMessage: func(topic string, payload []byte) {
			receivedAt := m.loop.Clock().Now()
			m.loop.Post(func() { m.onMessage(gen, topic, payload, receivedAt) })
		},
		OnConnectionLost: func(err error) {
			m.loop.Post(func() { m.onConnectionLost(gen, err) })
		},
	})
}

// onOpen subscribes the topic set and announces the connection.
func (m *Manager) onOpen(gen uint64) {
	if m.superseded(gen) {
		return
	}

	m.setState(model.StateConnected)
	m.mu.Lock()
	m.connectedSince = m.loop.Clock().Now()
	m.lastErr = nil
	m.mu.Unlock()

	m.logger.Info("broker connected", "client_id", m.Snapshot().ClientID)

	for _, topic := range m.cfg.Topics {
		if err := m.transport.Subscribe(topic); err != nil {
			m.logger.Warn("failed to subscribe", "topic", topic, "error", err)
		}
	}

	m.registry.Dispatch(model.EventConnected, nil)
}

func (m *Manager) onOpenFailed(gen uint64, err error) {
	if m.superseded(gen) {
		return
	}

	m.logger.Warn("broker connection failed", "error", err)
	m.closeTransport()
	m.retry(TriggerTransportOpen, err)
}

// onMessage forwards a raw message before any interpretation.
func (m *Manager) onMessage(gen uint64, topic string, payload []byte, receivedAt time.Time) {
	if m.superseded(gen) {
		return
	}

	m.registry.Dispatch(model.EventMessage, &model.Message{
		Topic:      topic,
		Payload:    payload,
		ReceivedAt: receivedAt,
	})
}

func (m *Manager) onConnectionLost(gen uint64, err error) {
	if m.superseded(gen) {
		return
	}

	m.logger.Warn("broker disconnected, reconnecting", "error", err)
	m.closeTransport()
	m.setState(model.StateConnecting)
	m.retry(TriggerConnectionLost, err)
}

// retry schedules the next attempt according to the retry policy.
func (m *Manager) retry(trigger RetryTrigger, cause error) {
	delay := m.cfg.Retry.Delay(trigger)

	m.mu.Lock()
	m.lastErr = cause
	m.mu.Unlock()

	if delay <= 0 {
		m.loop.Post(m.connect)
		return
	}

	m.logger.Info("retrying broker connection",
		"trigger", trigger,
		"delay", delay,
	)
	m.retryTimer = m.loop.After(delay, m.connect)

	// Published after the timer is armed so observers never see a retry
	// time without a pending timer.
	m.mu.Lock()
	m.nextRetryAt = m.loop.Clock().Now().Add(delay)
	m.mu.Unlock()
}

// superseded reports whether a callback belongs to an older attempt.
func (m *Manager) superseded(gen uint64) bool {
	if m.stopped || gen != m.generation {
		m.logger.Debug("ignoring callback from superseded attempt",
			"attempt_generation", gen,
			"current_generation", m.generation,
		)
		return true
	}
	return false
}

func (m *Manager) closeTransport() {
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
}

func (m *Manager) setState(s model.ConnectionState) {
	prev := model.ConnectionState(m.state.Swap(int32(s)))
	if prev != s {
		m.logger.Debug("connection state changed", "from", prev, "to", s)
	}
}

func randomSuffix() string {
	return strconv.Itoa(rand.IntN(10_000_000) + 1)
}
