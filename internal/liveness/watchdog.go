package liveness

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/alice-bridge/internal/eventloop"
)

// Defaults match the core's heartbeat cadence.
const (
	DefaultPeriod     = 2000 * time.Millisecond
	DefaultStaleAfter = 4000 * time.Millisecond
)

// Reason passed to the recovery action when heartbeats resume.
const ReasonHeartbeatResumed = "heartbeat resumed"

// Indicator renders the unavailable banner.
type Indicator interface {
	SetUnavailable(visible bool)
}

// TransitionKind names a visible availability change.
type TransitionKind string

const (
	TransitionUnavailable TransitionKind = "unavailable"
	TransitionAvailable   TransitionKind = "available"
	TransitionRecovered   TransitionKind = "recovered"
	TransitionGoingDown   TransitionKind = "going_down"
	TransitionReconnected TransitionKind = "reconnected"
	TransitionDismissed   TransitionKind = "dismissed"
)

// Transition is reported to the observer on every indicator change.
type Transition struct {
	Kind          TransitionKind
	At            time.Time
	LastHeartbeat time.Time // zero if none seen yet
}

// TransitionObserver receives availability transitions. It is called on the
// event loop and must not block.
type TransitionObserver interface {
	ObserveTransition(Transition)
}

// Config holds watchdog timing.
type Config struct {
	Period     time.Duration
	StaleAfter time.Duration
}

// DefaultConfig returns a 2s period with a 4s stale threshold.
func DefaultConfig() Config {
	return Config{
		Period:     DefaultPeriod,
		StaleAfter: DefaultStaleAfter,
	}
}

// Status is a point-in-time view of the watchdog.
type Status struct {
	Available        bool      `json:"available"`
	ExplicitDown     bool      `json:"explicit_down"`
	IndicatorVisible bool      `json:"indicator_visible"`
	LastHeartbeat    time.Time `json:"last_heartbeat,omitzero"`
	Recoveries       int64     `json:"recoveries"`
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithObserver reports transitions to o.
func WithObserver(o TransitionObserver) Option {
	return func(w *Watchdog) {
		w.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watchdog) {
		w.logger = logger
	}
}

// Watchdog tracks heartbeat age and the explicit-down flag.
type Watchdog struct {
	cfg       Config
	clock     clock.Clock
	indicator Indicator
	recovery  *RecoveryTrigger
	observer  TransitionObserver
	logger    *slog.Logger

	lastSeenAt   time.Time
	explicitDown bool
	shown        bool

	stop func()
}

// NewWatchdog creates a Watchdog. Zero Config fields take the defaults.
func NewWatchdog(cfg Config, clk clock.Clock, indicator Indicator, recovery *RecoveryTrigger, opts ...Option) *Watchdog {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if clk == nil {
		clk = clock.New()
	}
	if recovery == nil {
		recovery = NewRecoveryTrigger(nil)
	}

	w := &Watchdog{
		cfg:       cfg,
		clock:     clk,
		indicator: indicator,
		recovery:  recovery,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start schedules Tick on loop every period.
func (w *Watchdog) Start(loop *eventloop.Loop) {
	if w.stop != nil {
		return
	}
	w.stop = loop.Every(w.cfg.Period, w.Tick)
	w.logger.Info("watchdog started",
		"period", w.cfg.Period,
		"stale_after", w.cfg.StaleAfter,
	)
}

// Stop cancels the periodic tick.
func (w *Watchdog) Stop() {
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
}

// Tick evaluates heartbeat age once.
func (w *Watchdog) Tick() {
	if w.explicitDown {
		return
	}

	now := w.clock.Now()
	stale := !w.lastSeenAt.IsZero() && now.Sub(w.lastSeenAt) > w.cfg.StaleAfter

	if stale {
		w.recovery.Arm()
		if !w.shown {
			w.logger.Warn("core heartbeat stale",
				"last_heartbeat", w.lastSeenAt,
				"age", now.Sub(w.lastSeenAt),
			)
			w.setShown(true)
			w.notify(TransitionUnavailable, now)
		}
		return
	}

	if w.shown {
		w.logger.Info("core heartbeat resumed")
		w.setShown(false)
		w.notify(TransitionAvailable, now)
		if w.recovery.Fire(ReasonHeartbeatResumed) {
			w.notify(TransitionRecovered, now)
		}
	}
}

// RecordHeartbeat stores the current time as the last heartbeat.
func (w *Watchdog) RecordHeartbeat() {
	w.lastSeenAt = w.clock.Now()
}

// MarkGoingDown handles the core announcing shutdown. The indicator is shown
// at once and ticks are suspended until MarkReconnected.
func (w *Watchdog) MarkGoingDown() {
	w.explicitDown = true
	w.logger.Info("core going down")
	w.setShown(true)
	w.notify(TransitionGoingDown, w.clock.Now())
}

// MarkReconnected clears the explicit-down flag and hides the indicator
// without recovery.
func (w *Watchdog) MarkReconnected() {
	w.explicitDown = false
	w.recovery.Disarm()
	w.logger.Info("core reconnected")
	w.setShown(false)
	w.notify(TransitionReconnected, w.clock.Now())
}

// Dismiss hides the indicator without recovery. A later stale tick shows it
// again.
func (w *Watchdog) Dismiss() {
	if !w.shown {
		return
	}
	w.recovery.Disarm()
	w.setShown(false)
	w.notify(TransitionDismissed, w.clock.Now())
}

// Available reports the derived availability signal.
func (w *Watchdog) Available() bool {
	if w.explicitDown {
		return false
	}
	if w.lastSeenAt.IsZero() {
		return true
	}
	return w.clock.Now().Sub(w.lastSeenAt) <= w.cfg.StaleAfter
}

// Status returns the current watchdog view.
func (w *Watchdog) Status() Status {
	return Status{
		Available:        w.Available(),
		ExplicitDown:     w.explicitDown,
		IndicatorVisible: w.shown,
		LastHeartbeat:    w.lastSeenAt,
		Recoveries:       w.recovery.Fires(),
	}
}

func (w *Watchdog) setShown(visible bool) {
	w.shown = visible
	if w.indicator != nil {
		w.indicator.SetUnavailable(visible)
	}
}

func (w *Watchdog) notify(kind TransitionKind, at time.Time) {
	if w.observer == nil {
		return
	}
	w.observer.ObserveTransition(Transition{
		Kind:          kind,
		At:            at,
		LastHeartbeat: w.lastSeenAt,
	})
}
