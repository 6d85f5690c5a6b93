package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/alice-bridge/internal/eventloop"
)

type fakeIndicator struct {
	visible bool
	shows   int
	hides   int
}

func (f *fakeIndicator) SetUnavailable(visible bool) {
	f.visible = visible
	if visible {
		f.shows++
	} else {
		f.hides++
	}
}

type recordingObserver struct {
	kinds []TransitionKind
}

func (r *recordingObserver) ObserveTransition(t Transition) {
	r.kinds = append(r.kinds, t.Kind)
}

type harness struct {
	clock     *clock.Mock
	indicator *fakeIndicator
	observer  *recordingObserver
	reasons   []string
	trigger   *RecoveryTrigger
	watchdog  *Watchdog
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:     clock.NewMock(),
		indicator: &fakeIndicator{},
		observer:  &recordingObserver{},
	}
	h.trigger = NewRecoveryTrigger(RecoveryFunc(func(reason string) {
		h.reasons = append(h.reasons, reason)
	}))
	h.watchdog = NewWatchdog(DefaultConfig(), h.clock, h.indicator, h.trigger, WithObserver(h.observer))
	return h
}

// tickAfter moves the clock by d and runs one tick.
func (h *harness) tickAfter(d time.Duration) {
	h.clock.Add(d)
	h.watchdog.Tick()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2000*time.Millisecond, cfg.Period)
	assert.Equal(t, 4000*time.Millisecond, cfg.StaleAfter)
}

func TestWatchdog_NeverSeenHeartbeatNeverShows(t *testing.T) {
	h := newHarness(t)

	for range 50 {
		h.tickAfter(DefaultPeriod)
	}

	assert.False(t, h.indicator.visible)
	assert.Zero(t, h.indicator.shows)
	assert.True(t, h.watchdog.Available())
	assert.Zero(t, h.trigger.Fires())
}

func TestWatchdog_FreshHeartbeatsNeverShow(t *testing.T) {
	for _, interval := range []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 3900 * time.Millisecond} {
		t.Run(interval.String(), func(t *testing.T) {
			h := newHarness(t)
			h.watchdog.RecordHeartbeat()

			var sinceTick, sinceBeat time.Duration
			for range 2000 {
				step := 100 * time.Millisecond
				h.clock.Add(step)
				sinceTick += step
				sinceBeat += step
				if sinceBeat >= interval {
					h.watchdog.RecordHeartbeat()
					sinceBeat = 0
				}
				if sinceTick >= DefaultPeriod {
					h.watchdog.Tick()
					sinceTick = 0
				}
			}

			assert.Zero(t, h.indicator.shows)
			assert.Zero(t, h.trigger.Fires())
		})
	}
}

func TestWatchdog_StaleThenRecovered(t *testing.T) {
	h := newHarness(t)

	// t0 = 500ms; ticks every 2000ms from 0.
	h.clock.Add(500 * time.Millisecond)
	h.watchdog.RecordHeartbeat()

	h.tickAfter(1500 * time.Millisecond) // 2000: age 1500
	assert.False(t, h.indicator.visible)
	h.tickAfter(DefaultPeriod) // 4000: age 3500
	assert.False(t, h.indicator.visible)
	h.tickAfter(DefaultPeriod) // 6000: first tick >= t0+4000
	assert.True(t, h.indicator.visible)
	assert.False(t, h.watchdog.Available())

	h.tickAfter(DefaultPeriod)
	h.tickAfter(DefaultPeriod)
	assert.Equal(t, 1, h.indicator.shows, "showing is idempotent")
	assert.Zero(t, h.trigger.Fires())

	h.watchdog.RecordHeartbeat()
	h.tickAfter(DefaultPeriod)
	assert.False(t, h.indicator.visible)
	assert.Equal(t, int64(1), h.trigger.Fires())
	assert.Equal(t, []string{ReasonHeartbeatResumed}, h.reasons)

	for range 5 {
		h.watchdog.RecordHeartbeat()
		h.tickAfter(DefaultPeriod)
	}
	assert.Equal(t, int64(1), h.trigger.Fires(), "fires once per edge")

	assert.Equal(t, []TransitionKind{
		TransitionUnavailable,
		TransitionAvailable,
		TransitionRecovered,
	}, h.observer.kinds)
}

func TestWatchdog_ThresholdIsStrict(t *testing.T) {
	h := newHarness(t)
	h.watchdog.RecordHeartbeat()

	h.tickAfter(DefaultStaleAfter)
	assert.False(t, h.indicator.visible)

	h.tickAfter(time.Millisecond)
	assert.True(t, h.indicator.visible)
}

func TestWatchdog_SecondOutageFiresAgain(t *testing.T) {
	h := newHarness(t)
	h.watchdog.RecordHeartbeat()

	for range 2 {
		h.tickAfter(5 * time.Second)
		require.True(t, h.indicator.visible)
		h.watchdog.RecordHeartbeat()
		h.tickAfter(time.Millisecond)
		require.False(t, h.indicator.visible)
	}

	assert.Equal(t, int64(2), h.trigger.Fires())
}

func TestWatchdog_ExplicitDown(t *testing.T) {
	h := newHarness(t)
	h.watchdog.RecordHeartbeat()
	h.tickAfter(DefaultPeriod)

	// Heartbeats are fresh, going-down shows the indicator at once.
	h.watchdog.MarkGoingDown()
	assert.True(t, h.indicator.visible)
	assert.False(t, h.watchdog.Available())

	// Ticks take no action while the flag is set, fresh or stale.
	h.watchdog.RecordHeartbeat()
	h.tickAfter(DefaultPeriod)
	assert.True(t, h.indicator.visible)
	for range 10 {
		h.tickAfter(DefaultPeriod)
	}
	assert.True(t, h.indicator.visible)
	assert.Equal(t, 1, h.indicator.shows)
	assert.Zero(t, h.indicator.hides)

	h.watchdog.MarkReconnected()
	assert.False(t, h.indicator.visible)
	assert.Zero(t, h.trigger.Fires(), "planned restart does not recover")

	h.watchdog.RecordHeartbeat()
	h.tickAfter(DefaultPeriod)
	assert.False(t, h.indicator.visible)
	assert.Zero(t, h.trigger.Fires())

	assert.Equal(t, []TransitionKind{TransitionGoingDown, TransitionReconnected}, h.observer.kinds)
}

func TestWatchdog_ReconnectedAfterStaleDoesNotRecover(t *testing.T) {
	h := newHarness(t)
	h.watchdog.RecordHeartbeat()
	h.tickAfter(5 * time.Second)
	require.True(t, h.indicator.visible)
	require.True(t, h.trigger.Armed())

	h.watchdog.MarkGoingDown()
	h.watchdog.MarkReconnected()
	h.watchdog.RecordHeartbeat()
	h.tickAfter(DefaultPeriod)

	assert.False(t, h.indicator.visible)
	assert.Zero(t, h.trigger.Fires())
}

func TestWatchdog_Dismiss(t *testing.T) {
	h := newHarness(t)
	h.watchdog.Dismiss()
	assert.Zero(t, h.indicator.hides, "dismiss is a no-op when hidden")

	h.watchdog.RecordHeartbeat()
	h.tickAfter(5 * time.Second)
	require.True(t, h.indicator.visible)

	h.watchdog.Dismiss()
	assert.False(t, h.indicator.visible)

	// Still stale: the next tick shows it again.
	h.tickAfter(DefaultPeriod)
	assert.True(t, h.indicator.visible)
}

func TestWatchdog_Status(t *testing.T) {
	h := newHarness(t)
	h.watchdog.RecordHeartbeat()
	seen := h.clock.Now()

	st := h.watchdog.Status()
	assert.True(t, st.Available)
	assert.False(t, st.ExplicitDown)
	assert.False(t, st.IndicatorVisible)
	assert.Equal(t, seen, st.LastHeartbeat)

	h.watchdog.MarkGoingDown()
	st = h.watchdog.Status()
	assert.False(t, st.Available)
	assert.True(t, st.ExplicitDown)
	assert.True(t, st.IndicatorVisible)
}

func TestWatchdog_IndependentInstances(t *testing.T) {
	a := newHarness(t)
	b := newHarness(t)

	a.watchdog.MarkGoingDown()

	assert.True(t, a.indicator.visible)
	assert.False(t, b.indicator.visible)
	assert.True(t, b.watchdog.Available())
}

func TestWatchdog_StartTicksOnLoop(t *testing.T) {
	mock := clock.NewMock()
	loop := eventloop.New(mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	indicator := &fakeIndicator{}
	w := NewWatchdog(DefaultConfig(), mock, indicator, nil)

	require.NoError(t, loop.Do(ctx, func() {
		w.Start(loop)
		w.RecordHeartbeat()
	}))
	defer w.Stop()

	visible := func() bool {
		var v bool
		_ = loop.Do(ctx, func() { v = indicator.visible })
		return v
	}

	require.Eventually(t, func() bool {
		mock.Add(DefaultPeriod)
		return visible()
	}, time.Second, 10*time.Millisecond)
}
