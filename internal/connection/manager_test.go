package connection

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/alice-bridge/internal/eventloop"
	"github.com/rickgao/alice-bridge/internal/fanout"
	"github.com/rickgao/alice-bridge/internal/model"
)

const waitFor = 2 * time.Second
const pollEvery = 2 * time.Millisecond

// fakeProvider returns scripted results, repeating the last one.
type fakeProvider struct {
	mu      sync.Mutex
	results []providerResult
	calls   int
}

type providerResult struct {
	params model.ConnectionParameters
	err    error
}

func (p *fakeProvider) FetchConnectionParameters(ctx context.Context) (model.ConnectionParameters, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	r := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return r.params, r.err
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeTransport lets tests drive transport callbacks by hand.
type fakeTransport struct {
	mu     sync.Mutex
	opts   ConnectOptions
	cb     Callbacks
	subs   []string
	closed bool
}

func (f *fakeTransport) Connect(opts ConnectOptions, cb Callbacks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts = opts
	f.cb = cb
}

func (f *fakeTransport) Subscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, topic)
	return nil
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeTransport) callbacks() Callbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *fakeTransport) Options() ConnectOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}

func (f *fakeTransport) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subs...)
}

func (f *fakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) succeed() {
	f.callbacks().OnSuccess()
}

func (f *fakeTransport) fail(err error) {
	f.callbacks().OnFailure(err)
}

func (f *fakeTransport) lose(err error) {
	f.callbacks().OnConnectionLost(err)
}

func (f *fakeTransport) deliver(topic, body string) {
	f.callbacks().OnMessage(topic, []byte(body))
}

type harness struct {
	t        *testing.T
	clock    *clock.Mock
	loop     *eventloop.Loop
	registry *fanout.Registry
	provider *fakeProvider
	manager  *Manager

	mu         sync.Mutex
	transports []*fakeTransport
}

func newHarness(t *testing.T, cfg ManagerConfig, results ...providerResult) *harness {
	t.Helper()

	if len(results) == 0 {
		results = []providerResult{{params: model.ConnectionParameters{Host: "localhost", Port: 1883}}}
	}

	h := &harness{
		t:        t,
		clock:    clock.NewMock(),
		registry: fanout.NewRegistry(nil),
		provider: &fakeProvider{results: results},
	}
	h.loop = eventloop.New(h.clock, nil)

	var ids atomic.Int64
	h.manager = NewManager(cfg, h.loop, h.registry, h.provider, h.newTransport,
		WithClientIDSuffix(func() string { return strconv.FormatInt(ids.Add(1), 10) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go h.loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.loop.Done()
	})

	return h
}

func (h *harness) newTransport() Transport {
	h.mu.Lock()
	defer h.mu.Unlock()
	tr := &fakeTransport{}
	h.transports = append(h.transports, tr)
	return tr
}

func (h *harness) transportCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transports)
}

// transport waits until the i-th transport exists and has been connected.
func (h *harness) transport(i int) *fakeTransport {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.transportCount() > i }, waitFor, pollEvery)
	h.mu.Lock()
	tr := h.transports[i]
	h.mu.Unlock()
	require.Eventually(h.t, func() bool { return tr.callbacks().OnSuccess != nil }, waitFor, pollEvery)
	return tr
}

// sync waits until every task queued so far has run.
func (h *harness) sync() {
	h.t.Helper()
	require.NoError(h.t, h.loop.Do(context.Background(), func() {}))
}

func (h *harness) waitState(s model.ConnectionState) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.manager.State() == s }, waitFor, pollEvery)
}

func (h *harness) waitFetches(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return h.provider.Calls() == n }, waitFor, pollEvery)
}

// waitRetryScheduled waits until a delayed retry timer is armed.
func (h *harness) waitRetryScheduled() {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return !h.manager.Snapshot().NextRetryAt.IsZero() }, waitFor, pollEvery)
}

func testConfig() ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.OriginHost = "example.org"
	return cfg
}

func TestDefaultManagerConfig(t *testing.T) {
	cfg := DefaultManagerConfig()

	assert.Equal(t, "ProjectAliceInterface", cfg.ClientIDPrefix)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, DefaultRetryPolicy(), cfg.Retry)
	assert.Equal(t, model.InterfaceTopics(), cfg.Topics)
}

func TestManager_InitialState(t *testing.T) {
	h := newHarness(t, testConfig())

	assert.Equal(t, model.StateDisconnected, h.manager.State())
	assert.Equal(t, 0, h.provider.Calls())
}

// Scenario A
func TestManager_LocalhostRewrittenToOrigin(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.manager.Start(context.Background()))

	tr := h.transport(0)
	opts := tr.Options()

	assert.Equal(t, "example.org", opts.Host)
	assert.Equal(t, 1883, opts.Port)
	assert.Equal(t, "ProjectAliceInterface1", opts.ClientID)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, model.StateConnecting, h.manager.State())
	assert.Equal(t, "example.org:1883", h.manager.Snapshot().Broker)
}

func TestManager_ConnectSubscribesThenAnnounces(t *testing.T) {
	h := newHarness(t, testConfig())

	var mu sync.Mutex
	var subsAtConnect []string
	connected := 0
	h.manager.RegisterSubscriber(model.EventConnected, fanout.CallbackFunc(func(msg *model.Message) {
		mu.Lock()
		defer mu.Unlock()
		assert.Nil(t, msg)
		connected++
		subsAtConnect = h.transports[0].Subscriptions()
	}))

	require.NoError(t, h.manager.Start(context.Background()))
	tr := h.transport(0)
	tr.succeed()

	h.waitState(model.StateConnected)
	h.sync()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, connected)
	assert.Equal(t, model.InterfaceTopics(), subsAtConnect)
	assert.Empty(t, h.manager.Snapshot().LastError)
}

func TestManager_MessagesForwardedVerbatim(t *testing.T) {
	h := newHarness(t, testConfig())

	var mu sync.Mutex
	var got []model.Message
	h.manager.RegisterSubscriber(model.EventMessage, fanout.CallbackFunc(func(msg *model.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, *msg)
	}))

	require.NoError(t, h.manager.Start(context.Background()))
	tr := h.transport(0)
	tr.succeed()
	h.waitState(model.StateConnected)

	tr.deliver(model.TopicCoreHeartbeat, `{}`)
	tr.deliver(model.TopicTrainingStatus, `not json at all`)
	h.sync()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, model.TopicCoreHeartbeat, got[0].Topic)
	assert.Equal(t, []byte(`{}`), got[0].Payload)
	assert.Equal(t, model.TopicTrainingStatus, got[1].Topic)
	assert.Equal(t, []byte(`not json at all`), got[1].Payload)
	assert.Equal(t, h.clock.Now(), got[1].ReceivedAt)
}

// Scenario B
func TestManager_ParameterFetchFailureRetriesAfterFiveSeconds(t *testing.T) {
	h := newHarness(t, testConfig(),
		providerResult{err: errors.New("success: false")},
		providerResult{params: model.ConnectionParameters{Host: "broker.lan", Port: 9001}},
	)
	require.NoError(t, h.manager.Start(context.Background()))

	h.waitFetches(1)
	h.waitRetryScheduled()
	assert.Equal(t, h.clock.Now().Add(5*time.Second), h.manager.Snapshot().NextRetryAt)
	assert.NotEmpty(t, h.manager.Snapshot().LastError)
	assert.Equal(t, 0, h.transportCount(), "no connection attempt without parameters")
	assert.Equal(t, model.StateConnecting, h.manager.State())

	h.clock.Add(4999 * time.Millisecond)
	h.sync()
	assert.Equal(t, 1, h.provider.Calls())

	h.clock.Add(time.Millisecond)
	h.waitFetches(2)

	tr := h.transport(0)
	assert.Equal(t, "broker.lan", tr.Options().Host)
	assert.Equal(t, "ProjectAliceInterface2", tr.Options().ClientID)
}

func TestManager_ParameterFetchRetriesIndefinitely(t *testing.T) {
	h := newHarness(t, testConfig(), providerResult{err: errors.New("unreachable")})
	require.NoError(t, h.manager.Start(context.Background()))

	for i := 1; i <= 5; i++ {
		h.waitFetches(i)
		h.waitRetryScheduled()
		h.clock.Add(5 * time.Second)
	}
	h.waitFetches(6)
	assert.Equal(t, 0, h.transportCount())
}

func TestManager_TransportOpenFailureRetriesAfterFiveSeconds(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.manager.Start(context.Background()))

	tr := h.transport(0)
	tr.fail(errors.New("handshake timeout"))

	h.waitRetryScheduled()
	assert.True(t, tr.Closed())
	assert.Equal(t, 1, h.provider.Calls())

	h.clock.Add(4 * time.Second)
	h.sync()
	assert.Equal(t, 1, h.provider.Calls())

	h.clock.Add(time.Second)
	h.waitFetches(2)

	next := h.transport(1)
	assert.Equal(t, "ProjectAliceInterface2", next.Options().ClientID)
}

// Scenario C
func TestManager_ConnectionLostReconnectsImmediately(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.manager.Start(context.Background()))

	tr := h.transport(0)
	tr.succeed()
	h.waitState(model.StateConnected)

	h.clock.Add(10 * time.Second)
	lostAt := h.clock.Now()

	tr.lose(errors.New("broker went away"))

	h.waitFetches(2)
	assert.Equal(t, lostAt, h.clock.Now(), "reconnect must not wait for the clock")
	assert.True(t, tr.Closed())

	next := h.transport(1)
	assert.Equal(t, model.StateConnecting, h.manager.State())
	assert.Equal(t, "ProjectAliceInterface2", next.Options().ClientID)

	next.succeed()
	h.waitState(model.StateConnected)
	assert.Equal(t, model.InterfaceTopics(), next.Subscriptions())
}

func TestManager_IgnoresSupersededTransport(t *testing.T) {
	h := newHarness(t, testConfig())

	var messages atomic.Int32
	h.manager.RegisterSubscriber(model.EventMessage, fanout.CallbackFunc(func(*model.Message) {
		messages.Add(1)
	}))

	require.NoError(t, h.manager.Start(context.Background()))
	old := h.transport(0)
	old.succeed()
	h.waitState(model.StateConnected)

	old.lose(errors.New("drop"))
	h.waitFetches(2)
	h.transport(1)

	// Late events from the first session.
	old.deliver(model.TopicCoreHeartbeat, `{}`)
	old.lose(errors.New("drop again"))
	old.succeed()
	h.sync()

	assert.Equal(t, int32(0), messages.Load())
	assert.Equal(t, 2, h.provider.Calls())
	assert.Equal(t, model.StateConnecting, h.manager.State())
}

func TestManager_StartIsIdempotent(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.manager.Start(context.Background()))
	require.NoError(t, h.manager.Start(context.Background()))

	h.transport(0)
	h.sync()
	assert.Equal(t, 1, h.provider.Calls())
	assert.Equal(t, int64(1), h.manager.Snapshot().Attempts)
}

func TestManager_Stop(t *testing.T) {
	h := newHarness(t, testConfig())
	require.NoError(t, h.manager.Start(context.Background()))

	tr := h.transport(0)
	tr.succeed()
	h.waitState(model.StateConnected)

	require.NoError(t, h.manager.Stop(context.Background()))
	assert.Equal(t, model.StateDisconnected, h.manager.State())
	assert.True(t, tr.Closed())

	tr.lose(errors.New("closed"))
	h.sync()
	assert.Equal(t, 1, h.provider.Calls())
}

func TestManager_CustomRetryPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Retry = RetryPolicy{
		ParameterFetchDelay: time.Second,
		TransportOpenDelay:  2 * time.Second,
		ConnectionLostDelay: 3 * time.Second,
	}
	h := newHarness(t, cfg)
	require.NoError(t, h.manager.Start(context.Background()))

	tr := h.transport(0)
	tr.succeed()
	h.waitState(model.StateConnected)

	tr.lose(errors.New("drop"))
	h.waitRetryScheduled()

	h.clock.Add(2999 * time.Millisecond)
	h.sync()
	assert.Equal(t, 1, h.provider.Calls())

	h.clock.Add(time.Millisecond)
	h.waitFetches(2)
}
