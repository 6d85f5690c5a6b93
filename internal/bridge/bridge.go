package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/alice-bridge/internal/api"
	"github.com/rickgao/alice-bridge/internal/config"
	"github.com/rickgao/alice-bridge/internal/connection"
	"github.com/rickgao/alice-bridge/internal/database"
	"github.com/rickgao/alice-bridge/internal/eventloop"
	"github.com/rickgao/alice-bridge/internal/fanout"
	"github.com/rickgao/alice-bridge/internal/journal"
	"github.com/rickgao/alice-bridge/internal/liveness"
	"github.com/rickgao/alice-bridge/internal/model"
	"github.com/rickgao/alice-bridge/internal/router"
	"github.com/rickgao/alice-bridge/internal/server"
	"github.com/rickgao/alice-bridge/internal/ui"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithClock replaces the wall clock driving the loop, retries and watchdog.
func WithClock(clk clock.Clock) Option {
	return func(b *Bridge) {
		b.clock = clk
	}
}

// WithTransportFactory replaces the paho transport.
func WithTransportFactory(f connection.TransportFactory) Option {
	return func(b *Bridge) {
		b.newTransport = f
	}
}

// WithConfigProvider replaces the interface API as the source of broker
// parameters.
func WithConfigProvider(p connection.ConfigProvider) Option {
	return func(b *Bridge) {
		b.provider = p
	}
}

// WithInstanceID sets the id journal rows are tagged with.
func WithInstanceID(id string) Option {
	return func(b *Bridge) {
		b.instanceID = id
	}
}

// Bridge wires the broker connection, message router, liveness watchdog,
// browser view and optional journal into one process.
type Bridge struct {
	cfg          *config.BridgeConfig
	logger       *slog.Logger
	clock        clock.Clock
	newTransport connection.TransportFactory
	provider     connection.ConfigProvider
	instanceID   string

	loop     *eventloop.Loop
	registry *fanout.Registry
	api      *api.Client
	bus      *ui.Bus
	view     *ui.View
	recovery *liveness.RecoveryTrigger
	watchdog *liveness.Watchdog
	router   router.Router
	manager  *connection.Manager
	hub      *ui.Hub
	server   *server.Server

	pool    *pgxpool.Pool
	journal *journal.Writer
}

// New builds every component. When the journal is enabled it connects to the
// database and creates the schema, so ctx bounds that setup.
func New(ctx context.Context, cfg *config.BridgeConfig, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		cfg:        cfg,
		logger:     slog.Default(),
		instanceID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.clock == nil {
		b.clock = clock.New()
	}

	logger := b.logger
	b.loop = eventloop.New(b.clock, logger.With("component", "loop"))
	b.registry = fanout.NewRegistry(logger.With("component", "fanout"))

	b.api = api.NewClient(cfg.Interface.URL,
		api.WithTimeout(cfg.Interface.RequestTimeout),
		api.WithLogger(logger.With("component", "api")),
	)
	if b.provider == nil {
		b.provider = b.api
	}
	if b.newTransport == nil {
		b.newTransport = connection.NewMQTTTransportFactory(connection.MQTTConfig{
			Scheme:    cfg.Broker.Scheme,
			Path:      cfg.Broker.Path,
			KeepAlive: cfg.Broker.KeepAlive,
		}, logger.With("component", "mqtt"))
	}

	b.bus = ui.NewBus(logger.With("component", "bus"))
	b.view = ui.NewView(b.bus, logger.With("component", "view"))
	b.recovery = liveness.NewRecoveryTrigger(b.view)

	watchdogOpts := []liveness.Option{liveness.WithLogger(logger.With("component", "watchdog"))}
	if cfg.Journal.Enabled {
		if err := b.openJournal(ctx); err != nil {
			return nil, err
		}
		watchdogOpts = append(watchdogOpts, liveness.WithObserver(b.journal))
	}

	b.watchdog = liveness.NewWatchdog(liveness.Config{
		Period:     cfg.Watchdog.Period,
		StaleAfter: cfg.Watchdog.StaleAfter,
	}, b.clock, b.view, b.recovery, watchdogOpts...)

	b.router = router.NewRouter(b.watchdog, b.view, logger.With("component", "router"))

	b.manager = connection.NewManager(connection.ManagerConfig{
		OriginHost:     cfg.Interface.OriginHost,
		ClientIDPrefix: cfg.Interface.ClientIDPrefix,
		ConnectTimeout: cfg.Broker.ConnectTimeout,
		FetchTimeout:   cfg.Interface.RequestTimeout,
		Retry: connection.RetryPolicy{
			ParameterFetchDelay: cfg.Retry.ParameterFetchDelay,
			TransportOpenDelay:  cfg.Retry.TransportOpenDelay,
			ConnectionLostDelay: cfg.Retry.ConnectionLostDelay,
		},
		Topics: model.InterfaceTopics(),
	}, b.loop, b.registry, b.provider, b.newTransport,
		connection.WithLogger(logger.With("component", "connection")),
	)
	b.manager.RegisterSubscriber(model.EventMessage, b.router.Handle)
	b.manager.RegisterSubscriber(model.EventConnected, fanout.CallbackFunc(func(*model.Message) {
		b.logger.Info("interface listening", "topics", len(model.InterfaceTopics()))
	}))

	b.hub = ui.NewHub(ui.DefaultHubConfig(), b.view,
		ui.NewConfigUpdateCommands(b.api, b.view, logger.With("component", "commands")),
		logger.With("component", "hub"),
	)

	src := server.Sources{
		Connection: b.manager,
		Liveness:   b,
		Router:     b.router,
		Hub:        b.hub,
	}
	if b.journal != nil {
		src.Journal = &journalSource{writer: b.journal, pool: b.pool}
	}
	b.server = server.New(server.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, src, logger.With("component", "server"))

	return b, nil
}

func (b *Bridge) openJournal(ctx context.Context) error {
	db := b.cfg.Journal.DB
	b.logger.Info("connecting to database",
		"host", db.Host,
		"port", db.Port,
		"database", db.Name,
	)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		return fmt.Errorf("connect journal database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	b.pool = pool
	b.journal = journal.NewWriter(journal.WriterConfig{
		BatchSize:     b.cfg.Journal.BatchSize,
		FlushInterval: b.cfg.Journal.FlushInterval,
		BufferSize:    b.cfg.Journal.BufferSize,
	}, pool, b.instanceID, b.logger.With("component", "journal"))
	return nil
}

// Run starts every component and blocks until ctx is done or the HTTP server
// fails. Shutdown is bounded by the configured shutdown timeout.
func (b *Bridge) Run(ctx context.Context) error {
	// The loop and hub outlive ctx so shutdown can still run on them.
	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		b.loop.Run(loopCtx)
	}()

	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHub()
	go b.hub.Run(hubCtx)

	if err := b.bus.Subscribe(hubCtx, b.hub.Broadcast); err != nil {
		return fmt.Errorf("subscribe hub to view updates: %w", err)
	}

	if b.journal != nil {
		if err := b.journal.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
	}

	if err := b.loop.Do(ctx, func() { b.watchdog.Start(b.loop) }); err != nil {
		return fmt.Errorf("start watchdog: %w", err)
	}
	if err := b.manager.Start(ctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}

	b.logger.Info("bridge running",
		"interface", b.cfg.Interface.URL,
		"port", b.cfg.Server.Port,
		"journal", b.journal != nil,
	)

	runErr := b.server.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.Server.ShutdownTimeout)
	defer cancel()

	return errors.Join(runErr, b.shutdown(shutdownCtx, stopLoop, loopDone, stopHub))
}

func (b *Bridge) shutdown(ctx context.Context, stopLoop context.CancelFunc, loopDone <-chan struct{}, stopHub context.CancelFunc) error {
	b.logger.Info("shutting down bridge")

	var errs []error
	if err := b.manager.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop connection manager: %w", err))
	}
	if err := b.loop.Do(ctx, b.watchdog.Stop); err != nil {
		errs = append(errs, fmt.Errorf("stop watchdog: %w", err))
	}

	stopLoop()
	select {
	case <-loopDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("stop event loop: %w", ctx.Err()))
	}

	if b.journal != nil {
		if err := b.journal.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop journal: %w", err))
		}
	}
	if err := b.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	stopHub()
	if b.pool != nil {
		b.pool.Close()
	}

	b.logger.Info("bridge stopped")
	return errors.Join(errs...)
}

// LivenessStatus reads the watchdog on the event loop.
func (b *Bridge) LivenessStatus(ctx context.Context) (liveness.Status, error) {
	var st liveness.Status
	err := b.loop.Do(ctx, func() {
		st = b.watchdog.Status()
	})
	return st, err
}

// journalSource reports writer counters and database reachability.
type journalSource struct {
	writer *journal.Writer
	pool   *pgxpool.Pool
}

func (j *journalSource) Stats() journal.WriterMetrics {
	return j.writer.Stats()
}

func (j *journalSource) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}
