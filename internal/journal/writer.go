package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/alice-bridge/internal/liveness"
)

// BatchSender is the subset of *pgxpool.Pool the writer needs.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int // maximum queued events
}

// DefaultWriterConfig returns default batching settings.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
		BufferSize:    1000,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts int64       `json:"inserts"`
	Errors  int64       `json:"errors"`
	Flushes int64       `json:"flushes"`
	Buffer  BufferStats `json:"buffer"`
}

// event is one journal row.
type event struct {
	ID            uuid.UUID
	Kind          string
	OccurredAt    time.Time
	LastHeartbeat *time.Time
}

// Writer consumes watchdog transitions and writes them to
// bridge_availability_events.
type Writer struct {
	cfg        WriterConfig
	db         BatchSender
	instanceID string
	logger     *slog.Logger

	input *Buffer[event]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewWriter creates a Writer. instanceID tags every row with the bridge
// process that wrote it.
func NewWriter(cfg WriterConfig, db BatchSender, instanceID string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultWriterConfig().BufferSize
	}

	return &Writer{
		cfg:        cfg,
		db:         db,
		instanceID: instanceID,
		logger:     logger,
		input:      NewBuffer[event](min(cfg.BatchSize, cfg.BufferSize), cfg.BufferSize),
	}
}

// ObserveTransition queues t. It never blocks; a full buffer drops t.
func (w *Writer) ObserveTransition(t liveness.Transition) {
	e := event{
		ID:         uuid.New(),
		Kind:       string(t.Kind),
		OccurredAt: t.At,
	}
	if !t.LastHeartbeat.IsZero() {
		hb := t.LastHeartbeat
		e.LastHeartbeat = &hb
	}

	if !w.input.Send(e) {
		w.logger.Warn("journal buffer full, dropping transition", "kind", t.Kind)
	}
}

// Start begins flushing queued transitions.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"buffer_size", w.cfg.BufferSize,
	)
	return nil
}

// Stop flushes what is queued and shuts the writer down.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	w.flushAll(ctx)
	w.logger.Info("journal writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.mu.Lock()
	m := w.metrics
	w.mu.Unlock()

	m.Buffer = w.input.Stats()
	return m
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flushAll(w.ctx)
		}
	}
}

// flushAll writes every queued event in batches.
func (w *Writer) flushAll(ctx context.Context) {
	for {
		batch := w.input.DrainTo(w.cfg.BatchSize)
		if len(batch) == 0 {
			return
		}
		if err := w.flush(ctx, batch); err != nil {
			return
		}
	}
}

func (w *Writer) flush(ctx context.Context, rows []event) error {
	start := time.Now()

	if err := w.batchInsert(ctx, rows); err != nil {
		w.logger.Error("journal insert failed", "error", err, "count", len(rows))
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	w.metrics.Inserts += int64(len(rows))
	w.metrics.Flushes++
	w.mu.Unlock()

	w.logger.Debug("flushed journal",
		"count", len(rows),
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []event) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO bridge_availability_events (event_id, kind, occurred_at, last_heartbeat, instance_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
		`, r.ID, r.Kind, r.OccurredAt, r.LastHeartbeat, w.instanceID)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
