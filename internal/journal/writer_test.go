package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/alice-bridge/internal/liveness"
)

type fakeResults struct {
	err error
}

func (f *fakeResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeResults) Query() (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeResults) QueryRow() pgx.Row {
	return nil
}

func (f *fakeResults) Close() error {
	return nil
}

type fakeDB struct {
	mu      sync.Mutex
	batches []*pgx.Batch
	err     error
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return &fakeResults{err: f.err}
}

func (f *fakeDB) queued() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*pgx.QueuedQuery
	for _, b := range f.batches {
		all = append(all, b.QueuedQueries...)
	}
	return all
}

func transition(kind liveness.TransitionKind, lastHeartbeat time.Time) liveness.Transition {
	return liveness.Transition{
		Kind:          kind,
		At:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		LastHeartbeat: lastHeartbeat,
	}
}

func TestWriter_FlushesTransitions(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(WriterConfig{BatchSize: 10, FlushInterval: 10 * time.Millisecond, BufferSize: 100}, db, "bridge-1", nil)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	defer w.Stop(ctx)

	hb := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	w.ObserveTransition(transition(liveness.TransitionUnavailable, hb))
	w.ObserveTransition(transition(liveness.TransitionRecovered, time.Time{}))

	require.Eventually(t, func() bool {
		return len(db.queued()) == 2
	}, time.Second, 5*time.Millisecond)

	q := db.queued()
	assert.Contains(t, q[0].SQL, "INSERT INTO bridge_availability_events")
	require.Len(t, q[0].Arguments, 5)
	assert.Equal(t, "unavailable", q[0].Arguments[1])
	assert.Equal(t, &hb, q[0].Arguments[3])
	assert.Equal(t, "bridge-1", q[0].Arguments[4])

	assert.Equal(t, "recovered", q[1].Arguments[1])
	assert.Nil(t, q[1].Arguments[3])

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.Inserts)
	assert.Zero(t, stats.Errors)
}

func TestWriter_StopFlushesRemaining(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour, BufferSize: 100}, db, "bridge-1", nil)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))

	for range 5 {
		w.ObserveTransition(transition(liveness.TransitionGoingDown, time.Time{}))
	}
	require.NoError(t, w.Stop(ctx))

	assert.Len(t, db.queued(), 5)
	assert.Len(t, db.batches, 3, "batched by batch size")
	assert.Equal(t, int64(3), w.Stats().Flushes)
}

func TestWriter_DropsWhenFull(t *testing.T) {
	db := &fakeDB{}
	w := NewWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour, BufferSize: 3}, db, "bridge-1", nil)

	for range 5 {
		w.ObserveTransition(transition(liveness.TransitionUnavailable, time.Time{}))
	}

	stats := w.Stats()
	assert.Equal(t, 3, stats.Buffer.Count)
	assert.Equal(t, int64(2), stats.Buffer.Dropped)
}

func TestWriter_InsertErrorCounted(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	w := NewWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour, BufferSize: 10}, db, "bridge-1", nil)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	w.ObserveTransition(transition(liveness.TransitionAvailable, time.Time{}))
	require.NoError(t, w.Stop(ctx))

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Errors)
	assert.Zero(t, stats.Inserts)
}

func TestWriter_ImplementsObserver(t *testing.T) {
	var _ liveness.TransitionObserver = (*Writer)(nil)
}
