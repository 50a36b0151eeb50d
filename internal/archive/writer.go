package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/protohackers/internal/session"
	"github.com/rickgao/protohackers/internal/wire"
)

// Writer buffers session events and writes them to the archive tables in batches.
// It implements means.Recorder.
type Writer struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from sessions
	input *Buffer[Event]

	// Database
	db DB

	// Batching
	batchMu      sync.Mutex
	observations []observationRow
	queries      []queryRow
	flushTicker  *time.Ticker

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Metrics
	metrics WriterMetrics

	now func() time.Time
}

// NewWriter creates a new Writer.
func NewWriter(cfg WriterConfig, db DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}

	initial := cfg.BatchSize
	if cfg.BufferSize > 0 && cfg.BufferSize < initial {
		initial = cfg.BufferSize
	}

	return &Writer{
		cfg:          cfg,
		logger:       logger,
		input:        NewBuffer[Event](initial, cfg.BufferSize),
		db:           db,
		observations: make([]observationRow, 0, cfg.BatchSize),
		queries:      make([]queryRow, 0, cfg.BatchSize),
		ctx:          context.Background(),
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}
}

// RecordInsert queues an applied insert.
func (w *Writer) RecordInsert(id uuid.UUID, obs session.Observation) {
	w.record(Event{
		Kind:       KindInsert,
		Session:    id,
		ReceivedAt: w.now(),
		Timestamp:  obs.Timestamp,
		Price:      obs.Price,
	})
}

// RecordQuery queues an answered query.
func (w *Writer) RecordQuery(id uuid.UUID, q wire.Query, mean int32) {
	w.record(Event{
		Kind:       KindQuery,
		Session:    id,
		ReceivedAt: w.now(),
		MinTime:    q.MinTime,
		MaxTime:    q.MaxTime,
		Mean:       mean,
	})
}

func (w *Writer) record(e Event) {
	if !w.input.Send(e) {
		w.batchMu.Lock()
		w.metrics.Dropped++
		w.batchMu.Unlock()
	}
}

// Start begins consuming events and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"buffer_size", w.cfg.BufferSize,
	)
	return nil
}

// Stop drains buffered events, flushes them and shuts down.
// Events recorded after Stop are dropped.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	// Closing the input lets the consumer drain what is left and exit
	w.input.Close()
	w.stopOnce.Do(func() { close(w.stopCh) })

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("archive writer stopped")
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
	}

	// Final flush, then cancel in-flight database work
	w.flush()
	if w.cancel != nil {
		w.cancel()
	}

	return nil
}

// Stats returns current metrics.
func (w *Writer) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// Ping verifies the archive database is reachable.
func (w *Writer) Ping(ctx context.Context) error {
	return w.db.Ping(ctx)
}

// consumeLoop moves events from the input buffer into the pending batch.
func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		events, ok := w.input.ReceiveBatch(w.cfg.BatchSize)
		if !ok {
			return
		}
		for _, e := range events {
			w.handleEvent(e)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleEvent transforms and adds an event to the batch.
func (w *Writer) handleEvent(e Event) {
	w.batchMu.Lock()
	switch e.Kind {
	case KindInsert:
		w.observations = append(w.observations, observationRow{
			Session:    e.Session,
			Timestamp:  e.Timestamp,
			Price:      e.Price,
			ReceivedAt: e.ReceivedAt.UnixMicro(),
		})
	case KindQuery:
		w.queries = append(w.queries, queryRow{
			Session:    e.Session,
			MinTime:    e.MinTime,
			MaxTime:    e.MaxTime,
			Mean:       e.Mean,
			ReceivedAt: e.ReceivedAt.UnixMicro(),
		})
	}
	shouldFlush := len(w.observations)+len(w.queries) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// flush writes the pending rows to the database.
func (w *Writer) flush() {
	w.batchMu.Lock()
	if len(w.observations) == 0 && len(w.queries) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	observations, queries := w.observations, w.queries
	w.observations = make([]observationRow, 0, w.cfg.BatchSize)
	w.queries = make([]queryRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(observations, queries); err != nil {
		w.logger.Error("archive batch insert failed",
			"error", err,
			"observations", len(observations),
			"queries", len(queries),
		)
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Observations += int64(len(observations))
	w.metrics.Queries += int64(len(queries))
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed archive batch",
		"observations", len(observations),
		"queries", len(queries),
		"duration", time.Since(start),
	)
}

// batchInsert writes both row kinds in a single pgx.Batch round trip.
func (w *Writer) batchInsert(observations []observationRow, queries []queryRow) error {
	batch := &pgx.Batch{}
	for _, r := range observations {
		batch.Queue(insertObservationSQL, r.Session, r.Timestamp, r.Price, r.ReceivedAt)
	}
	for _, r := range queries {
		batch.Queue(insertQuerySQL, r.Session, r.MinTime, r.MaxTime, r.Mean, r.ReceivedAt)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
