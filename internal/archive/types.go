package archive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// EventKind identifies what a session did.
type EventKind uint8

const (
	KindInsert EventKind = iota + 1
	KindQuery
)

// Event is one recorded protocol action.
type Event struct {
	Kind       EventKind
	Session    uuid.UUID
	ReceivedAt time.Time

	// Insert fields
	Timestamp int32
	Price     int32

	// Query fields
	MinTime int32
	MaxTime int32
	Mean    int32
}

// WriterConfig configures the archive writer.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the number of events held in memory before recording drops.
	BufferSize int
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Observations int64 // price_observations rows written
	Queries      int64 // mean_queries rows written
	Dropped      int64 // events dropped because the buffer was full or closed
	Errors       int64 // failed batch inserts
	Flushes      int64
}

// DB is the subset of *pgxpool.Pool used by the writer.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
}

type observationRow struct {
	Session    uuid.UUID
	Timestamp  int32
	Price      int32
	ReceivedAt int64 // microseconds since epoch
}

type queryRow struct {
	Session    uuid.UUID
	MinTime    int32
	MaxTime    int32
	Mean       int32
	ReceivedAt int64 // microseconds since epoch
}
