package means

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"github.com/rickgao/protohackers/internal/session"
	"github.com/rickgao/protohackers/internal/wire"
)

const (
	readBufferSize  = 4096
	writeBufferSize = 1024
)

// Recorder receives every applied insert and answered query.
// Implementations must not block the session.
type Recorder interface {
	RecordInsert(id uuid.UUID, obs session.Observation)
	RecordQuery(id uuid.UUID, q wire.Query, mean int32)
}

// Handler serves Means to an End sessions.
type Handler struct {
	logger   *slog.Logger
	recorder Recorder
}

// Option configures a Handler.
type Option func(*Handler)

// WithRecorder sets a Recorder that observes session traffic.
func WithRecorder(r Recorder) Option {
	return func(h *Handler) {
		h.recorder = r
	}
}

// NewHandler creates a Handler.
func NewHandler(logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeConn runs one session until the peer disconnects or a frame fails to decode.
// A clean disconnect returns nil.
func (h *Handler) ServeConn(ctx context.Context, id uuid.UUID, conn net.Conn) error {
	store := session.NewStore()
	r := bufio.NewReaderSize(conn, readBufferSize)
	w := bufio.NewWriterSize(conn, writeBufferSize)

	var queries int
	defer func() {
		h.logger.Debug("means session ended",
			"session", id,
			"observations", store.Len(),
			"queries", queries,
		)
	}()

	for {
		msg, err := wire.ReadMessage(r)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			// Peer is done; a trailing partial frame is discarded
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			return nil
		case errors.Is(err, wire.ErrInvalidMessageType):
			// Earlier queries still get their answers; the bad frame gets none
			if err := w.Flush(); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			return err
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}

		switch m := msg.(type) {
		case wire.Insert:
			store.Insert(m.Timestamp, m.Price)
			if h.recorder != nil {
				h.recorder.RecordInsert(id, session.Observation{Timestamp: m.Timestamp, Price: m.Price})
			}

		case wire.Query:
			mean := store.QueryMean(m.MinTime, m.MaxTime)
			queries++
			if err := wire.WriteMean(w, mean); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			if h.recorder != nil {
				h.recorder.RecordQuery(id, m, mean)
			}
		}

		// Flush before the next read could block
		if w.Buffered() > 0 && r.Buffered() < wire.FrameSize {
			if err := w.Flush(); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}
