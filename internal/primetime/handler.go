package primetime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/google/uuid"
)

// DefaultMaxLineBytes bounds a single request line.
const DefaultMaxLineBytes = 1 << 20

var malformedResponse = mustMarshalLine(ErrorResponse{Error: "Invalid message"})

// Handler serves Prime Time sessions.
type Handler struct {
	logger       *slog.Logger
	maxLineBytes int
}

// NewHandler creates a Handler. maxLineBytes <= 0 selects DefaultMaxLineBytes.
func NewHandler(maxLineBytes int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &Handler{logger: logger, maxLineBytes: maxLineBytes}
}

// ServeConn answers requests line by line until EOF or a malformed request.
func (h *Handler) ServeConn(ctx context.Context, id uuid.UUID, conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), h.maxLineBytes)

	w := bufio.NewWriter(conn)
	var answered int

	for scanner.Scan() {
		number, err := ParseRequest(scanner.Bytes())
		if err != nil {
			h.logger.Debug("malformed request", "session", id, "error", err)
			return h.reject(w, err)
		}

		line, err := json.Marshal(Response{Method: MethodIsPrime, Prime: IsPrime(number)})
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
		if err := w.Flush(); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		answered++
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return h.reject(w, errors.Join(ErrMalformed, err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read request: %w", err)
	}

	h.logger.Debug("prime session ended", "session", id, "answered", answered)
	return w.Flush()
}

// reject sends the error object and ends the session with cause.
func (h *Handler) reject(w *bufio.Writer, cause error) error {
	w.Write(malformedResponse)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write error response: %w", err)
	}
	return cause
}

func mustMarshalLine(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return append(b, '\n')
}
