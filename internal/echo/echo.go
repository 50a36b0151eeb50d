// Package echo implements the Smoke Test handler: every byte received is sent back unchanged.
package echo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"
)

// Handler echoes connection input back to the peer.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// ServeConn copies input to output until the peer closes its write side, then
// closes ours.
func (h *Handler) ServeConn(ctx context.Context, id uuid.UUID, conn net.Conn) error {
	n, err := io.Copy(conn, conn)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("echo: %w", err)
	}

	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			return fmt.Errorf("close write: %w", err)
		}
	}

	h.logger.Debug("echo session ended", "session", id, "bytes", n)
	return nil
}
