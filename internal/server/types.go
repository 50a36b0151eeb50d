package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("server already started")
	ErrNotStarted     = errors.New("server not started")
)

// Handler serves a single accepted connection.
//
// ServeConn returns when the session is over. The connection is closed by the
// server afterwards, and ctx is cancelled when the server shuts the session down.
type Handler interface {
	ServeConn(ctx context.Context, id uuid.UUID, conn net.Conn) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, id uuid.UUID, conn net.Conn) error

// ServeConn calls f.
func (f HandlerFunc) ServeConn(ctx context.Context, id uuid.UUID, conn net.Conn) error {
	return f(ctx, id, conn)
}

// Config configures a Server.
type Config struct {
	Name        string        // Protocol name used in logs and events (e.g., "means")
	Address     string        // Listen address (e.g., 0.0.0.0:54000)
	GracePeriod time.Duration // How long Stop waits for sessions before cancelling them
}

// Default values.
const (
	DefaultAddress     = "0.0.0.0:54000"
	DefaultGracePeriod = 5 * time.Second
)

// EventKind identifies a session lifecycle transition.
type EventKind string

const (
	EventOpened EventKind = "opened"
	EventClosed EventKind = "closed"
)

// Event describes a session lifecycle transition.
type Event struct {
	Kind     EventKind     `json:"kind"`
	Server   string        `json:"server"`
	Session  uuid.UUID     `json:"session"`
	Remote   string        `json:"remote"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration,omitempty"` // Closed only
	Error    string        `json:"error,omitempty"`    // Closed only, empty on clean close
}

// EventPublisher receives session lifecycle events. Publish must not block.
type EventPublisher interface {
	Publish(Event)
}

// Stats contains listener statistics.
type Stats struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Active  int64  `json:"active"`
	Total   int64  `json:"total"`
	Failed  int64  `json:"failed"`
}

// SessionInfo describes an open session.
type SessionInfo struct {
	ID        uuid.UUID `json:"id"`
	Remote    string    `json:"remote"`
	StartedAt time.Time `json:"started_at"`
}

// Option configures optional Server behaviour.
type Option func(*Server)

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Server) {
		s.publisher = p
	}
}
