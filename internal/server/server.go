package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	acceptBackoffBase = 5 * time.Millisecond
	acceptBackoffMax  = time.Second
)

// Server accepts TCP connections and hands each one to a Handler.
type Server struct {
	cfg       Config
	handler   Handler
	logger    *slog.Logger
	publisher EventPublisher

	mu       sync.Mutex
	listener net.Listener
	started  bool
	stopOnce sync.Once
	done     chan struct{}

	// Sessions derive from baseCtx so Stop can cancel them all at once.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	wg       sync.WaitGroup
	sessions sync.Map // uuid.UUID -> *sessionEntry

	active atomic.Int64
	total  atomic.Int64
	failed atomic.Int64
}

type sessionEntry struct {
	info   SessionInfo
	cancel context.CancelFunc
}

// New creates a Server. Zero config values are replaced by defaults.
func New(cfg Config, handler Handler, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}

	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("server", cfg.Name),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and begins accepting connections in the background.
// The listener stops accepting when ctx is cancelled; open sessions are left
// running until Stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	s.listener = ln
	s.started = true
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	go func() {
		select {
		case <-ctx.Done():
			s.closeListener()
		case <-s.done:
		}
	}()

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Name returns the configured protocol name.
func (s *Server) Name() string {
	return s.cfg.Name
}

// Stop closes the listener and waits for open sessions to finish. Sessions
// still running after the grace period (or once ctx is done) are cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	s.closeListener()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := time.NewTimer(s.cfg.GracePeriod)
	defer grace.Stop()

	defer s.cancelBase()

	select {
	case <-done:
		s.logger.Info("server stopped")
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	s.logger.Warn("grace period exceeded, cancelling sessions", "active", s.active.Load())
	s.sessions.Range(func(key, value any) bool {
		value.(*sessionEntry).cancel()
		return true
	})
	s.cancelBase()

	<-done
	s.logger.Info("server stopped")
	return nil
}

// Stats returns current listener statistics.
func (s *Server) Stats() Stats {
	address := s.cfg.Address
	if addr := s.Addr(); addr != nil {
		address = addr.String()
	}
	return Stats{
		Name:    s.cfg.Name,
		Address: address,
		Active:  s.active.Load(),
		Total:   s.total.Load(),
		Failed:  s.failed.Load(),
	}
}

// Sessions returns the currently open sessions, oldest first.
func (s *Server) Sessions() []SessionInfo {
	var out []SessionInfo
	s.sessions.Range(func(key, value any) bool {
		out = append(out, value.(*sessionEntry).info)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (s *Server) closeListener() {
	s.stopOnce.Do(func() {
		close(s.done)
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("error closing listener", "error", err)
		}
	})
}

// acceptLoop accepts connections until the listener is closed.
func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			// Back off on resource errors (e.g., too many open files)
			if backoff == 0 {
				backoff = acceptBackoffBase
			} else {
				backoff *= 2
			}
			if backoff > acceptBackoffMax {
				backoff = acceptBackoffMax
			}
			s.logger.Warn("accept failed", "error", err, "retry_in", backoff)

			select {
			case <-time.After(backoff):
			case <-s.done:
				return
			}
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go s.serve(conn)
	}
}

// serve runs the handler for one connection and releases it afterwards.
func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()

	id := uuid.New()
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("session", id, "remote", remote)

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	// Unblock reads and writes when the session is cancelled
	stopClose := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stopClose()

	start := time.Now()
	s.sessions.Store(id, &sessionEntry{
		info:   SessionInfo{ID: id, Remote: remote, StartedAt: start},
		cancel: cancel,
	})
	defer s.sessions.Delete(id)

	s.active.Add(1)
	s.total.Add(1)
	defer s.active.Add(-1)

	logger.Debug("session opened")
	s.publish(Event{Kind: EventOpened, Server: s.cfg.Name, Session: id, Remote: remote, At: start})

	err := s.handler.ServeConn(ctx, id, conn)

	if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		logger.Debug("error closing connection", "error", cerr)
	}

	closed := Event{
		Kind:     EventClosed,
		Server:   s.cfg.Name,
		Session:  id,
		Remote:   remote,
		At:       time.Now(),
		Duration: time.Since(start),
	}

	switch {
	case err != nil && ctx.Err() != nil:
		logger.Debug("session cancelled", "duration", closed.Duration)
	case err != nil:
		s.failed.Add(1)
		closed.Error = err.Error()
		logger.Warn("session closed with error", "error", err, "duration", closed.Duration)
	default:
		logger.Debug("session closed", "duration", closed.Duration)
	}

	s.publish(closed)
}

func (s *Server) publish(e Event) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}
