package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// lineEcho echoes newline-terminated lines until EOF.
func lineEcho(ctx context.Context, id uuid.UUID, conn net.Conn) error {
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := conn.Write(line); err != nil {
			return err
		}
	}
}

func startServer(t *testing.T, h Handler, opts ...Option) *Server {
	t.Helper()

	srv := New(Config{Name: "test", Address: "127.0.0.1:0", GracePeriod: 200 * time.Millisecond}, h, nil, opts...)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		srv.Stop(context.Background())
	})
	return srv
}

func TestServer_ServesConnections(t *testing.T) {
	srv := startServer(t, HandlerFunc(lineEcho))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)
}

func TestServer_ConcurrentSessions(t *testing.T) {
	srv := startServer(t, HandlerFunc(lineEcho))

	const clients = 5
	conns := make([]net.Conn, clients)
	for i := range conns {
		conn, err := net.Dial("tcp", srv.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
		conns[i] = conn
	}

	require.Eventually(t, func() bool {
		return srv.Stats().Active == clients
	}, time.Second, 10*time.Millisecond)

	// Every session is live at once; answer in reverse order of connect.
	for i := clients - 1; i >= 0; i-- {
		msg := []byte{byte('a' + i), '\n'}
		_, err := conns[i].Write(msg)
		require.NoError(t, err)

		got, err := bufio.NewReader(conns[i]).ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, string(msg), got)
	}

	assert.Len(t, srv.Sessions(), clients)
}

func TestServer_EventsAndStats(t *testing.T) {
	pub := &recordingPublisher{}
	srv := startServer(t, HandlerFunc(lineEcho), WithPublisher(pub))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)

	events := pub.snapshot()
	assert.Equal(t, EventOpened, events[0].Kind)
	assert.Equal(t, EventClosed, events[1].Kind)
	assert.Equal(t, events[0].Session, events[1].Session)
	assert.Equal(t, "test", events[1].Server)
	assert.Empty(t, events[1].Error)

	stats := srv.Stats()
	assert.Equal(t, int64(0), stats.Active)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestServer_HandlerErrorCountsAsFailed(t *testing.T) {
	pub := &recordingPublisher{}
	srv := startServer(t, HandlerFunc(func(ctx context.Context, id uuid.UUID, conn net.Conn) error {
		return io.ErrClosedPipe
	}), WithPublisher(pub))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// The server closes the connection once the handler returns
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), srv.Stats().Failed)
	assert.Equal(t, io.ErrClosedPipe.Error(), pub.snapshot()[1].Error)
}

func TestServer_StopCancelsIdleSessions(t *testing.T) {
	srv := New(Config{Name: "test", Address: "127.0.0.1:0", GracePeriod: 50 * time.Millisecond}, HandlerFunc(lineEcho), nil)
	require.NoError(t, srv.Start(context.Background()))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.Stats().Active == 1
	}, time.Second, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, srv.Stop(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)

	// Cancelled sessions are not failures
	assert.Equal(t, int64(0), srv.Stats().Active)
	assert.Equal(t, int64(0), srv.Stats().Failed)

	_, err = net.Dial("tcp", srv.Addr().String())
	assert.Error(t, err)
}

func TestServer_StartTwice(t *testing.T) {
	srv := startServer(t, HandlerFunc(lineEcho))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrAlreadyStarted)
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := New(Config{Name: "test"}, HandlerFunc(lineEcho), nil)
	assert.ErrorIs(t, srv.Stop(context.Background()), ErrNotStarted)
}

func TestServer_StartContextClosesListener(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(Config{Name: "test", Address: "127.0.0.1:0"}, HandlerFunc(lineEcho), nil)
	require.NoError(t, srv.Start(ctx))
	defer srv.Stop(context.Background())

	addr := srv.Addr().String()
	cancel()

	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp", addr)
		if err != nil {
			return true
		}
		c.Close()
		return false
	}, time.Second, 10*time.Millisecond)
}
