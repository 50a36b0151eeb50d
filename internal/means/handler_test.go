package means

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/protohackers/internal/session"
	"github.com/rickgao/protohackers/internal/wire"
)

// serveOne accepts a single connection on a loopback listener and runs the handler on it.
// It returns the client side and a channel carrying the handler's result.
func serveOne(t *testing.T, h *Handler) (*net.TCPConn, <-chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	result := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			result <- err
			return
		}
		defer conn.Close()
		result <- h.ServeConn(context.Background(), uuid.New(), conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	return conn.(*net.TCPConn), result
}

func frames(msgs ...wire.Message) []byte {
	var buf bytes.Buffer
	for _, m := range msgs {
		wire.WriteMessage(&buf, m)
	}
	return buf.Bytes()
}

func waitResult(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return")
		return nil
	}
}

func TestHandler_ExampleSession(t *testing.T) {
	conn, result := serveOne(t, NewHandler(nil))

	_, err := conn.Write(frames(
		wire.Insert{Timestamp: 12345, Price: 101},
		wire.Insert{Timestamp: 12346, Price: 102},
		wire.Insert{Timestamp: 12347, Price: 100},
		wire.Insert{Timestamp: 40960, Price: 5},
		wire.Query{MinTime: 12288, MaxTime: 16384},
	))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	mean, err := wire.ReadMean(conn)
	if err != nil {
		t.Fatalf("ReadMean: %v", err)
	}
	if mean != 101 {
		t.Errorf("mean = %d, want 101", mean)
	}

	conn.CloseWrite()
	if rest, _ := io.ReadAll(conn); len(rest) != 0 {
		t.Errorf("unexpected trailing bytes: % x", rest)
	}
	if err := waitResult(t, result); err != nil {
		t.Errorf("ServeConn = %v, want nil", err)
	}
}

func TestHandler_QueryWithoutInserts(t *testing.T) {
	conn, _ := serveOne(t, NewHandler(nil))

	if _, err := conn.Write(frames(wire.Query{MinTime: 0, MaxTime: 0})); err != nil {
		t.Fatalf("write: %v", err)
	}

	mean, err := wire.ReadMean(conn)
	if err != nil {
		t.Fatalf("ReadMean: %v", err)
	}
	if mean != 0 {
		t.Errorf("mean = %d, want 0", mean)
	}
}

func TestHandler_InvalidTypeClosesWithoutResponse(t *testing.T) {
	conn, result := serveOne(t, NewHandler(nil))

	bad := [wire.FrameSize]byte{'X', 0, 0, 0, 1, 0, 0, 0, 2}
	if _, err := conn.Write(bad[:]); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("received % x, want no bytes", got)
	}

	if err := waitResult(t, result); !errors.Is(err, wire.ErrInvalidMessageType) {
		t.Errorf("ServeConn = %v, want ErrInvalidMessageType", err)
	}
}

func TestHandler_PartialFrameIsCleanClose(t *testing.T) {
	conn, result := serveOne(t, NewHandler(nil))

	if _, err := conn.Write([]byte{'I', 0, 0, 0, 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.CloseWrite()

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("received % x, want no bytes", got)
	}

	if err := waitResult(t, result); err != nil {
		t.Errorf("ServeConn = %v, want nil", err)
	}
}

func TestHandler_InsertsProduceNoOutput(t *testing.T) {
	conn, result := serveOne(t, NewHandler(nil))

	conn.Write(frames(
		wire.Insert{Timestamp: 1, Price: 1},
		wire.Insert{Timestamp: 2, Price: 2},
	))
	conn.CloseWrite()

	got, _ := io.ReadAll(conn)
	if len(got) != 0 {
		t.Errorf("received % x, want no bytes", got)
	}
	if err := waitResult(t, result); err != nil {
		t.Errorf("ServeConn = %v, want nil", err)
	}
}

func TestHandler_InterleavedQueriesSeePriorInsertsOnly(t *testing.T) {
	conn, _ := serveOne(t, NewHandler(nil))

	// One write so the handler sees several frames buffered at once
	conn.Write(frames(
		wire.Insert{Timestamp: 10, Price: 100},
		wire.Query{MinTime: 0, MaxTime: 100},
		wire.Insert{Timestamp: 20, Price: 200},
		wire.Query{MinTime: 0, MaxTime: 100},
		wire.Query{MinTime: 100, MaxTime: 0},
		wire.Insert{Timestamp: 30, Price: -600},
		wire.Query{MinTime: 0, MaxTime: 100},
	))

	want := []int32{100, 150, 0, -100}
	for i, w := range want {
		got, err := wire.ReadMean(conn)
		if err != nil {
			t.Fatalf("ReadMean %d: %v", i, err)
		}
		if got != w {
			t.Errorf("response %d = %d, want %d", i, got, w)
		}
	}
}

func TestHandler_AnswersQueriesBeforeInvalidFrame(t *testing.T) {
	conn, result := serveOne(t, NewHandler(nil))

	payload := frames(
		wire.Insert{Timestamp: 1, Price: 42},
		wire.Query{MinTime: 1, MaxTime: 1},
	)
	payload = append(payload, 'Z', 0, 0, 0, 0, 0, 0, 0, 0)
	conn.Write(payload)

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if want := wire.AppendMean(nil, 42); !bytes.Equal(got, want) {
		t.Errorf("received % x, want % x", got, want)
	}
	if err := waitResult(t, result); !errors.Is(err, wire.ErrInvalidMessageType) {
		t.Errorf("ServeConn = %v, want ErrInvalidMessageType", err)
	}
}

type memRecorder struct {
	mu      sync.Mutex
	inserts []session.Observation
	queries []int32
}

func (r *memRecorder) RecordInsert(id uuid.UUID, obs session.Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts = append(r.inserts, obs)
}

func (r *memRecorder) RecordQuery(id uuid.UUID, q wire.Query, mean int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, mean)
}

func TestHandler_Recorder(t *testing.T) {
	rec := &memRecorder{}
	conn, result := serveOne(t, NewHandler(nil, WithRecorder(rec)))

	conn.Write(frames(
		wire.Insert{Timestamp: 5, Price: 7},
		wire.Insert{Timestamp: 6, Price: 9},
		wire.Query{MinTime: 5, MaxTime: 6},
	))
	if _, err := wire.ReadMean(conn); err != nil {
		t.Fatalf("ReadMean: %v", err)
	}
	conn.CloseWrite()
	waitResult(t, result)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.inserts) != 2 {
		t.Errorf("recorded %d inserts, want 2", len(rec.inserts))
	}
	if len(rec.queries) != 1 || rec.queries[0] != 8 {
		t.Errorf("recorded queries = %v, want [8]", rec.queries)
	}
}

func TestHandler_ContextCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			result <- err
			return
		}
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
		result <- NewHandler(nil).ServeConn(ctx, uuid.New(), conn)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	cancel()
	if err := waitResult(t, result); !errors.Is(err, context.Canceled) {
		t.Errorf("ServeConn = %v, want context.Canceled", err)
	}
}
