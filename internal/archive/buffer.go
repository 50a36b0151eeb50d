package archive

import "sync"

// growAtPercent is the fill level at which the ring doubles.
const growAtPercent = 70

// Buffer is a goroutine-safe FIFO queue over a growable ring. Producers never
// block: once limit items are queued further sends are dropped and counted.
type Buffer[T any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond

	ring  []T
	first int // index of the oldest item
	size  int
	limit int // 0 means unbounded

	closed bool

	enqueued int64
	dequeued int64
	dropped  int64
	grown    int
}

// BufferStats is a snapshot of a Buffer.
type BufferStats struct {
	Queued   int
	Slots    int
	Enqueued int64
	Dequeued int64
	Dropped  int64
	Grown    int
}

// NewBuffer returns a buffer with room for slots items before its first
// growth, holding at most limit items (0 for no limit).
func NewBuffer[T any](slots, limit int) *Buffer[T] {
	b := &Buffer[T]{
		ring:  make([]T, max(slots, 1)),
		limit: limit,
	}
	b.nonEmpty = sync.NewCond(&b.mu)
	return b
}

// Send queues item. It reports false when the buffer is closed or already
// holds limit items; the latter counts as a drop.
func (b *Buffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.closed:
		return false
	case b.limit > 0 && b.size >= b.limit:
		b.dropped++
		return false
	}

	if (b.size+1)*100 >= len(b.ring)*growAtPercent {
		b.resize(len(b.ring) * 2)
	}
	b.ring[b.slot(b.size)] = item
	b.size++
	b.enqueued++

	b.nonEmpty.Signal()
	return true
}

// ReceiveBatch waits for at least one item and takes up to n of them (all of
// them when n <= 0). The second result is false once the buffer is closed and
// empty.
func (b *Buffer[T]) ReceiveBatch(n int) ([]T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.size == 0 {
		if b.closed {
			return nil, false
		}
		b.nonEmpty.Wait()
	}
	return b.take(n), true
}

// Drain takes up to n items (all when n <= 0) without waiting.
func (b *Buffer[T]) Drain(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}
	return b.take(n)
}

// Close rejects further sends and wakes blocked receivers. Queued items can
// still be received.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.nonEmpty.Broadcast()
}

// Len returns the number of queued items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Queued:   b.size,
		Slots:    len(b.ring),
		Enqueued: b.enqueued,
		Dequeued: b.dequeued,
		Dropped:  b.dropped,
		Grown:    b.grown,
	}
}

// slot maps a logical position (0 is the oldest item) to a ring index.
func (b *Buffer[T]) slot(pos int) int {
	return (b.first + pos) % len(b.ring)
}

// take requires the lock and size > 0.
func (b *Buffer[T]) take(n int) []T {
	if n <= 0 || n > b.size {
		n = b.size
	}

	var zero T
	out := make([]T, n)
	for i := range out {
		idx := b.slot(i)
		out[i] = b.ring[idx]
		b.ring[idx] = zero
	}
	b.first = b.slot(n)
	b.size -= n
	b.dequeued += int64(n)
	return out
}

// resize requires the lock. Items are unwrapped to the start of the new ring.
func (b *Buffer[T]) resize(slots int) {
	ring := make([]T, slots)
	for i := 0; i < b.size; i++ {
		ring[i] = b.ring[b.slot(i)]
	}
	b.ring = ring
	b.first = 0
	b.grown++
}
