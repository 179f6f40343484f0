package buffer

const DefaultBufferSize = 16

// BufferUplink is a bounded FIFO between a producer that must never block and a
// single consumer goroutine.
type BufferUplink[T any] struct {
	ch   chan T
	done chan struct{}
}

func NewBufferUplink[T any](size int) *BufferUplink[T] {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &BufferUplink[T]{
		ch:   make(chan T, size),
		done: make(chan struct{}),
	}
}

// Push enqueues v. When the buffer is full the oldest entry is evicted and
// returned so the caller can complete it.
func (bu *BufferUplink[T]) Push(v T) (evicted T, dropped bool) {
	for {
		select {
		case bu.ch <- v:
			return evicted, dropped
		default:
		}
		// buffer full -- drop oldest, push new
		select {
		case old := <-bu.ch:
			if !dropped {
				evicted, dropped = old, true
			}
		default:
		}
	}
}

// Pop waits for the next entry; ok is false once the buffer is signalled or closed.
func (bu *BufferUplink[T]) Pop() (T, bool) {
	select {
	case v := <-bu.ch:
		return v, true
	case <-bu.done:
		var zero T
		return zero, false
	}
}

// Drain removes every queued entry without blocking.
func (bu *BufferUplink[T]) Drain() []T {
	var out []T
	for {
		select {
		case v := <-bu.ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

func (bu *BufferUplink[T]) Len() int {
	return len(bu.ch)
}

func (bu *BufferUplink[T]) Signal() {
	select {
	case bu.done <- struct{}{}:
	default:
	}
}

func (bu *BufferUplink[T]) Close() {
	close(bu.done)
}
