package events

import "sync"

// RingBuffer keeps the most recent items up to a fixed capacity.
type RingBuffer[T any] struct {
	items []T
	head  int
	count int
	mu    sync.RWMutex
}

func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{items: make([]T, capacity)}
}

func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := len(rb.items)
	rb.items[(rb.head+rb.count)%n] = item
	if rb.count == n {
		rb.head = (rb.head + 1) % n
	} else {
		rb.count++
	}
}

// GetAll returns every item, oldest first.
func (rb *RingBuffer[T]) GetAll() []T {
	return rb.Last(-1)
}

// Last returns up to n of the newest items, oldest first. A negative n means all.
func (rb *RingBuffer[T]) Last(n int) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if n < 0 || n > rb.count {
		n = rb.count
	}
	result := make([]T, n)
	start := rb.head + rb.count - n
	for i := 0; i < n; i++ {
		result[i] = rb.items[(start+i)%len(rb.items)]
	}
	return result
}

func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}
