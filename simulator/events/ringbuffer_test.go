package events

import "testing"

func TestRingBufferBasic(t *testing.T) {
	rb := NewRingBuffer[string](3)
	rb.Push("a")
	rb.Push("b")

	items := rb.GetAll()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0] != "a" || items[1] != "b" {
		t.Errorf("expected [a, b], got %v", items)
	}
}

func TestRingBufferOverflow(t *testing.T) {
	rb := NewRingBuffer[string](3)
	rb.Push("a")
	rb.Push("b")
	rb.Push("c")
	rb.Push("d") // overwrites "a"

	items := rb.GetAll()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0] != "b" || items[1] != "c" || items[2] != "d" {
		t.Errorf("expected [b, c, d], got %v", items)
	}
}

func TestRingBufferLast(t *testing.T) {
	rb := NewRingBuffer[int](4)
	for i := 1; i <= 6; i++ {
		rb.Push(i)
	}
	items := rb.Last(2)
	if len(items) != 2 || items[0] != 5 || items[1] != 6 {
		t.Errorf("expected [5 6], got %v", items)
	}
	if got := rb.Last(10); len(got) != 4 || got[0] != 3 {
		t.Errorf("expected [3 4 5 6], got %v", got)
	}
}

func TestRingBufferEmpty(t *testing.T) {
	rb := NewRingBuffer[string](5)
	items := rb.GetAll()
	if len(items) != 0 {
		t.Errorf("expected empty, got %d items", len(items))
	}
}

func TestRingBufferZeroCapacity(t *testing.T) {
	rb := NewRingBuffer[int](0)
	rb.Push(1)
	rb.Push(2)
	if items := rb.GetAll(); len(items) != 1 || items[0] != 2 {
		t.Errorf("expected [2], got %v", items)
	}
}
