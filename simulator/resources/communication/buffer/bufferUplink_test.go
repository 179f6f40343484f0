package buffer

import (
	"testing"
	"time"
)

func TestBufferPushPop(t *testing.T) {
	buf := NewBufferUplink[string](10)
	buf.Push("test")

	v, ok := buf.Pop()
	if !ok {
		t.Fatal("expected ok=true")
	}
	if v != "test" {
		t.Errorf("expected 'test', got '%s'", v)
	}
}

func TestBufferClose(t *testing.T) {
	buf := NewBufferUplink[string](10)
	buf.Close()

	_, ok := buf.Pop()
	if ok {
		t.Error("expected ok=false after close")
	}
}

func TestBufferBackpressure(t *testing.T) {
	buf := NewBufferUplink[string](2)
	buf.Push("a")
	buf.Push("b")
	evicted, dropped := buf.Push("c")
	if !dropped || evicted != "a" {
		t.Fatalf("expected 'a' to be evicted, got %q (dropped=%v)", evicted, dropped)
	}

	v, _ := buf.Pop()
	if v != "b" {
		t.Errorf("expected 'b' after overflow, got '%s'", v)
	}
	if buf.Len() != 1 {
		t.Errorf("expected 1 queued entry, got %d", buf.Len())
	}
}

func TestBufferDrain(t *testing.T) {
	buf := NewBufferUplink[int](4)
	buf.Push(1)
	buf.Push(2)

	got := buf.Drain()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("unexpected drain result %v", got)
	}
	if buf.Len() != 0 {
		t.Error("buffer not empty after drain")
	}
}

func TestBufferSignal(t *testing.T) {
	buf := NewBufferUplink[string](10)

	done := make(chan bool)
	go func() {
		_, ok := buf.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	buf.Signal()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected ok=false after signal")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Signal")
	}
}
