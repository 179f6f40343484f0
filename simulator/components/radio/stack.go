package radio

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/metrics"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/resources/communication/buffer"
)

// Result is reported to the observer once per accepted frame.
type Result struct {
	Uplink
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type job struct {
	frame  []byte
	port   uint8
	done   func(ok bool)
	queued time.Time
}

// Stack is the Transmitter used by the node: frames are queued, wrapped by the
// Framer and delivered to the Sink on one worker goroutine.
type Stack struct {
	framer  *Framer
	sink    Sink
	timeout time.Duration
	queue   *buffer.BufferUplink[job]

	mu       sync.Mutex
	stopped  bool
	observer func(Result)

	wg sync.WaitGroup
}

func NewStack(framer *Framer, sink Sink, cfg Config) *Stack {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Stack{
		framer:  framer,
		sink:    sink,
		timeout: timeout,
		queue:   buffer.NewBufferUplink[job](cfg.QueueSize),
	}
}

// SetObserver registers a function called with every delivery result.
func (s *Stack) SetObserver(fn func(Result)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

func (s *Stack) Framer() *Framer { return s.framer }

// Start launches the delivery worker.
func (s *Stack) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Send queues a frame. It never blocks; a full queue evicts and fails the
// oldest frame.
func (s *Stack) Send(frame []byte, port uint8, done func(ok bool)) {
	j := job{frame: append([]byte(nil), frame...), port: port, done: done, queued: time.Now()}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		slog.Warn("frame rejected", "component", "radio", "error", ErrStopped)
		complete(j, false)
		return
	}
	evicted, dropped := s.queue.Push(j)
	metrics.RadioQueueDepth.Set(float64(s.queue.Len()))
	s.mu.Unlock()

	if dropped {
		slog.Warn("frame dropped", "component", "radio", "error", ErrQueueFull)
		metrics.UplinkFailures.WithLabelValues("queue_full").Inc()
		complete(evicted, false)
	}
}

// Stop ends the worker, fails every queued frame and closes the sink.
func (s *Stack) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.queue.Close()
	s.wg.Wait()
	for _, j := range s.queue.Drain() {
		complete(j, false)
	}
	metrics.RadioQueueDepth.Set(0)
	return s.sink.Close()
}

func (s *Stack) worker() {
	defer s.wg.Done()
	for {
		j, ok := s.queue.Pop() //wait frame
		if !ok {
			return
		}
		metrics.RadioQueueDepth.Set(float64(s.queue.Len()))
		s.deliver(j)
	}
}

func (s *Stack) deliver(j job) {
	res := Result{}
	up, err := s.framer.Frame(j.frame, j.port)
	if err == nil {
		up.Time = time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err = s.sink.Deliver(ctx, up)
		cancel()
	}
	res.Uplink = up
	res.OK = err == nil
	res.Duration = time.Since(j.queued)
	metrics.RadioDeliveryDuration.Observe(res.Duration.Seconds())

	if err != nil {
		res.Error = err.Error()
		slog.Error("uplink delivery failed", "component", "radio", "fcnt", up.FCnt, "error", err)
		metrics.UplinkFailures.WithLabelValues("radio").Inc()
	} else {
		slog.Debug("uplink delivered", "component", "radio", "fcnt", up.FCnt, "phy_payload", hex.EncodeToString(up.PHYPayload))
	}

	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(res)
	}
	complete(j, res.OK)
}

func complete(j job, ok bool) {
	if j.done != nil {
		j.done(ok)
	}
}
