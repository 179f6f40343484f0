// Package poller drives Pollable components from one goroutine at a fixed
// resolution, with an extra pass whenever a component asks to be woken.
package poller

import (
	"log/slog"
	"sync"
	"time"
)

// Pollable is advanced by one step per Poll call.
type Pollable interface {
	Poll()
}

// Waker is implemented by pollables that can request an early poll.
type Waker interface {
	Wake() <-chan struct{}
}

type Poller struct {
	resolution time.Duration
	pollables  []Pollable
	wake       chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

func New(resolution time.Duration) *Poller {
	if resolution <= 0 {
		resolution = 100 * time.Millisecond
	}
	return &Poller{
		resolution: resolution,
		wake:       make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

// Register adds a pollable. It must be called before Start.
func (p *Poller) Register(x Pollable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollables = append(p.pollables, x)
}

func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	for _, x := range p.pollables {
		if w, ok := x.(Waker); ok {
			p.wg.Add(1)
			go p.forward(w.Wake())
		}
	}

	p.wg.Add(1)
	go p.tick()
	slog.Debug("poller started", "component", "poller", "resolution", p.resolution, "pollables", len(p.pollables))
}

func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	slog.Debug("poller stopped", "component", "poller")
}

// PollOnce runs one pass over every pollable on the caller's goroutine.
func (p *Poller) PollOnce() {
	for _, x := range p.pollables {
		x.Poll()
	}
}

func (p *Poller) forward(ch <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-ch:
			select {
			case p.wake <- struct{}{}:
			default:
			}
		case <-p.stopCh:
			return
		}
	}
}

func (p *Poller) tick() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.PollOnce()
		case <-p.wake:
			p.PollOnce()
		case <-p.stopCh:
			return
		}
	}
}
