package events

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/metrics"
)

var eventCounter uint64

func nextID() string {
	n := atomic.AddUint64(&eventCounter, 1)
	return time.Now().Format("20060102150405") + "-" + strconv.FormatUint(n, 10)
}

type subscriber struct {
	ch     chan interface{}
	filter string
}

// EventBroker fans node and system events out to topic subscribers and keeps
// a bounded history per topic for late joiners.
type EventBroker struct {
	history     *history
	subscribers map[string][]*subscriber
	mu          sync.Mutex
}

func NewEventBroker(maxHistoryPerTopic int) *EventBroker {
	return &EventBroker{
		history:     newHistory(maxHistoryPerTopic),
		subscribers: make(map[string][]*subscriber),
	}
}

func (b *EventBroker) Subscribe(topic string) (ch <-chan interface{}, history []interface{}, unsubscribe func()) {
	sub := &subscriber{
		ch:     make(chan interface{}, 256),
		filter: topic,
	}

	b.mu.Lock()
	history = b.history.get(topic)
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()
	metrics.EventSubscriptions.Inc()

	unsubscribe = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[topic]
		for i, s := range subs {
			if s == sub {
				b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
				close(sub.ch)
				metrics.EventSubscriptions.Dec()
				break
			}
		}
	}

	return sub.ch, history, unsubscribe
}

func (b *EventBroker) publish(topic, eventType string, event interface{}) {
	metrics.EventsPublished.WithLabelValues(eventType).Inc()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.history.add(topic, event)
	for _, sub := range b.subscribers[topic] {
		select {
		case sub.ch <- event:
		default:
			slog.Warn("event subscriber buffer full, dropping event", "component", "events", "topic", topic)
		}
	}
}

func (b *EventBroker) PublishNodeEvent(devAddr string, event NodeEvent) {
	if event.ID == "" {
		event.ID = nextID()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	if event.DevAddr == "" {
		event.DevAddr = devAddr
	}
	b.publish(NodeTopic(devAddr), event.Type, event)
	if event.Type == EventError {
		b.publish(ErrorsTopic, event.Type, event)
	}
}

func (b *EventBroker) PublishSystemEvent(event SystemEvent) {
	if event.ID == "" {
		event.ID = nextID()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	b.publish(SystemTopic, event.Type, event)
	if event.IsError {
		b.publish(ErrorsTopic, event.Type, event)
	}
}

// History returns the retained events of a topic, oldest first.
func (b *EventBroker) History(topic string) []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.get(topic)
}

// Close ends every subscription.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.ch)
			metrics.EventSubscriptions.Dec()
		}
		delete(b.subscribers, topic)
	}
}
