package events

// history retains the most recent events of every topic. It is guarded by the
// broker's lock so a subscriber's history snapshot and its live stream never
// overlap or leave a gap.
type history struct {
	depth  int
	topics map[string]*RingBuffer[interface{}]
}

func newHistory(depth int) *history {
	if depth <= 0 {
		depth = 1
	}
	return &history{depth: depth, topics: make(map[string]*RingBuffer[interface{}])}
}

func (h *history) add(topic string, event interface{}) {
	rb, ok := h.topics[topic]
	if !ok {
		rb = NewRingBuffer[interface{}](h.depth)
		h.topics[topic] = rb
	}
	rb.Push(event)
}

func (h *history) get(topic string) []interface{} {
	if rb, ok := h.topics[topic]; ok {
		return rb.GetAll()
	}
	return nil
}
