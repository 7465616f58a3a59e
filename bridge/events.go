package bridge

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

type subscriber struct {
	seq uint64
	fn  EventHandler
}

// eventRouter keeps per-topic handlers in subscription order.
type eventRouter struct {
	mu     sync.Mutex
	seq    uint64
	topics map[string][]subscriber
	closed bool
	logger *zap.Logger
}

func newEventRouter(logger *zap.Logger) *eventRouter {
	return &eventRouter{topics: make(map[string][]subscriber), logger: logger}
}

// subscribe returns nil once the router is closed.
func (r *eventRouter) subscribe(topic string, h EventHandler) func() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.seq++
	seq := r.seq
	r.topics[topic] = append(r.topics[topic], subscriber{seq: seq, fn: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(topic, seq) })
	}
}

func (r *eventRouter) unsubscribe(topic string, seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.topics[topic]
	for i, s := range subs {
		if s.seq != seq {
			continue
		}
		rest := make([]subscriber, 0, len(subs)-1)
		rest = append(rest, subs[:i]...)
		rest = append(rest, subs[i+1:]...)
		if len(rest) == 0 {
			delete(r.topics, topic)
		} else {
			r.topics[topic] = rest
		}
		return
	}
}

// dispatch calls every handler registered for topic. Handlers run outside the
// lock so they may subscribe or unsubscribe; a topic without handlers is a no-op.
func (r *eventRouter) dispatch(topic string, payload Payload) int {
	r.mu.Lock()
	subs := r.topics[topic]
	r.mu.Unlock()

	for _, s := range subs {
		r.call(topic, s.fn, payload)
	}
	return len(subs)
}

func (r *eventRouter) call(topic string, h EventHandler, payload Payload) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Warn("event handler panicked", zap.String("topic", topic), zap.Any("panic", v))
		}
	}()
	h(payload)
}

// close drops every subscriber and rejects later subscribes.
func (r *eventRouter) close() {
	r.mu.Lock()
	r.closed = true
	r.topics = make(map[string][]subscriber)
	r.mu.Unlock()
}

func (r *eventRouter) names() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}
