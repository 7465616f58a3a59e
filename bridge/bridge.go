// Package bridge correlates calls and host events over a single message
// channel shared with an embedding host.
//
// Outbound calls are Requests tagged with a fresh id; the host answers with a
// Response carrying the same id, either synchronously from Transport.Send or
// later through Manager.HandleMessage. Unsolicited Events are routed to
// subscribers by topic.
//
//	m := bridge.New(transport, bridge.WithLogger(logger))
//	defer m.Destroy("shutdown")
//
//	user, err := bridge.Call[User](ctx, m, "getUser", map[string]int{"id": 7})
//	off := m.Subscribe("battery", func(p bridge.Payload) { ... })
package bridge

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultDestroyReason = "bridge destroyed"

// Manager multiplexes calls and host events over one Transport.
// It must not be used after Destroy; create a new one instead.
type Manager struct {
	transport Transport
	timeout   time.Duration
	ids       IDGenerator
	rawSync   bool

	logger *zap.Logger

	pending *pendingStore
	events  *eventRouter

	destroyed atomic.Bool
	reason    atomic.Pointer[string]
}

func New(t Transport, options ...Option) *Manager {
	m := &Manager{
		transport: t,
		timeout:   DefaultTimeout,
		ids:       &UUIDGenerator{},
		logger:    zap.NewNop(),
		pending:   newPendingStore(),
	}
	for _, opt := range options {
		opt(m)
	}
	m.events = newEventRouter(m.logger)
	return m
}

// Invoke sends method to the host and waits for its result, the call timeout,
// Destroy or ctx, whichever comes first.
func (m *Manager) Invoke(ctx context.Context, method string, params any, opts ...CallOption) (*Reply, error) {
	if m.destroyed.Load() {
		return nil, destroyedError(method, m.destroyReason())
	}
	co := callOptions{timeout: m.timeout}
	for _, opt := range opts {
		opt(&co)
	}

	id := m.ids.NextID()
	call := m.pending.register(id, method, co.timeout)
	if m.destroyed.Load() {
		m.pending.discard(call)
		return nil, destroyedError(method, m.destroyReason())
	}

	ret, err := m.transport.Send(ctx, &Request{ID: id, Method: method, Params: params})
	if err != nil {
		m.pending.discard(call)
		return nil, transportError(method, err)
	}

	switch r := ret.(type) {
	case nil, noReturn:
	case immediate:
		m.complete(id, r.value)
	case future:
		select {
		case c, ok := <-r.ch:
			if ok && c.err != nil {
				m.pending.discard(call)
				return nil, transportError(method, c.err)
			}
			if ok && c.set {
				m.complete(id, c.value)
			}
		case o := <-call.done:
			return m.result(method, o)
		case <-ctx.Done():
			m.pending.discard(call)
			return nil, ctx.Err()
		}
	}

	select {
	case o := <-call.done:
		return m.result(method, o)
	case <-ctx.Done():
		m.pending.discard(call)
		return nil, ctx.Err()
	}
}

// InvokeSync requires the transport to answer within Send. Nothing is
// registered, so no timer applies.
func (m *Manager) InvokeSync(method string, params any) (*Reply, error) {
	if m.destroyed.Load() {
		return nil, destroyedError(method, m.destroyReason())
	}

	ret, err := m.transport.Send(context.Background(), &Request{ID: m.ids.NextID(), Method: method, Params: params})
	if err != nil {
		return nil, transportError(method, err)
	}

	switch r := ret.(type) {
	case future:
		return nil, notSyncError(method)
	case immediate:
		if !m.rawSync {
			if resp, ok := Decode(r.value); ok {
				if resp, ok := resp.(*Response); ok {
					if !resp.OK {
						return nil, remoteError(method, resp.Error)
					}
					return &Reply{method: method, value: resp.Result}, nil
				}
			}
		}
		return &Reply{method: method, value: r.value}, nil
	default:
		return nil, noReturnError(method)
	}
}

// HandleMessage routes one inbound payload from the host. Embedding code calls
// it once per message, in delivery order. Foreign traffic, inbound requests and
// responses for calls that already finished are dropped.
func (m *Manager) HandleMessage(raw any) {
	msg, ok := Decode(raw)
	if !ok {
		m.logger.Debug("ignoring non-protocol message")
		return
	}
	switch x := msg.(type) {
	case *Response:
		if !m.pending.settle(x) {
			m.logger.Debug("dropping response without pending call", zap.String("id", x.ID))
		}
	case *Event:
		m.events.dispatch(x.Name, Payload{topic: x.Name, raw: x.Payload})
	case *Request:
		m.logger.Debug("ignoring inbound request", zap.String("method", x.Method))
	}
}

// Subscribe registers h for topic and returns its unsubscribe function.
func (m *Manager) Subscribe(topic string, h EventHandler) func() {
	unsubscribe := m.events.subscribe(topic, h)
	if unsubscribe == nil {
		m.logger.Warn("subscribe on destroyed manager", zap.String("topic", topic))
		return func() {}
	}
	return unsubscribe
}

// Destroy fails every pending call with a DestroyedError carrying reason and
// drops all subscribers. Calling it again is a no-op.
func (m *Manager) Destroy(reason string) {
	if reason == "" {
		reason = defaultDestroyReason
	}
	first := m.reason.CompareAndSwap(nil, &reason)
	m.destroyed.Store(true)
	n := m.pending.drain(m.destroyReason())
	m.events.close()
	if first {
		m.logger.Info("bridge destroyed", zap.String("reason", reason), zap.Int("failed_calls", n))
	}
}

// Pending returns the number of calls awaiting a response.
func (m *Manager) Pending() int { return m.pending.len() }

// Topics returns the topics that currently have subscribers, sorted.
func (m *Manager) Topics() []string { return m.events.names() }

func (m *Manager) destroyReason() string {
	if r := m.reason.Load(); r != nil {
		return *r
	}
	return defaultDestroyReason
}

// complete settles id from a synchronously available value: a Response for
// this id settles normally, anything else is the result itself.
func (m *Manager) complete(id string, value any) {
	if msg, ok := Decode(value); ok {
		if resp, ok := msg.(*Response); ok && resp.ID == id {
			m.pending.settle(resp)
			return
		}
	}
	m.pending.resolve(id, value)
}

func (m *Manager) result(method string, o outcome) (*Reply, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &Reply{method: method, value: o.value}, nil
}
