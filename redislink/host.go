package redislink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mrjvadi/go-native-bridge/bridge"
)

const (
	// CodeNotFound is returned to callers of methods the host does not serve.
	CodeNotFound = "NOT_FOUND"
	// CodeInternal is returned when a handler panics.
	CodeInternal = "INTERNAL"
)

// HandlerFunc answers one request; the result is sent back as JSON. Returning
// a *bridge.Error passes its message, code and data to the caller verbatim.
type HandlerFunc func(c *Context) (any, error)

// Context carries one request to a handler.
type Context struct {
	ctx context.Context
	req *bridge.Request
}

// Bind decodes the request params into v.
func (c *Context) Bind(v any) error {
	raw, _ := c.req.Params.(json.RawMessage)
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return json.Unmarshal(raw, v)
}

func (c *Context) Ctx() context.Context { return c.ctx }
func (c *Context) Method() string        { return c.req.Method }
func (c *Context) ID() string            { return c.req.ID }

// Host is the other end of the link: it serves requests published on the
// request channel and writes responses and events to the reply channel.
type Host struct {
	rdb      *redis.Client
	requests string
	replies  string
	opts     options

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewHost(rdb *redis.Client, requests, replies string, opts ...Option) *Host {
	o := newOptions(opts)
	return &Host{
		rdb:      rdb,
		requests: requests,
		replies:  replies,
		opts:     o,
		handlers: make(map[string]HandlerFunc),
		sem:      make(chan struct{}, o.maxJobs),
	}
}

func (h *Host) OnRequest(method string, handler HandlerFunc) {
	h.mu.Lock()
	h.handlers[method] = handler
	h.mu.Unlock()
}

// Emit publishes an event to the reply channel.
func (h *Host) Emit(ctx context.Context, topic string, payload any) error {
	ev, err := bridge.NewEvent(topic, payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	return h.publish(ctx, ev)
}

// Run serves requests until ctx is done. ready, if non-nil, is closed once the
// request channel subscription is confirmed.
func (h *Host) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := h.rdb.Subscribe(ctx, h.requests)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", h.requests, err)
	}
	if ready != nil {
		close(ready)
	}
	h.opts.logger.Info("host serving", zap.String("requests", h.requests), zap.String("replies", h.replies))

	ch := sub.Channel(redis.WithChannelSize(h.opts.channelSize))
	for {
		select {
		case <-ctx.Done():
			h.wg.Wait()
			h.opts.logger.Info("host has shut down")
			return nil
		case msg, ok := <-ch:
			if !ok {
				h.wg.Wait()
				return nil
			}
			m, ok := bridge.Decode(msg.Payload)
			if !ok {
				continue
			}
			req, ok := m.(*bridge.Request)
			if !ok {
				continue
			}
			h.withConcurrency(func() {
				h.handle(ctx, req)
			})
		}
	}
}

func (h *Host) withConcurrency(fn func()) {
	h.sem <- struct{}{}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() { <-h.sem }()
		fn()
	}()
}

func (h *Host) handle(ctx context.Context, req *bridge.Request) {
	h.mu.RLock()
	handler := h.handlers[req.Method]
	h.mu.RUnlock()

	resp := respond(req, handler, &Context{ctx: ctx, req: req}, h.opts.logger)
	if err := h.publish(ctx, resp); err != nil {
		h.opts.logger.Warn("reply failed", zap.String("method", req.Method), zap.String("id", req.ID), zap.Error(err))
	}
}

// respond runs handler and turns its outcome into a Response. A panicking
// handler still answers, with CodeInternal.
func respond(req *bridge.Request, handler HandlerFunc, c *Context, logger *zap.Logger) *bridge.Response {
	if handler == nil {
		return bridge.Failure(req.ID, bridge.ErrorShape{
			Message: "method " + req.Method + " not defined",
			Code:    CodeNotFound,
		})
	}

	result, err := run(handler, c)
	var p *handlerPanic
	if errors.As(err, &p) {
		logger.Error("handler panicked",
			zap.String("method", req.Method), zap.String("id", req.ID), zap.Any("panic", p.value), zap.Stack("stack"))
		return bridge.Failure(req.ID, bridge.ErrorShape{Message: "method " + req.Method + " failed", Code: CodeInternal})
	}
	if err != nil {
		var be *bridge.Error
		if errors.As(err, &be) {
			return bridge.Failure(req.ID, be.Shape())
		}
		return bridge.Failure(req.ID, bridge.ErrorShape{Message: err.Error()})
	}
	resp, err := bridge.Success(req.ID, result)
	if err != nil {
		return bridge.Failure(req.ID, bridge.ErrorShape{Message: "encode result: " + err.Error()})
	}
	return resp
}

type handlerPanic struct{ value any }

func (p *handlerPanic) Error() string { return fmt.Sprintf("handler panicked: %v", p.value) }

func run(handler HandlerFunc, c *Context) (result any, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &handlerPanic{value: v}
		}
	}()
	return handler(c)
}

func (h *Host) publish(ctx context.Context, m bridge.Message) error {
	b, err := bridge.Encode(m)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, h.replies, b).Err()
}
