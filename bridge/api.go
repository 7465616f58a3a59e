package bridge

import (
	"context"
	"fmt"
)

// Transport is the single capability the host provides. Send must deliver req
// to the host and report how the answer will arrive:
//
//   - nil or NoReturn(): later, through Manager.HandleMessage
//   - Immediate(v): now; v is a Response (object or JSON text) or the plain result
//   - Future(ch): once ch yields a Completion, interpreted like Immediate
//
// An error from Send fails the call as a transport error.
type Transport interface {
	Send(ctx context.Context, req *Request) (Return, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (Return, error)

func (f TransportFunc) Send(ctx context.Context, req *Request) (Return, error) {
	return f(ctx, req)
}

// Return is one of NoReturn, Immediate or Future.
type Return interface {
	isReturn()
}

type noReturn struct{}

type immediate struct {
	value any
}

type future struct {
	ch <-chan Completion
}

func (noReturn) isReturn()  {}
func (immediate) isReturn() {}
func (future) isReturn()    {}

// NoReturn: the response will arrive as an inbound message.
func NoReturn() Return { return noReturn{} }

// Immediate: the host answered synchronously.
func Immediate(v any) Return { return immediate{value: v} }

// Future: the host answers once ch yields.
func Future(ch <-chan Completion) Return { return future{ch: ch} }

// Completion settles a Future. The zero value (or a closed channel) means the
// host produced no value and the response will arrive as an inbound message.
type Completion struct {
	value any
	err   error
	set   bool
}

// Resolved completes a Future with v.
func Resolved(v any) Completion { return Completion{value: v, set: true} }

// Rejected fails a Future; the call fails as a transport error.
func Rejected(err error) Completion { return Completion{err: err} }

// Call invokes method and binds the result into T.
func Call[T any](ctx context.Context, m *Manager, method string, params any, opts ...CallOption) (T, error) {
	var out T
	reply, err := m.Invoke(ctx, method, params, opts...)
	if err != nil {
		return out, err
	}
	if err := reply.Bind(&out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil
}

// CallSync is Call over InvokeSync.
func CallSync[T any](m *Manager, method string, params any) (T, error) {
	var out T
	reply, err := m.InvokeSync(method, params)
	if err != nil {
		return out, err
	}
	if err := reply.Bind(&out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil
}
