package redislink

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mrjvadi/go-native-bridge/bridge"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// newRedis skips the test when no Redis answers at REDIS_ADDR.
func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:         getenv("REDIS_ADDR", "localhost:6379"),
		ReadTimeout:  0, // pub/sub: no deadline
		WriteTimeout: 200 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRespond(t *testing.T) {
	req := &bridge.Request{ID: "1", Method: "getUser", Params: json.RawMessage(`{"id":7}`)}

	t.Run("missing handler", func(t *testing.T) {
		resp := respond(req, nil, nil, zap.NewNop())
		if resp.OK || resp.Error.Code != CodeNotFound || !strings.Contains(resp.Error.Message, "getUser") {
			t.Fatalf("got %+v", resp.Error)
		}
	})

	t.Run("result", func(t *testing.T) {
		c := &Context{ctx: context.Background(), req: req}
		resp := respond(req, func(c *Context) (any, error) {
			var p struct {
				ID int `json:"id"`
			}
			if err := c.Bind(&p); err != nil {
				return nil, err
			}
			return map[string]any{"id": p.ID, "name": "Ada"}, nil
		}, c, zap.NewNop())
		if !resp.OK || string(resp.Result) != `{"id":7,"name":"Ada"}` {
			t.Fatalf("got %+v / %s", resp, resp.Result)
		}
	})

	t.Run("bridge error kept verbatim", func(t *testing.T) {
		resp := respond(req, func(*Context) (any, error) {
			return nil, &bridge.Error{Message: "no such user", Code: "E_USER", Data: json.RawMessage(`7`)}
		}, &Context{req: req}, zap.NewNop())
		if resp.OK || resp.Error.Message != "no such user" || resp.Error.Code != "E_USER" || string(resp.Error.Data) != "7" {
			t.Fatalf("got %+v", resp.Error)
		}
	})

	t.Run("handler panic", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		resp := respond(req, func(*Context) (any, error) {
			var m map[string]int
			m["boom"]++
			return nil, nil
		}, &Context{req: req}, zap.New(core))
		if resp.OK || resp.Error.Code != CodeInternal || resp.ID != "1" {
			t.Fatalf("got %+v", resp.Error)
		}
		if logs.FilterMessage("handler panicked").Len() != 1 {
			t.Fatalf("panic not logged")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		resp := respond(req, func(*Context) (any, error) {
			return nil, errors.New("db down")
		}, &Context{req: req}, zap.NewNop())
		if resp.OK || resp.Error.Message != "db down" || resp.Error.Code != "" {
			t.Fatalf("got %+v", resp.Error)
		}
	})
}

func TestChannels(t *testing.T) {
	req1, rep1 := Channels("app")
	req2, _ := Channels("app")
	if !strings.HasPrefix(req1, "app:requests:") || !strings.HasPrefix(rep1, "app:replies:") {
		t.Fatalf("channels = %q %q", req1, rep1)
	}
	if req1 == req2 {
		t.Fatalf("channel pairs repeat")
	}
}

// link wires a manager to a host over a real Redis.
func link(t *testing.T) (*bridge.Manager, *Host) {
	t.Helper()
	rdb := newRedis(t)
	logger := zaptest.NewLogger(t)
	requests, replies := Channels("test")

	ctx, cancel := context.WithCancel(context.Background())
	host := NewHost(rdb, requests, replies, WithLogger(logger), WithMaxJobs(8))
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- host.Run(ctx, ready) }()
	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("host: %v", err)
	}

	m := bridge.New(NewTransport(rdb, requests, WithLogger(logger)), bridge.WithLogger(logger), bridge.WithTimeout(2*time.Second))
	l := NewListener(rdb, replies, m, WithLogger(logger))
	if err := l.Start(ctx); err != nil {
		t.Fatalf("listener: %v", err)
	}

	t.Cleanup(func() {
		m.Destroy("test done")
		_ = l.Close()
		cancel()
		<-done
	})
	return m, host
}

func TestLink_RoundTrip(t *testing.T) {
	m, host := link(t)
	host.OnRequest("getUser", func(c *Context) (any, error) {
		var p struct {
			ID int `json:"id"`
		}
		if err := c.Bind(&p); err != nil {
			return nil, err
		}
		return map[string]any{"id": p.ID, "name": "Ada"}, nil
	})

	type user struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	got, err := bridge.Call[user](context.Background(), m, "getUser", map[string]int{"id": 7})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got.ID != 7 || got.Name != "Ada" {
		t.Fatalf("got %+v", got)
	}
}

func TestLink_UnknownMethod(t *testing.T) {
	m, _ := link(t)

	_, err := m.Invoke(context.Background(), "missing", nil)
	var be *bridge.Error
	if !errors.As(err, &be) || be.Kind != bridge.KindRemote || be.Code != CodeNotFound {
		t.Fatalf("err = %v", err)
	}
}

func TestLink_Events(t *testing.T) {
	m, host := link(t)

	got := make(chan int, 1)
	m.Subscribe("battery", func(p bridge.Payload) {
		var level int
		if err := p.Bind(&level); err == nil {
			got <- level
		}
	})
	if err := host.Emit(context.Background(), "battery", 80); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case level := <-got:
		if level != 80 {
			t.Fatalf("level = %d", level)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event not delivered")
	}
}

func TestLink_HandlerPanicAnswers(t *testing.T) {
	m, host := link(t)
	host.OnRequest("crash", func(*Context) (any, error) {
		panic("bad state")
	})
	host.OnRequest("ping", func(*Context) (any, error) {
		return "pong", nil
	})

	_, err := m.Invoke(context.Background(), "crash", nil)
	var be *bridge.Error
	if !errors.As(err, &be) || be.Kind != bridge.KindRemote || be.Code != CodeInternal {
		t.Fatalf("err = %v", err)
	}
	got, err := bridge.Call[string](context.Background(), m, "ping", nil)
	if err != nil || got != "pong" {
		t.Fatalf("host stopped serving after panic: %q %v", got, err)
	}
}
