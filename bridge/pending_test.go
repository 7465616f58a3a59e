package bridge

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPendingStore_SettleOnce(t *testing.T) {
	s := newPendingStore()
	c := s.register("1", "m", time.Minute)

	if !s.settle(&Response{ID: "1", OK: true, Result: []byte(`1`)}) {
		t.Fatalf("first settle reported no call")
	}
	if s.settle(&Response{ID: "1", OK: true, Result: []byte(`2`)}) {
		t.Fatalf("second settle found a call")
	}
	if s.resolve("1", 3) {
		t.Fatalf("resolve after settle found a call")
	}
	if s.settle(&Response{ID: "unknown", OK: true}) {
		t.Fatalf("unknown id settled")
	}

	o := <-c.done
	if string(o.value.(json.RawMessage)) != "1" {
		t.Fatalf("value = %v", o.value)
	}
	select {
	case extra := <-c.done:
		t.Fatalf("second outcome delivered: %+v", extra)
	default:
	}
}

func TestPendingStore_TimeoutRemoves(t *testing.T) {
	s := newPendingStore()
	c := s.register("1", "getUser", 10*time.Millisecond)

	select {
	case o := <-c.done:
		if !errors.Is(o.err, ErrTimeout) {
			t.Fatalf("err = %v", o.err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timer did not fire")
	}
	if s.len() != 0 {
		t.Fatalf("timed out call still stored")
	}
	if s.settle(&Response{ID: "1", OK: true}) {
		t.Fatalf("late response settled a timed out call")
	}
}

func TestPendingStore_DiscardStopsTimer(t *testing.T) {
	s := newPendingStore()
	c := s.register("1", "m", 10*time.Millisecond)
	s.discard(c)

	select {
	case o := <-c.done:
		t.Fatalf("discarded call received %+v", o)
	case <-time.After(40 * time.Millisecond):
	}
}

func TestPendingStore_Drain(t *testing.T) {
	s := newPendingStore()
	calls := []*pendingCall{
		s.register("1", "a", 0),
		s.register("2", "b", time.Minute),
	}
	if n := s.drain("bye"); n != 2 {
		t.Fatalf("drained %d", n)
	}
	for _, c := range calls {
		o := <-c.done
		var be *Error
		if !errors.As(o.err, &be) || be.Kind != KindDestroyed || be.Message != "bye" || be.Method != c.method {
			t.Fatalf("err = %v", o.err)
		}
	}
	if s.len() != 0 || s.drain("again") != 0 {
		t.Fatalf("store not empty after drain")
	}
}

func TestPendingStore_ReusedIDFailsPrevious(t *testing.T) {
	s := newPendingStore()
	first := s.register("dup", "a", 0)
	second := s.register("dup", "b", 0)

	o := <-first.done
	if !errors.Is(o.err, ErrTransport) {
		t.Fatalf("replaced call err = %v", o.err)
	}
	s.resolve("dup", "ok")
	if o := <-second.done; o.value != "ok" {
		t.Fatalf("second call got %+v", o)
	}
}
