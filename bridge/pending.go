package bridge

import (
	"sync"
	"time"
)

type outcome struct {
	value any
	err   error
}

// pendingCall is owned by the store until it is removed; whoever removes it
// also stops its timer and delivers the single outcome.
type pendingCall struct {
	id     string
	method string
	done   chan outcome // cap 1
	timer  *time.Timer
}

func (c *pendingCall) finish(o outcome) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.done <- o
}

// pendingStore maps call id -> in-flight call.
type pendingStore struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingStore() *pendingStore {
	return &pendingStore{calls: make(map[string]*pendingCall)}
}

// register stores a call; timeout > 0 arms a timer that fails it with a
// TimeoutError. A live call with the same id is replaced and fails as a
// transport error so it cannot wait forever.
func (s *pendingStore) register(id, method string, timeout time.Duration) *pendingCall {
	c := &pendingCall{id: id, method: method, done: make(chan outcome, 1)}

	s.mu.Lock()
	prev := s.calls[id]
	s.calls[id] = c
	if timeout > 0 {
		c.timer = time.AfterFunc(timeout, func() {
			if s.remove(id, c) {
				c.finish(outcome{err: timeoutError(method)})
			}
		})
	}
	s.mu.Unlock()

	if prev != nil {
		prev.finish(outcome{err: transportError(prev.method, errDuplicateID)})
	}
	return c
}

// take removes and returns the call for id, or nil.
func (s *pendingStore) take(id string) *pendingCall {
	s.mu.Lock()
	c, ok := s.calls[id]
	if ok {
		delete(s.calls, id)
	}
	s.mu.Unlock()
	return c
}

// remove deletes id only while it still maps to c.
func (s *pendingStore) remove(id string, c *pendingCall) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls[id] != c {
		return false
	}
	delete(s.calls, id)
	return true
}

// settle completes the call for resp.ID; unknown or already settled ids are a
// no-op and report false.
func (s *pendingStore) settle(resp *Response) bool {
	c := s.take(resp.ID)
	if c == nil {
		return false
	}
	if resp.OK {
		c.finish(outcome{value: resp.Result})
	} else {
		c.finish(outcome{err: remoteError(c.method, resp.Error)})
	}
	return true
}

// resolve completes the call for id with a raw value.
func (s *pendingStore) resolve(id string, value any) bool {
	c := s.take(id)
	if c == nil {
		return false
	}
	c.finish(outcome{value: value})
	return true
}

// discard drops c without delivering anything; the caller already owns the
// failure it will report.
func (s *pendingStore) discard(c *pendingCall) {
	if s.remove(c.id, c) && c.timer != nil {
		c.timer.Stop()
	}
}

// drain fails every remaining call with a DestroyedError and empties the store.
func (s *pendingStore) drain(reason string) int {
	s.mu.Lock()
	calls := s.calls
	s.calls = make(map[string]*pendingCall)
	s.mu.Unlock()

	for _, c := range calls {
		c.finish(outcome{err: destroyedError(c.method, reason)})
	}
	return len(calls)
}

func (s *pendingStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
