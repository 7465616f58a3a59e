package bridge

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces call identifiers. An id must not repeat while a call
// carrying it can still be pending.
type IDGenerator interface {
	NextID() string
}

// IDGeneratorFunc adapts a function, e.g. a deterministic sequence in tests.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) NextID() string { return f() }

// UUIDGenerator returns random UUIDs and falls back to a CounterGenerator when
// the random source fails.
type UUIDGenerator struct {
	fallback CounterGenerator
}

func (g *UUIDGenerator) NextID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return g.fallback.NextID()
	}
	return id.String()
}

// CounterGenerator: <host>-<unix millis>-<seq>. The timestamp keeps ids unique
// across restarts, the counter keeps them unique within one millisecond.
type CounterGenerator struct {
	seq atomic.Uint64
}

var idPrefix = func() string {
	h, _ := os.Hostname()
	if h == "" {
		h = "h"
	}
	return h + "-"
}()

func (g *CounterGenerator) NextID() string {
	n := g.seq.Add(1)
	return idPrefix + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.FormatUint(n, 36)
}
