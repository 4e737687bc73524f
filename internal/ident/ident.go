package ident

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"
)

// Clock supplies the wall-clock component of generated ids. Tests override
// it to pin timestamps.
type Clock func() time.Time

// Generator produces ids that stay unique across concurrently-acting peers
// without central coordination: a per-generator monotonic counter combined
// with unix millis and a random session-scoped suffix.
type Generator struct {
	counter atomic.Uint64
	seed    uint32
	clock   Clock
}

// NewGenerator constructs a generator with a fresh random session seed.
func NewGenerator() *Generator {
	return NewGeneratorWithClock(time.Now)
}

// NewGeneratorWithClock constructs a generator using the provided clock.
func NewGeneratorWithClock(clock Clock) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{seed: rand.Uint32(), clock: clock}
}

// Next returns a new id with the given prefix, e.g. "msg-1700000000000-42-1a2b3c4d".
func (g *Generator) Next(prefix string) string {
	if g == nil {
		return ""
	}
	count := g.counter.Add(1)
	return fmt.Sprintf("%s-%d-%d-%08x", prefix, g.clock().UnixMilli(), count, g.seed)
}

// Counter reports how many ids the generator has handed out.
func (g *Generator) Counter() uint64 {
	if g == nil {
		return 0
	}
	return g.counter.Load()
}
