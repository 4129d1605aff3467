package coalesce

import (
	"github.com/pkg/errors"

	"github.com/maxgio92/privtrace/pkg/registry"
)

const (
	// MinCapacity is the smallest buffer that can still merge a read
	// with the following write.
	MinCapacity     = 2
	DefaultCapacity = 4
)

type Kind int

const (
	Fetch Kind = iota
	Read
	Write
	Modify
)

func (k Kind) String() string {
	switch k {
	case Fetch:
		return "fetch"
	case Read:
		return "read"
	case Write:
		return "write"
	case Modify:
		return "modify"
	default:
		return "unknown"
	}
}

// Event is a pending memory reference.
type Event struct {
	Kind Kind
	// Expr identifies the address expression within a unit. Events with
	// an empty Expr are compared by address.
	Expr string
	Addr uint64
	Size uint64
	Func registry.ID
}

func (e Event) sameLocation(expr string, addr uint64) bool {
	return e.Expr == expr && e.Addr == addr
}

// Sink receives flushed events.
type Sink interface {
	Load(addr, size uint64, fn registry.ID)
	Store(addr, size uint64, fn registry.ID)
	Modify(addr, size uint64, fn registry.ID)
}

type Stats struct {
	Committed uint64
	Merged    uint64
	Flushes   uint64
}

// Coalescer buffers memory references of a unit so that a write
// immediately following a read of the same location and size is committed
// as a single modify.
type Coalescer struct {
	sink     Sink
	capacity int
	events   []Event
	stats    Stats
}

type Option func(*Coalescer)

func WithCapacity(capacity int) Option {
	return func(c *Coalescer) {
		c.capacity = capacity
	}
}

func New(sink Sink, opts ...Option) (*Coalescer, error) {
	c := &Coalescer{
		sink:     sink,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.capacity < MinCapacity {
		return nil, errors.Wrapf(ErrInvalidCapacity, "%d", c.capacity)
	}
	c.events = make([]Event, 0, c.capacity)

	return c, nil
}

// Fetch buffers an instruction fetch. Fetches are never committed; they
// only separate references of different instructions.
func (c *Coalescer) Fetch(addr, size uint64, fn registry.ID) {
	c.add(Event{Kind: Fetch, Addr: addr, Size: size, Func: fn})
}

// Read buffers a load. Empty loads are dropped.
func (c *Coalescer) Read(expr string, addr, size uint64, fn registry.ID) {
	if size == 0 {
		return
	}
	c.add(Event{Kind: Read, Expr: expr, Addr: addr, Size: size, Func: fn})
}

// Write buffers a store, merging it into the preceding read when both
// reference the same location with the same size.
func (c *Coalescer) Write(expr string, addr, size uint64, fn registry.ID) {
	if size == 0 {
		return
	}
	if n := len(c.events); n > 0 {
		last := &c.events[n-1]
		if last.Kind == Read && last.Size == size && last.Func == fn && last.sameLocation(expr, addr) {
			last.Kind = Modify
			c.stats.Merged++
			return
		}
	}
	c.add(Event{Kind: Write, Expr: expr, Addr: addr, Size: size, Func: fn})
}

func (c *Coalescer) add(e Event) {
	if len(c.events) == c.capacity {
		c.Flush()
	}
	c.events = append(c.events, e)
}

// Flush commits the buffered events in order and empties the buffer.
func (c *Coalescer) Flush() {
	for _, e := range c.events {
		switch e.Kind {
		case Fetch:
			continue
		case Read:
			c.sink.Load(e.Addr, e.Size, e.Func)
		case Write:
			c.sink.Store(e.Addr, e.Size, e.Func)
		case Modify:
			c.sink.Modify(e.Addr, e.Size, e.Func)
		}
		c.stats.Committed++
	}
	c.events = c.events[:0]
	c.stats.Flushes++
}

// Pending returns a copy of the buffered events.
func (c *Coalescer) Pending() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)

	return out
}

func (c *Coalescer) Capacity() int {
	return c.capacity
}

func (c *Coalescer) Stats() Stats {
	return c.stats
}
