package trace

import (
	"github.com/maxgio92/privtrace/pkg/registry"
)

// Jump is the kind of a control transfer leaving a block.
type Jump int

const (
	// JumpBoring is a plain branch. Crossing into another function this way
	// (a tail call or a fall-through) counts as entering it.
	JumpBoring Jump = iota
	JumpCall
	// JumpRet returns to a caller, whose invocation continues.
	JumpRet
)

func (j Jump) String() string {
	switch j {
	case JumpBoring:
		return "jump"
	case JumpCall:
		return "call"
	case JumpRet:
		return "ret"
	default:
		return "unknown"
	}
}

// enters reports whether the transfer starts a new invocation of a
// function other than the block's.
func (j Jump) enters() bool {
	return j == JumpBoring || j == JumpCall
}

// Unit follows one straight-line block of guest instructions. Every
// reference of the block is attributed to the function owning its most
// recent instruction mark; a mark in a different function is a fall-through
// call into it.
type Unit struct {
	t       *Tracer
	fn      registry.ID
	started bool
}

// BeginUnit starts a new block. The event buffer is empty at every block
// boundary.
func (t *Tracer) BeginUnit() *Unit {
	t.events.Flush()

	return &Unit{t: t}
}

// Func returns the function the block is currently attributed to.
func (u *Unit) Func() registry.ID {
	return u.fn
}

// Mark announces the instruction at addr spanning size bytes.
func (u *Unit) Mark(addr, size uint64) {
	fn := u.t.ResolveFunc(addr)
	switch {
	case !u.started:
		u.fn = fn
		u.started = true
	case fn != u.fn:
		u.t.Boundary()
		u.t.OnCall(u.fn, fn)
		u.fn = fn
	}
	u.t.Fetch(addr, size, u.fn)
}

func (u *Unit) Load(expr string, addr, size uint64) {
	u.t.Read(expr, addr, size, u.fn)
}

func (u *Unit) Store(expr string, addr, size uint64) {
	u.t.Write(expr, addr, size, u.fn)
}

// Modify is a load followed by a store through the same expression.
func (u *Unit) Modify(expr string, addr, size uint64) {
	u.Load(expr, addr, size)
	u.Store(expr, addr, size)
}

// Exit leaves the block through a side exit to target.
func (u *Unit) Exit(target uint64, kind Jump) {
	u.transfer(target, kind)
}

// End closes the block with a direct transfer to target.
func (u *Unit) End(target uint64, kind Jump) {
	u.transfer(target, kind)
}

// EndIndirect closes the block with a transfer to a computed target.
func (u *Unit) EndIndirect(target uint64, kind Jump) {
	u.t.Boundary()
	if !kind.enters() || u.t.ResolveFunc(target) == u.fn {
		return
	}
	u.t.OnIndirectCall(u.fn, target)
}

func (u *Unit) transfer(target uint64, kind Jump) {
	u.t.Boundary()
	if !kind.enters() {
		return
	}
	if fn := u.t.ResolveFunc(target); fn != u.fn {
		u.t.OnCall(u.fn, fn)
	}
}
