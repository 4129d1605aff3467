package trace

import (
	"github.com/pkg/errors"

	"github.com/maxgio92/privtrace/pkg/callgraph"
	"github.com/maxgio92/privtrace/pkg/coalesce"
	"github.com/maxgio92/privtrace/pkg/memory"
	"github.com/maxgio92/privtrace/pkg/registry"
	"github.com/maxgio92/privtrace/pkg/report"
)

// Tracer owns all the state of a traced execution. Its methods are the
// callouts of the host instrumentation framework and must be invoked from
// a single goroutine.
type Tracer struct {
	regs    *registry.Registry
	tracker *memory.Tracker
	ledger  *memory.Ledger
	calls   *callgraph.Recorder
	events  *coalesce.Coalescer
	emitter *report.Emitter

	boundary  map[string]struct{}
	triggers  map[registry.ID]bool
	segments  int
	finalized bool
	counters  counters

	*TracerOptions
}

type counters struct {
	allocs       uint64
	frees        uint64
	reallocs     uint64
	bytesRead    uint64
	bytesWritten uint64
}

func NewTracer(opts ...TracerOpt) (*Tracer, error) {
	t := &Tracer{
		TracerOptions: defaultTracerOptions(),
		boundary:      make(map[string]struct{}),
		triggers:      make(map[registry.ID]bool),
	}
	for _, opt := range opts {
		opt(t.TracerOptions)
	}
	if !t.traceMem && !t.traceCalls {
		return nil, ErrNothingToTrace
	}
	t.logger = t.logger.With().Str("component", "tracer").Logger()

	for _, name := range t.boundaryFuncs {
		t.boundary[name] = struct{}{}
	}

	var err error
	t.regs = registry.New(t.resolver, registry.WithLogger(t.logger))
	t.tracker, err = memory.NewTracker(t.pageSize, memory.WithTrackerLogger(t.logger))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create object tracker")
	}

	ledgerOpts := []memory.LedgerOption{memory.WithLedgerLogger(t.logger)}
	if t.resolver != nil {
		ledgerOpts = append(ledgerOpts, memory.WithStaticResolver(t.resolver))
	}
	t.ledger = memory.NewLedger(t.tracker, t.regs, ledgerOpts...)
	t.calls = callgraph.NewRecorder(t.regs, callgraph.WithLogger(t.logger))

	t.events, err = coalesce.New(&ledgerSink{t}, coalesce.WithCapacity(t.eventBufSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event buffer")
	}

	emitterOpts := []report.Option{
		report.WithMemory(t.traceMem),
		report.WithFormat(t.format),
		report.WithLogger(t.logger),
	}
	if t.traceCalls {
		emitterOpts = append(emitterOpts, report.WithCallHistories(t.calls))
	}
	t.emitter = report.NewEmitter(t.regs, t.tracker, emitterOpts...)

	t.logger.Debug().
		Bool("trace_mem", t.traceMem).
		Bool("trace_calls", t.traceCalls).
		Strs("boundary_functions", t.boundaryFuncs).
		Msg("tracer initialized")

	return t, nil
}

func (t *Tracer) Registry() *registry.Registry {
	return t.regs
}

func (t *Tracer) Tracker() *memory.Tracker {
	return t.tracker
}

func (t *Tracer) Recorder() *callgraph.Recorder {
	return t.calls
}

// ResolveFunc returns the id of the function containing addr.
func (t *Tracer) ResolveFunc(addr uint64) registry.ID {
	return t.regs.Resolve(addr)
}

// OnAllocate registers a new heap block of size bytes at addr.
func (t *Tracer) OnAllocate(addr, size uint64) {
	if !t.traceMem {
		return
	}
	t.counters.allocs++
	t.tracker.Allocate(addr, size)
}

// OnFree retires the heap block at addr. Unknown addresses are ignored.
func (t *Tracer) OnFree(addr uint64) {
	if !t.traceMem {
		return
	}
	t.counters.frees++
	t.tracker.Free(addr)
}

// OnReallocate moves the block at oldAddr to newAddr with the new size,
// keeping its access history.
func (t *Tracer) OnReallocate(oldAddr, newAddr, size uint64) {
	if !t.traceMem {
		return
	}
	t.counters.reallocs++
	t.tracker.Reallocate(oldAddr, newAddr, size)
}

// Fetch buffers an instruction fetch of fn.
func (t *Tracer) Fetch(addr, size uint64, fn registry.ID) {
	if !t.traceMem {
		return
	}
	t.events.Fetch(addr, size, fn)
}

// Read buffers a load by fn. expr identifies the address expression so that
// a following store through the same expression merges into a modify.
func (t *Tracer) Read(expr string, addr, size uint64, fn registry.ID) {
	if !t.traceMem {
		return
	}
	t.events.Read(expr, addr, size, fn)
}

func (t *Tracer) Write(expr string, addr, size uint64, fn registry.ID) {
	if !t.traceMem {
		return
	}
	t.events.Write(expr, addr, size, fn)
}

// Boundary commits every buffered event.
func (t *Tracer) Boundary() {
	t.events.Flush()
}

// TraceLoad attributes a load straight to the ledger.
func (t *Tracer) TraceLoad(addr, size uint64, fn registry.ID) {
	if !t.traceMem {
		return
	}
	t.counters.bytesRead += size
	t.ledger.Update(addr, fn, size, 0)
}

func (t *Tracer) TraceStore(addr, size uint64, fn registry.ID) {
	if !t.traceMem {
		return
	}
	t.counters.bytesWritten += size
	t.ledger.Update(addr, fn, 0, size)
}

func (t *Tracer) TraceModify(addr, size uint64, fn registry.ID) {
	if !t.traceMem {
		return
	}
	t.counters.bytesRead += size
	t.counters.bytesWritten += size
	t.ledger.Update(addr, fn, size, size)
}

// OnCall records a direct call. The callee always enters a new iteration;
// the call history is kept only when call tracing is enabled. Entering a
// boundary function writes a report segment.
func (t *Tracer) OnCall(caller, callee registry.ID) {
	if t.traceCalls {
		t.calls.OnCall(caller, callee)
	} else {
		t.regs.BumpIteration(callee)
	}
	if t.traceMem && t.isBoundary(callee) {
		t.flushSegment()
	}
}

// OnIndirectCall resolves target and records the call like OnCall.
func (t *Tracer) OnIndirectCall(caller registry.ID, target uint64) registry.ID {
	callee := t.regs.Resolve(target)
	t.OnCall(caller, callee)

	return callee
}

func (t *Tracer) isBoundary(fn registry.ID) bool {
	if len(t.boundary) == 0 {
		return false
	}
	if hit, ok := t.triggers[fn]; ok {
		return hit
	}
	_, hit := t.boundary[t.regs.Get(fn).Name]
	t.triggers[fn] = hit

	return hit
}

// ledgerSink commits coalesced events to the access ledger.
type ledgerSink struct {
	t *Tracer
}

func (s *ledgerSink) Load(addr, size uint64, fn registry.ID) {
	s.t.TraceLoad(addr, size, fn)
}

func (s *ledgerSink) Store(addr, size uint64, fn registry.ID) {
	s.t.TraceStore(addr, size, fn)
}

func (s *ledgerSink) Modify(addr, size uint64, fn registry.ID) {
	s.t.TraceModify(addr, size, fn)
}
