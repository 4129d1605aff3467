package callgraph

import (
	"sort"

	log "github.com/rs/zerolog"

	"github.com/maxgio92/privtrace/pkg/registry"
)

// History holds the calls a function made during one of its invocations.
type History struct {
	// Iteration is the caller iteration this history belongs to.
	Iteration uint64
	// Seq orders histories of all functions chronologically.
	Seq uint64

	calls map[registry.ID]uint64
}

// Call is one callee tally of a history.
type Call struct {
	Callee registry.ID
	Count  uint64
}

// Calls returns the tallies ordered by callee id.
func (h *History) Calls() []Call {
	out := make([]Call, 0, len(h.calls))
	for callee, n := range h.calls {
		out = append(out, Call{Callee: callee, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Callee < out[j].Callee
	})

	return out
}

// Count returns how many times callee was called during this invocation.
func (h *History) Count(callee registry.ID) uint64 {
	return h.calls[callee]
}

// CallerTally is a caller invocation seen from the callee side.
type CallerTally struct {
	Caller    registry.ID
	Iteration uint64
	Count     uint64
}

// Recorder keeps, per function, the chronological list of its invocation
// histories.
type Recorder struct {
	regs      *registry.Registry
	histories map[registry.ID][]*History
	seq       uint64
	calls     uint64
	logger    log.Logger
}

type Option func(*Recorder)

func WithLogger(logger log.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func NewRecorder(regs *registry.Registry, opts ...Option) *Recorder {
	r := &Recorder{
		regs:      regs,
		histories: make(map[registry.ID][]*History),
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "callgraph").Logger()

	return r
}

// OnCall records that caller entered callee: the callee starts a new
// iteration with an empty history and the caller's current history counts
// one more call to callee.
func (r *Recorder) OnCall(caller, callee registry.ID) {
	// Both ids must be registered.
	r.regs.Get(caller)
	iteration := r.regs.BumpIteration(callee)
	r.histories[callee] = append(r.histories[callee], r.newHistory(iteration))

	current := r.current(caller)
	current.calls[callee]++
	r.calls++
}

// OnIndirectCall resolves target and records the call. It returns the
// callee id.
func (r *Recorder) OnIndirectCall(caller registry.ID, target uint64) registry.ID {
	callee := r.regs.Resolve(target)
	r.OnCall(caller, callee)

	return callee
}

// current returns the latest history of fn. A function that calls before
// ever being entered as a call target gets a root history at iteration 0.
func (r *Recorder) current(fn registry.ID) *History {
	hs := r.histories[fn]
	if len(hs) == 0 {
		h := r.newHistory(r.regs.Iteration(fn))
		r.histories[fn] = []*History{h}
		return h
	}
	return hs[len(hs)-1]
}

func (r *Recorder) newHistory(iteration uint64) *History {
	r.seq++
	return &History{
		Iteration: iteration,
		Seq:       r.seq,
		calls:     make(map[registry.ID]uint64),
	}
}

// Histories returns the histories of fn, oldest first.
func (r *Recorder) Histories(fn registry.ID) []*History {
	hs := r.histories[fn]
	out := make([]*History, len(hs))
	copy(out, hs)

	return out
}

// CallersOf returns, in chronological order, every caller invocation that
// called callee together with its call count.
func (r *Recorder) CallersOf(callee registry.ID) []CallerTally {
	type tally struct {
		CallerTally
		seq uint64
	}
	var tallies []tally
	for caller, hs := range r.histories {
		for _, h := range hs {
			if n := h.calls[callee]; n > 0 {
				tallies = append(tallies, tally{
					CallerTally: CallerTally{Caller: caller, Iteration: h.Iteration, Count: n},
					seq:         h.Seq,
				})
			}
		}
	}
	sort.Slice(tallies, func(i, j int) bool {
		return tallies[i].seq < tallies[j].seq
	})
	out := make([]CallerTally, len(tallies))
	for i, t := range tallies {
		out[i] = t.CallerTally
	}

	return out
}

// Calls returns the number of call edges recorded.
func (r *Recorder) Calls() uint64 {
	return r.calls
}
