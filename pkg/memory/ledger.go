package memory

import (
	log "github.com/rs/zerolog"

	"github.com/maxgio92/privtrace/pkg/registry"
	"github.com/maxgio92/privtrace/pkg/symtable"
)

// IterationSource returns the current iteration of a function.
type IterationSource interface {
	Iteration(id registry.ID) uint64
}

// StaticResolver locates statically allocated data the allocator never
// reports.
type StaticResolver interface {
	ResolveGlobal(addr uint64) (base, size uint64, ok bool)
	SectionKind(addr uint64) symtable.SectionKind
}

// Ledger attributes bytes read and written to (object, function,
// iteration) tuples.
type Ledger struct {
	tracker *Tracker
	iters   IterationSource
	statics StaticResolver
	logger  log.Logger

	synthesized int
}

type LedgerOption func(*Ledger)

func WithStaticResolver(statics StaticResolver) LedgerOption {
	return func(l *Ledger) {
		l.statics = statics
	}
}

func WithLedgerLogger(logger log.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func NewLedger(tracker *Tracker, iters IterationSource, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		tracker: tracker,
		iters:   iters,
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "ledger").Logger()

	return l
}

// Synthesized returns the number of objects created for static data.
func (l *Ledger) Synthesized() int {
	return l.synthesized
}

// Record adds the byte counts to the current iteration of fn against o.
// A nil object or an empty access records nothing.
func (l *Ledger) Record(o *Object, fn registry.ID, read, written uint64) {
	if o == nil || (read == 0 && written == 0) {
		return
	}
	o.record(fn, l.iters.Iteration(fn), read, written)
}

// Update resolves addr to an object and records the access against it.
// It returns the object charged, or nil if addr is not tracked memory.
func (l *Ledger) Update(addr uint64, fn registry.ID, read, written uint64) *Object {
	if read == 0 && written == 0 {
		return nil
	}
	o := l.resolve(addr, max(read, written))
	l.Record(o, fn, read, written)

	return o
}

// resolve finds the live object covering addr, falling back to objects
// synthesized for global symbols and data sections.
func (l *Ledger) resolve(addr, size uint64) *Object {
	if o := l.tracker.Find(addr); o != nil {
		return o
	}
	if l.statics == nil {
		return nil
	}
	if base, gsize, ok := l.statics.ResolveGlobal(addr); ok {
		return l.synthesize(addr, base, gsize, "global")
	}
	if l.statics.SectionKind(addr) == symtable.SectionData {
		return l.synthesize(addr, addr, size, "data section")
	}

	return nil
}

// synthesize tracks the static region [base, base+size) around addr. The
// region is clipped to the gap between the live objects surrounding addr.
func (l *Ledger) synthesize(addr, base, size uint64, kind string) *Object {
	index := l.tracker.Index()
	if err := index.Check(base, size); err != nil {
		l.logger.Debug().Err(err).Str("kind", kind).Msg("static object not tracked")
		return nil
	}
	base, size = index.Gap(addr, base, size)
	l.synthesized++
	l.logger.Trace().Uint64("base", base).Uint64("size", size).Msgf("tracking %s object", kind)

	return l.tracker.Allocate(base, size)
}
