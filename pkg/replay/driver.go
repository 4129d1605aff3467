package replay

import (
	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/privtrace/pkg/symtable"
	"github.com/maxgio92/privtrace/pkg/trace"
)

// Driver applies records to a tracer. Symbol declarations go to symbols,
// which must be part of the tracer's resolver for them to take effect.
type Driver struct {
	tracer  *trace.Tracer
	symbols *symtable.StaticSymTab
	unit    *trace.Unit
	applied uint64
	logger  log.Logger
}

type DriverOption func(*Driver)

func WithLogger(logger log.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = logger
	}
}

func NewDriver(tracer *trace.Tracer, symbols *symtable.StaticSymTab, opts ...DriverOption) *Driver {
	d := &Driver{
		tracer:  tracer,
		symbols: symbols,
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With().Str("component", "replay").Logger()

	return d
}

// Applied returns the number of records applied so far.
func (d *Driver) Applied() uint64 {
	return d.applied
}

// Apply executes rec against the tracer.
func (d *Driver) Apply(rec Record) error {
	if err := d.apply(rec); err != nil {
		return errors.Wrapf(err, "line %d", rec.Line)
	}
	d.applied++

	return nil
}

func (d *Driver) apply(rec Record) error {
	t := d.tracer
	switch rec.Op {
	case OpFunc:
		return d.symbols.AddFunc(rec.Str(0), rec.Arg(0), rec.Arg(1), rec.Str(1), rec.Str(2))
	case OpGlobal:
		return d.symbols.AddGlobal(rec.Str(0), rec.Arg(0), rec.Arg(1))
	case OpData:
		return d.symbols.AddSection(rec.Arg(0), rec.Arg(1), symtable.SectionData)
	case OpAlloc:
		t.OnAllocate(rec.Arg(0), rec.Arg(1))
	case OpFree:
		t.OnFree(rec.Arg(0))
	case OpRealloc:
		t.OnReallocate(rec.Arg(0), rec.Arg(1), rec.Arg(2))
	case OpUnit:
		if d.unit != nil {
			d.logger.Debug().Int("line", rec.Line).Msg("unit reopened before its end")
		}
		d.unit = t.BeginUnit()
	case OpCall:
		t.OnCall(t.ResolveFunc(rec.Arg(0)), t.ResolveFunc(rec.Arg(1)))
	case OpIndirectCall:
		t.OnIndirectCall(t.ResolveFunc(rec.Arg(0)), rec.Arg(1))
	default:
		return d.applyUnit(rec)
	}

	return nil
}

func (d *Driver) applyUnit(rec Record) error {
	u := d.unit
	if u == nil {
		return errors.Wrapf(ErrNoUnit, "%s", rec.Op)
	}
	switch rec.Op {
	case OpMark:
		u.Mark(rec.Arg(0), rec.Arg(1))
	case OpLoad:
		u.Load(rec.Str(0), rec.Arg(0), rec.Arg(1))
	case OpStore:
		u.Store(rec.Str(0), rec.Arg(0), rec.Arg(1))
	case OpModify:
		u.Modify(rec.Str(0), rec.Arg(0), rec.Arg(1))
	case OpExit, OpEnd, OpEndIndirect:
		kind, err := parseJump(rec.Str(0))
		if err != nil {
			return err
		}
		switch rec.Op {
		case OpExit:
			u.Exit(rec.Arg(0), kind)
		case OpEnd:
			u.End(rec.Arg(0), kind)
			d.unit = nil
		default:
			u.EndIndirect(rec.Arg(0), kind)
			d.unit = nil
		}
	default:
		return errors.Wrapf(ErrUnknownRecord, "%q", rec.Op)
	}

	return nil
}

// parseJump maps the optional transfer kind of exit and end records. An
// omitted kind is a plain jump.
func parseJump(s string) (trace.Jump, error) {
	switch s {
	case "", "jump":
		return trace.JumpBoring, nil
	case "call":
		return trace.JumpCall, nil
	case "ret":
		return trace.JumpRet, nil
	default:
		return 0, errors.Wrapf(ErrMalformed, "unknown transfer kind %q", s)
	}
}
