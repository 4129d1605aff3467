package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/maxgio92/privtrace/pkg/callgraph"
	"github.com/maxgio92/privtrace/pkg/memory"
	"github.com/maxgio92/privtrace/pkg/registry"
)

// Emitter renders the function table, the call histories and the
// per-object access tables.
type Emitter struct {
	regs    *registry.Registry
	tracker *memory.Tracker
	calls   *callgraph.Recorder

	traceMem bool
	format   Format
	logger   log.Logger
}

type Option func(*Emitter)

// WithCallHistories includes the call histories of rec.
func WithCallHistories(rec *callgraph.Recorder) Option {
	return func(e *Emitter) {
		e.calls = rec
	}
}

// WithMemory includes the object access tables.
func WithMemory(traceMem bool) Option {
	return func(e *Emitter) {
		e.traceMem = traceMem
	}
}

func WithFormat(format Format) Option {
	return func(e *Emitter) {
		e.format = format
	}
}

func WithLogger(logger log.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger
	}
}

func NewEmitter(regs *registry.Registry, tracker *memory.Tracker, opts ...Option) *Emitter {
	e := &Emitter{
		regs:     regs,
		tracker:  tracker,
		traceMem: true,
		format:   FormatText,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "report").Logger()

	return e
}

// Build snapshots the tracked state. Only objects accessed by more than
// one function are included: live objects by address, then retired objects
// in retirement order.
func (e *Emitter) Build() *Document {
	doc := new(Document)
	for _, fn := range e.regs.Functions() {
		rec := FunctionRecord{
			ID:        uint64(fn.ID),
			Name:      fn.Name,
			Location:  fn.Location(),
			Iteration: fn.Iteration,
		}
		if e.calls != nil {
			for _, h := range e.calls.Histories(fn.ID) {
				hr := HistoryRecord{Iteration: h.Iteration}
				for _, c := range h.Calls() {
					hr.Calls = append(hr.Calls, CallRecord{Callee: uint64(c.Callee), Count: c.Count})
				}
				rec.Histories = append(rec.Histories, hr)
			}
		}
		doc.Functions = append(doc.Functions, rec)
	}
	if !e.traceMem || e.tracker == nil {
		return doc
	}

	objs := e.tracker.Index().Objects()
	objs = append(objs, e.tracker.Retired().Objects()...)
	for _, o := range objs {
		if o.Accessors() <= 1 {
			continue
		}
		rec := ObjectRecord{Base: o.Base, Size: o.Size, Retired: o.Retired()}
		for _, entry := range o.Entries() {
			for _, v := range entry.Versions() {
				rec.Accesses = append(rec.Accesses, AccessRecord{
					Func:         uint64(entry.Func),
					Iteration:    v.Iteration,
					BytesRead:    v.BytesRead,
					BytesWritten: v.BytesWritten,
				})
			}
		}
		doc.Objects = append(doc.Objects, rec)
	}

	return doc
}

// Emit writes the report to w. Once written, the access tables of retired
// objects are released, since no later access can reach them.
func (e *Emitter) Emit(w io.Writer) error {
	doc := e.Build()
	if err := e.write(w, doc); err != nil {
		return err
	}
	if e.traceMem && e.tracker != nil {
		for _, o := range e.tracker.Retired().Objects() {
			o.Release()
		}
		dropped := e.tracker.Retired().Compact()
		e.logger.Debug().Int("released", dropped).Msg("released retired objects")
	}

	return nil
}

func (e *Emitter) write(w io.Writer, doc *Document) error {
	switch e.format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return errors.Wrap(encoder.Encode(doc), "failed to encode JSON report")
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		if err := encoder.Encode(doc); err != nil {
			return errors.Wrap(err, "failed to encode YAML report")
		}
		return errors.Wrap(encoder.Close(), "failed to encode YAML report")
	case FormatText, "":
		return WriteText(w, doc)
	default:
		return errors.Wrapf(ErrUnknownFormat, "%q", e.format)
	}
}

// WriteText writes doc in the line-oriented text format.
func WriteText(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	for _, fn := range doc.Functions {
		fmt.Fprintf(bw, "FUNC: %d %s (%s)\n", fn.ID, fn.Name, fn.Location)
		for _, h := range fn.Histories {
			fmt.Fprintf(bw, "  ITERATION: %d\n", h.Iteration)
			for _, c := range h.Calls {
				fmt.Fprintf(bw, "    CALL: %d, %d\n", c.Callee, c.Count)
			}
		}
	}
	for _, o := range doc.Objects {
		fmt.Fprintf(bw, "ADDR: %#x\n", o.Base)
		for _, a := range o.Accesses {
			fmt.Fprintf(bw, "  ACCESS: %d, iter:%d, %d, %d\n", a.Func, a.Iteration, a.BytesRead, a.BytesWritten)
		}
	}

	return errors.Wrap(bw.Flush(), "failed to write report")
}
