package registry

import (
	"path"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/privtrace/pkg/symtable"
)

// ID is the dense identifier of a function. IDs are assigned in the
// order functions are first resolved and never reused.
type ID uint64

const (
	// UnknownID is the bucket for addresses that have no symbol.
	UnknownID ID = 0

	UnknownName = "<Unknown>"
)

// Function describes one resolved function of the traced program.
type Function struct {
	ID   ID
	Name string
	File string
	Dir  string

	// Iteration counts the times the function has been entered as a
	// call target.
	Iteration uint64
}

// Location returns the source location of the function, if known.
func (f *Function) Location() string {
	if f.Dir == "" || f.File == "" {
		return f.Dir + f.File
	}
	return path.Join(f.Dir, f.File)
}

// NameResolver resolves an instruction address to the function
// symbol covering it.
type NameResolver interface {
	ResolveName(addr uint64) (symtable.Symbol, bool)
}

// Registry interns functions by name and hands out dense ids.
type Registry struct {
	resolver NameResolver
	byName   map[string]*Function
	funcs    []*Function
	logger   log.Logger
}

type Option func(*Registry)

func WithLogger(logger log.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New returns a registry holding only the unknown function.
// A nil resolver makes every address resolve to UnknownID.
func New(resolver NameResolver, opts ...Option) *Registry {
	r := &Registry{
		resolver: resolver,
		byName:   make(map[string]*Function),
		funcs:    make([]*Function, 0, 128),
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "registry").Logger()

	unknown := &Function{ID: UnknownID, Name: UnknownName}
	r.funcs = append(r.funcs, unknown)
	r.byName[unknown.Name] = unknown

	return r
}

// Resolve returns the id of the function containing addr, creating the
// function record on first sight. Addresses without a symbol resolve to
// UnknownID and create nothing.
func (r *Registry) Resolve(addr uint64) ID {
	if r.resolver == nil {
		return UnknownID
	}
	sym, ok := r.resolver.ResolveName(addr)
	if !ok || sym.Name == "" {
		r.logger.Trace().Uint64("addr", addr).Msg("no symbol for address")
		return UnknownID
	}

	return r.Intern(sym)
}

// Intern returns the id for the named function, registering it if needed.
func (r *Registry) Intern(sym symtable.Symbol) ID {
	if fn, ok := r.byName[sym.Name]; ok {
		return fn.ID
	}
	fn := &Function{
		ID:   ID(len(r.funcs)),
		Name: sym.Name,
		File: sym.File,
		Dir:  sym.Dir,
	}
	r.funcs = append(r.funcs, fn)
	r.byName[fn.Name] = fn
	r.logger.Debug().Uint64("id", uint64(fn.ID)).Str("name", fn.Name).Msg("registered function")

	return fn.ID
}

// Lookup returns the function with the given id.
func (r *Registry) Lookup(id ID) (*Function, bool) {
	if uint64(id) >= uint64(len(r.funcs)) {
		return nil, false
	}
	return r.funcs[id], true
}

// Get is like Lookup but treats an unregistered id as a broken caller
// contract and panics.
func (r *Registry) Get(id ID) *Function {
	fn, ok := r.Lookup(id)
	if !ok {
		panic(errors.Wrapf(ErrUnknownFunction, "id %d", id))
	}
	return fn
}

// ByName returns the function registered under name.
func (r *Registry) ByName(name string) (*Function, bool) {
	fn, ok := r.byName[name]
	return fn, ok
}

// BumpIteration marks one more entry into the function and returns the
// new iteration.
func (r *Registry) BumpIteration(id ID) uint64 {
	fn := r.Get(id)
	fn.Iteration++

	return fn.Iteration
}

// Iteration returns the current iteration of the function.
func (r *Registry) Iteration(id ID) uint64 {
	return r.Get(id).Iteration
}

// Functions returns all functions in id order.
func (r *Registry) Functions() []*Function {
	out := make([]*Function, len(r.funcs))
	copy(out, r.funcs)

	return out
}

func (r *Registry) Len() int {
	return len(r.funcs)
}
