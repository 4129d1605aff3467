package memory

import (
	log "github.com/rs/zerolog"
)

// Tracker drives the object lifecycle: it owns the live index and the
// retired arena and moves objects from one to the other.
type Tracker struct {
	index   *Index
	retired *Retired
	logger  log.Logger
}

type TrackerOption func(*Tracker)

func WithTrackerLogger(logger log.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func NewTracker(pageSize uint64, opts ...TrackerOption) (*Tracker, error) {
	index, err := NewIndex(pageSize)
	if err != nil {
		return nil, err
	}
	t := &Tracker{
		index:   index,
		retired: new(Retired),
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str("component", "tracker").Logger()

	return t, nil
}

func (t *Tracker) Index() *Index {
	return t.index
}

func (t *Tracker) Retired() *Retired {
	return t.retired
}

// Find returns the live object covering addr.
func (t *Tracker) Find(addr uint64) *Object {
	return t.index.Find(addr)
}

// Allocate starts tracking [addr, addr+size). A range the index cannot
// hold is not tracked and nil is returned.
func (t *Tracker) Allocate(addr, size uint64) *Object {
	if err := t.index.Check(addr, size); err != nil {
		t.logger.Warn().Err(err).Msg("allocation not tracked")
		return nil
	}
	o, displaced := t.index.Insert(addr, size)
	t.retire(displaced)

	return o
}

// Free retires the live object covering addr. Freeing an untracked
// address is a no-op and returns nil.
func (t *Tracker) Free(addr uint64) *Object {
	o := t.index.Remove(addr)
	if o == nil {
		t.logger.Debug().Uint64("addr", addr).Msg("free of untracked address")
		return nil
	}
	t.retired.add(o)

	return o
}

// Reallocate moves the object at oldAddr to [newAddr, newAddr+size),
// keeping its identity and access history. An untracked oldAddr behaves
// as an allocation; a zero size behaves as a free. A new range the index
// cannot hold leaves the old object in place.
func (t *Tracker) Reallocate(oldAddr, newAddr, size uint64) *Object {
	if size == 0 {
		t.Free(oldAddr)
		return nil
	}
	if err := t.index.Check(newAddr, size); err != nil {
		t.logger.Warn().Err(err).Uint64("addr", oldAddr).Msg("reallocation not tracked")
		return nil
	}
	o := t.index.Remove(oldAddr)
	if o == nil {
		t.logger.Debug().Uint64("addr", oldAddr).Msg("realloc of untracked address")
		return t.Allocate(newAddr, size)
	}
	o.Base = newAddr
	o.Size = size
	t.retire(t.index.InsertObject(o))

	return o
}

func (t *Tracker) retire(displaced []*Object) {
	for _, d := range displaced {
		t.logger.Debug().
			Uint64("base", d.Base).
			Uint64("size", d.Size).
			Msg("retiring object displaced by overlapping allocation")
		t.retired.add(d)
	}
}
