package memory

import (
	"sort"

	"github.com/maxgio92/privtrace/pkg/registry"
)

// AccessVersion holds the bytes a function moved to or from an object
// during one iteration of that function.
type AccessVersion struct {
	Iteration    uint64
	BytesRead    uint64
	BytesWritten uint64
}

// AccessEntry is the access history of one function against one object.
type AccessEntry struct {
	Func registry.ID

	// versions is in chronological order; callers see it newest first.
	versions []*AccessVersion
}

// Versions returns the access versions, newest first.
func (e *AccessEntry) Versions() []AccessVersion {
	out := make([]AccessVersion, 0, len(e.versions))
	for i := len(e.versions) - 1; i >= 0; i-- {
		out = append(out, *e.versions[i])
	}
	return out
}

// Latest returns the most recent version.
func (e *AccessEntry) Latest() AccessVersion {
	return *e.versions[len(e.versions)-1]
}

func (e *AccessEntry) version(iteration uint64) *AccessVersion {
	if n := len(e.versions); n > 0 && e.versions[n-1].Iteration == iteration {
		return e.versions[n-1]
	}
	v := &AccessVersion{Iteration: iteration}
	e.versions = append(e.versions, v)

	return v
}

type state int

const (
	stateLive state = iota
	stateRetired
)

// Object is a tracked memory region: an allocation, or a global or
// static data region.
type Object struct {
	Base uint64
	Size uint64

	accesses map[registry.ID]*AccessEntry
	state    state
}

func newObject(base, size uint64) *Object {
	return &Object{
		Base:     base,
		Size:     size,
		accesses: make(map[registry.ID]*AccessEntry),
	}
}

// extent is the number of bytes the object covers in the index. Zero-sized
// allocations still own their base address.
func (o *Object) extent() uint64 {
	if o.Size == 0 {
		return 1
	}
	return o.Size
}

// last returns the address of the last byte covered by the object.
func (o *Object) last() uint64 {
	return o.Base + o.extent() - 1
}

func (o *Object) Contains(addr uint64) bool {
	return addr >= o.Base && addr <= o.last()
}

func (o *Object) overlaps(base, last uint64) bool {
	return o.Base <= last && base <= o.last()
}

// Retired reports whether the object has been freed.
func (o *Object) Retired() bool {
	return o.state == stateRetired
}

// Released reports whether the access table has been dropped after a
// report.
func (o *Object) Released() bool {
	return o.accesses == nil
}

// Release drops the access table.
func (o *Object) Release() {
	o.accesses = nil
}

// Accessors returns the number of distinct functions that accessed the
// object.
func (o *Object) Accessors() int {
	return len(o.accesses)
}

// Entry returns the access history of fn against the object.
func (o *Object) Entry(fn registry.ID) (*AccessEntry, bool) {
	e, ok := o.accesses[fn]
	return e, ok
}

// Entries returns the access entries ordered by function id.
func (o *Object) Entries() []*AccessEntry {
	out := make([]*AccessEntry, 0, len(o.accesses))
	for _, e := range o.accesses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Func < out[j].Func
	})

	return out
}

func (o *Object) record(fn registry.ID, iteration, read, written uint64) {
	if o.accesses == nil {
		o.accesses = make(map[registry.ID]*AccessEntry)
	}
	e, ok := o.accesses[fn]
	if !ok {
		e = &AccessEntry{Func: fn}
		o.accesses[fn] = e
	}
	v := e.version(iteration)
	v.BytesRead += read
	v.BytesWritten += written
}
