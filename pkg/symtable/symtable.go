package symtable

import (
	"sort"
)

// Symbol is a named address range of the traced program.
type Symbol struct {
	Name  string
	File  string
	Dir   string
	Value uint64
	Size  uint64
}

func (s Symbol) contains(addr uint64) bool {
	return addr >= s.Value && addr < s.Value+s.Size
}

// SectionKind is the coarse classification of the section containing an
// address.
type SectionKind int

const (
	SectionOther SectionKind = iota
	SectionData
)

func (k SectionKind) String() string {
	switch k {
	case SectionData:
		return "data"
	default:
		return "other"
	}
}

// Resolver is the symbol and debug-info collaborator of the tracer.
type Resolver interface {
	// ResolveName returns the function symbol covering addr.
	ResolveName(addr uint64) (Symbol, bool)
	// ResolveGlobal returns the extent of the global or static data
	// symbol covering addr.
	ResolveGlobal(addr uint64) (base, size uint64, ok bool)
	// SectionKind classifies the section containing addr.
	SectionKind(addr uint64) SectionKind
}

// table is an address-sorted symbol list.
type table struct {
	syms   []Symbol
	sorted bool
}

func (t *table) add(s Symbol) {
	t.syms = append(t.syms, s)
	t.sorted = false
}

func (t *table) sort() {
	if t.sorted {
		return
	}
	sort.SliceStable(t.syms, func(i, j int) bool {
		return t.syms[i].Value < t.syms[j].Value
	})
	t.sorted = true
}

// find returns the symbol covering addr. Aliases share a start address, so
// only candidates starting at the closest start are considered.
func (t *table) find(addr uint64) (Symbol, bool) {
	t.sort()
	i := sort.Search(len(t.syms), func(i int) bool {
		return t.syms[i].Value > addr
	}) - 1
	if i < 0 {
		return Symbol{}, false
	}
	start := t.syms[i].Value
	for ; i >= 0 && t.syms[i].Value == start; i-- {
		if t.syms[i].contains(addr) {
			return t.syms[i], true
		}
	}

	return Symbol{}, false
}

func (t *table) len() int {
	return len(t.syms)
}

type section struct {
	lo, hi uint64
	kind   SectionKind
}

func sectionKind(sections []section, addr uint64) SectionKind {
	for _, s := range sections {
		if addr >= s.lo && addr < s.hi {
			return s.kind
		}
	}
	return SectionOther
}
