package symtable

import (
	"github.com/pkg/errors"
)

// StaticSymTab is a Resolver populated programmatically, e.g. from the
// declarations of a callout log.
type StaticSymTab struct {
	funcs    table
	globals  table
	sections []section
}

func NewStaticSymTab() *StaticSymTab {
	return new(StaticSymTab)
}

// AddFunc declares the function [lo, hi).
func (s *StaticSymTab) AddFunc(name string, lo, hi uint64, file, dir string) error {
	if hi <= lo {
		return errors.Wrapf(ErrInvalidRange, "function %s [%#x, %#x)", name, lo, hi)
	}
	s.funcs.add(Symbol{Name: name, File: file, Dir: dir, Value: lo, Size: hi - lo})

	return nil
}

// AddGlobal declares a global or static data object.
func (s *StaticSymTab) AddGlobal(name string, base, size uint64) error {
	if size == 0 {
		return errors.Wrapf(ErrInvalidRange, "global %s at %#x has no size", name, base)
	}
	s.globals.add(Symbol{Name: name, Value: base, Size: size})

	return nil
}

// AddSection declares the section [lo, hi) with the given kind.
func (s *StaticSymTab) AddSection(lo, hi uint64, kind SectionKind) error {
	if hi <= lo {
		return errors.Wrapf(ErrInvalidRange, "section [%#x, %#x)", lo, hi)
	}
	s.sections = append(s.sections, section{lo: lo, hi: hi, kind: kind})

	return nil
}

func (s *StaticSymTab) ResolveName(addr uint64) (Symbol, bool) {
	return s.funcs.find(addr)
}

func (s *StaticSymTab) ResolveGlobal(addr uint64) (uint64, uint64, bool) {
	sym, ok := s.globals.find(addr)
	if !ok {
		return 0, 0, false
	}
	return sym.Value, sym.Size, true
}

func (s *StaticSymTab) SectionKind(addr uint64) SectionKind {
	return sectionKind(s.sections, addr)
}
