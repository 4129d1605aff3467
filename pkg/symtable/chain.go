package symtable

// Chain queries its resolvers in order and returns the first hit.
type Chain []Resolver

func (c Chain) ResolveName(addr uint64) (Symbol, bool) {
	for _, r := range c {
		if sym, ok := r.ResolveName(addr); ok {
			return sym, true
		}
	}
	return Symbol{}, false
}

func (c Chain) ResolveGlobal(addr uint64) (uint64, uint64, bool) {
	for _, r := range c {
		if base, size, ok := r.ResolveGlobal(addr); ok {
			return base, size, true
		}
	}
	return 0, 0, false
}

func (c Chain) SectionKind(addr uint64) SectionKind {
	for _, r := range c {
		if kind := r.SectionKind(addr); kind != SectionOther {
			return kind
		}
	}
	return SectionOther
}
