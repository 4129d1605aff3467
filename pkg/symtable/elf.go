package symtable

import (
	"debug/dwarf"
	"debug/elf"
	"io"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/privtrace/pkg/symcache"
)

type lookup struct {
	sym Symbol
	ok  bool
}

type lineEntry struct {
	addr uint64
	file string
}

// ELFSymTab is a Resolver backed by the symbol table, section headers and,
// when present, the DWARF line table of an ELF file.
type ELFSymTab struct {
	funcs    table
	globals  table
	sections []section

	bias      uint64
	cacheSize int
	cache     *symcache.SymCache[lookup]
	logger    log.Logger
}

type ELFOption func(*ELFSymTab)

// WithLoadBias shifts every address of the file, for position independent
// executables loaded at a non-zero base.
func WithLoadBias(bias uint64) ELFOption {
	return func(e *ELFSymTab) {
		e.bias = bias
	}
}

func WithCacheSize(size int) ELFOption {
	return func(e *ELFSymTab) {
		e.cacheSize = size
	}
}

func WithLogger(logger log.Logger) ELFOption {
	return func(e *ELFSymTab) {
		e.logger = logger
	}
}

func NewELFSymTab(opts ...ELFOption) (*ELFSymTab, error) {
	tab := &ELFSymTab{
		cacheSize: symcache.DefaultSize,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(tab)
	}
	tab.logger = tab.logger.With().Str("component", "symtable").Logger()

	cache, err := symcache.NewSymCache[lookup](tab.cacheSize)
	if err != nil {
		return nil, err
	}
	tab.cache = cache

	return tab, nil
}

// Load reads symbols, data sections and line info of the ELF file at
// pathname. Loading is skipped if symbols have already been loaded.
func (e *ELFSymTab) Load(pathname string) error {
	if e.funcs.len() > 0 || e.globals.len() > 0 {
		return nil
	}

	file, err := elf.Open(pathname)
	if err != nil {
		return errors.Wrap(err, "error opening ELF file")
	}
	defer file.Close()

	syms, err := file.Symbols()
	if err != nil {
		e.logger.Debug().Err(err).Msg("no static symbol table, falling back to dynamic symbols")
		syms, err = file.DynamicSymbols()
		if err != nil {
			return errors.Wrap(err, "error reading ELF symtable section")
		}
	}
	if len(syms) == 0 {
		return ErrSymTableEmpty
	}

	lines := e.loadLines(file)

	for _, s := range syms {
		if s.Size == 0 || s.Section == elf.SHN_UNDEF {
			continue
		}
		sym := Symbol{Name: s.Name, Value: s.Value + e.bias, Size: s.Size}
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC:
			if f := fileAt(lines, s.Value); f != "" {
				sym.Dir, sym.File = filepath.Split(f)
			}
			e.funcs.add(sym)
		case elf.STT_OBJECT, elf.STT_TLS:
			e.globals.add(sym)
		}
	}
	e.funcs.sort()
	e.globals.sort()

	for _, s := range file.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Flags&elf.SHF_EXECINSTR != 0 {
			continue
		}
		if s.Type != elf.SHT_PROGBITS && s.Type != elf.SHT_NOBITS {
			continue
		}
		e.sections = append(e.sections, section{
			lo:   s.Addr + e.bias,
			hi:   s.Addr + s.Size + e.bias,
			kind: SectionData,
		})
	}
	e.cache.Purge()

	e.logger.Debug().
		Str("path", pathname).
		Int("funcs", e.funcs.len()).
		Int("globals", e.globals.len()).
		Int("data_sections", len(e.sections)).
		Msg("ELF symbol table loaded")

	return nil
}

// loadLines returns the address-sorted line table, or nil if the file has
// no usable DWARF.
func (e *ELFSymTab) loadLines(file *elf.File) []lineEntry {
	d, err := file.DWARF()
	if err != nil {
		e.logger.Debug().Err(err).Msg("no DWARF data, source locations unavailable")
		return nil
	}

	var lines []lineEntry
	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			e.logger.Debug().Err(err).Msg("error reading DWARF entries")
			break
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		lr, err := d.LineReader(entry)
		if err != nil || lr == nil {
			r.SkipChildren()
			continue
		}
		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				if err != io.EOF {
					e.logger.Debug().Err(err).Msg("error reading DWARF line table")
				}
				break
			}
			if le.File == nil || le.EndSequence {
				continue
			}
			lines = append(lines, lineEntry{addr: le.Address, file: le.File.Name})
		}
		r.SkipChildren()
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].addr < lines[j].addr
	})

	return lines
}

func fileAt(lines []lineEntry, addr uint64) string {
	i := sort.Search(len(lines), func(i int) bool {
		return lines[i].addr > addr
	}) - 1
	if i < 0 {
		return ""
	}
	return lines[i].file
}

func (e *ELFSymTab) ResolveName(addr uint64) (Symbol, bool) {
	if l, err := e.cache.Get(addr); err == nil {
		return l.sym, l.ok
	}
	sym, ok := e.funcs.find(addr)
	e.cache.Set(addr, lookup{sym: sym, ok: ok})

	return sym, ok
}

func (e *ELFSymTab) ResolveGlobal(addr uint64) (uint64, uint64, bool) {
	sym, ok := e.globals.find(addr)
	if !ok {
		return 0, 0, false
	}
	return sym.Value, sym.Size, true
}

func (e *ELFSymTab) SectionKind(addr uint64) SectionKind {
	return sectionKind(e.sections, addr)
}
