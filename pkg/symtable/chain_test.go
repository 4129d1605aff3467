package symtable_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/privtrace/pkg/symtable"
)

func TestChain(t *testing.T) {
	first := symtable.NewStaticSymTab()
	require.NoError(t, first.AddFunc("foo", 0x1000, 0x1100, "", ""))
	require.NoError(t, first.AddGlobal("counter", 0x8000, 8))

	second := symtable.NewStaticSymTab()
	require.NoError(t, second.AddFunc("shadowed", 0x1000, 0x1100, "", ""))
	require.NoError(t, second.AddFunc("bar", 0x2000, 0x2100, "", ""))
	require.NoError(t, second.AddSection(0x9000, 0xa000, symtable.SectionData))

	chain := symtable.Chain{first, second}

	sym, ok := chain.ResolveName(0x1010)
	require.True(t, ok)
	require.Equal(t, "foo", sym.Name)

	sym, ok = chain.ResolveName(0x2010)
	require.True(t, ok)
	require.Equal(t, "bar", sym.Name)

	_, ok = chain.ResolveName(0x3000)
	require.False(t, ok)

	base, size, ok := chain.ResolveGlobal(0x8004)
	require.True(t, ok)
	require.Equal(t, uint64(0x8000), base)
	require.Equal(t, uint64(8), size)

	require.Equal(t, symtable.SectionData, chain.SectionKind(0x9010))
	require.Equal(t, symtable.SectionOther, chain.SectionKind(0x8004))
}
