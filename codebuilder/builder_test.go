package codebuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S1, first half: A beneath B on the stack needs a local. The other
// half (A used while on top needs none) is
// TestLoadSymbol_FastPathAlreadyOnTop.
func TestLoadSymbol_BuriedSymbolNeedsLocal(t *testing.T) {
	b := New(Config{})
	const symA, symB Symbol = 1, 2

	b.I32Const(3)
	stateA := b.SetTopSymbol(symA)
	b.I32Const(4)
	_ = b.SetTopSymbol(symB)

	require.True(t, stateA.IsPushed())

	// A is beneath B: not on top, so load_symbol must promote it.
	updated, promoted := b.LoadSymbol(symA, stateA, 0)
	require.True(t, promoted)
	require.Equal(t, VmSymbolState{}, updated)
	require.Len(t, b.insertions, 1)
	require.Equal(t, OpLocalSet, Opcode(b.insertBytes[b.insertions[0].start]))
}

func TestLoadSymbol_FastPathAlreadyOnTop(t *testing.T) {
	b := New(Config{})
	const symA Symbol = 1

	b.I32Const(3)
	stateA := b.SetTopSymbol(symA)

	// A is already on top: load_symbol should emit nothing.
	before := b.Len()
	updated, promoted := b.LoadSymbol(symA, stateA, 0)
	require.False(t, promoted)
	require.True(t, updated.IsPopped())
	require.Equal(t, before, b.Len())
	require.Empty(t, b.insertions)
}

// S4 — a Popped symbol re-used a second time needs a local.tee at its
// original push site.
func TestLoadSymbol_PoppedSymbolNeedsTee(t *testing.T) {
	b := New(Config{})
	const symX Symbol = 1

	b.I32Const(9)
	pushed := b.SetTopSymbol(symX)
	popped, promoted := b.LoadSymbol(symX, pushed, 0)
	require.False(t, promoted)
	require.True(t, popped.IsPopped())

	_, promoted = b.LoadSymbol(symX, popped, 7)
	require.True(t, promoted)
	require.Len(t, b.insertions, 1)
	require.Equal(t, pushed.pushedAt, b.insertions[0].at)
	require.Equal(t, OpLocalTee, Opcode(b.insertBytes[b.insertions[0].start]))
}

func TestLoadSymbol_NotYetPushedPanics(t *testing.T) {
	b := New(Config{})
	require.Panics(t, func() {
		b.LoadSymbol(1, NotYetPushed, 0)
	})
}

// S5 — block result propagation.
func TestBlockResultPropagation(t *testing.T) {
	b := New(Config{})
	b.Block(BlockTypeValue(ValueTypeI32))
	b.I32Const(7)
	state := b.SetTopSymbol(Symbol(1))
	b.End()

	require.Len(t, b.currentBlock().valueStack, 1)
	require.Equal(t, Symbol(1), b.currentBlock().valueStack[0])

	// The real symbol, not a fresh WasmTmp, must have propagated: a
	// subsequent LoadSymbol for it on the parent block hits the Case A
	// fast path (already on top) and inserts no local.
	before := b.Len()
	updated, promoted := b.LoadSymbol(Symbol(1), state, 0)
	require.False(t, promoted)
	require.True(t, updated.IsPopped())
	require.Equal(t, before, b.Len())
	require.Empty(t, b.insertions)
}

func TestElseStartsFreshValueStack(t *testing.T) {
	b := New(Config{})
	b.I32Const(1)
	b.If(BlockTypeEmpty)
	b.I32Const(2)
	require.Len(t, b.currentBlock().valueStack, 1)
	b.Else()
	require.Empty(t, b.currentBlock().valueStack)
}

func TestInstBase_UnderflowPanics(t *testing.T) {
	b := New(Config{})
	require.Panics(t, func() {
		b.Drop()
	})
}

func TestEnd_RootBlockPanics(t *testing.T) {
	b := New(Config{})
	require.Panics(t, func() {
		b.End()
	})
}

// S6 — call always writes a padded 5-byte function index and records
// a matching relocation, keyed by a symbol index independent of the
// pre-link function index.
func TestCall_PaddedIndexAndRelocation(t *testing.T) {
	b := New(Config{})
	before := b.Len()
	b.Call(1, 42, 0, true)

	require.Len(t, b.relocations, 1)
	reloc := b.relocations[0]
	require.Equal(t, RelocationKindIndex, reloc.Kind)
	require.Equal(t, FunctionIndexLeb, reloc.IndexType)
	require.Equal(t, uint32(before+1), reloc.Offset)
	require.Equal(t, uint32(42), reloc.SymbolIndex)
	require.Len(t, b.code[before+1:], 5)
	require.Len(t, b.currentBlock().valueStack, 1)
}

func TestVerifyStackMatch(t *testing.T) {
	b := New(Config{})
	b.I32Const(1)
	sa := b.SetTopSymbol(1)
	b.I32Const(2)
	sb := b.SetTopSymbol(2)
	_, _ = sa, sb

	require.True(t, b.VerifyStackMatch([]Symbol{1, 2}))
	require.False(t, b.VerifyStackMatch([]Symbol{2, 1}))
	require.True(t, b.VerifyStackMatch([]Symbol{2}))
	require.False(t, b.VerifyStackMatch([]Symbol{1, 2, 3}))
}

func TestInsertMemoryRelocation(t *testing.T) {
	b := New(Config{})
	b.I32Const(100)
	b.InsertMemoryRelocation(42)

	require.Len(t, b.relocations, 1)
	require.Equal(t, RelocationKindOffset, b.relocations[0].Kind)
	require.Equal(t, MemoryAddrLeb, b.relocations[0].OffsetType)
	require.Equal(t, uint32(42), b.relocations[0].SymbolIndex)
}
