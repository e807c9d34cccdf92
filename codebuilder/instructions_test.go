package codebuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArithmetic_StackEffect(t *testing.T) {
	b := New(Config{})
	b.I32Const(1)
	b.I32Const(2)
	b.I32Add()
	require.Len(t, b.currentBlock().valueStack, 1)
}

func TestMemoryOps_AlignAndOffsetEncoded(t *testing.T) {
	b := New(Config{})
	b.I32Const(0)
	before := b.Len()
	b.I32Load(Align4, 16)

	require.Equal(t, byte(OpI32Load), b.code[before])
	require.Equal(t, byte(Align4), b.code[before+1])
	require.Equal(t, byte(16), b.code[before+2])
	require.Len(t, b.currentBlock().valueStack, 1)
}

func TestStore_PopsTwoPushesNone(t *testing.T) {
	b := New(Config{})
	b.I32Const(0)
	b.I32Const(42)
	b.I32Store(Align4, 0)
	require.Empty(t, b.currentBlock().valueStack)
}

func TestCall_UnderflowPanics(t *testing.T) {
	b := New(Config{})
	require.Panics(t, func() {
		b.Call(3, 3, 2, false)
	})
}

func TestMemoryGrow_PopsOnePushesOne(t *testing.T) {
	b := New(Config{})
	b.I32Const(1)
	b.MemoryGrow()
	require.Len(t, b.currentBlock().valueStack, 1)
}

func TestAlignFromBytes(t *testing.T) {
	require.Equal(t, Align1, AlignFromBytes(1))
	require.Equal(t, Align64, AlignFromBytes(64))
	require.Panics(t, func() { AlignFromBytes(3) })
}

func TestBrIf_PopsOnlyCondition(t *testing.T) {
	b := New(Config{})
	b.Loop(BlockTypeEmpty)
	b.I32Const(1)
	b.BrIf(0)
	require.Empty(t, b.currentBlock().valueStack)
}

func TestFloatConstants_EncodeLittleEndianBits(t *testing.T) {
	b := New(Config{})
	b.F32Const(0x01020304)
	require.Equal(t, []byte{byte(OpF32Const), 0x04, 0x03, 0x02, 0x01}, b.code)
}

func TestUnsignedI64Comparisons_PopTwoPushOne(t *testing.T) {
	b := New(Config{})
	b.I64Const(1)
	b.I64Const(2)
	b.I64LtU()
	require.Len(t, b.currentBlock().valueStack, 1)
}

func TestFloatRoundingAndMinMax_StackEffect(t *testing.T) {
	b := New(Config{})
	b.F64Const(0)
	b.F64Ceil()
	require.Len(t, b.currentBlock().valueStack, 1)

	b.F64Const(0)
	b.F64Min()
	require.Len(t, b.currentBlock().valueStack, 1)
}

func TestTruncatingConversions_PopOnePushOne(t *testing.T) {
	b := New(Config{})
	b.F64Const(0)
	b.I64TruncF64S()
	require.Len(t, b.currentBlock().valueStack, 1)
}

func TestNarrowI64LoadsAndStores_AlignAndOffsetEncoded(t *testing.T) {
	b := New(Config{})
	b.I32Const(0)
	before := b.Len()
	b.I64Load32U(Align4, 8)
	require.Equal(t, byte(OpI64Load32U), b.code[before])
	require.Len(t, b.currentBlock().valueStack, 1)

	b.I32Const(0)
	b.I64Const(1)
	b.I64Store16(Align2, 0)
	// The store pops its two operands; the load's result is still there.
	require.Len(t, b.currentBlock().valueStack, 1)
}
