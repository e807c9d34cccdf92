package codebuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildLocalDeclarations_RunLengthBatches(t *testing.T) {
	// Two i32s, one i64.
	out := buildLocalDeclarations([]ValueType{ValueTypeI32, ValueTypeI32, ValueTypeI64})
	require.Equal(t, []byte{0x02, 0x02, byte(ValueTypeI32), 0x01, byte(ValueTypeI64)}, out)
}

func TestBuildLocalDeclarations_Empty(t *testing.T) {
	out := buildLocalDeclarations(nil)
	require.Equal(t, []byte{0x00}, out)
}

func TestBuildLocalDeclarations_SplitsOversizedRun(t *testing.T) {
	types := make([]ValueType, maxLocalBatch+1)
	for i := range types {
		types[i] = ValueTypeI32
	}
	out := buildLocalDeclarations(types)
	// Two batches: maxLocalBatch i32s, then 1 i32.
	require.Equal(t, byte(0x02), out[0])
}

// S2 — stack frame prologue shape.
func TestBuildFnHeader_StackFramePrologue(t *testing.T) {
	b := New(Config{})
	var framePointer LocalId = 0
	b.BuildFnHeader([]ValueType{ValueTypeI32, ValueTypeI32, ValueTypeI64}, 32, framePointer)

	require.Equal(t, byte(0x02), b.preamble[0])
	require.Equal(t, byte(0x02), b.preamble[1])
	require.Equal(t, byte(ValueTypeI32), b.preamble[2])
	require.Equal(t, byte(0x01), b.preamble[3])
	require.Equal(t, byte(ValueTypeI64), b.preamble[4])

	prologue := b.preamble[5:]
	// global.get SP; i32.const 32; i32.sub; local.tee fp; global.set SP
	// with both global id and frame pointer encoding to a single byte.
	require.Equal(t, byte(OpGlobalGet), prologue[0])
	require.Equal(t, byte(OpI32Const), prologue[2])
	require.Equal(t, byte(OpI32Sub), prologue[4])
	require.Equal(t, byte(OpLocalTee), prologue[5])
	require.Equal(t, byte(OpGlobalSet), prologue[7])
}

func TestBuildFnHeader_EndsWithEnd(t *testing.T) {
	b := New(Config{})
	b.I32Const(1)
	b.BuildFnHeader([]ValueType{}, 0, 0)
	require.Equal(t, byte(OpEnd), b.code[len(b.code)-1])
}

func TestBuildFnHeader_InsertionsSorted(t *testing.T) {
	b := New(Config{})
	const s1, s2, s3 Symbol = 1, 2, 3

	b.I32Const(1)
	p1 := b.SetTopSymbol(s1)
	b.I32Const(2)
	p2 := b.SetTopSymbol(s2)
	b.I32Const(3)
	p3 := b.SetTopSymbol(s3)

	// Consume in reverse-insertion order so insertions land out of
	// order relative to their "at" offsets, forcing the stable sort.
	b.LoadSymbol(s2, p2, 0)
	b.LoadSymbol(s1, p1, 1)
	_ = p3

	b.BuildFnHeader(nil, 0, 0)

	for i := 1; i < len(b.insertions); i++ {
		require.LessOrEqual(t, b.insertions[i-1].at, b.insertions[i].at)
	}
}

func TestBuildFnHeader_PanicsIfOpenBlocks(t *testing.T) {
	b := New(Config{})
	b.Block(BlockTypeEmpty)
	require.Panics(t, func() {
		b.BuildFnHeader(nil, 0, 0)
	})
}

func TestBuildFnHeader_PanicsIfCalledTwice(t *testing.T) {
	b := New(Config{})
	b.BuildFnHeader(nil, 0, 0)
	require.Panics(t, func() {
		b.BuildFnHeader(nil, 0, 0)
	})
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, int32(32), alignUp(20, 16))
	require.Equal(t, int32(16), alignUp(16, 16))
	require.Equal(t, int32(0), alignUp(0, 16))
}
