package wasmmod_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmforge/wasmemit/codebuilder"
	"github.com/wasmforge/wasmemit/wasmmod"
	"github.com/wasmforge/wasmemit/wasmverify"
)

func buildAddFunction(t *testing.T) *codebuilder.CodeBuilder {
	t.Helper()
	b := codebuilder.New(codebuilder.Config{})

	b.LocalGet(0)
	b.LocalGet(1)
	b.I32Add()
	b.BuildFnHeader(nil, 0, 0)
	return b
}

func TestModule_EncodeAndExecuteAdd(t *testing.T) {
	b := buildAddFunction(t)

	m := wasmmod.New(0, false)
	m.AddFunction(wasmmod.FuncType{
		Params:  []codebuilder.ValueType{codebuilder.ValueTypeI32, codebuilder.ValueTypeI32},
		Results: []codebuilder.ValueType{codebuilder.ValueTypeI32},
	}, b, "add")

	wasmBytes, relocs, err := m.Encode()
	require.NoError(t, err)
	require.Empty(t, relocs)
	require.Equal(t, []byte("\x00asm"), wasmBytes[:4])

	results, err := wasmverify.CallExported(context.Background(), wasmBytes, "add", 3, 4)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, results)
}

// Exercises the deferred-local-promotion path end to end: symbol A is
// produced, buried under B and C, then re-loaded, forcing a real
// local.set insertion that a real engine must still execute correctly.
func TestModule_EncodeAndExecuteDeferredLocal(t *testing.T) {
	b := codebuilder.New(codebuilder.Config{})
	const symA codebuilder.Symbol = 1

	b.I32Const(10)
	stateA := b.SetTopSymbol(symA)
	b.I32Const(20)
	b.I32Const(30)
	b.I32Add() // 20 + 30

	_, promoted := b.LoadSymbol(symA, stateA, 0)
	require.True(t, promoted)

	b.I32Add() // A + (20+30)
	b.BuildFnHeader([]codebuilder.ValueType{codebuilder.ValueTypeI32}, 0, 0)

	m := wasmmod.New(0, false)
	m.AddFunction(wasmmod.FuncType{Results: []codebuilder.ValueType{codebuilder.ValueTypeI32}}, b, "compute")

	wasmBytes, _, err := m.Encode()
	require.NoError(t, err)

	results, err := wasmverify.CallExported(context.Background(), wasmBytes, "compute")
	require.NoError(t, err)
	require.Equal(t, []uint64{60}, results)
}

func TestModule_Encode_NoFunctionsErrors(t *testing.T) {
	m := wasmmod.New(0, false)
	_, _, err := m.Encode()
	require.Error(t, err)
}

func TestModule_EncodeWithMemoryAndStackGlobal(t *testing.T) {
	b := codebuilder.New(codebuilder.Config{})
	var framePointer codebuilder.LocalId = 0
	b.I32Const(1)
	b.BuildFnHeader([]codebuilder.ValueType{codebuilder.ValueTypeI32}, 16, framePointer)

	m := wasmmod.New(1, true)
	m.AddFunction(wasmmod.FuncType{Results: []codebuilder.ValueType{codebuilder.ValueTypeI32}}, b, "f")

	wasmBytes, _, err := m.Encode()
	require.NoError(t, err)

	results, err := wasmverify.CallExported(context.Background(), wasmBytes, "f")
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, results)
}
