// Package wasmverify feeds a wasmmod-assembled binary through a real
// Wasm engine and calls one of its exported functions, so codebuilder
// tests can assert on actual execution results instead of hand-tracing
// the emitted bytecode.
//
// This package is a test dependency only: nothing in codebuilder or
// wasmmod imports it, and it exists purely so _test.go files in this
// module can turn "does the emitted bytecode do what the symbol stack
// machine predicted" into an end-to-end check run by
// github.com/tetratelabs/wazero, a production-grade interpreter and
// compiler for Wasm.
package wasmverify

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
)

// CallExported compiles wasmBytes, instantiates it, calls its exported
// function name with args, and returns the results. The runtime and
// module are closed before returning.
func CallExported(ctx context.Context, wasmBytes []byte, name string, args ...uint64) ([]uint64, error) {
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("wasmverify: compile module: %w", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return nil, fmt.Errorf("wasmverify: instantiate module: %w", err)
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("wasmverify: no exported function named %q", name)
	}

	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("wasmverify: call %q: %w", name, err)
	}
	return results, nil
}
