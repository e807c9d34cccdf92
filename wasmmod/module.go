// Package wasmmod assembles one or more codebuilder-emitted function
// bodies into a complete, loadable Wasm 1.0 binary: a type section, a
// function section, a single default memory, the shadow-stack pointer
// global, an export section, and the code section itself.
//
// It is the smallest possible stand-in for the "larger module
// assembler" that codebuilder's spec (see its package doc) treats as
// an external collaborator — just enough to turn a CodeBuilder's
// output into bytes a real Wasm engine will load, for testing and for
// the command-line demo. It does not support imports, tables, multiple
// memories, or cross-module linking.
package wasmmod

import (
	"fmt"

	"github.com/wasmforge/wasmemit/codebuilder"
	"github.com/wasmforge/wasmemit/internal/leb128"
)

const (
	wasmMagic   = "\x00asm"
	wasmVersion = 1
)

// Wasm section ids, in the order the binary format requires them to
// appear.
const (
	sectionType     = 1
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
)

// FuncType is a function signature: parameter and result value types.
// Wasm 1.0 allows at most one result.
type FuncType struct {
	Params  []codebuilder.ValueType
	Results []codebuilder.ValueType
}

func (ft FuncType) encode() []byte {
	out := []byte{0x60}
	out = append(out, leb128.EncodeUint32(uint32(len(ft.Params)))...)
	for _, p := range ft.Params {
		out = append(out, byte(p))
	}
	out = append(out, leb128.EncodeUint32(uint32(len(ft.Results)))...)
	for _, r := range ft.Results {
		out = append(out, byte(r))
	}
	return out
}

// pendingFunc is a function queued for assembly: its signature, its
// finalized CodeBuilder, and the export name the module should give
// it (empty means unexported).
type pendingFunc struct {
	sig        FuncType
	builder    *codebuilder.CodeBuilder
	exportName string
}

// Module accumulates functions and assembles them into a single Wasm
// binary. The zero value is ready to use.
type Module struct {
	memoryPages uint32
	stackGlobal bool

	funcs []pendingFunc
}

// New creates an empty Module with a default memory of minPages pages
// (64KiB each) and, if withStackGlobal is true, a mutable i32 global
// at index 0 usable as codebuilder's DefaultStackPointerGlobalID,
// initialized to the top of the memory's initial allocation.
func New(minPages uint32, withStackGlobal bool) *Module {
	return &Module{memoryPages: minPages, stackGlobal: withStackGlobal}
}

// AddFunction queues builder (already finalized via BuildFnHeader) for
// assembly under signature sig. If exportName is non-empty, the
// function is exported under that name. It returns the function's
// eventual index in the module — valid immediately, since indices are
// assigned in call order and never renumbered.
func (m *Module) AddFunction(sig FuncType, builder *codebuilder.CodeBuilder, exportName string) uint32 {
	idx := uint32(len(m.funcs))
	m.funcs = append(m.funcs, pendingFunc{sig: sig, builder: builder, exportName: exportName})
	return idx
}

// Encode assembles every queued function into a complete Wasm binary
// and returns it alongside the relocation entries for every function,
// rewritten into the code section's coordinate system, so a caller
// that has inter-function calls to patch can finish the job this
// module's own linking-free assembly intentionally leaves undone.
func (m *Module) Encode() (wasmBytes []byte, relocs []codebuilder.RelocationEntry, err error) {
	if len(m.funcs) == 0 {
		return nil, nil, fmt.Errorf("wasmmod: module has no functions")
	}

	out := []byte(wasmMagic)
	out = append(out, byte(wasmVersion), 0, 0, 0)

	out = append(out, m.encodeTypeSection()...)
	out = append(out, m.encodeFunctionSection()...)
	if m.memoryPages > 0 {
		out = append(out, m.encodeMemorySection()...)
	}
	if m.stackGlobal {
		out = append(out, m.encodeGlobalSection()...)
	}
	if exports := m.encodeExportSection(); exports != nil {
		out = append(out, exports...)
	}

	codeSection, relocs, err := m.encodeCodeSection()
	if err != nil {
		return nil, nil, err
	}
	out = append(out, codeSection...)

	return out, relocs, nil
}

func encodeSection(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...)
}

func (m *Module) encodeTypeSection() []byte {
	body := leb128.EncodeUint32(uint32(len(m.funcs)))
	for _, f := range m.funcs {
		body = append(body, f.sig.encode()...)
	}
	return encodeSection(sectionType, body)
}

func (m *Module) encodeFunctionSection() []byte {
	body := leb128.EncodeUint32(uint32(len(m.funcs)))
	for i := range m.funcs {
		body = append(body, leb128.EncodeUint32(uint32(i))...)
	}
	return encodeSection(sectionFunction, body)
}

func (m *Module) encodeMemorySection() []byte {
	body := leb128.EncodeUint32(1)
	body = append(body, 0x00) // limits: flags=0 (min only)
	body = append(body, leb128.EncodeUint32(m.memoryPages)...)
	return encodeSection(sectionMemory, body)
}

func (m *Module) encodeGlobalSection() []byte {
	body := leb128.EncodeUint32(1)
	body = append(body, byte(codebuilder.ValueTypeI32))
	body = append(body, 0x01) // mutable
	body = append(body, byte(codebuilder.OpI32Const))
	body = append(body, leb128.EncodeInt32(int32(m.memoryPages*65536))...)
	body = append(body, byte(codebuilder.OpEnd))
	return encodeSection(sectionGlobal, body)
}

func (m *Module) encodeExportSection() []byte {
	var entries [][]byte
	for i, f := range m.funcs {
		if f.exportName == "" {
			continue
		}
		entry := leb128.EncodeUint32(uint32(len(f.exportName)))
		entry = append(entry, []byte(f.exportName)...)
		entry = append(entry, 0x00) // export kind: function
		entry = append(entry, leb128.EncodeUint32(uint32(i))...)
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil
	}
	body := leb128.EncodeUint32(uint32(len(entries)))
	for _, e := range entries {
		body = append(body, e...)
	}
	return encodeSection(sectionExport, body)
}

func (m *Module) encodeCodeSection() ([]byte, []codebuilder.RelocationEntry, error) {
	body := leb128.EncodeUint32(uint32(len(m.funcs)))

	// relocBaseOffset stays 0 for every function: body is already the
	// code-section-body-relative buffer (it starts at the section's own
	// byte 0), so each function's relocations should come back as
	// absolute offsets into it, not re-zeroed to that function's own
	// header. Letting body grow across calls, uncorrected, already
	// accounts for bytes contributed by all preceding functions in the
	// section.
	var allRelocs []codebuilder.RelocationEntry
	for _, f := range m.funcs {
		relocs := f.builder.SerializeWithRelocs(&body, 0)
		allRelocs = append(allRelocs, relocs...)
	}

	return encodeSection(sectionCode, body), allRelocs, nil
}
