// Package codebuilder implements the symbol-tracking stack machine that
// turns a sequence of IR-driven Wasm instruction calls into a complete,
// binary-encoded Wasm 1.0 function body: local declarations, a
// shadow-stack prologue/epilogue, the instruction stream, and the
// linker relocation entries that refer into it.
//
// The core trick is deferred local promotion (see LoadSymbol): a value
// that is pushed and immediately consumed in stack order needs no
// local at all, and CodeBuilder only goes back and rewrites the
// already-emitted byte stream with a local.tee/local.set when it
// later discovers the value was consumed out of order or reused.
package codebuilder

import "fmt"

// insertion is a pending local.set/local.tee to splice into the code
// buffer during serialization, recorded by original code offset so
// that it never invalidates offsets already recorded elsewhere.
type insertion struct {
	at    int
	start int
	end   int
}

// Config holds the small set of knobs CodeBuilder needs to emit a
// shadow-stack prologue/epilogue. Its defaults match common
// compiler-wide constants for this ABI.
type Config struct {
	// FrameAlignmentBytes is the alignment, in bytes, that a function's
	// shadow-stack frame size is rounded up to. Defaults to
	// DefaultFrameAlignmentBytes.
	FrameAlignmentBytes int32

	// StackPointerGlobalID is the index of the mutable i32 global used
	// as the shadow stack pointer. Defaults to
	// DefaultStackPointerGlobalID.
	StackPointerGlobalID uint32

	// Trace, if non-nil, receives one line per emitted instruction
	// along with the simulated stack, matching a debug instruction
	// trace a compiler developer would want. The CLI wires this to
	// log.Printf under -trace; production drivers leave it nil so the
	// hot path pays only a nil check.
	Trace func(format string, args ...interface{})
}

// Default values for Config fields left unset.
const (
	DefaultFrameAlignmentBytes  int32  = 16
	DefaultStackPointerGlobalID uint32 = 0
)

func (c Config) withDefaults() Config {
	if c.FrameAlignmentBytes == 0 {
		c.FrameAlignmentBytes = DefaultFrameAlignmentBytes
	}
	return c
}

// CodeBuilder is the symbol-tracking stack machine for a single Wasm
// function. It is created once per function, driven by one method call
// per IR operation, finalized with BuildFnHeader, and consumed exactly
// once by SerializeWithRelocs. It is not safe for concurrent use.
type CodeBuilder struct {
	cfg Config

	code        []byte
	insertBytes []byte
	insertions  []insertion
	preamble    []byte
	innerLength []byte

	vmBlockStack []*vmBlock
	relocations  []RelocationEntry

	finalized bool
}

// New creates a CodeBuilder for a new function body, with one root
// block already pushed representing the function body itself.
func New(cfg Config) *CodeBuilder {
	cfg = cfg.withDefaults()
	b := &CodeBuilder{
		cfg:         cfg,
		code:        make([]byte, 0, 1024),
		insertBytes: make([]byte, 0, 64),
		insertions:  make([]insertion, 0, 32),
		preamble:    make([]byte, 0, 32),
		relocations: make([]RelocationEntry, 0, 32),
	}
	b.vmBlockStack = []*vmBlock{newVMBlock(OpBlock, true)}
	return b
}

func (b *CodeBuilder) trace(format string, args ...interface{}) {
	if b.cfg.Trace != nil {
		b.cfg.Trace(format+"\tstack=%v", append(args, b.currentBlock().valueStack)...)
	}
}

// currentBlock returns the innermost open block. vmBlockStack is never
// empty outside an instruction method's body; any caller reaching this
// with an empty stack is a backend bug.
func (b *CodeBuilder) currentBlock() *vmBlock {
	if len(b.vmBlockStack) == 0 {
		panic("BUG: vm_block_stack is empty")
	}
	return b.vmBlockStack[len(b.vmBlockStack)-1]
}

// Code returns the raw, unpatched instruction bytes emitted so far.
// Exposed for tests and debugging; callers must not retain or mutate
// it across further instruction calls.
func (b *CodeBuilder) Code() []byte { return b.code }

// Len reports the current length of the unpatched instruction stream,
// i.e. the byte offset the next instruction will be emitted at.
func (b *CodeBuilder) Len() int { return len(b.code) }

// SetTopSymbol tags the value currently on top of the innermost open
// block's operand stack (which holds the WasmTmp sentinel immediately
// after an instruction emits it) as IR symbol sym, and returns the
// Pushed state the driver should remember for it.
func (b *CodeBuilder) SetTopSymbol(sym Symbol) VmSymbolState {
	block := b.currentBlock()
	if len(block.valueStack) == 0 {
		panic("BUG: SetTopSymbol called with an empty current-block stack")
	}
	pushedAt := len(b.code)
	block.valueStack[len(block.valueStack)-1] = sym
	return Pushed(pushedAt)
}

// VerifyStackMatch reports whether the last len(syms) entries of the
// current block's operand stack equal syms, in order. The driver uses
// this to detect whether an opcode can be emitted directly without
// shuffling.
func (b *CodeBuilder) VerifyStackMatch(syms []Symbol) bool {
	stack := b.currentBlock().valueStack
	if len(syms) > len(stack) {
		return false
	}
	offset := len(stack) - len(syms)
	for i, s := range syms {
		if stack[offset+i] != s {
			return false
		}
	}
	return true
}

func (b *CodeBuilder) addInsertion(insertAt int, opcode Opcode, immediate uint32) {
	start := len(b.insertBytes)
	b.insertBytes = append(b.insertBytes, byte(opcode))
	b.insertBytes = appendLEB128Uint32(b.insertBytes, immediate)
	b.insertions = append(b.insertions, insertion{at: insertAt, start: start, end: len(b.insertBytes)})
	b.trace("**insert %v %d at byte offset %d**", opcode, immediate, insertAt)
}

// LoadSymbol loads IR symbol sym, given the VmSymbolState the driver
// is holding for it, onto the top of the current block's operand
// stack, allocating nextLocalId if a local turns out to be necessary.
//
// It returns the updated VmSymbolState to remember for sym and
// promoted == true when sym is no longer tracked on the simulated
// operand stack at all (it has been promoted to a named local, and the
// caller must remember to declare nextLocalId in the function header).
// promoted == false means the returned state should be stored and
// passed back in on the next LoadSymbol call for this symbol.
//
// Case B's removal of an outer block's entry leaves that block's
// simulated height one short of its true runtime height; this is safe
// because of the discipline this emitter requires of callers: a
// symbol loaded out of its original block must not be reloaded by
// simulated position from that outer block again (see DESIGN.md).
func (b *CodeBuilder) LoadSymbol(sym Symbol, state VmSymbolState, nextLocalID LocalId) (updated VmSymbolState, promoted bool) {
	switch {
	case state.IsNotYetPushed():
		panic(fmt.Sprintf("BUG: symbol %d has no value yet, nothing to load", sym))

	case state.IsPushed():
		pushedAt := state.pushedAt
		if top, ok := b.currentBlock().top(); ok && top == sym {
			// Fast path: already on top of the current block. No code
			// to generate.
			return Popped(pushedAt), false
		}

		found := false
		for _, block := range b.vmBlockStack {
			if block.removeFirst(sym) {
				found = true
			}
		}

		if found {
			b.addInsertion(pushedAt, OpLocalSet, uint32(nextLocalID))
		} else {
			b.trace("%d has been popped implicitly, leaving it on the stack", sym)
			b.addInsertion(pushedAt, OpLocalTee, uint32(nextLocalID))
		}
		b.getLocalRaw(nextLocalID)
		b.SetTopSymbol(sym)
		return VmSymbolState{}, true

	case state.IsPopped():
		b.addInsertion(state.pushedAt, OpLocalTee, uint32(nextLocalID))
		b.getLocalRaw(nextLocalID)
		b.SetTopSymbol(sym)
		return VmSymbolState{}, true

	default:
		panic("BUG: invalid VmSymbolState")
	}
}

// InsertMemoryRelocation records a linker relocation for a memory
// address LEB128 immediate at the current code offset.
func (b *CodeBuilder) InsertMemoryRelocation(symbolIndex uint32) {
	b.relocations = append(b.relocations, RelocationEntry{
		Kind:        RelocationKindOffset,
		OffsetType:  MemoryAddrLeb,
		Offset:      uint32(len(b.code)),
		SymbolIndex: symbolIndex,
	})
}
