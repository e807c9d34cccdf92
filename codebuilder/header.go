package codebuilder

import (
	"sort"

	"github.com/wasmforge/wasmemit/internal/leb128"
)

// maxLocalBatch is the largest run of same-typed locals the local
// declarations vector can describe in one count/type pair before a
// count must start a fresh batch, chosen so every batch's count fits
// in a single, unpadded LEB128 byte (values 0-127). Runs longer than
// this split across multiple batches of the same type.
const maxLocalBatch = 127

// buildLocalDeclarations encodes the Wasm local-declarations vector
// for a function body: a count of (run-length, value-type) batches,
// followed by the batches themselves, run-length-encoding consecutive
// equal types. The batch count itself is written with plain
// variable-width LEB128, which already grows correctly for large
// counts, so there is no need to reserve a fixed-width field for it
// up front.
func buildLocalDeclarations(localTypes []ValueType) []byte {
	type batch struct {
		count uint32
		typ   ValueType
	}
	var batches []batch
	for _, t := range localTypes {
		if len(batches) > 0 && batches[len(batches)-1].typ == t && batches[len(batches)-1].count < maxLocalBatch {
			batches[len(batches)-1].count++
			continue
		}
		batches = append(batches, batch{count: 1, typ: t})
	}

	out := leb128.EncodeUint32(uint32(len(batches)))
	for _, bt := range batches {
		out = append(out, leb128.EncodeUint32(bt.count)...)
		out = append(out, byte(bt.typ))
	}
	return out
}

// alignUp rounds n up to the next multiple of align (align must be a
// power of two).
func alignUp(n, align int32) int32 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// buildStackFramePush emits the shadow-stack prologue: load the stack
// pointer global, subtract the (alignment-rounded) frame size, and
// store the result both back into the global and into framePointer,
// the local the rest of the function will address the frame through.
func (b *CodeBuilder) buildStackFramePush(frameSize int32, framePointer LocalId) []byte {
	aligned := alignUp(frameSize, b.cfg.FrameAlignmentBytes)

	var code []byte
	code = append(code, byte(OpGlobalGet))
	code = appendLEB128Uint32(code, b.cfg.StackPointerGlobalID)
	code = append(code, byte(OpI32Const))
	code = append(code, leb128.EncodeInt32(aligned)...)
	code = append(code, byte(OpI32Sub))
	code = append(code, byte(OpLocalTee))
	code = appendLEB128Uint32(code, uint32(framePointer))
	code = append(code, byte(OpGlobalSet))
	code = appendLEB128Uint32(code, b.cfg.StackPointerGlobalID)
	return code
}

// buildStackFramePop emits the shadow-stack epilogue: restore the
// stack pointer global by adding the frame size back to framePointer.
func (b *CodeBuilder) buildStackFramePop(frameSize int32, framePointer LocalId) []byte {
	aligned := alignUp(frameSize, b.cfg.FrameAlignmentBytes)

	var code []byte
	code = append(code, byte(OpLocalGet))
	code = appendLEB128Uint32(code, uint32(framePointer))
	code = append(code, byte(OpI32Const))
	code = append(code, leb128.EncodeInt32(aligned)...)
	code = append(code, byte(OpI32Add))
	code = append(code, byte(OpGlobalSet))
	code = appendLEB128Uint32(code, b.cfg.StackPointerGlobalID)
	return code
}

// BuildFnHeader finalizes the function body: it appends the function's
// closing end, assembles the local declarations vector, and — if
// frameSize is non-zero — places a shadow-stack prologue in the
// preamble after the local declarations and appends its matching
// epilogue directly before the final end. framePointer is the local
// the prologue stores the frame address into (via local.tee) and the
// epilogue reads it back from.
//
// After BuildFnHeader returns, the CodeBuilder is finalized: a second
// BuildFnHeader call panics, and SerializeWithRelocs may be called.
// Instruction methods do not check the finalized flag; an instruction
// emitted afterwards lands after the closing end and outside the
// recorded inner length.
func (b *CodeBuilder) BuildFnHeader(localTypes []ValueType, frameSize int32, framePointer LocalId) {
	if b.finalized {
		panic("BUG: BuildFnHeader called twice on the same CodeBuilder")
	}
	if len(b.vmBlockStack) != 1 {
		panic("BUG: BuildFnHeader called with open blocks remaining")
	}

	if frameSize != 0 {
		epilogue := b.buildStackFramePop(frameSize, framePointer)
		b.code = append(b.code, epilogue...)
		b.preamble = append(b.preamble, b.buildStackFramePush(frameSize, framePointer)...)
	}

	b.code = append(b.code, byte(OpEnd))

	b.preamble = append(buildLocalDeclarations(localTypes), b.preamble...)

	sort.SliceStable(b.insertions, func(i, j int) bool {
		return b.insertions[i].at < b.insertions[j].at
	})

	innerLen := len(b.preamble) + len(b.code) + len(b.insertBytes)
	b.innerLength = leb128.EncodeUint32(uint32(innerLen))

	b.finalized = true
}
