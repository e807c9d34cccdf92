package codebuilder

import "github.com/wasmforge/wasmemit/internal/leb128"

// appendLEB128Uint32 appends the unsigned LEB128 encoding of v to buf
// and returns the extended slice. Used for immediates that never need
// relocation (block arities, non-relocatable indices).
func appendLEB128Uint32(buf []byte, v uint32) []byte {
	return append(buf, leb128.EncodeUint32(v)...)
}

// instBase emits opcode with no immediate, popping pops values and
// pushing one WasmTmp placeholder if pushesResult is true. It is the
// common path shared by every arithmetic, comparison, and conversion
// instruction.
func (b *CodeBuilder) instBase(opcode Opcode, pops int, pushesResult bool) {
	block := b.currentBlock()
	if len(block.valueStack) < pops {
		panic("BUG: instruction pops more values than the current block has")
	}
	block.truncate(len(block.valueStack) - pops)
	b.code = append(b.code, byte(opcode))
	if pushesResult {
		block.push(WasmTmp)
	}
	b.trace("%v", opcode)
}

// instImm32 emits opcode followed by a plain (non-relocatable) LEB128
// immediate, popping pops values and pushing one result if
// pushesResult is true.
func (b *CodeBuilder) instImm32(opcode Opcode, imm uint32, pops int, pushesResult bool) {
	block := b.currentBlock()
	if len(block.valueStack) < pops {
		panic("BUG: instruction pops more values than the current block has")
	}
	block.truncate(len(block.valueStack) - pops)
	b.code = append(b.code, byte(opcode))
	b.code = appendLEB128Uint32(b.code, imm)
	if pushesResult {
		block.push(WasmTmp)
	}
	b.trace("%v %d", opcode, imm)
}

// instSignedImm64 is instImm32's i64.const counterpart, using signed LEB128.
func (b *CodeBuilder) instSignedImm64(opcode Opcode, imm int64) {
	block := b.currentBlock()
	b.code = append(b.code, byte(opcode))
	b.code = append(b.code, leb128.EncodeInt64(imm)...)
	block.push(WasmTmp)
	b.trace("%v %d", opcode, imm)
}

func (b *CodeBuilder) instSignedImm32(opcode Opcode, imm int32) {
	block := b.currentBlock()
	b.code = append(b.code, byte(opcode))
	b.code = append(b.code, leb128.EncodeInt32(imm)...)
	block.push(WasmTmp)
	b.trace("%v %d", opcode, imm)
}

// instMem emits a load/store opcode with its (align, offset) memarg
// pair, per the Wasm binary format. pops/pushesResult follow the same
// convention as instBase.
func (b *CodeBuilder) instMem(opcode Opcode, align Align, offset uint32, pops int, pushesResult bool) {
	block := b.currentBlock()
	if len(block.valueStack) < pops {
		panic("BUG: instruction pops more values than the current block has")
	}
	block.truncate(len(block.valueStack) - pops)
	b.code = append(b.code, byte(opcode))
	b.code = appendLEB128Uint32(b.code, uint32(align))
	b.code = appendLEB128Uint32(b.code, offset)
	if pushesResult {
		block.push(WasmTmp)
	}
	b.trace("%v align=%d offset=%d", opcode, align, offset)
}

// getLocalRaw emits a bare local.get for id without touching the IR
// symbol bookkeeping; LoadSymbol calls this and then immediately
// overwrites the pushed WasmTmp placeholder via SetTopSymbol.
func (b *CodeBuilder) getLocalRaw(id LocalId) {
	block := b.currentBlock()
	b.code = append(b.code, byte(OpLocalGet))
	b.code = appendLEB128Uint32(b.code, uint32(id))
	block.push(WasmTmp)
}

// LocalGet emits local.get for id, pushing one value.
func (b *CodeBuilder) LocalGet(id LocalId) {
	b.getLocalRaw(id)
	b.trace("%v %d", OpLocalGet, id)
}

// LocalSet emits local.set for id, popping one value.
func (b *CodeBuilder) LocalSet(id LocalId) {
	b.instImm32(OpLocalSet, uint32(id), 1, false)
}

// LocalTee emits local.tee for id, popping and re-pushing one value.
func (b *CodeBuilder) LocalTee(id LocalId) {
	b.instImm32(OpLocalTee, uint32(id), 1, true)
}

// GlobalGet emits global.get for id, pushing one value.
func (b *CodeBuilder) GlobalGet(id uint32) { b.instImm32(OpGlobalGet, id, 0, true) }

// GlobalSet emits global.set for id, popping one value.
func (b *CodeBuilder) GlobalSet(id uint32) { b.instImm32(OpGlobalSet, id, 1, false) }

// I32Const emits i32.const imm.
func (b *CodeBuilder) I32Const(imm int32) { b.instSignedImm32(OpI32Const, imm) }

// I64Const emits i64.const imm.
func (b *CodeBuilder) I64Const(imm int64) { b.instSignedImm64(OpI64Const, imm) }

// F32Const emits f32.const imm, stored as its raw IEEE-754 bit pattern
// in little-endian order, per the Wasm binary format (not LEB128).
func (b *CodeBuilder) F32Const(bits uint32) {
	block := b.currentBlock()
	b.code = append(b.code, byte(OpF32Const))
	b.code = append(b.code, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	block.push(WasmTmp)
	b.trace("%v %#x", OpF32Const, bits)
}

// F64Const emits f64.const imm, stored as its raw IEEE-754 bit pattern
// in little-endian order.
func (b *CodeBuilder) F64Const(bits uint64) {
	block := b.currentBlock()
	b.code = append(b.code, byte(OpF64Const))
	for i := 0; i < 8; i++ {
		b.code = append(b.code, byte(bits>>(8*i)))
	}
	block.push(WasmTmp)
	b.trace("%v %#x", OpF64Const, bits)
}

// Drop emits drop, popping one value and producing nothing.
func (b *CodeBuilder) Drop() { b.instBase(OpDrop, 1, false) }

// Select emits select, popping three values and pushing one.
func (b *CodeBuilder) Select() { b.instBase(OpSelect, 3, true) }

// unary/binary cover every remaining
// opcode that needs no immediate; they are thin wrappers over instBase
// named for the driver's convenience and documentation.
func (b *CodeBuilder) unary(opcode Opcode)  { b.instBase(opcode, 1, true) }
func (b *CodeBuilder) binary(opcode Opcode) { b.instBase(opcode, 2, true) }

func (b *CodeBuilder) I32Add() { b.binary(OpI32Add) }
func (b *CodeBuilder) I32Sub() { b.binary(OpI32Sub) }
func (b *CodeBuilder) I32Mul() { b.binary(OpI32Mul) }
func (b *CodeBuilder) I32DivS() { b.binary(OpI32DivS) }
func (b *CodeBuilder) I32DivU() { b.binary(OpI32DivU) }
func (b *CodeBuilder) I32RemS() { b.binary(OpI32RemS) }
func (b *CodeBuilder) I32RemU() { b.binary(OpI32RemU) }
func (b *CodeBuilder) I32And() { b.binary(OpI32And) }
func (b *CodeBuilder) I32Or() { b.binary(OpI32Or) }
func (b *CodeBuilder) I32Xor() { b.binary(OpI32Xor) }
func (b *CodeBuilder) I32Shl() { b.binary(OpI32Shl) }
func (b *CodeBuilder) I32ShrS() { b.binary(OpI32ShrS) }
func (b *CodeBuilder) I32ShrU() { b.binary(OpI32ShrU) }
func (b *CodeBuilder) I32Eq() { b.binary(OpI32Eq) }
func (b *CodeBuilder) I32Ne() { b.binary(OpI32Ne) }
func (b *CodeBuilder) I32LtS() { b.binary(OpI32LtS) }
func (b *CodeBuilder) I32LtU() { b.binary(OpI32LtU) }
func (b *CodeBuilder) I32GtS() { b.binary(OpI32GtS) }
func (b *CodeBuilder) I32GtU() { b.binary(OpI32GtU) }
func (b *CodeBuilder) I32LeS() { b.binary(OpI32LeS) }
func (b *CodeBuilder) I32LeU() { b.binary(OpI32LeU) }
func (b *CodeBuilder) I32GeS() { b.binary(OpI32GeS) }
func (b *CodeBuilder) I32GeU() { b.binary(OpI32GeU) }
func (b *CodeBuilder) I32Eqz() { b.unary(OpI32Eqz) }
func (b *CodeBuilder) I32Clz() { b.unary(OpI32Clz) }
func (b *CodeBuilder) I32Ctz() { b.unary(OpI32Ctz) }
func (b *CodeBuilder) I32Popcnt() { b.unary(OpI32Popcnt) }

func (b *CodeBuilder) I64Add() { b.binary(OpI64Add) }
func (b *CodeBuilder) I64Sub() { b.binary(OpI64Sub) }
func (b *CodeBuilder) I64Mul() { b.binary(OpI64Mul) }
func (b *CodeBuilder) I64DivS() { b.binary(OpI64DivS) }
func (b *CodeBuilder) I64DivU() { b.binary(OpI64DivU) }
func (b *CodeBuilder) I64RemS() { b.binary(OpI64RemS) }
func (b *CodeBuilder) I64RemU() { b.binary(OpI64RemU) }
func (b *CodeBuilder) I64And() { b.binary(OpI64And) }
func (b *CodeBuilder) I64Or() { b.binary(OpI64Or) }
func (b *CodeBuilder) I64Xor() { b.binary(OpI64Xor) }
func (b *CodeBuilder) I64Shl() { b.binary(OpI64Shl) }
func (b *CodeBuilder) I64ShrS() { b.binary(OpI64ShrS) }
func (b *CodeBuilder) I64ShrU() { b.binary(OpI64ShrU) }
func (b *CodeBuilder) I64Eq() { b.binary(OpI64Eq) }
func (b *CodeBuilder) I64Ne() { b.binary(OpI64Ne) }
func (b *CodeBuilder) I64LtS() { b.binary(OpI64LtS) }
func (b *CodeBuilder) I64GtS() { b.binary(OpI64GtS) }
func (b *CodeBuilder) I64LeS() { b.binary(OpI64LeS) }
func (b *CodeBuilder) I64GeS() { b.binary(OpI64GeS) }
func (b *CodeBuilder) I64Eqz() { b.unary(OpI64Eqz) }
func (b *CodeBuilder) I64LtU() { b.binary(OpI64LtU) }
func (b *CodeBuilder) I64GtU() { b.binary(OpI64GtU) }
func (b *CodeBuilder) I64LeU() { b.binary(OpI64LeU) }
func (b *CodeBuilder) I64GeU() { b.binary(OpI64GeU) }
func (b *CodeBuilder) I64Clz() { b.unary(OpI64Clz) }
func (b *CodeBuilder) I64Ctz() { b.unary(OpI64Ctz) }
func (b *CodeBuilder) I64Popcnt() { b.unary(OpI64Popcnt) }
func (b *CodeBuilder) I32Rotl() { b.binary(OpI32Rotl) }
func (b *CodeBuilder) I32Rotr() { b.binary(OpI32Rotr) }
func (b *CodeBuilder) I64Rotl() { b.binary(OpI64Rotl) }
func (b *CodeBuilder) I64Rotr() { b.binary(OpI64Rotr) }

func (b *CodeBuilder) F32Add() { b.binary(OpF32Add) }
func (b *CodeBuilder) F32Sub() { b.binary(OpF32Sub) }
func (b *CodeBuilder) F32Mul() { b.binary(OpF32Mul) }
func (b *CodeBuilder) F32Div() { b.binary(OpF32Div) }
func (b *CodeBuilder) F32Neg() { b.unary(OpF32Neg) }
func (b *CodeBuilder) F32Sqrt() { b.unary(OpF32Sqrt) }
func (b *CodeBuilder) F32Abs() { b.unary(OpF32Abs) }
func (b *CodeBuilder) F32Ceil() { b.unary(OpF32Ceil) }
func (b *CodeBuilder) F32Floor() { b.unary(OpF32Floor) }
func (b *CodeBuilder) F32Trunc() { b.unary(OpF32Trunc) }
func (b *CodeBuilder) F32Nearest() { b.unary(OpF32Nearest) }
func (b *CodeBuilder) F32Min() { b.binary(OpF32Min) }
func (b *CodeBuilder) F32Max() { b.binary(OpF32Max) }
func (b *CodeBuilder) F32Copysign() { b.binary(OpF32Copysign) }
func (b *CodeBuilder) F32Eq() { b.binary(OpF32Eq) }
func (b *CodeBuilder) F32Ne() { b.binary(OpF32Ne) }
func (b *CodeBuilder) F32Lt() { b.binary(OpF32Lt) }
func (b *CodeBuilder) F32Gt() { b.binary(OpF32Gt) }
func (b *CodeBuilder) F32Le() { b.binary(OpF32Le) }
func (b *CodeBuilder) F32Ge() { b.binary(OpF32Ge) }

func (b *CodeBuilder) F64Add() { b.binary(OpF64Add) }
func (b *CodeBuilder) F64Sub() { b.binary(OpF64Sub) }
func (b *CodeBuilder) F64Mul() { b.binary(OpF64Mul) }
func (b *CodeBuilder) F64Div() { b.binary(OpF64Div) }
func (b *CodeBuilder) F64Neg() { b.unary(OpF64Neg) }
func (b *CodeBuilder) F64Sqrt() { b.unary(OpF64Sqrt) }
func (b *CodeBuilder) F64Abs() { b.unary(OpF64Abs) }
func (b *CodeBuilder) F64Ceil() { b.unary(OpF64Ceil) }
func (b *CodeBuilder) F64Floor() { b.unary(OpF64Floor) }
func (b *CodeBuilder) F64Trunc() { b.unary(OpF64Trunc) }
func (b *CodeBuilder) F64Nearest() { b.unary(OpF64Nearest) }
func (b *CodeBuilder) F64Min() { b.binary(OpF64Min) }
func (b *CodeBuilder) F64Max() { b.binary(OpF64Max) }
func (b *CodeBuilder) F64Copysign() { b.binary(OpF64Copysign) }
func (b *CodeBuilder) F64Eq() { b.binary(OpF64Eq) }
func (b *CodeBuilder) F64Ne() { b.binary(OpF64Ne) }
func (b *CodeBuilder) F64Lt() { b.binary(OpF64Lt) }
func (b *CodeBuilder) F64Gt() { b.binary(OpF64Gt) }
func (b *CodeBuilder) F64Le() { b.binary(OpF64Le) }
func (b *CodeBuilder) F64Ge() { b.binary(OpF64Ge) }

func (b *CodeBuilder) I32WrapI64() { b.unary(OpI32WrapI64) }
func (b *CodeBuilder) I64ExtendI32S() { b.unary(OpI64ExtendI32S) }
func (b *CodeBuilder) I64ExtendI32U() { b.unary(OpI64ExtendI32U) }
func (b *CodeBuilder) I32TruncF32S() { b.unary(OpI32TruncF32S) }
func (b *CodeBuilder) I32TruncF32U() { b.unary(OpI32TruncF32U) }
func (b *CodeBuilder) I32TruncF64S() { b.unary(OpI32TruncF64S) }
func (b *CodeBuilder) I32TruncF64U() { b.unary(OpI32TruncF64U) }
func (b *CodeBuilder) I64TruncF32S() { b.unary(OpI64TruncF32S) }
func (b *CodeBuilder) I64TruncF32U() { b.unary(OpI64TruncF32U) }
func (b *CodeBuilder) I64TruncF64S() { b.unary(OpI64TruncF64S) }
func (b *CodeBuilder) I64TruncF64U() { b.unary(OpI64TruncF64U) }
func (b *CodeBuilder) F32ConvertI32S() { b.unary(OpF32ConvertI32S) }
func (b *CodeBuilder) F32ConvertI32U() { b.unary(OpF32ConvertI32U) }
func (b *CodeBuilder) F32ConvertI64S() { b.unary(OpF32ConvertI64S) }
func (b *CodeBuilder) F32ConvertI64U() { b.unary(OpF32ConvertI64U) }
func (b *CodeBuilder) F64ConvertI32S() { b.unary(OpF64ConvertI32S) }
func (b *CodeBuilder) F64ConvertI32U() { b.unary(OpF64ConvertI32U) }
func (b *CodeBuilder) F64ConvertI64S() { b.unary(OpF64ConvertI64S) }
func (b *CodeBuilder) F64ConvertI64U() { b.unary(OpF64ConvertI64U) }
func (b *CodeBuilder) F64PromoteF32() { b.unary(OpF64PromoteF32) }
func (b *CodeBuilder) F32DemoteF64() { b.unary(OpF32DemoteF64) }
func (b *CodeBuilder) I32ReinterpretF32() { b.unary(OpI32ReinterpretF32) }
func (b *CodeBuilder) I64ReinterpretF64() { b.unary(OpI64ReinterpretF64) }
func (b *CodeBuilder) F32ReinterpretI32() { b.unary(OpF32ReinterpretI32) }
func (b *CodeBuilder) F64ReinterpretI64() { b.unary(OpF64ReinterpretI64) }

// I32Load and friends follow the (align, offset) memarg convention.
func (b *CodeBuilder) I32Load(align Align, offset uint32) { b.instMem(OpI32Load, align, offset, 1, true) }
func (b *CodeBuilder) I64Load(align Align, offset uint32) { b.instMem(OpI64Load, align, offset, 1, true) }
func (b *CodeBuilder) F32Load(align Align, offset uint32) { b.instMem(OpF32Load, align, offset, 1, true) }
func (b *CodeBuilder) F64Load(align Align, offset uint32) { b.instMem(OpF64Load, align, offset, 1, true) }
func (b *CodeBuilder) I32Load8S(align Align, offset uint32) { b.instMem(OpI32Load8S, align, offset, 1, true) }
func (b *CodeBuilder) I32Load8U(align Align, offset uint32) { b.instMem(OpI32Load8U, align, offset, 1, true) }
func (b *CodeBuilder) I32Load16S(align Align, offset uint32) { b.instMem(OpI32Load16S, align, offset, 1, true) }
func (b *CodeBuilder) I32Load16U(align Align, offset uint32) { b.instMem(OpI32Load16U, align, offset, 1, true) }
func (b *CodeBuilder) I64Load8S(align Align, offset uint32) { b.instMem(OpI64Load8S, align, offset, 1, true) }
func (b *CodeBuilder) I64Load8U(align Align, offset uint32) { b.instMem(OpI64Load8U, align, offset, 1, true) }
func (b *CodeBuilder) I64Load16S(align Align, offset uint32) { b.instMem(OpI64Load16S, align, offset, 1, true) }
func (b *CodeBuilder) I64Load16U(align Align, offset uint32) { b.instMem(OpI64Load16U, align, offset, 1, true) }
func (b *CodeBuilder) I64Load32S(align Align, offset uint32) { b.instMem(OpI64Load32S, align, offset, 1, true) }
func (b *CodeBuilder) I64Load32U(align Align, offset uint32) { b.instMem(OpI64Load32U, align, offset, 1, true) }

func (b *CodeBuilder) I32Store(align Align, offset uint32) { b.instMem(OpI32Store, align, offset, 2, false) }
func (b *CodeBuilder) I64Store(align Align, offset uint32) { b.instMem(OpI64Store, align, offset, 2, false) }
func (b *CodeBuilder) F32Store(align Align, offset uint32) { b.instMem(OpF32Store, align, offset, 2, false) }
func (b *CodeBuilder) F64Store(align Align, offset uint32) { b.instMem(OpF64Store, align, offset, 2, false) }
func (b *CodeBuilder) I32Store8(align Align, offset uint32) { b.instMem(OpI32Store8, align, offset, 2, false) }
func (b *CodeBuilder) I32Store16(align Align, offset uint32) { b.instMem(OpI32Store16, align, offset, 2, false) }
func (b *CodeBuilder) I64Store8(align Align, offset uint32) { b.instMem(OpI64Store8, align, offset, 2, false) }
func (b *CodeBuilder) I64Store16(align Align, offset uint32) { b.instMem(OpI64Store16, align, offset, 2, false) }
func (b *CodeBuilder) I64Store32(align Align, offset uint32) { b.instMem(OpI64Store32, align, offset, 2, false) }

// MemorySize emits memory.size, pushing the current page count.
func (b *CodeBuilder) MemorySize() {
	block := b.currentBlock()
	b.code = append(b.code, byte(OpMemorySize), 0x00)
	block.push(WasmTmp)
	b.trace("%v", OpMemorySize)
}

// MemoryGrow emits memory.grow, popping the delta and pushing the old
// page count (or -1 on failure).
func (b *CodeBuilder) MemoryGrow() {
	block := b.currentBlock()
	if len(block.valueStack) < 1 {
		panic("BUG: instruction pops more values than the current block has")
	}
	block.truncate(len(block.valueStack) - 1)
	b.code = append(b.code, byte(OpMemoryGrow), 0x00)
	block.push(WasmTmp)
	b.trace("%v", OpMemoryGrow)
}

// Call emits call to funcIndex using a padded 5-byte LEB128 immediate
// and records a function-index relocation at that immediate's offset,
// since the final function index isn't known until the whole module's
// function section is laid out. symbolIndex names the callee in a
// linker-defined symbol table and is independent of funcIndex: a
// driver calling an import or builtin whose symbol-table entry differs
// from its placeholder pre-link function index passes both. pops/
// pushesResult describe the callee's signature as the driver sees it.
func (b *CodeBuilder) Call(funcIndex uint32, symbolIndex uint32, pops int, pushesResult bool) {
	block := b.currentBlock()
	if len(block.valueStack) < pops {
		panic("BUG: call pops more arguments than the current block has")
	}
	block.truncate(len(block.valueStack) - pops)
	b.code = append(b.code, byte(OpCall))
	relocOffset := uint32(len(b.code))
	b.code = append(b.code, leb128.EncodePaddedUint32(funcIndex)...)
	b.relocations = append(b.relocations, RelocationEntry{
		Kind:        RelocationKindIndex,
		IndexType:   FunctionIndexLeb,
		Offset:      relocOffset,
		SymbolIndex: symbolIndex,
	})
	if pushesResult {
		block.push(WasmTmp)
	}
	b.trace("%v %d (reloc symbol=%d)", OpCall, funcIndex, symbolIndex)
}

// Unreachable emits unreachable.
func (b *CodeBuilder) Unreachable() {
	b.code = append(b.code, byte(OpUnreachable))
	b.trace("%v", OpUnreachable)
}

// Nop emits nop.
func (b *CodeBuilder) Nop() {
	b.code = append(b.code, byte(OpNop))
	b.trace("%v", OpNop)
}

// Return emits return. It does not clear the current block's simulated
// stack; the driver is expected to have already drained it to the
// function's result arity before calling Return, matching how an
// actual Wasm validator treats the instruction as polymorphic.
func (b *CodeBuilder) Return() {
	b.code = append(b.code, byte(OpReturn))
	b.trace("%v", OpReturn)
}

// Block opens a new block with the given result type, pushing a fresh
// vmBlock onto vmBlockStack.
func (b *CodeBuilder) Block(bt BlockType) {
	b.code = append(b.code, byte(OpBlock), bt.byte())
	b.vmBlockStack = append(b.vmBlockStack, newVMBlock(OpBlock, bt.HasResult))
	b.trace("block %v", bt)
}

// Loop opens a new loop block.
func (b *CodeBuilder) Loop(bt BlockType) {
	b.code = append(b.code, byte(OpLoop), bt.byte())
	b.vmBlockStack = append(b.vmBlockStack, newVMBlock(OpLoop, bt.HasResult))
	b.trace("loop %v", bt)
}

// If pops the condition and opens a new if block.
func (b *CodeBuilder) If(bt BlockType) {
	block := b.currentBlock()
	if len(block.valueStack) < 1 {
		panic("BUG: instruction pops more values than the current block has")
	}
	block.truncate(len(block.valueStack) - 1)
	b.code = append(b.code, byte(OpIf), bt.byte())
	b.vmBlockStack = append(b.vmBlockStack, newVMBlock(OpIf, bt.HasResult))
	b.trace("if %v", bt)
}

// Else closes the if-branch's operand stack and opens the else-branch
// with a fresh, identically-typed vmBlock: the two branches never
// share operand-stack state even though they share one Wasm block
// header.
func (b *CodeBuilder) Else() {
	top := b.currentBlock()
	hasResult := top.hasResult
	b.code = append(b.code, byte(OpElse))
	b.vmBlockStack[len(b.vmBlockStack)-1] = newVMBlock(OpElse, hasResult)
	b.trace("else")
}

// End closes the innermost open block, emitting its end opcode and, if
// the block has a result, moving its top symbol onto the parent
// block's simulated stack — not a fresh WasmTmp, since the value
// itself isn't re-produced here and LoadSymbol must still be able to
// find the symbol that produced it.
func (b *CodeBuilder) End() {
	if len(b.vmBlockStack) <= 1 {
		panic("BUG: End called with no open block (root function block cannot be closed this way)")
	}
	closed := b.vmBlockStack[len(b.vmBlockStack)-1]
	b.vmBlockStack = b.vmBlockStack[:len(b.vmBlockStack)-1]
	b.code = append(b.code, byte(OpEnd))
	if closed.hasResult {
		if sym, ok := closed.top(); ok {
			b.currentBlock().push(sym)
		}
	}
	b.trace("end")
}

// Br emits br to the given relative block depth. Per the Wasm spec
// this instruction is stack-polymorphic; the driver is responsible for
// having arranged the branch's result value(s), if any, on top of the
// current block's simulated stack before calling Br.
func (b *CodeBuilder) Br(depth uint32) {
	b.code = append(b.code, byte(OpBr))
	b.code = appendLEB128Uint32(b.code, depth)
	b.trace("br %d", depth)
}

// BrIf emits br_if to the given relative block depth, popping only the
// condition: the static model here mirrors the interpreter, not the
// validator, since BrIf's branch arm is taken conditionally at runtime
// and a static pop of its result type would be unsound.
func (b *CodeBuilder) BrIf(depth uint32) {
	block := b.currentBlock()
	if len(block.valueStack) < 1 {
		panic("BUG: instruction pops more values than the current block has")
	}
	block.truncate(len(block.valueStack) - 1)
	b.code = append(b.code, byte(OpBrIf))
	b.code = appendLEB128Uint32(b.code, depth)
	b.trace("br_if %d", depth)
}
