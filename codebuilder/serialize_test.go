package codebuilder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeWithRelocs_PanicsBeforeFinalize(t *testing.T) {
	b := New(Config{})
	var buf []byte
	require.Panics(t, func() {
		b.SerializeWithRelocs(&buf, 0)
	})
}

// S3-style splicing: an insertion in the middle of the code stream
// must push every following byte, including relocation offsets,
// rightward by the insertion's width.
func TestSerializeWithRelocs_SplicesInsertionAndRewritesReloc(t *testing.T) {
	b := New(Config{})

	const sym Symbol = 1
	b.I32Const(1) // 2 bytes: opcode + imm
	pushed := b.SetTopSymbol(sym)

	for i := 0; i < 3; i++ {
		b.I32Const(int32(i))
	}
	b.InsertMemoryRelocation(99)
	b.I32Const(7)

	_, promoted := b.LoadSymbol(sym, pushed, 0)
	require.True(t, promoted)
	require.Len(t, b.insertions, 1)

	b.BuildFnHeader(nil, 0, 0)

	var buf []byte
	relocs := b.SerializeWithRelocs(&buf, 0)
	require.Len(t, relocs, 1)

	insertedLen := b.insertions[0].end - b.insertions[0].start
	at := b.insertions[0].at
	preambleLen := len(b.preamble)

	// Directly re-derive the expected offset the way §4.5 describes it:
	// the inner-length prefix and preamble written before the code, plus
	// the insertion's width if it lands at or before the relocation's
	// original offset, plus the relocation's original offset itself.
	original := b.relocations[0].Offset
	expect := len(b.innerLength) + preambleLen + int(original)
	if at <= int(original) {
		expect += insertedLen
	}
	require.Equal(t, uint32(expect), relocs[0].Offset)

	require.Equal(t, byte(OpEnd), buf[len(buf)-1])
}

func TestSerializeWithRelocs_Deterministic(t *testing.T) {
	newBuilder := func() *CodeBuilder {
		b := New(Config{})
		const sym Symbol = 5
		b.I32Const(42)
		pushed := b.SetTopSymbol(sym)
		b.I32Const(1)
		b.LoadSymbol(sym, pushed, 0)
		b.I32Add()
		b.BuildFnHeader([]ValueType{ValueTypeI32}, 0, 0)
		return b
	}

	b1 := newBuilder()
	b2 := newBuilder()

	var buf1, buf2 []byte
	relocs1 := b1.SerializeWithRelocs(&buf1, 0)
	relocs2 := b2.SerializeWithRelocs(&buf2, 0)

	require.Equal(t, buf1, buf2)
	require.Equal(t, relocs1, relocs2)
}

// Concatenating two functions into one shared buffer with
// relocBaseOffset left at 0 throughout must produce cumulative,
// section-relative offsets: fn2's relocation lands exactly as many
// bytes further into the buffer as fn1's whole serialized body is
// long.
func TestSerializeWithRelocs_ConcatenatesCumulatively(t *testing.T) {
	mkFn := func() *CodeBuilder {
		b := New(Config{})
		b.I32Const(1)
		b.InsertMemoryRelocation(7)
		b.I32Const(2)
		b.BuildFnHeader(nil, 0, 0)
		return b
	}

	fn1 := mkFn()
	fn2 := mkFn()

	var section []byte
	relocs1 := fn1.SerializeWithRelocs(&section, 0)
	fn1Len := len(section)
	relocs2 := fn2.SerializeWithRelocs(&section, 0)

	require.Equal(t, relocs1[0].Offset+uint32(fn1Len), relocs2[0].Offset)
}

// relocBaseOffset lets a caller rebase away an outer buffer's leading
// bytes (e.g. everything before the code section in a whole-file
// buffer) so relocations still come back section-relative even though
// buf itself did not start empty.
func TestSerializeWithRelocs_RelocBaseOffsetRebasesAwayPrefix(t *testing.T) {
	b := New(Config{})
	b.I32Const(1)
	b.InsertMemoryRelocation(7)
	b.BuildFnHeader(nil, 0, 0)

	prefix := []byte{0xde, 0xad, 0xbe, 0xef}
	buf := append([]byte{}, prefix...)
	relocs := b.SerializeWithRelocs(&buf, len(prefix))

	var freshBuf []byte
	fresh := New(Config{})
	fresh.I32Const(1)
	fresh.InsertMemoryRelocation(7)
	fresh.BuildFnHeader(nil, 0, 0)
	freshRelocs := fresh.SerializeWithRelocs(&freshBuf, 0)

	require.Equal(t, freshRelocs[0].Offset, relocs[0].Offset)
}
