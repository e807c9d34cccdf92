package codebuilder

// IndexRelocType identifies what kind of index-valued immediate a
// RelocationEntry points at.
type IndexRelocType byte

const (
	// FunctionIndexLeb marks a padded 5-byte LEB128 function index, as
	// written by the call instruction.
	FunctionIndexLeb IndexRelocType = iota
)

// OffsetRelocType identifies what kind of address-valued immediate a
// RelocationEntry points at.
type OffsetRelocType byte

const (
	// MemoryAddrLeb marks a LEB128 memory address immediate, recorded by
	// InsertMemoryRelocation.
	MemoryAddrLeb OffsetRelocType = iota
)

// RelocationEntry is linker metadata letting a later linking step
// rewrite an immediate after code layout is fixed. Kind says which of
// the two shapes an entry has: IndexType applies to index entries,
// OffsetType and Addend to offset entries; Offset and SymbolIndex are
// set for both.
type RelocationEntry struct {
	Kind RelocationKind

	// Offset is the byte offset of the immediate being relocated. While
	// the entry lives inside a CodeBuilder this is an offset into that
	// builder's code buffer; SerializeWithRelocs rewrites it into the
	// final code-section-body coordinate system before handing it back
	// to the caller.
	Offset uint32

	// SymbolIndex names, in a linker-defined symbol table, the function
	// or data object this relocation refers to.
	SymbolIndex uint32

	// IndexType is meaningful when Kind == RelocationKindIndex.
	IndexType IndexRelocType

	// OffsetType and Addend are meaningful when Kind ==
	// RelocationKindOffset. Addend is the linker-added delta to apply
	// on top of the symbol's resolved address.
	OffsetType OffsetRelocType
	Addend     int32
}

// RelocationKind distinguishes the two RelocationEntry shapes: an
// index-valued immediate and an offset-valued immediate.
type RelocationKind byte

const (
	// RelocationKindIndex relocates a function-index immediate.
	RelocationKindIndex RelocationKind = iota
	// RelocationKindOffset relocates a memory-address immediate.
	RelocationKindOffset
)
