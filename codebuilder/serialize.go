package codebuilder

// SerializeWithRelocs appends the final encoded function body — inner
// length, local declarations and preamble, then the instruction stream
// with every pending insertion spliced in at its recorded offset — to
// buf, and returns the relocation entries rewritten into buf's
// coordinate system.
//
// relocBaseOffset rebases the returned relocation offsets: each one is
// computed as buf's absolute length when this function's body starts,
// minus relocBaseOffset, plus the byte's position within that body. A
// module assembler that appends every function straight into one
// code-section-body buffer, in order, wants cumulative,
// section-relative offsets and so always passes 0 — buf growing across
// calls already accounts for bytes contributed by all preceding
// functions in the section. relocBaseOffset only matters when buf
// holds more than just the code section (e.g. whole-file assembly),
// to subtract the code section's own start-of-body offset back out.
//
// Splicing happens lazily, here, rather than eagerly as each insertion
// is recorded, precisely so that insertion offsets and relocation
// offsets recorded against the unpatched code buffer never have to be
// adjusted for earlier insertions. insertions is kept sorted by offset
// (BuildFnHeader sorts it once) so a single left-to-right pass
// suffices.
//
// It must be called exactly once per CodeBuilder, after BuildFnHeader.
func (b *CodeBuilder) SerializeWithRelocs(buf *[]byte, relocBaseOffset int) []RelocationEntry {
	if !b.finalized {
		panic("BUG: SerializeWithRelocs called before BuildFnHeader")
	}

	*buf = append(*buf, b.innerLength...)
	*buf = append(*buf, b.preamble...)
	bodyStart := len(*buf)

	lastAt := 0
	for _, ins := range b.insertions {
		*buf = append(*buf, b.code[lastAt:ins.at]...)
		*buf = append(*buf, b.insertBytes[ins.start:ins.end]...)
		lastAt = ins.at
	}
	*buf = append(*buf, b.code[lastAt:]...)

	relocs := make([]RelocationEntry, len(b.relocations))
	for i, r := range b.relocations {
		offsetInBody := int(r.Offset) + insertedBefore(b.insertions, int(r.Offset))
		r.Offset = uint32(bodyStart - relocBaseOffset + offsetInBody)
		relocs[i] = r
	}

	return relocs
}

// insertedBefore returns the total number of bytes that insertions at
// or before offset contribute to the output stream, so a byte offset
// into the original unpatched code buffer can be translated into the
// spliced output's coordinate system.
func insertedBefore(insertions []insertion, offset int) int {
	total := 0
	for _, ins := range insertions {
		if ins.at > offset {
			break
		}
		total += ins.end - ins.start
	}
	return total
}
