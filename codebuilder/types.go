package codebuilder

import "fmt"

// Symbol is an opaque identifier supplied by the IR. CodeBuilder never
// interprets a Symbol beyond equality comparison; it only tracks where
// on the simulated Wasm operand stack each one lives.
type Symbol uint64

// WasmTmp is the sentinel Symbol pushed by an instruction whose IR
// symbol the driver hasn't tagged yet. It is reserved and must never be
// allocated as a real IR symbol; callers are expected to allocate
// symbols from a lower id space (e.g. starting at 0) and leave the top
// of the Symbol range to this sentinel.
const WasmTmp Symbol = ^Symbol(0)

// LocalId names a Wasm local by index. The driver allocates fresh ids;
// CodeBuilder only emits local.get/set/tee for the ids it is given.
type LocalId uint32

// vmSymbolStateKind distinguishes the three live states of
// VmSymbolState. A fourth logical state, "Absent" (the symbol has been
// promoted to a named local and is no longer tracked on any simulated
// operand stack), is represented in Go by the caller simply discarding
// its VmSymbolState value — LoadSymbol returns (VmSymbolState{}, true)
// to signal it.
type vmSymbolStateKind uint8

const (
	vmStateNotYetPushed vmSymbolStateKind = iota
	vmStatePushed
	vmStatePopped
)

// VmSymbolState is the state the driver holds per IR symbol, outside
// the CodeBuilder, tracking where in the emitted byte stream that
// symbol's value was produced and whether it has since been consumed.
// The zero value is NotYetPushed.
type VmSymbolState struct {
	kind     vmSymbolStateKind
	pushedAt int
}

// NotYetPushed is the VmSymbolState of a symbol no instruction has
// produced a value for yet.
var NotYetPushed = VmSymbolState{kind: vmStateNotYetPushed}

// Pushed reports that the producing instruction ends at byte offset
// pushedAt in the code buffer (the code length SetTopSymbol saw right
// after it was emitted, where a later local.set/local.tee is spliced
// in), and the value is still on a simulated operand stack somewhere.
func Pushed(pushedAt int) VmSymbolState {
	return VmSymbolState{kind: vmStatePushed, pushedAt: pushedAt}
}

// Popped reports that the value was consumed once; if it's needed
// again, LoadSymbol will insert a local.tee at pushedAt.
func Popped(pushedAt int) VmSymbolState {
	return VmSymbolState{kind: vmStatePopped, pushedAt: pushedAt}
}

// IsNotYetPushed reports whether s is the initial, unproduced state.
func (s VmSymbolState) IsNotYetPushed() bool { return s.kind == vmStateNotYetPushed }

// IsPushed reports whether s still has a value on some block's
// operand stack that hasn't been consumed.
func (s VmSymbolState) IsPushed() bool { return s.kind == vmStatePushed }

// IsPopped reports whether s has been consumed exactly once already.
func (s VmSymbolState) IsPopped() bool { return s.kind == vmStatePopped }

func (s VmSymbolState) String() string {
	switch s.kind {
	case vmStateNotYetPushed:
		return "NotYetPushed"
	case vmStatePushed:
		return fmt.Sprintf("Pushed{pushed_at=%d}", s.pushedAt)
	case vmStatePopped:
		return fmt.Sprintf("Popped{pushed_at=%d}", s.pushedAt)
	default:
		return "invalid"
	}
}
