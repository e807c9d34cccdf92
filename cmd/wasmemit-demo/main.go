// Command wasmemit-demo is a small development aid that reads a
// textual instruction script, drives a codebuilder.CodeBuilder with
// it, and prints the resulting Wasm function body as a hex dump plus
// its relocation table. It exists for poking at the emitter from a
// terminal, the same spirit as cmd/wazero's compile/run subcommands,
// not as a production entry point.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/wasmforge/wasmemit/codebuilder"
)

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

// doMain is separated from main so tests can drive it without
// touching real argv/stdio.
func doMain(args []string, stdOut, stdErr io.Writer) int {
	flags := flag.NewFlagSet("wasmemit-demo", flag.ContinueOnError)
	flags.SetOutput(stdErr)

	var scriptPath string
	var trace bool
	var frameSize int
	flags.StringVar(&scriptPath, "script", "", "path to an instruction script (required)")
	flags.BoolVar(&trace, "trace", false, "print each emitted instruction as it is processed")
	flags.IntVar(&frameSize, "frame-size", 0, "shadow-stack frame size in bytes (0 disables the prologue/epilogue)")

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if scriptPath == "" {
		fmt.Fprintln(stdErr, "missing required -script flag")
		flags.Usage()
		return 2
	}

	f, err := os.Open(scriptPath)
	if err != nil {
		fmt.Fprintf(stdErr, "open script: %v\n", err)
		return 1
	}
	defer f.Close()

	cfg := codebuilder.Config{}
	if trace {
		cfg.Trace = log.New(stdErr, "", 0).Printf
	}
	b := codebuilder.New(cfg)

	if err := runScript(b, f); err != nil {
		fmt.Fprintf(stdErr, "script error: %v\n", err)
		return 1
	}

	var framePointer codebuilder.LocalId
	b.BuildFnHeader(nil, int32(frameSize), framePointer)

	var buf []byte
	relocs := b.SerializeWithRelocs(&buf, 0)

	fmt.Fprintf(stdOut, "function body (%d bytes):\n%s\n", len(buf), hex.Dump(buf))
	fmt.Fprintf(stdOut, "relocations: %d\n", len(relocs))
	for _, r := range relocs {
		fmt.Fprintf(stdOut, "  offset=%d symbol=%d kind=%d\n", r.Offset, r.SymbolIndex, r.Kind)
	}

	return 0
}
