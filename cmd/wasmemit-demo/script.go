package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wasmforge/wasmemit/codebuilder"
)

// runScript reads a tiny textual instruction script, one mnemonic per
// line, and drives b accordingly. It understands a small, fixed subset
// of Wasm mnemonics sufficient to demonstrate the emitter; anything
// richer belongs in the real IR-to-Wasm translator this module treats
// as an external collaborator.
//
// Recognized lines:
//
//	i32.const <n>
//	i64.const <n>
//	i32.add / i32.sub / i32.mul
//	local.get <id> / local.set <id> / local.tee <id>
//	call <funcIndex> <symbolIndex> <pops> <hasResult: true|false>
//	drop
//	# comment / blank lines are ignored
func runScript(b *codebuilder.CodeBuilder, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := runLine(b, line); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

func runLine(b *codebuilder.CodeBuilder, line string) error {
	fields := strings.Fields(line)
	mnemonic := fields[0]
	args := fields[1:]

	switch mnemonic {
	case "i32.const":
		n, err := parseInt(args, 0)
		if err != nil {
			return err
		}
		b.I32Const(int32(n))
	case "i64.const":
		n, err := parseInt(args, 0)
		if err != nil {
			return err
		}
		b.I64Const(n)
	case "i32.add":
		b.I32Add()
	case "i32.sub":
		b.I32Sub()
	case "i32.mul":
		b.I32Mul()
	case "local.get":
		id, err := parseLocalID(args)
		if err != nil {
			return err
		}
		b.LocalGet(id)
	case "local.set":
		id, err := parseLocalID(args)
		if err != nil {
			return err
		}
		b.LocalSet(id)
	case "local.tee":
		id, err := parseLocalID(args)
		if err != nil {
			return err
		}
		b.LocalTee(id)
	case "call":
		if len(args) != 4 {
			return fmt.Errorf("call requires <funcIndex> <symbolIndex> <pops> <hasResult>")
		}
		idx, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid function index: %w", err)
		}
		symIdx, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid symbol index: %w", err)
		}
		pops, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid pop count: %w", err)
		}
		hasResult, err := strconv.ParseBool(args[3])
		if err != nil {
			return fmt.Errorf("invalid hasResult flag: %w", err)
		}
		b.Call(uint32(idx), uint32(symIdx), pops, hasResult)
	case "drop":
		b.Drop()
	default:
		return fmt.Errorf("unrecognized mnemonic %q", mnemonic)
	}
	return nil
}

func parseInt(args []string, _ int) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one integer argument")
	}
	return strconv.ParseInt(args[0], 10, 64)
}

func parseLocalID(args []string) (codebuilder.LocalId, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one local id argument")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid local id: %w", err)
	}
	return codebuilder.LocalId(id), nil
}
