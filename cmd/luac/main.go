// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command luac inspects and verifies precompiled chunks.
//
// Usage:
//
//	luac [flags] <chunk>
//
// Flags:
//
//	-dis       Disassemble the chunk to stdout
//	-verify    Load the chunk and report success/failure (default: true)
//	-version   Print version and exit
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/probelang/luacore/internal/bytecode"
	"github.com/probelang/luacore/lang/vm"
)

const version = "0.1.0"

func main() {
	var (
		dis    = flag.Bool("dis", false, "Disassemble the chunk to stdout")
		verify = flag.Bool("verify", true, "Load the chunk and report success/failure")
		ver    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *ver {
		fmt.Printf("luac %s\n", version)
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: luac [flags] <chunk>")
		os.Exit(1)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	g := vm.NewGlobalState(vm.DefaultConfig())
	p, err := bytecode.Load(f, g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *verify {
		fmt.Fprintf(os.Stderr, "ok: %s loaded (%d top-level instructions)\n", flag.Arg(0), len(p.Code))
	}
	if *dis {
		fmt.Print(vm.Disassemble(p))
	}
}
