// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command lua loads a precompiled chunk and runs it.
//
// Usage:
//
//	lua [flags] <chunk>
//
// Flags:
//
//	-config <file>  Runtime config file (TOML, see internal/config)
//	-version        Print version and exit
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/probelang/luacore/host"
	"github.com/probelang/luacore/lang/vm"
)

const version = "0.1.0"

func main() {
	var (
		configPath = flag.String("config", "", "Runtime config file (TOML)")
		ver        = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *ver {
		fmt.Printf("lua %s\n", version)
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: lua [flags] <chunk>")
		os.Exit(1)
	}

	var s *host.State
	if *configPath != "" {
		loaded, err := host.NewFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		s = loaded
	} else {
		s = host.New()
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := s.DoBytecode(f); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func reportError(err error) {
	if le, ok := err.(*vm.LuaError); ok {
		fmt.Fprintf(os.Stderr, "lua: %s\n", le.Error())
		if le.Traceback != "" {
			fmt.Fprintln(os.Stderr, le.Traceback)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "lua: %v\n", err)
}
