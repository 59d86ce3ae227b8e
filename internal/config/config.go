// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package config loads the runtime's TOML configuration file, the same
// approach the wider monorepo uses for node configuration (naoina/toml).
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/naoina/toml"
	"github.com/probelang/luacore/internal/logx"
	"github.com/probelang/luacore/lang/vm"
)

// GC holds the collector tuning block of a config file.
type GC struct {
	PausePercent     int   `toml:"pause_percent"`
	StepMulPercent   int   `toml:"step_mul_percent"`
	InitialThreshold int64 `toml:"initial_threshold_bytes"`
}

// Limits holds resource ceilings read from the config file. VMConfig does
// not pass them on: the executor's call-depth bound is the fixed
// vm.MaxCallDepth, and the stack size is not capped.
type Limits struct {
	MaxStackSize int `toml:"max_stack_size"`
	MaxCallDepth int `toml:"max_call_depth"`
}

// Log holds logging output configuration.
type Log struct {
	Level string `toml:"level"`
}

// File is the top-level shape of a runtime configuration file.
type File struct {
	GC     GC     `toml:"gc"`
	Limits Limits `toml:"limits"`
	Log    Log    `toml:"log"`
}

// Default returns the stock configuration, matching vm.DefaultConfig's
// numbers plus the default resource limits.
func Default() File {
	return File{
		GC: GC{PausePercent: 200, StepMulPercent: 200, InitialThreshold: 64 * 1024},
		Limits: Limits{
			MaxStackSize: 1 << 20,
			MaxCallDepth: 200,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads and decodes a TOML config file from path, filling in defaults
// for any field the file omits.
func Load(path string) (File, error) {
	f := Default()
	r, err := os.Open(path)
	if err != nil {
		return f, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer r.Close()
	return decode(r, f)
}

func decode(r io.Reader, into File) (File, error) {
	if err := toml.NewDecoder(r).Decode(&into); err != nil {
		return into, fmt.Errorf("config: decode: %w", err)
	}
	return into, nil
}

// VMConfig translates the parsed file into a vm.Config, wiring the
// requested log level into a logx.Logger.
func (f File) VMConfig() vm.Config {
	return vm.Config{
		GCPausePercent:     f.GC.PausePercent,
		GCStepMul:          f.GC.StepMulPercent,
		GCInitialThreshold: f.GC.InitialThreshold,
		Logger:             logx.New(os.Stderr, f.Log.Level),
	}
}
