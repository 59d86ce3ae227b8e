// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "github.com/probelang/luacore/internal/logx"

// Config tunes a GlobalState at construction time: GC pacing knobs and the
// logger it reports collection activity through. Zero values fall back to
// the same defaults Lua 5.1 ships (pause=200, stepmul=200).
type Config struct {
	GCPausePercent      int
	GCStepMul           int
	GCInitialThreshold  int64
	Logger              logx.Logger
}

// DefaultConfig returns the stock tuning used when an embedder doesn't
// load one from a file.
func DefaultConfig() Config {
	return Config{
		GCPausePercent:     200,
		GCStepMul:          200,
		GCInitialThreshold: 64 * 1024,
		Logger:             logx.Discard,
	}
}
