// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesVMDefaults(t *testing.T) {
	f := Default()
	if f.GC.PausePercent != 200 || f.GC.StepMulPercent != 200 {
		t.Errorf("GC defaults = %+v, want 200/200", f.GC)
	}
	if f.Log.Level != "info" {
		t.Errorf("Log.Level default = %q, want info", f.Log.Level)
	}
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.toml")
	contents := `
[gc]
pause_percent = 150
step_mul_percent = 300
initial_threshold_bytes = 1048576

[limits]
max_stack_size = 4096
max_call_depth = 64

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.GC.PausePercent != 150 {
		t.Errorf("GC.PausePercent = %d, want 150", f.GC.PausePercent)
	}
	if f.GC.StepMulPercent != 300 {
		t.Errorf("GC.StepMulPercent = %d, want 300", f.GC.StepMulPercent)
	}
	if f.GC.InitialThreshold != 1048576 {
		t.Errorf("GC.InitialThreshold = %d, want 1048576", f.GC.InitialThreshold)
	}
	if f.Limits.MaxStackSize != 4096 || f.Limits.MaxCallDepth != 64 {
		t.Errorf("Limits = %+v, want {4096 64}", f.Limits)
	}
	if f.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", f.Log.Level)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load on a missing file should return an error")
	}
}

func TestVMConfigTranslation(t *testing.T) {
	f := Default()
	f.GC.PausePercent = 175
	cfg := f.VMConfig()
	if cfg.GCPausePercent != 175 {
		t.Errorf("VMConfig().GCPausePercent = %d, want 175", cfg.GCPausePercent)
	}
	if cfg.Logger == nil {
		t.Error("VMConfig() should always populate a Logger")
	}
}
