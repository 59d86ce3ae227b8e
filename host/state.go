// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package host is the embedding surface: the Go-idiomatic analogue of the
// Lua C API's lua_State, built directly on lang/vm's Thread/GlobalState.
// A Go function registered with the interpreter receives its arguments and
// pushes its results through a *State exactly the way a Lua C function
// would through a lua_State, per the calling convention documented on
// GoFunction below.
package host

import (
	"fmt"

	"github.com/probelang/luacore/internal/bytecode"
	"github.com/probelang/luacore/internal/config"
	"github.com/probelang/luacore/lang/vm"
)

// GoFunction is a host function callable from Lua. It receives the State
// its call frame is running on; arguments are at stack positions
// 1..s.Top() (1-indexed, matching Lua's own convention), and it returns
// them via Push before returning the count of values pushed.
type GoFunction func(s *State) int

// State keeps all state of one interpreter: its GlobalState plus the
// thread Go code is currently operating on (the main thread for a State
// from New, or the calling thread for the State a GoFunction receives).
type State struct {
	g  *vm.GlobalState
	th *vm.Thread
}

// New creates a fresh interpreter with the stock GC tuning.
func New() *State {
	return NewWithConfig(vm.DefaultConfig())
}

// NewWithConfig creates a fresh interpreter tuned by cfg (see
// internal/config for loading cfg from a TOML file).
func NewWithConfig(cfg vm.Config) *State {
	g := vm.NewGlobalState(cfg)
	return &State{g: g, th: g.MainThread()}
}

// NewFromFile loads a runtime configuration file and constructs a State
// from it, the entry point cmd/lua uses when given -config.
func NewFromFile(configPath string) (*State, error) {
	f, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(f.VMConfig()), nil
}

// Global returns the underlying GlobalState, for code that needs to drop
// to the vm package directly (the bytecode loader, GC tuning calls).
func (s *State) Global() *vm.GlobalState { return s.g }

// Thread returns the vm.Thread this State currently operates on.
func (s *State) Thread() *vm.Thread { return s.th }

// frameBase returns the absolute stack index that stack position 1
// resolves to: the running GoFunction's own call frame base, or 0 for
// code operating above any call (e.g. building the script's initial call).
func (s *State) frameBase() int {
	if ci := s.th.CurrentCall(); ci != nil {
		return ci.Base
	}
	return 0
}

// Top returns the number of values on the current call's stack (1-indexed
// arguments/results), mirroring lua_gettop.
func (s *State) Top() int { return s.th.Top() - s.frameBase() }

// ---- Pushing values -----------------------------------------------------

func (s *State) PushNil()            { s.th.Push(vm.Nil) }
func (s *State) PushBoolean(b bool)  { s.th.Push(vm.BoolValue(b)) }
func (s *State) PushNumber(n float64) { s.th.Push(vm.NumberValue(n)) }
func (s *State) PushString(str string) { s.th.Push(s.g.InternString(str)) }

// PushGoFunction wraps fn as a callable Lua value with the given
// diagnostic name and pushes it.
func (s *State) PushGoFunction(name string, fn GoFunction) {
	s.th.Push(vm.ClosureValue(s.g.NewCClosure(adapt(fn), name, nil)))
}

func adapt(fn GoFunction) vm.GoFunction {
	return func(th *vm.Thread) (int, error) {
		sub := &State{g: th.Global(), th: th}
		return fn(sub), nil
	}
}

// ---- Reading values -------------------------------------------------------

// Get returns the value at 1-indexed stack position i relative to the
// current call's base (negative i counts from the top, as in the Lua C
// API: -1 is the last pushed value).
func (s *State) Get(i int) vm.Value {
	idx := s.resolveIndex(i)
	return s.th.Get(idx)
}

func (s *State) resolveIndex(i int) int {
	if i > 0 {
		return s.frameBase() + i - 1
	}
	return s.th.Top() + i
}

func (s *State) ToNumber(i int) (float64, bool) {
	v := s.Get(i)
	if !v.IsNumber() {
		return 0, false
	}
	return v.Num, true
}

func (s *State) ToString(i int) (string, bool) {
	v := s.Get(i)
	if !v.IsString() {
		return "", false
	}
	return v.AsString().String(), true
}

func (s *State) ToBoolean(i int) bool { return s.Get(i).IsTruthy() }

func (s *State) IsNil(i int) bool    { return s.Get(i).IsNil() }
func (s *State) IsNumber(i int) bool { return s.Get(i).IsNumber() }
func (s *State) IsString(i int) bool { return s.Get(i).IsString() }
func (s *State) IsTable(i int) bool  { return s.Get(i).IsTable() }

// ---- Globals and tables ---------------------------------------------------

func (s *State) SetGlobal(name string, v vm.Value) {
	s.g.Globals().RawSet(s.g, s.g.InternString(name), v)
}

func (s *State) GetGlobal(name string) vm.Value {
	return s.g.Globals().RawGet(s.g.InternString(name))
}

// Register installs fn as a global function callable from Lua as name.
func (s *State) Register(name string, fn GoFunction) {
	s.SetGlobal(name, vm.ClosureValue(s.g.NewCClosure(adapt(fn), name, nil)))
}

func (s *State) NewTable() *vm.Table { return s.g.NewTable(0, 0) }

// ---- Calling ---------------------------------------------------------------

// Call invokes the function at stack position fnIndex (1-indexed) with
// nargs arguments already pushed above it, leaving nresults results (or
// vm.MultRet) in their place.
func (s *State) Call(fnIndex, nargs, nresults int) error {
	return s.th.Call(s.resolveIndex(fnIndex), nargs, nresults)
}

// PCall is Call's protected form: a raised error is returned rather than
// propagated.
func (s *State) PCall(fnIndex, nargs, nresults int) error {
	return s.th.PCall(s.resolveIndex(fnIndex), nargs, nresults)
}

// ---- Loading chunks ---------------------------------------------------------

// LoadBytecode reads a precompiled chunk (internal/bytecode's format) and
// pushes its entry-point closure as a callable value.
func (s *State) LoadBytecode(r interface {
	Read([]byte) (int, error)
}) error {
	p, err := bytecode.Load(r, s.g)
	if err != nil {
		return fmt.Errorf("host: load bytecode: %w", err)
	}
	s.th.Push(vm.ClosureValue(s.g.NewLClosure(p, s.g.Globals())))
	return nil
}

// DoBytecode loads and immediately calls a precompiled chunk with no
// arguments and discards its results, the common "run this script" path
// cmd/lua exposes.
func (s *State) DoBytecode(r interface {
	Read([]byte) (int, error)
}) error {
	top := s.th.Top()
	if err := s.LoadBytecode(r); err != nil {
		return err
	}
	return s.th.Call(top, 0, vm.MultRet)
}

// ---- Coroutines -------------------------------------------------------------

// NewCoroutine creates a suspended coroutine running fn (a function value
// already on the stack at index fnIndex), sharing this State's globals.
func (s *State) NewCoroutine(fnIndex int) *vm.Thread {
	return s.g.NewCoroutine(s.Get(fnIndex), s.g.Globals())
}

// Resume resumes co with the given arguments, from the current thread's
// point of view (co's resumer).
func (s *State) Resume(co *vm.Thread, args ...vm.Value) ([]vm.Value, error) {
	return s.th.Resume(co, args)
}

// ---- GC control -------------------------------------------------------------

// CollectGarbage drives a full GC cycle immediately.
func (s *State) CollectGarbage() { s.g.FullGC() }
