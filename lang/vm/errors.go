// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"errors"
	"fmt"
)

// ---- Error sentinels --------------------------------------------------

// ErrNotCallable is returned when CALL/TAILCALL targets a value with no
// __call metamethod.
var ErrNotCallable = errors.New("vm: attempt to call a non-function value")

// ErrNotIndexable names the fault of indexing a value with no
// __index/__newindex metamethod. Index and NewIndex report that fault as a
// LuaError built by runtimeErrorf; this sentinel is not returned by them.
var ErrNotIndexable = errors.New("vm: attempt to index a non-table value")

// ErrArith names the fault of arithmetic on operands neither coercible to
// numbers nor carrying an arithmetic metamethod. Arith reports that fault
// as a LuaError built by runtimeErrorf; this sentinel is not returned.
var ErrArith = errors.New("vm: attempt to perform arithmetic on an invalid value")

// ErrConcat names the fault of .. on operands neither string/number nor
// carrying a __concat metamethod. Concat reports that fault as a LuaError
// built by runtimeErrorf; this sentinel is not returned.
var ErrConcat = errors.New("vm: attempt to concatenate an invalid value")

// ErrCompare names the fault of < or <= on incomparable operands with no
// applicable metamethod. Less and LessEqual report that fault as a
// LuaError built by runtimeErrorf; this sentinel is not returned.
var ErrCompare = errors.New("vm: attempt to compare incompatible values")

// ErrStackOverflow is returned when a thread's call depth reaches
// MaxCallDepth (runaway non-tail recursion; a true tailcall chain
// reuses its CallInfo in place — see execTailCall in exec.go — and so
// never grows th.callInfo no matter how many iterations it runs).
var ErrStackOverflow = errors.New("vm: stack overflow")

// ErrYieldAcrossBoundary is returned when a coroutine attempts to yield
// from inside a Go-native call frame, which cannot suspend mid-call.
var ErrYieldAcrossBoundary = errors.New("vm: attempt to yield across a Go call boundary")

// ErrCannotResume is returned by Resume when the target thread is not
// suspended (already running, normal, or dead).
var ErrCannotResume = errors.New("vm: cannot resume non-suspended coroutine")

// ErrBadMetamethodChain is returned when __index/__newindex chasing exceeds
// the bound spec.md §4.H sets (loop protection for cyclic metatables).
var ErrBadMetamethodChain = errors.New("vm: '__index' chain too long; possible loop")

// LuaError wraps an arbitrary Lua value raised via error()/a runtime fault,
// preserving it across a pcall boundary instead of collapsing everything to
// a Go error string (spec.md §4.F: "pcall recovers the raised Value, not
// just a message").
type LuaError struct {
	Value     Value
	Traceback string
}

func (e *LuaError) Error() string {
	if e.Value.IsString() {
		return e.Value.AsString().String()
	}
	return fmt.Sprintf("vm: non-string error value (%s)", e.Value.TypeName())
}

// NewLuaError wraps v as a Go error suitable for returning from Call/Resume.
func NewLuaError(v Value) *LuaError { return &LuaError{Value: v} }

// runtimeErrorf builds a LuaError carrying a formatted string message, the
// shape in which metamethod dispatch (indexing, arithmetic, concatenation,
// comparison, length) reports its faults. Sentinels such as ErrNotCallable
// and ErrStackOverflow are returned as they are, not wrapped.
func runtimeErrorf(g *GlobalState, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return NewLuaError(g.InternString(msg))
}
