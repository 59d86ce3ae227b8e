// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// MaxCallDepth bounds recursion the way Lua 5.1's LUAI_MAXCCALLS does,
// guarding against a runaway script. Lua-to-Lua calls recurse through a
// nested execute (see execCall in exec.go), so this bound also limits how
// deep the Go stack grows.
const MaxCallDepth = 200

// Call invokes the function at absolute stack index fnIndex with nargs
// arguments already placed at fnIndex+1..fnIndex+nargs, requesting
// nresults results (or MultRet for "however many the callee returns").
// Results are written starting at fnIndex and th's top is left just past
// the last result.
func (th *Thread) Call(fnIndex, nargs, nresults int) error {
	startDepth := len(th.callInfo)
	if err := th.precall(fnIndex, nargs, nresults); err != nil {
		return err
	}
	if len(th.callInfo) > startDepth {
		// precall pushed a Lua frame; run it to completion.
		if err := th.execute(startDepth); err != nil {
			return err
		}
	}
	return nil
}

// callN is the convenience entry point metamethod dispatch uses: push fn
// and args onto a scratch area past the current top, call, and collect up
// to nresults results as a slice (nresults == MultRet collects everything
// produced).
func (th *Thread) callN(fn Value, args []Value, nresults int) ([]Value, error) {
	base := th.top
	th.Push(fn)
	for _, a := range args {
		th.Push(a)
	}
	if err := th.Call(base, len(args), nresults); err != nil {
		th.SetTop(base)
		return nil, err
	}
	results := make([]Value, th.top-base)
	copy(results, th.stack[base:th.top])
	th.SetTop(base)
	return results, nil
}

// precall prepares a call without running it: for a GoFunction it runs the
// call synchronously (Go functions never suspend mid-call except via
// yield, handled in coroutine.go) and adjusts results in place; for an
// LClosure it pushes a CallInfo and leaves it for execute to run.
//
// A non-function callee with a __call metamethod has itself re-inserted as
// an extra leading argument and the metamethod substituted in its place.
// Only one level is rewritten: a __call handler that is not itself a
// function fails with ErrNotCallable.
func (th *Thread) precall(fnIndex, nargs, nresults int) error {
	if len(th.callInfo) >= MaxCallDepth {
		return ErrStackOverflow
	}
	fn := th.stack[fnIndex]
	for i := 0; i < maxTagMethodChain && !fn.IsFunction(); i++ {
		h := metamethod(th.g, fn, th.g.metaNames.call)
		if !h.IsFunction() {
			return ErrNotCallable
		}
		th.ensure(th.top + 1)
		copy(th.stack[fnIndex+1:th.top+1], th.stack[fnIndex:th.top])
		th.stack[fnIndex] = h
		th.top++
		nargs++
		fn = h
	}

	if c, ok := fn.Obj.(*CClosure); ok && c == th.g.yieldBuiltin {
		args := make([]Value, nargs)
		copy(args, th.stack[fnIndex+1:fnIndex+1+nargs])
		th.yieldValues = args
		th.yieldResultBase = fnIndex
		th.yieldNResults = nresults
		return errYield
	}

	switch c := fn.Obj.(type) {
	case *CClosure:
		return th.callGoFunction(c, fnIndex, nargs, nresults)
	case *LClosure:
		th.pushLuaFrame(c, fnIndex, nargs, nresults)
		return nil
	default:
		return ErrNotCallable
	}
}

func (th *Thread) callGoFunction(c *CClosure, fnIndex, nargs, nresults int) error {
	base := fnIndex + 1
	th.pushCallInfo(CallInfo{Closure: c, Base: base, ResultBase: fnIndex, NResults: nresults})
	th.SetTop(base + nargs)
	n, err := c.Fn(th)
	th.popCallInfo()
	if err != nil {
		th.SetTop(fnIndex)
		if err == errYield {
			// A yield that propagated up through a nested Call from
			// inside this native function crossed a Go/C call boundary;
			// Lua 5.1 cannot resume through one, so it becomes a regular
			// runtime error instead of continuing to unwind as a yield.
			return ErrYieldAcrossBoundary
		}
		return err
	}
	th.finishResults(fnIndex, base+nargs, n, nresults)
	return nil
}

// pushLuaFrame sets up registers for an LClosure call: fixed parameters
// land in R(0..NumParams-1), extra varargs are retained above top for
// OpVararg, and missing parameters are nil-filled.
func (th *Thread) pushLuaFrame(c *LClosure, fnIndex, nargs, nresults int) {
	p := c.Proto
	base := fnIndex + 1
	if p.IsVararg && nargs > p.NumParams {
		// Move fixed parameters to a fresh base past the extra varargs so
		// OpVararg can find them contiguously below base, mirroring Lua
		// 5.1's vararg frame adjustment.
		extra := nargs - p.NumParams
		newBase := base + nargs
		th.ensure(newBase + p.MaxStackSize)
		for i := 0; i < p.NumParams; i++ {
			th.stack[newBase+i] = th.stack[base+i]
		}
		for i := p.NumParams; i < p.MaxStackSize; i++ {
			th.stack[newBase+i] = Nil
		}
		th.pushCallInfo(CallInfo{
			Closure: c, Base: newBase, ResultBase: fnIndex, NResults: nresults,
			VarargBase: base + p.NumParams, NumVarargs: extra,
		})
		th.top = newBase + p.MaxStackSize
		return
	}

	th.ensure(base + p.MaxStackSize)
	for i := nargs; i < p.MaxStackSize; i++ {
		th.stack[base+i] = Nil
	}
	th.pushCallInfo(CallInfo{Closure: c, Base: base, ResultBase: fnIndex, NResults: nresults})
	th.top = base + p.MaxStackSize
}

// poscall runs when a Lua frame executes RETURN: close any open upvalues
// referencing it, move its results down to ResultBase, and pop the frame.
func (th *Thread) poscall(ci *CallInfo, resultsFrom, nresults int) {
	th.closeUpvaluesForThread(ci.Base)
	th.finishResults(ci.ResultBase, resultsFrom, nresults, ci.NResults)
	th.popCallInfo()
}

func (th *Thread) closeUpvaluesForThread(level int) { th.g.closeUpvalues(th, level) }

// finishResults copies the n actual results found starting at from down to
// dest, padding with nil (or truncating) to exactly want results unless
// want is MultRet, in which case all n are kept and top reflects it.
func (th *Thread) finishResults(dest, from, n, want int) {
	if want == MultRet {
		copy(th.stack[dest:], th.stack[from:from+n])
		th.SetTop(dest + n)
		return
	}
	copyN := n
	if copyN > want {
		copyN = want
	}
	copy(th.stack[dest:dest+copyN], th.stack[from:from+copyN])
	for i := copyN; i < want; i++ {
		th.stack[dest+i] = Nil
	}
	th.SetTop(dest + want)
}

// PCall runs fn protected: any error (a LuaError or a runtime fault)
// raised during the call is recovered and returned rather than propagated,
// per spec.md §4.F's pcall contract. On error, the stack is restored to
// its pre-call depth.
func (th *Thread) PCall(fnIndex, nargs, nresults int) (err error) {
	savedTop := fnIndex
	savedDepth := len(th.callInfo)
	defer func() {
		if r := recover(); r != nil {
			th.callInfo = th.callInfo[:savedDepth]
			th.SetTop(savedTop)
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = runtimeErrorf(th.g, "%v", r)
		}
	}()
	if callErr := th.Call(fnIndex, nargs, nresults); callErr != nil {
		th.callInfo = th.callInfo[:savedDepth]
		th.SetTop(savedTop)
		if callErr == errYield {
			// Lua 5.1 cannot yield across a pcall boundary; reject rather
			// than silently eating the yield.
			return ErrYieldAcrossBoundary
		}
		return callErr
	}
	return nil
}
