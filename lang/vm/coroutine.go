// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "errors"

// errYield is the internal signal a yield sends up through the ordinary
// Go error-return chain (precall -> execCall -> dispatch -> execute ->
// Call) to unwind back to Resume without touching th.callInfo: every
// frame between the yield point and Resume just propagates it like any
// other error, and since nothing was pushed or popped for the yield call
// itself, th.callInfo/ci.PC are left exactly where resuming should
// continue. This is what lets coroutines suspend without goroutines or a
// continuation-passing rewrite of the dispatch loop (see DESIGN.md §F).
var errYield = errors.New("vm: coroutine yielded")

// yieldBuiltin is installed once per GlobalState as the unique identity
// that precall recognizes as "this call is actually a yield", regardless
// of how many names or upvalues alias it.
func (g *GlobalState) newYieldBuiltin() *CClosure {
	c := &CClosure{Name: "yield"}
	c.kind = KindFunction
	c.marks = g.currentWhite
	g.linkRoot(c)
	return c
}

// YieldClosure returns the sentinel closure precall treats as
// coroutine.yield, for an embedder to register under that name.
func (g *GlobalState) YieldClosure() *CClosure { return g.yieldBuiltin }

// NewCoroutine creates a suspended thread whose body is fn, to be started
// by the first Resume.
func (g *GlobalState) NewCoroutine(fn Value, globals *Table) *Thread {
	th := g.NewThread(globals)
	th.body = fn
	return th
}

// Resume runs th (a suspended coroutine) until it yields, returns, or
// errors, delivering args as either the body's initial arguments (first
// resume) or coroutine.yield's return values (subsequent resumes). caller
// may be nil only when resuming the implicit top-level coroutine during
// bootstrapping.
func (caller *Thread) Resume(th *Thread, args []Value) ([]Value, error) {
	if th.status != ThreadSuspended {
		return nil, ErrCannotResume
	}
	th.status = ThreadRunning
	th.resumer = caller
	if caller != nil {
		caller.status = ThreadNormal
	}

	var runErr error
	if th.Depth() == 0 {
		th.SetTop(0)
		th.Push(th.body)
		for _, a := range args {
			th.Push(a)
		}
		if err := th.precall(0, len(args), MultRet); err != nil {
			runErr = err
		} else if th.Depth() > 0 {
			runErr = th.execute(0)
		}
	} else {
		th.deliverResume(args)
		runErr = th.execute(0)
	}

	if runErr == errYield {
		th.status = ThreadSuspended
		if caller != nil {
			caller.status = ThreadRunning
		}
		return th.yieldValues, nil
	}

	th.status = ThreadDead
	if caller != nil {
		caller.status = ThreadRunning
	}
	if runErr != nil {
		th.pendingErr = runErr
		return nil, runErr
	}
	results := make([]Value, th.top)
	copy(results, th.stack[:th.top])
	return results, nil
}

// deliverResume writes Resume's incoming args as the results of the
// suspended yield call, exactly the way a normal call's results are
// written (finishResults), so execution picks up as if coroutine.yield
// had simply returned them.
func (th *Thread) deliverResume(args []Value) {
	dest := th.yieldResultBase
	want := th.yieldNResults
	th.ensure(dest + len(args) + 1)
	if want == MultRet {
		copy(th.stack[dest:], args)
		th.SetTop(dest + len(args))
		return
	}
	n := len(args)
	if n > want {
		n = want
	}
	copy(th.stack[dest:dest+n], args[:n])
	for i := n; i < want; i++ {
		th.stack[dest+i] = Nil
	}
	th.SetTop(dest + want)
}

// There is no separate Yield function: precall (callstack.go) implements
// coroutine.yield's contract inline when it sees the yield sentinel, so
// there is no runtime path to test independently of a real Resume/precall
// round trip.
