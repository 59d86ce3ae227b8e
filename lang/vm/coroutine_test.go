// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "testing"

// buildYieldingBody builds a one-param proto that calls its argument
// (the yield closure, passed in R0) with the constant 41, then returns
// whatever value the resume that wakes it back up delivers.
func buildYieldingBody(g *GlobalState) *Proto {
	return buildProto(g, 1, false, 2,
		[]Value{NumberValue(41)},
		[]Instruction{
			NewABx(OpLoadK, 1, 0),     // 0: R1 = K0 (41)
			NewABC(OpCall, 0, 2, 2),   // 1: R0 = R0(R1)  (1 arg, 1 result)
			NewABC(OpReturn, 0, 2, 0), // 2: return R0
		})
}

func TestCoroutineYieldResumeRoundTrip(t *testing.T) {
	g := newTestState()
	caller := g.MainThread()

	body := g.NewLClosure(buildYieldingBody(g), g.Globals())
	co := g.NewCoroutine(ClosureValue(body), g.Globals())

	first, err := caller.Resume(co, []Value{ClosureValue(g.YieldClosure())})
	if err != nil {
		t.Fatalf("first Resume: %v", err)
	}
	if co.status != ThreadSuspended {
		t.Fatalf("coroutine status after yield = %v, want ThreadSuspended", co.status)
	}
	if len(first) != 1 || first[0].Num != 41 {
		t.Fatalf("yielded values = %v, want [41]", first)
	}

	second, err := caller.Resume(co, []Value{NumberValue(99)})
	if err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if co.status != ThreadDead {
		t.Fatalf("coroutine status after completion = %v, want ThreadDead", co.status)
	}
	if len(second) != 1 || second[0].Num != 99 {
		t.Fatalf("final return values = %v, want [99]", second)
	}
}

func TestResumeNonSuspendedErrors(t *testing.T) {
	g := newTestState()
	caller := g.MainThread()

	body := g.NewLClosure(buildYieldingBody(g), g.Globals())
	co := g.NewCoroutine(ClosureValue(body), g.Globals())
	co.status = ThreadDead

	if _, err := caller.Resume(co, nil); err != ErrCannotResume {
		t.Errorf("Resume on a dead coroutine = %v, want ErrCannotResume", err)
	}
}

func TestYieldAcrossGoBoundaryErrors(t *testing.T) {
	g := newTestState()
	caller := g.MainThread()

	// A Go function that calls coroutine.yield itself: the yield can't
	// unwind past callGoFunction's synchronous c.Fn(th) call.
	wrapper := g.NewCClosure(func(th *Thread) (int, error) {
		base := th.Top()
		th.Push(ClosureValue(th.g.YieldClosure()))
		if err := th.Call(base, 0, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}, "wrapper", nil)

	body := buildProto(g, 1, false, 1, nil,
		[]Instruction{
			NewABC(OpCall, 0, 1, 1),
			NewABC(OpReturn, 0, 1, 0),
		})
	bodyClosure := g.NewLClosure(body, g.Globals())
	co := g.NewCoroutine(ClosureValue(bodyClosure), g.Globals())

	_, err := caller.Resume(co, []Value{ClosureValue(wrapper)})
	if err != ErrYieldAcrossBoundary {
		t.Errorf("Resume through a Go-wrapped yield = %v, want ErrYieldAcrossBoundary", err)
	}
}
