// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "testing"

func TestFindOrCreateUpvalueSharesSameSlot(t *testing.T) {
	g := newTestState()
	th := g.MainThread()
	th.Push(NumberValue(10))
	th.Push(NumberValue(20))

	a := g.findOrCreateUpvalue(th, 0)
	b := g.findOrCreateUpvalue(th, 0)
	if a != b {
		t.Fatal("two requests for the same open slot returned distinct upvalues")
	}
	if a.Get().Num != 10 {
		t.Errorf("Get() = %v, want 10", a.Get())
	}
}

func TestFindOrCreateUpvalueOrdersByDescendingSlot(t *testing.T) {
	g := newTestState()
	th := g.MainThread()
	th.Push(NumberValue(10))
	th.Push(NumberValue(20))

	high := g.findOrCreateUpvalue(th, 1)
	low := g.findOrCreateUpvalue(th, 0)

	if th.openUpvalues != high {
		t.Fatal("open list head should be the higher-indexed upvalue")
	}
	if th.openUpvalues.threadNext != low {
		t.Fatal("open list should thread the lower-indexed upvalue next")
	}
}

func TestCloseUpvaluesClosesAndDetaches(t *testing.T) {
	g := newTestState()
	th := g.MainThread()
	th.Push(NumberValue(10))
	th.Push(NumberValue(20))
	th.Push(NumberValue(99))

	uv0 := g.findOrCreateUpvalue(th, 0)
	uv2 := g.findOrCreateUpvalue(th, 2)

	g.closeUpvalues(th, 2)

	if !uv2.closed {
		t.Error("upvalue at or above the close level should be closed")
	}
	if uv2.Get().Num != 99 {
		t.Errorf("closed upvalue value = %v, want 99", uv2.Get())
	}
	if uv0.closed {
		t.Error("upvalue below the close level should remain open")
	}
	for uv := g.openUpvalues; uv != nil; uv = uv.globalNext {
		if uv == uv2 {
			t.Error("closed upvalue is still linked in the global open list")
		}
	}
	if th.openUpvalues != uv0 {
		t.Error("thread's open list should only retain the still-open upvalue")
	}
}

func TestMutatingOpenUpvalueWritesThroughToStack(t *testing.T) {
	g := newTestState()
	th := g.MainThread()
	th.Push(NumberValue(1))

	uv := g.findOrCreateUpvalue(th, 0)
	uv.Set(g, NumberValue(42))

	if got := th.Get(0); got.Num != 42 {
		t.Errorf("stack slot after Set on an open upvalue = %v, want 42", got)
	}
}
