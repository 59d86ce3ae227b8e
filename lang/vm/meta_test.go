// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "testing"

// frameArg reads a GoFunction's i'th argument (0-indexed) during a call:
// callGoFunction places args at CurrentCall().Base..+nargs-1 (spec.md
// §4.F's C-function precall contract).
func frameArg(th *Thread, i int) Value {
	return th.Get(th.CurrentCall().Base + i)
}

func TestIndexFallsBackToIndexTable(t *testing.T) {
	g := newTestState()
	th := g.MainThread()

	base := g.NewTable(0, 0)
	_ = base.RawSet(g, g.InternString("greeting"), g.InternString("hi"))

	derived := g.NewTable(0, 0)
	mt := g.NewTable(0, 0)
	_ = mt.RawSet(g, objectValue(g.metaNames.index), objectValue(base))
	derived.SetMetatable(g, mt)

	v, err := th.Index(objectValue(derived), g.InternString("greeting"))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if v.AsString().String() != "hi" {
		t.Errorf("got %v, want \"hi\"", v)
	}
}

func TestIndexFallsBackToIndexFunction(t *testing.T) {
	g := newTestState()
	th := g.MainThread()

	handler := g.NewCClosure(func(th *Thread) (int, error) {
		th.Push(NumberValue(99))
		return 1, nil
	}, "handler", nil)

	tbl := g.NewTable(0, 0)
	mt := g.NewTable(0, 0)
	_ = mt.RawSet(g, objectValue(g.metaNames.index), ClosureValue(handler))
	tbl.SetMetatable(g, mt)

	v, err := th.Index(objectValue(tbl), g.InternString("anything"))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if v.Num != 99 {
		t.Errorf("got %v, want 99", v)
	}
}

func TestArithMetamethod(t *testing.T) {
	g := newTestState()
	th := g.MainThread()

	addHandler := g.NewCClosure(func(th *Thread) (int, error) {
		a, _ := toNumber(frameArg(th, 0))
		b, _ := toNumber(frameArg(th, 1))
		th.Push(NumberValue(a + b + 1000))
		return 1, nil
	}, "__add", nil)

	mt := g.NewTable(0, 0)
	_ = mt.RawSet(g, objectValue(g.metaNames.add), ClosureValue(addHandler))

	tbl := g.NewTable(0, 0)
	tbl.SetMetatable(g, mt)

	result, err := th.Arith(OpAdd, objectValue(tbl), NumberValue(5))
	if err != nil {
		t.Fatalf("Arith: %v", err)
	}
	if result.Num != 1005 {
		t.Errorf("got %v, want 1005", result)
	}
}

func TestArithWithoutMetatableErrors(t *testing.T) {
	g := newTestState()
	th := g.MainThread()
	tbl := g.NewTable(0, 0)
	if _, err := th.Arith(OpAdd, objectValue(tbl), NumberValue(1)); err == nil {
		t.Fatal("expected an error adding a table with no __add metamethod")
	}
}

func TestEqualUsesSharedMetamethod(t *testing.T) {
	g := newTestState()
	th := g.MainThread()

	eqHandler := g.NewCClosure(func(th *Thread) (int, error) {
		th.Push(True)
		return 1, nil
	}, "__eq", nil)
	mt := g.NewTable(0, 0)
	_ = mt.RawSet(g, objectValue(g.metaNames.eq), ClosureValue(eqHandler))

	a := g.NewTable(0, 0)
	b := g.NewTable(0, 0)
	a.SetMetatable(g, mt)
	b.SetMetatable(g, mt)

	eq, err := th.Equal(objectValue(a), objectValue(b))
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if !eq {
		t.Error("expected __eq to report the two distinct tables as equal")
	}
}

func TestEqualIgnoresAsymmetricMetamethod(t *testing.T) {
	g := newTestState()
	th := g.MainThread()

	// Only a's metatable defines __eq; b's has none at all. get_compTM
	// requires both sides to name a handler before calling either one, so
	// this must fall back to raw/pointer inequality rather than invoking
	// a's handler unilaterally.
	eqHandler := g.NewCClosure(func(th *Thread) (int, error) {
		th.Push(True)
		return 1, nil
	}, "__eq", nil)
	mtA := g.NewTable(0, 0)
	_ = mtA.RawSet(g, objectValue(g.metaNames.eq), ClosureValue(eqHandler))

	a := g.NewTable(0, 0)
	b := g.NewTable(0, 0)
	a.SetMetatable(g, mtA)

	eq, err := th.Equal(objectValue(a), objectValue(b))
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if eq {
		t.Error("expected a distinct __eq-less b to leave the tables unequal")
	}

	// Give b its own, different __eq handler: still must not fire, since
	// the two handlers aren't rawequal and the metatables differ.
	otherHandler := g.NewCClosure(func(th *Thread) (int, error) {
		th.Push(True)
		return 1, nil
	}, "__eq", nil)
	mtB := g.NewTable(0, 0)
	_ = mtB.RawSet(g, objectValue(g.metaNames.eq), ClosureValue(otherHandler))
	b.SetMetatable(g, mtB)

	eq, err = th.Equal(objectValue(a), objectValue(b))
	if err != nil {
		t.Fatalf("Equal: %v", err)
	}
	if eq {
		t.Error("expected differing __eq handlers on each side to leave the tables unequal")
	}
}

func TestLessEqualFallsBackToNotLess(t *testing.T) {
	g := newTestState()
	th := g.MainThread()

	ltHandler := g.NewCClosure(func(th *Thread) (int, error) {
		a := frameArg(th, 0).Obj.(*Table).RawGet(g.InternString("v"))
		b := frameArg(th, 1).Obj.(*Table).RawGet(g.InternString("v"))
		th.Push(BoolValue(a.Num < b.Num))
		return 1, nil
	}, "__lt", nil)
	mt := g.NewTable(0, 0)
	_ = mt.RawSet(g, objectValue(g.metaNames.lt), ClosureValue(ltHandler))

	a := g.NewTable(0, 0)
	b := g.NewTable(0, 0)
	a.SetMetatable(g, mt)
	b.SetMetatable(g, mt)
	_ = a.RawSet(g, g.InternString("v"), NumberValue(1))
	_ = b.RawSet(g, g.InternString("v"), NumberValue(2))

	// No __le defined: LessEqual(a, b) must fall back to !Less(b, a), which
	// calls __lt(b, a) -> false (2 < 1 is false) -> le == true.
	le, err := th.LessEqual(objectValue(a), objectValue(b))
	if err != nil {
		t.Fatalf("LessEqual: %v", err)
	}
	if !le {
		t.Error("expected a<=b to hold via the not(b<a) fallback")
	}
}

func TestConcatCoercesNumbers(t *testing.T) {
	g := newTestState()
	th := g.MainThread()
	result, err := th.Concat(g.InternString("x="), NumberValue(3))
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if result.AsString().String() != "x=3" {
		t.Errorf("got %q, want \"x=3\"", result.AsString().String())
	}
}

func TestLenMetamethod(t *testing.T) {
	g := newTestState()
	th := g.MainThread()

	lenHandler := g.NewCClosure(func(th *Thread) (int, error) {
		th.Push(NumberValue(42))
		return 1, nil
	}, "__len", nil)
	mt := g.NewTable(0, 0)
	_ = mt.RawSet(g, objectValue(g.metaNames.len), ClosureValue(lenHandler))

	tbl := g.NewTable(0, 0)
	tbl.SetMetatable(g, mt)

	v, err := th.Len(objectValue(tbl))
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if v.Num != 42 {
		t.Errorf("got %v, want 42", v)
	}
}
