// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "testing"

func TestTableArrayPart(t *testing.T) {
	g := newTestState()
	tbl := g.NewTable(0, 0)

	for i := 1; i <= 5; i++ {
		if err := tbl.RawSet(g, NumberValue(float64(i)), NumberValue(float64(i*10))); err != nil {
			t.Fatalf("RawSet(%d): %v", i, err)
		}
	}
	for i := 1; i <= 5; i++ {
		got := tbl.RawGetInt(i)
		if got.Num != float64(i*10) {
			t.Errorf("RawGetInt(%d) = %v, want %d", i, got, i*10)
		}
	}
	if n := tbl.Len(); n != 5 {
		t.Errorf("Len() = %d, want 5", n)
	}
}

func TestTableHashPart(t *testing.T) {
	g := newTestState()
	tbl := g.NewTable(0, 0)

	key := g.InternString("name")
	if err := tbl.RawSet(g, key, g.InternString("lua")); err != nil {
		t.Fatalf("RawSet: %v", err)
	}
	got := tbl.RawGet(key)
	if got.AsString().String() != "lua" {
		t.Errorf("RawGet(name) = %v, want \"lua\"", got)
	}

	if err := tbl.RawSet(g, Nil, NumberValue(1)); err != ErrNilKey {
		t.Errorf("RawSet(nil key) = %v, want ErrNilKey", err)
	}
	nan := NumberValue(nanValue())
	if err := tbl.RawSet(g, nan, NumberValue(1)); err != ErrNaNKey {
		t.Errorf("RawSet(NaN key) = %v, want ErrNaNKey", err)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestTableManyKeysTriggersRehash(t *testing.T) {
	g := newTestState()
	tbl := g.NewTable(0, 0)

	const n = 200
	for i := 0; i < n; i++ {
		k := NumberValue(float64(1000 + i)) // sparse, forces hash-part growth
		if err := tbl.RawSet(g, k, NumberValue(float64(i))); err != nil {
			t.Fatalf("RawSet(%d): %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		k := NumberValue(float64(1000 + i))
		if got := tbl.RawGet(k); got.Num != float64(i) {
			t.Errorf("RawGet(%d) = %v, want %d", 1000+i, got, i)
		}
	}
}

func TestTableNextIteratesEverything(t *testing.T) {
	g := newTestState()
	tbl := g.NewTable(0, 0)
	for i := 1; i <= 3; i++ {
		_ = tbl.RawSet(g, NumberValue(float64(i)), True)
	}
	_ = tbl.RawSet(g, g.InternString("extra"), True)

	count := 0
	key := Nil
	for {
		k, v, ok, err := tbl.Next(key)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if !v.IsTruthy() {
			t.Errorf("unexpected falsy value for key %v", k)
		}
		count++
		key = k
	}
	if count != 4 {
		t.Errorf("iterated %d entries, want 4", count)
	}
}

func TestTableMetatable(t *testing.T) {
	g := newTestState()
	tbl := g.NewTable(0, 0)
	mt := g.NewTable(0, 0)
	tbl.SetMetatable(g, mt)
	if tbl.Metatable() != mt {
		t.Error("Metatable() did not return the table set via SetMetatable")
	}
}

func TestTableDeleteThenLen(t *testing.T) {
	g := newTestState()
	tbl := g.NewTable(0, 0)
	for i := 1; i <= 3; i++ {
		_ = tbl.RawSet(g, NumberValue(float64(i)), NumberValue(float64(i)))
	}
	if err := tbl.RawSet(g, NumberValue(3), Nil); err != nil {
		t.Fatalf("RawSet(3, nil): %v", err)
	}
	n := tbl.Len()
	if n != 2 {
		// t[2] is non-nil and t[3] is nil, so 2 is the only valid
		// boundary; anything else indicates the array part was corrupted.
		t.Errorf("Len() after deleting the last element = %d, want 2", n)
	}
}
