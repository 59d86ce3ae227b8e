// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// maxTagMethodChain bounds __index/__newindex chasing (spec.md §4.H): a
// metatable whose __index points at a table whose __index points back at
// the first would otherwise loop forever.
const maxTagMethodChain = 100

// metatableOf returns v's metatable: a table's or userdata's own, or the
// shared per-kind metatable for every other type.
func metatableOf(g *GlobalState, v Value) *Table {
	switch v.Kind {
	case KindTable:
		return v.AsTable().Metatable()
	case KindUserData:
		return v.Obj.(*UserData).Metatable()
	default:
		return g.TypeMetatable(v.Kind)
	}
}

func metamethod(g *GlobalState, v Value, name *StringObj) Value {
	mt := metatableOf(g, v)
	if mt == nil {
		return Nil
	}
	return mt.RawGet(objectValue(name))
}

// Index implements GETTABLE's full semantics: raw access if t is a table
// and the key is present, otherwise chase __index (a function is called,
// a table is recursed into) up to maxTagMethodChain hops.
func (th *Thread) Index(t Value, key Value) (Value, error) {
	g := th.g
	for i := 0; i < maxTagMethodChain; i++ {
		if t.Kind == KindTable {
			tbl := t.AsTable()
			v := tbl.RawGet(key)
			if !v.IsNil() {
				return v, nil
			}
			h := metamethod(g, t, g.metaNames.index)
			if h.IsNil() {
				return Nil, nil
			}
			if h.IsFunction() {
				return th.call1(h, t, key)
			}
			t = h
			continue
		}
		h := metamethod(g, t, g.metaNames.index)
		if h.IsNil() {
			return Nil, runtimeErrorf(g, "attempt to index a %s value", t.TypeName())
		}
		if h.IsFunction() {
			return th.call1(h, t, key)
		}
		t = h
	}
	return Nil, ErrBadMetamethodChain
}

// NewIndex implements SETTABLE's full semantics symmetrically to Index.
func (th *Thread) NewIndex(t Value, key, val Value) error {
	g := th.g
	for i := 0; i < maxTagMethodChain; i++ {
		if t.Kind == KindTable {
			tbl := t.AsTable()
			if !tbl.RawGet(key).IsNil() {
				return tbl.RawSet(g, key, val)
			}
			h := metamethod(g, t, g.metaNames.newindex)
			if h.IsNil() {
				return tbl.RawSet(g, key, val)
			}
			if h.IsFunction() {
				_, err := th.callN(h, []Value{t, key, val}, 0)
				return err
			}
			t = h
			continue
		}
		h := metamethod(g, t, g.metaNames.newindex)
		if h.IsNil() {
			return runtimeErrorf(g, "attempt to index a %s value", t.TypeName())
		}
		if h.IsFunction() {
			_, err := th.callN(h, []Value{t, key, val}, 0)
			return err
		}
		t = h
	}
	return ErrBadMetamethodChain
}

// arithMetamethodName maps an arithmetic opcode to its metamethod name.
func (g *GlobalState) arithMetamethodName(op Opcode) *StringObj {
	switch op {
	case OpAdd:
		return g.metaNames.add
	case OpSub:
		return g.metaNames.sub
	case OpMul:
		return g.metaNames.mul
	case OpDiv:
		return g.metaNames.div
	case OpMod:
		return g.metaNames.mod
	case OpPow:
		return g.metaNames.pow
	case OpUnm:
		return g.metaNames.unm
	default:
		return nil
	}
}

// Arith implements spec.md §4.H's arithmetic fallback: both operands
// numeric (or string-coercible) computes directly; otherwise the first
// operand's metamethod is tried, then the second's.
func (th *Thread) Arith(op Opcode, a, b Value) (Value, error) {
	g := th.g
	if na, ok := toNumber(a); ok {
		if nb, ok := toNumber(b); ok {
			return NumberValue(applyArith(op, na, nb)), nil
		}
	}
	name := g.arithMetamethodName(op)
	if h := metamethod(g, a, name); h.IsFunction() {
		return th.call1(h, a, b)
	}
	if h := metamethod(g, b, name); h.IsFunction() {
		return th.call1(h, a, b)
	}
	bad := a
	if _, ok := toNumber(a); ok {
		bad = b
	}
	return Nil, runtimeErrorf(g, "attempt to perform arithmetic on a %s value", bad.TypeName())
}

func applyArith(op Opcode, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpMod:
		return a - floorDiv(a, b)*b
	case OpPow:
		return powFloat(a, b)
	case OpUnm:
		return -a
	default:
		return 0
	}
}

func floorDiv(a, b float64) float64 {
	q := a / b
	return floorFloat(q)
}

// Concat implements the .. operator's full fallback chain for a pair of
// already-adjacent operands; exec.go's CONCAT opcode folds a run of
// operands pairwise right-to-left, matching Lua's own evaluation order.
func (th *Thread) Concat(a, b Value) (Value, error) {
	g := th.g
	if concatable(a) && concatable(b) {
		return g.InternString(concatString(a) + concatString(b)), nil
	}
	if h := metamethod(g, a, g.metaNames.concat); h.IsFunction() {
		return th.call1(h, a, b)
	}
	if h := metamethod(g, b, g.metaNames.concat); h.IsFunction() {
		return th.call1(h, a, b)
	}
	bad := a
	if concatable(a) {
		bad = b
	}
	return Nil, runtimeErrorf(g, "attempt to concatenate a %s value", bad.TypeName())
}

func concatable(v Value) bool { return v.Kind == KindString || v.Kind == KindNumber }

func concatString(v Value) string {
	if v.Kind == KindString {
		return v.AsString().String()
	}
	return numberToString(v.Num)
}

// Equal implements == including the __eq rule: only consulted when both
// operands are tables or both are userdata, raw-unequal, and both sides'
// metatables name the identical __eq handler (get_compTM's rule — an
// __eq defined on just one side, or differing handlers on each, never
// fires, so equality falls back to the raw/pointer comparison above).
func (th *Thread) Equal(a, b Value) (bool, error) {
	if RawEqual(a, b) {
		return true, nil
	}
	if a.Kind != b.Kind || (a.Kind != KindTable && a.Kind != KindUserData) {
		return false, nil
	}
	g := th.g
	ha := metamethod(g, a, g.metaNames.eq)
	hb := metamethod(g, b, g.metaNames.eq)
	if ha.IsNil() || hb.IsNil() {
		return false, nil
	}
	// get_compTM: both sides must name the very same handler, not merely
	// "whichever side has one" — an __eq defined on only one operand (or
	// differing __eq handlers on each) never fires.
	h := ha
	if metatableOf(g, a) != metatableOf(g, b) && !RawEqual(ha, hb) {
		return false, nil
	}
	if !h.IsFunction() {
		return false, nil
	}
	res, err := th.call1(h, a, b)
	if err != nil {
		return false, err
	}
	return res.IsTruthy(), nil
}

// Less implements < , falling back to __lt.
func (th *Thread) Less(a, b Value) (bool, error) {
	if a.Kind == KindNumber && b.Kind == KindNumber {
		return a.Num < b.Num, nil
	}
	if a.Kind == KindString && b.Kind == KindString {
		return a.AsString().String() < b.AsString().String(), nil
	}
	g := th.g
	h := metamethod(g, a, g.metaNames.lt)
	if h.IsNil() {
		h = metamethod(g, b, g.metaNames.lt)
	}
	if !h.IsFunction() {
		return false, runtimeErrorf(g, "attempt to compare %s with %s", a.TypeName(), b.TypeName())
	}
	res, err := th.call1(h, a, b)
	if err != nil {
		return false, err
	}
	return res.IsTruthy(), nil
}

// LessEqual implements <=, falling back to __le, and if that is absent,
// to "not (b < a)" via __lt — Lua 5.1's documented (if slightly dubious)
// fallback.
func (th *Thread) LessEqual(a, b Value) (bool, error) {
	if a.Kind == KindNumber && b.Kind == KindNumber {
		return a.Num <= b.Num, nil
	}
	if a.Kind == KindString && b.Kind == KindString {
		return a.AsString().String() <= b.AsString().String(), nil
	}
	g := th.g
	h := metamethod(g, a, g.metaNames.le)
	if h.IsNil() {
		h = metamethod(g, b, g.metaNames.le)
	}
	if h.IsFunction() {
		res, err := th.call1(h, a, b)
		if err != nil {
			return false, err
		}
		return res.IsTruthy(), nil
	}
	lt, err := th.Less(b, a)
	if err != nil {
		return false, err
	}
	return !lt, nil
}

// Len implements the # operator, falling back to __len for non-tables and
// for tables whose metatable defines it.
func (th *Thread) Len(v Value) (Value, error) {
	g := th.g
	if v.Kind == KindString {
		return NumberValue(float64(v.AsString().Len())), nil
	}
	if h := metamethod(g, v, g.metaNames.len); h.IsFunction() {
		return th.call1(h, v, Nil)
	}
	if v.Kind == KindTable {
		return NumberValue(float64(v.AsTable().Len())), nil
	}
	return Nil, runtimeErrorf(g, "attempt to get length of a %s value", v.TypeName())
}

// call1 invokes a 2-argument metamethod and returns exactly one result.
func (th *Thread) call1(fn, a, b Value) (Value, error) {
	results, err := th.callN(fn, []Value{a, b}, 1)
	if err != nil {
		return Nil, err
	}
	if len(results) == 0 {
		return Nil, nil
	}
	return results[0], nil
}
