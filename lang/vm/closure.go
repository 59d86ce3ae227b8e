// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// GoFunction is a host (native) function callable from Lua. It receives
// the thread it is running on and returns the number of results it pushed
// onto the thread's stack; precall reads those results from the slots just
// above the function's arguments, mirroring spec.md §4.F's C-function
// precall contract.
type GoFunction func(th *Thread) (nresults int, err error)

// Closure is implemented by both LClosure (a Lua function bound to
// upvalues) and CClosure (a native Go function bound to upvalues), per
// spec.md §3's "Closure" entity.
type Closure interface {
	object
	isClosure()
	Env() *Table
}

// LClosure binds an immutable Proto to a runtime array of Upvalue
// references plus an environment table.
type LClosure struct {
	GCHeader
	Proto    *Proto
	Upvalues []*Upvalue
	env      *Table
}

func (c *LClosure) isClosure()   {}
func (c *LClosure) Env() *Table  { return c.env }

// CClosure binds a native Go function to an inline array of captured
// upvalue Values (not Upvalue cells — C closures never share upvalues with
// Lua closures in Lua 5.1) plus an environment table.
type CClosure struct {
	GCHeader
	Fn        GoFunction
	Upvalues  []Value
	env       *Table
	Name      string // for error messages / tracebacks only
}

func (c *CClosure) isClosure()  {}
func (c *CClosure) Env() *Table { return c.env }

// NewLClosure allocates a Lua closure over p with one (as-yet-unbound)
// upvalue slot per entry of p.Upvalues, tracked by g's GC.
func (g *GlobalState) NewLClosure(p *Proto, env *Table) *LClosure {
	c := &LClosure{Proto: p, env: env, Upvalues: make([]*Upvalue, len(p.Upvalues))}
	c.kind = KindFunction
	c.marks = g.currentWhite
	g.linkRoot(c)
	return c
}

// NewCClosure allocates a native closure wrapping fn with the given
// captured upvalues.
func (g *GlobalState) NewCClosure(fn GoFunction, name string, env *Table, ups ...Value) *CClosure {
	c := &CClosure{Fn: fn, Name: name, env: env, Upvalues: ups}
	c.kind = KindFunction
	c.marks = g.currentWhite
	g.linkRoot(c)
	return c
}

// ClosureValue wraps any Closure as a function Value.
func ClosureValue(c Closure) Value { return Value{Kind: KindFunction, Obj: c} }

// BindUpvalue instantiates upvalue index i of an in-construction LClosure,
// per spec.md §4.E: either share an existing open upvalue captured from an
// enclosing local (GETUPVAL-equivalent directive), or create one pointing
// at a local on the enclosing frame's stack (MOVE-equivalent directive).
func (g *GlobalState) BindUpvalue(c *LClosure, i int, enclosing *LClosure, th *Thread, baseReg int) {
	desc := c.Proto.Upvalues[i]
	if desc.InStack {
		c.Upvalues[i] = g.findOrCreateUpvalue(th, baseReg+desc.Index)
	} else {
		c.Upvalues[i] = enclosing.Upvalues[desc.Index]
	}
}
