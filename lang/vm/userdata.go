// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// UserData wraps an arbitrary Go value for storage in Lua registers and
// tables, with an optional metatable supplying metamethods (including
// __gc, spec.md §4.G's finalizer hook).
type UserData struct {
	GCHeader
	Data      interface{}
	metatable *Table

	// finalizerNext is not used: the pending-finalization queue is the
	// GlobalState.tmudata slice, filled during SWEEP and drained during
	// FINALIZE.
	finalizerNext *UserData
}

// NewUserData allocates a UserData wrapping data, tracked by g's GC.
func (g *GlobalState) NewUserData(data interface{}) *UserData {
	u := &UserData{Data: data}
	u.kind = KindUserData
	u.marks = g.currentWhite
	g.linkRoot(u)
	return u
}

func (u *UserData) Metatable() *Table { return u.metatable }

func (u *UserData) SetMetatable(g *GlobalState, mt *Table) {
	u.metatable = mt
	if mt != nil {
		g.barrierBack(u)
	}
}

// hasFinalizer reports whether u's metatable defines __gc, meaning it must
// be queued rather than freed outright when found dead (spec.md §4.G).
func (u *UserData) hasFinalizer(g *GlobalState) bool {
	if u.metatable == nil || u.isFinalized() {
		return false
	}
	return !u.metatable.RawGet(objectValue(g.metaNames.gc)).IsNil()
}
