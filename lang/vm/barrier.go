// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// barrierForward implements spec.md §4.G's forward write barrier: a black
// object o has just been made to point at a white value v. Rather than
// reopen o for rescanning, mark v directly (or requeue it) so the
// collector's invariant ("no black object points at a white one") is
// restored without revisiting o. Used by every collectable kind except
// tables.
//
// Only valid during PROPAGATE or ATOMIC; once sweeping has begun the
// invariant no longer needs to hold (everything still white is about to
// be swept anyway), so callers must check isBlack()/state before calling.
func (g *GlobalState) barrierForward(o object, v Value) {
	if g.gcState != GCPropagate && g.gcState != GCAtomic {
		return
	}
	if v.Obj == nil {
		return
	}
	h := v.Obj.gcHeader()
	if !h.isWhite() {
		return
	}
	g.markObject(v.Obj)
	_ = o // o itself stays black; only v's reachability changes.
}

// barrierBack implements spec.md §4.G's backward barrier: rather than mark
// every value a black table might reach (expensive for a table about to
// receive many more writes), turn the table itself gray again and requeue
// it onto grayAgain so the next ATOMIC rescans it from scratch. This is
// the "tables always use the cheaper backward barrier" rule; applied here
// to any object for simplicity; non-table callers (userdata metatable
// swaps) pay the same requeue cost, which is rare enough not to matter.
func (g *GlobalState) barrierBack(o object) {
	if g.gcState != GCPropagate && g.gcState != GCAtomic {
		return
	}
	h := o.gcHeader()
	if !h.isBlack() {
		return
	}
	h.makeGray()
	g.grayAgain = append(g.grayAgain, o)
}
