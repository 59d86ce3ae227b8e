// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// Upvalue is either OPEN (aliasing a live slot on some thread's stack) or
// CLOSED (holding its own value inline), per spec.md §3/§4.D.
type Upvalue struct {
	GCHeader
	closed bool
	value  Value   // meaningful only when closed
	thread *Thread // owning thread while open
	index  int     // stack slot index while open

	// threadNext/threadPrev thread the per-thread open list, sorted by
	// descending stack address.
	threadNext, threadPrev *Upvalue
	// globalNext/globalPrev thread the global open-upvalue list that the
	// GC's markRoots walks when a cycle starts.
	globalNext, globalPrev *Upvalue
}

func (u *Upvalue) Get() Value {
	if u.closed {
		return u.value
	}
	return u.thread.stack[u.index]
}

func (u *Upvalue) Set(g *GlobalState, v Value) {
	if u.closed {
		u.value = v
		if u.isBlack() && v.Obj != nil && v.Obj.gcHeader().isWhite() {
			g.barrierForward(u, v)
		}
		return
	}
	u.thread.stack[u.index] = v
}

// findOrCreateUpvalue implements spec.md §4.D's find-or-create: walk th's
// open list (sorted by descending stack address); reuse an exact match,
// otherwise splice a new open upvalue in order.
func (g *GlobalState) findOrCreateUpvalue(th *Thread, level int) *Upvalue {
	var prev *Upvalue
	cur := th.openUpvalues
	for cur != nil && cur.index > level {
		prev = cur
		cur = cur.threadNext
	}
	if cur != nil && cur.index == level {
		return cur
	}

	uv := &Upvalue{thread: th, index: level}
	uv.kind = KindUpvalue
	uv.marks = g.currentWhite

	uv.threadNext = cur
	if cur != nil {
		cur.threadPrev = uv
	}
	if prev == nil {
		th.openUpvalues = uv
	} else {
		prev.threadNext = uv
	}
	uv.threadPrev = prev

	uv.globalNext = g.openUpvalues
	if g.openUpvalues != nil {
		g.openUpvalues.globalPrev = uv
	}
	g.openUpvalues = uv

	g.linkRoot(uv)
	return uv
}

// closeUpvalues implements spec.md §4.D's Close: every open upvalue at
// stack address >= level is closed (its value copied inline, its pointer
// retargeted at its own slot) and unlinked from both open lists.
func (g *GlobalState) closeUpvalues(th *Thread, level int) {
	for th.openUpvalues != nil && th.openUpvalues.index >= level {
		uv := th.openUpvalues
		th.openUpvalues = uv.threadNext
		if uv.threadNext != nil {
			uv.threadNext.threadPrev = nil
		}

		val := th.stack[uv.index]
		uv.closed = true
		uv.value = val
		uv.thread = nil

		if uv.globalPrev != nil {
			uv.globalPrev.globalNext = uv.globalNext
		} else {
			g.openUpvalues = uv.globalNext
		}
		if uv.globalNext != nil {
			uv.globalNext.globalPrev = uv.globalPrev
		}
		uv.globalNext, uv.globalPrev = nil, nil

		if uv.isBlack() && val.Obj != nil && val.Obj.gcHeader().isWhite() {
			g.barrierForward(uv, val)
		}
	}
}
