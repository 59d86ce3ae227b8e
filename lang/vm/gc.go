// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "strings"

// markObject transitions a white object directly to gray and queues it
// for propagation. Strings have no children, so they go straight to black
// (spec.md §4.B: "strings are marked black immediately, never queued").
func (g *GlobalState) markObject(o object) {
	h := o.gcHeader()
	if !h.isWhite() {
		return
	}
	h.makeGray()
	if h.kind == KindString {
		h.makeBlack()
		return
	}
	g.gray = append(g.gray, o)
}

func (g *GlobalState) markValue(v Value) {
	if v.Obj != nil {
		g.markObject(v.Obj)
	}
}

// markRoots marks every root reachable without going through the heap:
// the registry, the main thread (whose traversal covers its stack,
// call-stack closures, globals and open upvalues), and the global
// open-upvalue list, which also reaches the open upvalues of coroutines
// that are not otherwise reachable. Other threads are marked only when
// found through the heap.
func (g *GlobalState) markRoots() {
	g.markObject(g.registry)
	g.markThread(g.mainThread)
	for uv := g.openUpvalues; uv != nil; uv = uv.globalNext {
		g.markObject(uv)
	}
}

func (g *GlobalState) markThread(th *Thread) {
	g.markObject(th)
}

// propagateOne pops one gray object and marks everything it points to,
// turning it black. Returns false when the gray list is empty.
func (g *GlobalState) propagateOne() bool {
	if len(g.gray) == 0 {
		return false
	}
	o := g.gray[len(g.gray)-1]
	g.gray = g.gray[:len(g.gray)-1]
	g.traverse(o)
	o.gcHeader().makeBlack()
	return true
}

// traverse marks every object/value directly reachable from o, per
// spec.md §3's per-kind child lists.
func (g *GlobalState) traverse(o object) {
	switch v := o.(type) {
	case *Table:
		g.traverseTable(v)
	case *LClosure:
		g.markObject(v.Proto)
		for _, uv := range v.Upvalues {
			if uv != nil {
				g.markObject(uv)
			}
		}
		if v.env != nil {
			g.markObject(v.env)
		}
	case *CClosure:
		for _, val := range v.Upvalues {
			g.markValue(val)
		}
		if v.env != nil {
			g.markObject(v.env)
		}
	case *Proto:
		for _, k := range v.Constants {
			g.markValue(k)
		}
		for _, p := range v.Protos {
			g.markObject(p)
		}
	case *Upvalue:
		if v.closed {
			g.markValue(v.value)
		}
		// Open upvalues are reachable through their owning thread's stack
		// scan; nothing further to do here.
	case *UserData:
		if v.metatable != nil {
			g.markObject(v.metatable)
		}
	case *Thread:
		g.traverseThread(v)
	case *StringObj:
		// No children; markObject already blackened strings directly.
	}
}

// latchWeakMode reads t's __mode metafield, if any, and latches
// bitKeyWeak/bitValueWeak onto t.marks accordingly (table.go's weakKey/
// weakValue read exactly these bits). Re-latched on every traversal since
// a table's metatable — and thus its mode — can change between cycles.
func (g *GlobalState) latchWeakMode(t *Table) {
	t.marks &^= bitKeyWeak | bitValueWeak
	if t.metatable == nil {
		return
	}
	mode := t.metatable.RawGet(objectValue(g.metaNames.mode))
	if mode.Kind != KindString {
		return
	}
	s := mode.AsString().String()
	if strings.Contains(s, "k") {
		t.marks |= bitKeyWeak
	}
	if strings.Contains(s, "v") {
		t.marks |= bitValueWeak
	}
}

// traverseTable marks keys/values, honoring the table's latched weak-mode
// bits: a weak key or weak value is left white here, to be resolved during
// ATOMIC's cleanWeakTables pass once the whole graph is known.
func (g *GlobalState) traverseTable(t *Table) {
	g.latchWeakMode(t)
	weakK, weakV := t.weakKey(), t.weakValue()
	if t.metatable != nil {
		g.markObject(t.metatable)
	}
	if !weakK && !weakV {
		for _, v := range t.array {
			g.markValue(v)
		}
		for i := range t.node {
			n := &t.node[i]
			if n.key.Kind == KindNil || n.key.Kind == KindDeadKey {
				continue
			}
			g.markValue(n.key)
			g.markValue(n.value)
		}
		return
	}
	// At least one side is weak: mark the strong side now, defer the weak
	// side to the ATOMIC cleanup pass, and remember t needs that pass.
	if !weakV {
		for _, v := range t.array {
			g.markValue(v)
		}
	}
	for i := range t.node {
		n := &t.node[i]
		if n.key.Kind == KindNil || n.key.Kind == KindDeadKey {
			continue
		}
		if !weakK {
			g.markValue(n.key)
		}
		if !weakV {
			g.markValue(n.value)
		}
	}
	g.weak = append(g.weak, t)
}

func (g *GlobalState) traverseThread(th *Thread) {
	for i := 0; i < th.top; i++ {
		g.markValue(th.stack[i])
	}
	for i := range th.callInfo {
		if th.callInfo[i].Closure != nil {
			g.markObject(th.callInfo[i].Closure)
		}
	}
	if th.globals != nil {
		g.markObject(th.globals)
	}
	for uv := th.openUpvalues; uv != nil; uv = uv.threadNext {
		g.markObject(uv)
	}
	// A running thread is rescanned every atomic step since its stack
	// keeps changing underneath the collector; cheaper than a barrier on
	// every single stack write.
	if th.status == ThreadRunning || th.status == ThreadNormal {
		g.grayAgain = append(g.grayAgain, th)
	}
}

// cleanWeakTables drops entries whose weak side died, run once during
// ATOMIC after the strong graph has fully settled.
func (g *GlobalState) cleanWeakTables() {
	for _, t := range g.weak {
		weakK, weakV := t.weakKey(), t.weakValue()
		for i, v := range t.array {
			if weakV && v.Obj != nil && v.Obj.gcHeader().isWhite() {
				t.array[i] = Nil
			}
		}
		for i := range t.node {
			n := &t.node[i]
			if n.key.Kind == KindNil || n.key.Kind == KindDeadKey {
				continue
			}
			dead := (weakK && n.key.Obj != nil && n.key.Obj.gcHeader().isWhite()) ||
				(weakV && n.value.Obj != nil && n.value.Obj.gcHeader().isWhite())
			if dead {
				t.removeNode(i)
			}
		}
	}
	g.weak = g.weak[:0]
}

// Step advances the incremental collector by one unit of "work", per
// spec.md §4.G's state machine. The unit is coarse (one gray object
// propagated, or one root/string-bucket swept) rather than byte-accurate;
// callers drive it from maybeStep, which is itself driven from every
// allocation.
func (g *GlobalState) Step() {
	switch g.gcState {
	case GCPause:
		g.gray = g.gray[:0]
		g.grayAgain = g.grayAgain[:0]
		g.markRoots()
		g.gcState = GCPropagate

	case GCPropagate:
		if !g.propagateOne() {
			g.atomicStep()
		}

	case GCSweepString:
		if g.sweepBucket >= len(g.strings.buckets) {
			g.gcState = GCSweep
			g.sweepRoot = g.rootHead
			return
		}
		g.sweepStringBucket(g.sweepBucket)
		g.sweepBucket++

	case GCSweep:
		if g.sweepRoot == nil {
			g.gcState = GCFinalize
			return
		}
		g.sweepRoot = g.sweepOne(g.sweepRoot)

	case GCFinalize:
		if !g.runOneFinalizer() {
			g.finishCycle()
		}
	}
}

// atomicStep runs spec.md §4.G's ATOMIC phase to completion: rescan
// grayAgain (tables/threads whose barrier fired since PROPAGATE started),
// clean weak tables, then flip the current white and enter sweeping.
// Real Lua performs this without yielding back to the mutator; we do the
// same here since it is already bounded by the size of grayAgain.
func (g *GlobalState) atomicStep() {
	again := g.grayAgain
	g.grayAgain = nil
	for _, o := range again {
		h := o.gcHeader()
		g.traverse(o)
		h.makeBlack()
	}
	for len(g.gray) > 0 {
		g.propagateOne()
	}
	g.cleanWeakTables()

	g.currentWhite = flipWhite(g.currentWhite)
	g.gcState = GCSweepString
	g.sweepBucket = 0
}

func flipWhite(w markBits) markBits {
	if w == bitWhite0 {
		return bitWhite1
	}
	return bitWhite0
}

func (g *GlobalState) sweepStringBucket(idx int) {
	bucket := g.strings.buckets[idx]
	kept := bucket[:0]
	for _, s := range bucket {
		if s.isFixed() || !s.isDeadWhite(g) {
			kept = append(kept, s)
			continue
		}
		g.strings.nuse--
	}
	g.strings.buckets[idx] = kept
}

// sweepOne inspects one node of the root list, freeing it if it is
// dead-white, and returns the next node to visit. Collectable objects
// outside the string table (tables, closures, protos, upvalues, userdata,
// threads) are singly linked through GCHeader.next; freeing here just
// unlinks and — for userdata with a pending finalizer — reroutes instead
// of dropping.
func (g *GlobalState) sweepOne(o object) object {
	h := o.gcHeader()
	next := h.next
	if h.isFixed() || !h.isDeadWhite(g) {
		h.makeWhite(g)
		return next
	}
	if ud, ok := o.(*UserData); ok && ud.hasFinalizer(g) {
		g.unlinkRoot(o) // runOneFinalizer relinks it at the head
		g.tmudata = append(g.tmudata, ud)
		ud.setFinalized()
		h.makeWhite(g)
		return next
	}
	g.unlinkRoot(o)
	return next
}

// unlinkRoot splices o out of the root list: directly when o is the head,
// otherwise by walking from the head to o's predecessor. Sweeping captures
// o's next pointer before calling this, so it can continue from there.
func (g *GlobalState) unlinkRoot(o object) {
	if g.rootHead == o {
		g.rootHead = o.gcHeader().next
		return
	}
	cur := g.rootHead
	for cur != nil {
		h := cur.gcHeader()
		if h.next == o {
			h.next = o.gcHeader().next
			return
		}
		cur = h.next
	}
}

// runOneFinalizer pops and runs the __gc metamethod for one pending
// userdata, per spec.md §4.G's FINALIZE state. Returns false once the
// queue is empty.
func (g *GlobalState) runOneFinalizer() bool {
	if len(g.tmudata) == 0 {
		return false
	}
	ud := g.tmudata[0]
	g.tmudata = g.tmudata[1:]
	if ud.metatable != nil {
		if fnVal := ud.metatable.RawGet(objectValue(g.metaNames.gc)); fnVal.IsFunction() {
			g.callFinalizer(fnVal, ud)
		}
	}
	// Relink so the next cycle can actually free it (barring a __gc that
	// resurrected it into a live structure, which this simplified
	// implementation does not special-case further).
	h := ud.gcHeader()
	h.next = g.rootHead
	g.rootHead = ud
	return true
}

// callFinalizer invokes fn(ud) on the main thread, swallowing any error:
// spec.md treats a __gc failure as a non-fatal runtime warning, never an
// abort of the collection cycle.
func (g *GlobalState) callFinalizer(fn Value, ud *UserData) {
	th := g.mainThread
	base := th.top
	th.Push(fn)
	th.Push(objectValue(ud))
	if err := th.Call(base, 1, 0); err != nil {
		g.log.Warn("finalizer error", "err", err)
	}
	th.SetTop(base)
}

func (g *GlobalState) finishCycle() {
	g.gcState = GCPause
	next := g.totalBytes * int64(g.pausePercent) / 100
	if next < g.gcThreshold {
		next = g.gcThreshold
	}
	g.gcThreshold = next
	g.gcDebt = 0
}

// maybeStep is called on every allocation (via linkRoot). Once total
// allocation has outrun the threshold, it drives the collector forward by
// a number of steps proportional to stepMul, spreading collection work
// across many allocations instead of stopping the world.
func (g *GlobalState) maybeStep() {
	if g.totalBytes < g.gcThreshold {
		return
	}
	g.gcDebt += int64(g.stepMul)
	steps := g.gcDebt / 100
	g.gcDebt -= steps * 100
	for i := int64(0); i < steps; i++ {
		g.Step()
		if g.gcState == GCPause {
			break
		}
	}
}

// FullGC drives the collector through an entire cycle immediately,
// regardless of pacing, mirroring Lua's collectgarbage("collect"): finish
// whatever cycle is in progress, then run one more full cycle from a
// fresh PAUSE so every currently-dead object is actually reclaimed.
func (g *GlobalState) FullGC() {
	for g.gcState != GCPause {
		g.Step()
	}
	g.Step() // PAUSE -> PROPAGATE
	for g.gcState != GCPause {
		g.Step()
	}
}
