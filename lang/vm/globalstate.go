// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "github.com/probelang/luacore/internal/logx"

// GCState names the state machine positions from spec.md §4.G.
type GCState int

const (
	GCPause GCState = iota
	GCPropagate
	GCAtomic
	GCSweepString
	GCSweep
	GCFinalize
)

func (s GCState) String() string {
	switch s {
	case GCPause:
		return "pause"
	case GCPropagate:
		return "propagate"
	case GCAtomic:
		return "atomic"
	case GCSweepString:
		return "sweep-string"
	case GCSweep:
		return "sweep"
	case GCFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// GlobalState is shared by the main thread and every coroutine spawned
// from it. It exclusively owns the rooted GC list, the string table, and
// the collector's bookkeeping (spec.md §3's "Global state" entity).
type GlobalState struct {
	strings *stringTable

	rootHead object // head of the intrusive root GC list
	openUpvalues *Upvalue

	currentWhite markBits

	gcState      GCState
	gray         []object // PROPAGATE work list
	grayAgain    []object // rescanned at the next ATOMIC (tables, threads)
	weak         []*Table // tables with a __mode set, pending cleanup
	tmudata      []*UserData
	sweepRoot    object // cursor into the root list during SWEEP
	sweepBucket  int    // cursor into string buckets during SWEEP-STRING

	totalBytes  int64
	gcThreshold int64
	gcDebt      int64

	pausePercent int // e.g. 200 = wait until heap doubles
	stepMul      int // percent multiplier on step size

	mainThread *Thread
	registry   *Table
	typeMetatables [int(kindCount)]*Table

	// Pre-interned metamethod name strings (spec.md §4.H).
	metaNames struct {
		index, newindex, call, eq, lt, le, concat, len        *StringObj
		add, sub, mul, div, mod, pow, unm, mode, gc            *StringObj
	}

	panicFunc GoFunction
	yieldBuiltin *CClosure

	log logx.Logger
}

// NewGlobalState creates a fresh interpreter universe: its own string
// table, GC state, and main thread. Distinct GlobalStates never share any
// mutable structure (spec.md §6 "Environment/identity").
func NewGlobalState(cfg Config) *GlobalState {
	g := &GlobalState{
		strings:      newStringTable(),
		currentWhite: bitWhite0,
		pausePercent: cfg.GCPausePercent,
		stepMul:      cfg.GCStepMul,
		gcThreshold:  cfg.GCInitialThreshold,
		log:          cfg.Logger,
	}
	if g.pausePercent == 0 {
		g.pausePercent = 200
	}
	if g.stepMul == 0 {
		g.stepMul = 200
	}
	if g.gcThreshold == 0 {
		g.gcThreshold = 64 * 1024
	}
	if g.log == nil {
		g.log = logx.Discard
	}

	g.internMetaNames()
	g.registry = g.NewTable(0, 0)
	g.registry.setSuperFixed()

	g.mainThread = g.newThread()
	g.mainThread.setSuperFixed()
	g.mainThread.status = ThreadRunning
	g.mainThread.globals = g.NewTable(0, 8)
	g.mainThread.globals.setSuperFixed()

	g.yieldBuiltin = g.newYieldBuiltin()

	return g
}

func (g *GlobalState) internMetaNames() {
	intern := func(s string) *StringObj {
		so := g.intern([]byte(s))
		fix(so)
		return so
	}
	m := &g.metaNames
	m.index, m.newindex, m.call = intern("__index"), intern("__newindex"), intern("__call")
	m.eq, m.lt, m.le = intern("__eq"), intern("__lt"), intern("__le")
	m.concat, m.len, m.mode = intern("__concat"), intern("__len"), intern("__mode")
	m.add, m.sub, m.mul = intern("__add"), intern("__sub"), intern("__mul")
	m.div, m.mod, m.pow = intern("__div"), intern("__mod"), intern("__pow")
	m.unm, m.gc = intern("__unm"), intern("__gc")
}

// MainThread returns the global state's main coroutine.
func (g *GlobalState) MainThread() *Thread { return g.mainThread }

// Globals returns the main thread's global variable table (the `env` used
// by GETGLOBAL/SETGLOBAL in the absence of a per-closure override).
func (g *GlobalState) Globals() *Table { return g.mainThread.globals }

// TypeMetatable returns the shared metatable for all values of kind k
// (used for numbers, strings, booleans — every non-table/userdata kind).
func (g *GlobalState) TypeMetatable(k Kind) *Table { return g.typeMetatables[k] }

// SetTypeMetatable installs the shared metatable for kind k.
func (g *GlobalState) SetTypeMetatable(k Kind, mt *Table) { g.typeMetatables[k] = mt }

// linkRoot links a freshly allocated object into the root GC list and
// accounts its allocation against the pacing counters, per spec.md §4.G's
// pacing rule ("on every allocation, totalbytes increases...").
func (g *GlobalState) linkRoot(o object) {
	h := o.gcHeader()
	h.next = g.rootHead
	g.rootHead = o
	g.totalBytes += approxObjectSize(h.kind)
	g.maybeStep()
}

// approxObjectSize is a coarse per-kind size estimate used purely for GC
// pacing; it need not be exact (spec.md's pacing model is itself a tunable
// approximation, not a byte-accurate accounting system).
func approxObjectSize(k Kind) int64 {
	switch k {
	case KindString:
		return 48
	case KindTable:
		return 96
	case KindFunction:
		return 64
	case KindUserData:
		return 32
	case KindThread:
		return 256
	case KindUpvalue:
		return 40
	case KindProto:
		return 128
	default:
		return 32
	}
}
