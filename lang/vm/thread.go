// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// ThreadStatus names a coroutine's lifecycle position (spec.md §4.F).
type ThreadStatus int

const (
	ThreadSuspended ThreadStatus = iota
	ThreadRunning
	ThreadNormal // resumed another coroutine; itself not running
	ThreadDead
)

func (s ThreadStatus) String() string {
	switch s {
	case ThreadSuspended:
		return "suspended"
	case ThreadRunning:
		return "running"
	case ThreadNormal:
		return "normal"
	case ThreadDead:
		return "dead"
	default:
		return "unknown"
	}
}

// CallInfo is one activation record on a thread's call stack: which
// closure is running, where its registers start, where its caller expects
// results, and (for Lua closures) the saved program counter.
type CallInfo struct {
	Closure    Closure
	Base       int // index into Thread.stack of register 0
	ResultBase int // where the caller wants results written
	NResults   int // caller-requested result count, or MultRet
	PC         int // saved instruction index (LClosure only)
	IsTailcall bool
	PCallLevel int // call-stack depth of the pcall protecting this frame, or -1

	VarargBase  int // absolute stack index of the first extra vararg
	NumVarargs  int // count of extra varargs available to OpVararg
}

// MultRet signals "as many results as the callee actually produced",
// mirroring Lua's LUA_MULTRET convention for call/return counts.
const MultRet = -1

// Thread is one Lua coroutine: its own value stack and call stack, sharing
// everything else (GC state, string pool, registry) with GlobalState. The
// main thread is a Thread like any other except it can never be resumed
// (spec.md §4.F) and is marked super-fixed.
type Thread struct {
	GCHeader

	g *GlobalState

	stack    []Value
	top      int // first unused stack slot
	callInfo []CallInfo

	openUpvalues *Upvalue
	globals      *Table

	status ThreadStatus

	// resumer is the thread that resumed this one (nil for the main
	// thread), used to restore status on yield/return and to chain
	// errors back through nested resumes.
	resumer *Thread

	// pendingErr carries an uncaught error out of a dead coroutine so
	// Resume can report it without unwinding through panic/recover.
	pendingErr error

	// body is the function a coroutine was created from; consulted only
	// by the first Resume, which has no call frame yet to read it from.
	body Value

	// yieldValues/yieldResultBase/yieldNResults record where the last
	// yield call in this thread is "parked": the values it's handing to
	// its resumer, and where/how many results the next Resume should
	// write back into when it delivers new arguments.
	yieldValues     []Value
	yieldResultBase int
	yieldNResults   int
}

const initialStackSize = 64

func (g *GlobalState) newThread() *Thread {
	th := &Thread{g: g, stack: make([]Value, initialStackSize)}
	th.kind = KindThread
	th.marks = g.currentWhite
	g.linkRoot(th)
	return th
}

// NewThread creates a fresh suspended coroutine sharing g's global state,
// with globals as its global table, per spec.md §4.F.
func (g *GlobalState) NewThread(globals *Table) *Thread {
	th := g.newThread()
	th.globals = globals
	th.status = ThreadSuspended
	return th
}

// Status reports th's current lifecycle state.
func (th *Thread) Status() ThreadStatus { return th.status }

// Global returns the GlobalState th belongs to.
func (th *Thread) Global() *GlobalState { return th.g }

// Top returns the index one past the last live stack slot.
func (th *Thread) Top() int { return th.top }

// Get returns the value at absolute stack index i.
func (th *Thread) Get(i int) Value { return th.stack[i] }

// Set stores v at absolute stack index i, firing checkliveness in debug
// builds (spec.md §4.A).
func (th *Thread) Set(i int, v Value) {
	checkliveness(th.g, v)
	th.stack[i] = v
}

// Push appends v at the current top and advances it, growing the stack if
// necessary.
func (th *Thread) Push(v Value) {
	th.ensure(th.top + 1)
	th.stack[th.top] = v
	th.top++
}

// SetTop truncates or extends the live stack to exactly n slots, filling
// any newly exposed slots with nil (mirrors lua_settop).
func (th *Thread) SetTop(n int) {
	th.ensure(n)
	for i := th.top; i < n; i++ {
		th.stack[i] = Nil
	}
	th.top = n
}

// ensure grows the stack storage so that index n-1 is addressable. Any
// open upvalues already pointing into the old backing array are unaffected
// since they record an index, not a Go pointer — append here never
// invalidates an Upvalue the way a raw slice reslice would a held pointer.
func (th *Thread) ensure(n int) {
	if n <= len(th.stack) {
		return
	}
	newSize := len(th.stack) * 2
	if newSize < n {
		newSize = n
	}
	grown := make([]Value, newSize)
	copy(grown, th.stack)
	th.stack = grown
}

// CurrentCall returns the innermost active call frame, or nil if th has no
// active call.
func (th *Thread) CurrentCall() *CallInfo {
	if len(th.callInfo) == 0 {
		return nil
	}
	return &th.callInfo[len(th.callInfo)-1]
}

// Depth reports the number of active call frames.
func (th *Thread) Depth() int { return len(th.callInfo) }

func (th *Thread) pushCallInfo(ci CallInfo) {
	th.callInfo = append(th.callInfo, ci)
}

func (th *Thread) popCallInfo() {
	th.callInfo = th.callInfo[:len(th.callInfo)-1]
}
