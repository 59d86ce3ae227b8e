// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// execute runs instructions on th starting from its current topmost call
// frame until the call-stack depth drops back to startDepth (i.e. the
// frame that was at the top when execute was entered has returned).
// A Lua-to-Lua call recurses: execCall pushes the callee's CallInfo and
// runs it to completion in a nested execute, so every active Lua call
// holds Go stack as well as a CallInfo (bounded by MaxCallDepth).
// A call into a Go function likewise recurses through Go
// (precall invokes it synchronously) — which is how a Go function calling
// back into Lua (e.g. pcall, table.sort's comparator) works at all.
func (th *Thread) execute(startDepth int) error {
	for {
		ci := th.CurrentCall()
		if ci == nil || len(th.callInfo) <= startDepth {
			return nil
		}
		lc, ok := ci.Closure.(*LClosure)
		if !ok {
			// Topmost frame is a GoFunction's own CallInfo, already fully
			// run by precall; nothing left to dispatch here.
			return nil
		}
		proto := lc.Proto
		if ci.PC >= len(proto.Code) {
			th.poscall(ci, ci.Base, 0)
			continue
		}
		inst := proto.Code[ci.PC]
		ci.PC++

		done, err := th.dispatch(ci, lc, inst)
		if err != nil {
			return err
		}
		if done && len(th.callInfo) <= startDepth {
			return nil
		}
	}
}

func (th *Thread) reg(ci *CallInfo, i int) Value    { return th.stack[ci.Base+i] }
func (th *Thread) setReg(ci *CallInfo, i int, v Value) {
	checkliveness(th.g, v)
	th.stack[ci.Base+i] = v
}

func (th *Thread) rk(ci *CallInfo, proto *Proto, x int) Value {
	if isConstant(x) {
		return proto.Constants[constantIndex(x)]
	}
	return th.reg(ci, x)
}

// dispatch executes one decoded instruction. It returns done=true when the
// current frame just returned (via OpReturn/falling off the end), so the
// caller's execute loop can recheck its stopping condition.
func (th *Thread) dispatch(ci *CallInfo, lc *LClosure, inst Instruction) (bool, error) {
	g := th.g
	proto := lc.Proto

	switch inst.Op {
	case OpMove:
		th.setReg(ci, inst.A, th.reg(ci, inst.B))

	case OpLoadK:
		th.setReg(ci, inst.A, proto.Constants[inst.Bx])

	case OpLoadBool:
		th.setReg(ci, inst.A, BoolValue(inst.B != 0))
		if inst.C != 0 {
			ci.PC++
		}

	case OpLoadNil:
		for i := inst.A; i <= inst.B; i++ {
			th.setReg(ci, i, Nil)
		}

	case OpGetUpval:
		th.setReg(ci, inst.A, lc.Upvalues[inst.B].Get())

	case OpSetUpval:
		lc.Upvalues[inst.B].Set(g, th.reg(ci, inst.A))

	case OpGetGlobal:
		key := objectValue(proto.Constants[inst.Bx].Obj)
		v, err := th.Index(objectValue(th.globals), key)
		if err != nil {
			return false, err
		}
		th.setReg(ci, inst.A, v)

	case OpSetGlobal:
		key := objectValue(proto.Constants[inst.Bx].Obj)
		if err := th.NewIndex(objectValue(th.globals), key, th.reg(ci, inst.A)); err != nil {
			return false, err
		}

	case OpGetTable:
		v, err := th.Index(th.reg(ci, inst.B), th.rk(ci, proto, inst.C))
		if err != nil {
			return false, err
		}
		th.setReg(ci, inst.A, v)

	case OpSetTable:
		if err := th.NewIndex(th.reg(ci, inst.A), th.rk(ci, proto, inst.B), th.rk(ci, proto, inst.C)); err != nil {
			return false, err
		}

	case OpNewTable:
		th.setReg(ci, inst.A, objectValue(g.NewTable(inst.B, inst.C)))

	case OpSelf:
		obj := th.reg(ci, inst.B)
		th.setReg(ci, inst.A+1, obj)
		v, err := th.Index(obj, th.rk(ci, proto, inst.C))
		if err != nil {
			return false, err
		}
		th.setReg(ci, inst.A, v)

	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
		v, err := th.Arith(inst.Op, th.rk(ci, proto, inst.B), th.rk(ci, proto, inst.C))
		if err != nil {
			return false, err
		}
		th.setReg(ci, inst.A, v)

	case OpUnm:
		v, err := th.Arith(OpUnm, th.reg(ci, inst.B), NumberValue(0))
		if err != nil {
			return false, err
		}
		th.setReg(ci, inst.A, v)

	case OpNot:
		th.setReg(ci, inst.A, BoolValue(th.reg(ci, inst.B).IsFalsy()))

	case OpLen:
		v, err := th.Len(th.reg(ci, inst.B))
		if err != nil {
			return false, err
		}
		th.setReg(ci, inst.A, v)

	case OpConcat:
		v, err := th.concatRange(ci, proto, inst.B, inst.C)
		if err != nil {
			return false, err
		}
		th.setReg(ci, inst.A, v)

	case OpJmp:
		ci.PC += inst.SBx

	case OpEq:
		eq, err := th.Equal(th.rk(ci, proto, inst.B), th.rk(ci, proto, inst.C))
		if err != nil {
			return false, err
		}
		if boolToInt(eq) != inst.A {
			ci.PC++
		}

	case OpLt:
		lt, err := th.Less(th.rk(ci, proto, inst.B), th.rk(ci, proto, inst.C))
		if err != nil {
			return false, err
		}
		if boolToInt(lt) != inst.A {
			ci.PC++
		}

	case OpLe:
		le, err := th.LessEqual(th.rk(ci, proto, inst.B), th.rk(ci, proto, inst.C))
		if err != nil {
			return false, err
		}
		if boolToInt(le) != inst.A {
			ci.PC++
		}

	case OpTest:
		if boolToInt(th.reg(ci, inst.A).IsTruthy()) != inst.C {
			ci.PC++
		}

	case OpTestSet:
		v := th.reg(ci, inst.B)
		if boolToInt(v.IsTruthy()) == inst.C {
			th.setReg(ci, inst.A, v)
		} else {
			ci.PC++
		}

	case OpCall:
		return th.execCall(ci, inst, false)

	case OpTailCall:
		return th.execCall(ci, inst, true)

	case OpReturn:
		n := inst.B - 1
		from := ci.Base + inst.A
		if n == MultRet {
			n = th.top - from
		}
		th.poscall(ci, from, n)
		return true, nil

	case OpForLoop:
		init := th.reg(ci, inst.A).Num
		limit := th.reg(ci, inst.A+1).Num
		step := th.reg(ci, inst.A+2).Num
		init += step
		if (step > 0 && init <= limit) || (step <= 0 && init >= limit) {
			th.setReg(ci, inst.A, NumberValue(init))
			th.setReg(ci, inst.A+3, NumberValue(init))
			ci.PC += inst.SBx
		}

	case OpForPrep:
		init, ok1 := toNumber(th.reg(ci, inst.A))
		limit, ok2 := toNumber(th.reg(ci, inst.A+1))
		step, ok3 := toNumber(th.reg(ci, inst.A+2))
		if !ok1 || !ok2 || !ok3 {
			return false, runtimeErrorf(g, "'for' initial value must be a number")
		}
		th.setReg(ci, inst.A, NumberValue(init))
		th.setReg(ci, inst.A+1, NumberValue(limit))
		th.setReg(ci, inst.A+2, NumberValue(step))
		th.setReg(ci, inst.A, NumberValue(init-step))
		ci.PC += inst.SBx

	case OpTForLoop:
		base := inst.A
		iter := th.reg(ci, base)
		state := th.reg(ci, base+1)
		control := th.reg(ci, base+2)
		results, err := th.callN(iter, []Value{state, control}, inst.C)
		if err != nil {
			return false, err
		}
		for i := 0; i < inst.C; i++ {
			v := Nil
			if i < len(results) {
				v = results[i]
			}
			th.setReg(ci, base+3+i, v)
		}
		if len(results) == 0 || results[0].IsNil() {
			ci.PC++ // skip the following JMP back to the loop head
		} else {
			th.setReg(ci, base+2, results[0])
		}

	case OpSetList:
		const fieldsPerFlush = 50
		tbl := th.reg(ci, inst.A).AsTable()
		n := inst.B
		if n == 0 {
			n = th.top - (ci.Base + inst.A + 1)
		}
		start := (inst.C - 1) * fieldsPerFlush
		for i := 1; i <= n; i++ {
			if err := tbl.RawSet(g, NumberValue(float64(start+i)), th.reg(ci, inst.A+i)); err != nil {
				return false, err
			}
		}

	case OpClose:
		g.closeUpvalues(th, ci.Base+inst.A)

	case OpClosure:
		proto2 := proto.Protos[inst.Bx]
		nc := g.NewLClosure(proto2, lc.env)
		for i := range proto2.Upvalues {
			g.BindUpvalue(nc, i, lc, th, ci.Base)
		}
		th.setReg(ci, inst.A, ClosureValue(nc))

	case OpVararg:
		// Varargs for a call were stashed below the frame's base by
		// pushLuaFrame (ci.VarargBase/ci.NumVarargs); B-1 of them (or all
		// available, if B==0) are copied starting at A.
		want := inst.B - 1
		if want == MultRet {
			want = ci.NumVarargs
		}
		for i := 0; i < want; i++ {
			v := Nil
			if i < ci.NumVarargs {
				v = th.stack[ci.VarargBase+i]
			}
			th.setReg(ci, inst.A+i, v)
		}
		if inst.B == 0 {
			th.SetTop(ci.Base + inst.A + want)
		}
	}

	return false, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// concatRange folds R(b)..R(c) right-to-left through Concat, matching
// Lua's own right-associative evaluation so a chain with one __concat
// metamethod in the middle behaves the same as the reference
// implementation.
func (th *Thread) concatRange(ci *CallInfo, proto *Proto, b, c int) (Value, error) {
	acc := th.reg(ci, c)
	for i := c - 1; i >= b; i-- {
		var err error
		acc, err = th.Concat(th.reg(ci, i), acc)
		if err != nil {
			return Nil, err
		}
	}
	return acc, nil
}

// execCall handles OpCall; OpTailCall dispatches to execTailCall instead,
// since a tail call must rewrite the current frame rather than push one.
func (th *Thread) execCall(ci *CallInfo, inst Instruction, tail bool) (bool, error) {
	fnIndex := ci.Base + inst.A
	nargs := inst.B - 1
	if nargs == MultRet {
		nargs = th.top - (fnIndex + 1)
	}
	nresults := inst.C - 1

	if tail {
		return th.execTailCall(ci, fnIndex, nargs)
	}

	startDepth := len(th.callInfo)
	if err := th.precall(fnIndex, nargs, nresults); err != nil {
		return false, err
	}
	if len(th.callInfo) > startDepth {
		if err := th.execute(startDepth); err != nil {
			return false, err
		}
	}
	return false, nil
}

// execTailCall implements OP_TAILCALL's in-place frame rewrite (spec.md
// §4.F): "the current frame is rewritten in place — callee overwrites the
// prior func slot ... CallInfo is reused ... This preserves unbounded
// tail-recursion". The departing frame's locals are dead the instant a
// tailcall executes, so its CallInfo can simply be repointed at the new
// callee instead of pushing another one — a tail-recursive loop then runs
// in O(1) call-stack depth no matter how many iterations it makes.
//
// Only a tailcall into another Lua closure gets this treatment. A
// tailcall into a Go function (or into a non-function chased through
// __call down to one) is called normally and its results are propagated
// as this frame's own return: a single Go call can't accumulate the
// unbounded depth a Lua-to-Lua loop can, so there is nothing to flatten.
func (th *Thread) execTailCall(ci *CallInfo, fnIndex, nargs int) (bool, error) {
	fn := th.stack[fnIndex]
	for i := 0; i < maxTagMethodChain && !fn.IsFunction(); i++ {
		h := metamethod(th.g, fn, th.g.metaNames.call)
		if !h.IsFunction() {
			return false, ErrNotCallable
		}
		th.ensure(th.top + 1)
		copy(th.stack[fnIndex+1:th.top+1], th.stack[fnIndex:th.top])
		th.stack[fnIndex] = h
		th.top++
		nargs++
		fn = h
	}

	lc, ok := fn.Obj.(*LClosure)
	if !ok {
		startDepth := len(th.callInfo)
		if err := th.precall(fnIndex, nargs, MultRet); err != nil {
			return false, err
		}
		if len(th.callInfo) > startDepth {
			if err := th.execute(startDepth); err != nil {
				return false, err
			}
		}
		from := fnIndex
		n := th.top - from
		th.poscall(ci, from, n)
		return true, nil
	}

	// Close upvalues the departing frame opened, then slide the callee and
	// its arguments down onto ResultBase — the slot this CallInfo's own
	// function value occupied when it was called, now free to reuse.
	th.closeUpvaluesForThread(ci.Base)
	dest := ci.ResultBase
	copy(th.stack[dest:dest+nargs+1], th.stack[fnIndex:fnIndex+nargs+1])

	p := lc.Proto
	base := dest + 1
	if p.IsVararg && nargs > p.NumParams {
		extra := nargs - p.NumParams
		newBase := base + nargs
		th.ensure(newBase + p.MaxStackSize)
		for i := 0; i < p.NumParams; i++ {
			th.stack[newBase+i] = th.stack[base+i]
		}
		for i := p.NumParams; i < p.MaxStackSize; i++ {
			th.stack[newBase+i] = Nil
		}
		ci.Base = newBase
		ci.VarargBase = base + p.NumParams
		ci.NumVarargs = extra
		th.top = newBase + p.MaxStackSize
	} else {
		th.ensure(base + p.MaxStackSize)
		for i := nargs; i < p.MaxStackSize; i++ {
			th.stack[base+i] = Nil
		}
		ci.Base = base
		ci.VarargBase = 0
		ci.NumVarargs = 0
		th.top = base + p.MaxStackSize
	}
	ci.Closure = lc
	ci.PC = 0
	ci.IsTailcall = true
	return false, nil
}
