// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bytecode

import (
	"bytes"
	"testing"

	"github.com/probelang/luacore/lang/vm"
)

func buildSampleProto(g *vm.GlobalState) *vm.Proto {
	child := g.NewProto()
	child.Source = "sample:inner"
	child.NumParams = 1
	child.MaxStackSize = 2
	child.Code = []vm.Instruction{
		vm.NewABC(vm.OpReturn, 0, 1, 0),
	}
	child.Upvalues = []vm.UpvalDesc{
		{Name: "outerVar", InStack: true, Index: 0},
	}

	p := g.NewProto()
	p.Source = "sample:outer"
	p.LineDefined = 1
	p.LastLineDefined = 10
	p.NumParams = 2
	p.MaxStackSize = 3
	p.IsVararg = true
	p.Constants = []vm.Value{
		vm.Nil,
		vm.True,
		vm.NumberValue(3.5),
		g.InternString("hello"),
	}
	p.Code = []vm.Instruction{
		vm.NewABx(vm.OpLoadK, 0, 2),
		vm.NewABC(vm.OpReturn, 0, 1, 0),
	}
	p.Protos = []*vm.Proto{child}
	return p
}

func TestDumpLoadRoundTrip(t *testing.T) {
	g := vm.NewGlobalState(vm.DefaultConfig())
	orig := buildSampleProto(g)

	var buf bytes.Buffer
	if err := Dump(orig, &buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	got, err := Load(&buf, g)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Source != orig.Source {
		t.Errorf("Source = %q, want %q", got.Source, orig.Source)
	}
	if got.LineDefined != orig.LineDefined || got.LastLineDefined != orig.LastLineDefined {
		t.Errorf("line info = (%d,%d), want (%d,%d)", got.LineDefined, got.LastLineDefined, orig.LineDefined, orig.LastLineDefined)
	}
	if got.NumParams != orig.NumParams || got.MaxStackSize != orig.MaxStackSize || got.IsVararg != orig.IsVararg {
		t.Errorf("header fields = (%d,%d,%v), want (%d,%d,%v)", got.NumParams, got.MaxStackSize, got.IsVararg, orig.NumParams, orig.MaxStackSize, orig.IsVararg)
	}
	if len(got.Code) != len(orig.Code) {
		t.Fatalf("len(Code) = %d, want %d", len(got.Code), len(orig.Code))
	}
	for i := range orig.Code {
		if got.Code[i] != orig.Code[i] {
			t.Errorf("Code[%d] = %+v, want %+v", i, got.Code[i], orig.Code[i])
		}
	}
	if len(got.Constants) != len(orig.Constants) {
		t.Fatalf("len(Constants) = %d, want %d", len(got.Constants), len(orig.Constants))
	}
	if !got.Constants[1].IsTruthy() {
		t.Error("Constants[1] should round-trip as a truthy boolean")
	}
	if got.Constants[2].Num != 3.5 {
		t.Errorf("Constants[2] = %v, want 3.5", got.Constants[2])
	}
	if got.Constants[3].AsString().String() != "hello" {
		t.Errorf("Constants[3] = %v, want \"hello\"", got.Constants[3])
	}
	if len(got.Protos) != 1 {
		t.Fatalf("len(Protos) = %d, want 1", len(got.Protos))
	}
	if got.Protos[0].Source != "sample:inner" {
		t.Errorf("child Source = %q, want sample:inner", got.Protos[0].Source)
	}
	if len(got.Protos[0].Upvalues) != 1 || got.Protos[0].Upvalues[0].Name != "outerVar" {
		t.Errorf("child Upvalues = %+v, want one upvalue named outerVar", got.Protos[0].Upvalues)
	}
}

func TestLoadRejectsBadHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("not a chunk")
	g := vm.NewGlobalState(vm.DefaultConfig())
	if _, err := Load(&buf, g); err != ErrBadHeader {
		t.Errorf("Load on garbage input = %v, want ErrBadHeader", err)
	}
}
