// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import "fmt"

// Disassemble returns a human-readable listing of p's bytecode, recursing
// into nested prototypes, for cmd/luac -dis.
func Disassemble(p *Proto) string {
	out := ""
	disassembleInto(&out, p, "")
	return out
}

func disassembleInto(out *string, p *Proto, indent string) {
	*out += fmt.Sprintf("%sfunction <%s:%d,%d> (%d params, %d upvalues, %d stack slots)\n",
		indent, p.Source, p.LineDefined, p.LastLineDefined, p.NumParams, len(p.Upvalues), p.MaxStackSize)

	for i, inst := range p.Code {
		line := 0
		if i < len(p.Lines) {
			line = p.Lines[i]
		}
		*out += fmt.Sprintf("%s  [%04d] %-4d %-12s%s\n", indent, i, line, inst.Op, operandString(inst))
	}

	for i, k := range p.Constants {
		*out += fmt.Sprintf("%s  ; const %d: %s\n", indent, i, constantString(k))
	}

	for _, child := range p.Protos {
		disassembleInto(out, child, indent+"  ")
	}
}

func operandString(inst Instruction) string {
	switch inst.Op {
	case OpLoadK, OpGetGlobal, OpSetGlobal, OpClosure:
		return fmt.Sprintf("R%d, K%d", inst.A, inst.Bx)
	case OpJmp:
		return fmt.Sprintf("%+d", inst.SBx)
	case OpForLoop, OpForPrep:
		return fmt.Sprintf("R%d, %+d", inst.A, inst.SBx)
	case OpLoadBool:
		return fmt.Sprintf("R%d, %d, %d", inst.A, inst.B, inst.C)
	case OpReturn, OpCall, OpTailCall, OpSetList, OpVararg:
		return fmt.Sprintf("R%d, %d, %d", inst.A, inst.B, inst.C)
	default:
		return fmt.Sprintf("R%d, R%d, R%d", inst.A, inst.B, inst.C)
	}
}

func constantString(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.Kind == KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case v.IsNumber():
		return numberToString(v.Num)
	case v.IsString():
		return fmt.Sprintf("%q", v.AsString().String())
	default:
		return v.TypeName()
	}
}
