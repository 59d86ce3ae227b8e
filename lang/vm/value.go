// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

// Package vm implements the Lua 5.1-compatible register-based bytecode
// virtual machine: value representation, garbage-collected object layouts,
// the table engine, upvalues, closures, the call stack, metamethod
// dispatch, and the instruction dispatch loop. These pieces are specified
// together because they are co-designed: every allocation participates in
// the collector, every store through a black object fires a write barrier,
// and every opcode touches the value representation directly.
package vm

import "fmt"

// Kind is the tag half of a Value. It enumerates every Lua type plus three
// internal kinds (proto, upvalue, deadkey) that are never observable from
// a running script.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindLightUserData
	KindString
	KindTable
	KindFunction
	KindUserData
	KindThread

	// Internal kinds. Collectable (kind >= KindString) but never exposed
	// to script-visible type tests.
	KindProto
	KindUpvalue
	KindDeadKey

	kindCount
)

var kindNames = [kindCount]string{
	KindNil:           "nil",
	KindBool:          "boolean",
	KindNumber:        "number",
	KindLightUserData: "userdata",
	KindString:        "string",
	KindTable:         "table",
	KindFunction:      "function",
	KindUserData:      "userdata",
	KindThread:        "thread",
	KindProto:         "proto",
	KindUpvalue:       "upvalue",
	KindDeadKey:       "deadkey",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Collectable reports whether values of this kind are tracked by the GC.
// Per spec.md §4.A: "Collectability is tag >= STRING".
func (k Kind) Collectable() bool { return k >= KindString }

// Value is a tagged pair {kind, payload}. The payload is exactly one of a
// float64 (Number), a bool (Bool), a raw host pointer (LightUserData), or
// an owned reference to a GC object (Obj). Every field is always present;
// which one is meaningful is determined solely by Kind. This keeps Value a
// small, copyable, fixed-size cell suitable for register/stack slots and
// table array slots, matching spec.md §9's guidance against boxing every
// register as a heap value.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
	LUD  uintptr // light userdata: opaque host pointer, not GC-tracked
	Obj  object  // GC object reference; nil unless Kind.Collectable()
}

// Nil is the canonical nil value.
var Nil = Value{Kind: KindNil}

// True and False are the canonical boolean values.
var (
	True  = Value{Kind: KindBool, Bool: true}
	False = Value{Kind: KindBool, Bool: false}
)

// NumberValue wraps a float64 as a Lua number.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// BoolValue wraps a Go bool as a Lua boolean.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// LightUserDataValue wraps an opaque host pointer. Light userdata is never
// tracked by the GC: spec.md §3 describes it as "opaque host pointer, not
// GC-tracked".
func LightUserDataValue(p uintptr) Value { return Value{Kind: KindLightUserData, LUD: p} }

// objectValue wraps any GC object reference as a Value carrying the
// object's own header kind.
func objectValue(o object) Value { return Value{Kind: o.gcHeader().kind, Obj: o} }

// IsNil reports whether v is nil.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// IsFalsy reports whether v is "false" by Lua's truthiness rule: only nil
// and the boolean false are false; every other value (including 0 and the
// empty string) is true.
func (v Value) IsFalsy() bool {
	return v.Kind == KindNil || (v.Kind == KindBool && !v.Bool)
}

// IsTruthy is the complement of IsFalsy.
func (v Value) IsTruthy() bool { return !v.IsFalsy() }

func (v Value) IsNumber() bool   { return v.Kind == KindNumber }
func (v Value) IsString() bool   { return v.Kind == KindString }
func (v Value) IsTable() bool    { return v.Kind == KindTable }
func (v Value) IsFunction() bool { return v.Kind == KindFunction }
func (v Value) IsThread() bool   { return v.Kind == KindThread }

// AsTable returns the underlying *Table, or nil if v is not a table.
func (v Value) AsTable() *Table {
	if v.Kind != KindTable {
		return nil
	}
	return v.Obj.(*Table)
}

// AsString returns the underlying *StringObj, or nil if v is not a string.
func (v Value) AsString() *StringObj {
	if v.Kind != KindString {
		return nil
	}
	return v.Obj.(*StringObj)
}

// AsThread returns the underlying *Thread, or nil if v is not a thread.
func (v Value) AsThread() *Thread {
	if v.Kind != KindThread {
		return nil
	}
	return v.Obj.(*Thread)
}

// TypeName returns the Lua-visible type name of v, suitable for error
// messages. Internal kinds never reach here since they never escape into a
// Value observable from a script.
func (v Value) TypeName() string { return v.Kind.String() }

// RawEqual implements spec.md §4.A's equality rule without consulting
// metamethods:
//
//	nil/nil            -> true
//	numbers            -> numeric equality (NaN != NaN)
//	booleans           -> bitwise
//	strings            -> pointer identity (guaranteed by interning)
//	light userdata     -> pointer identity
//	tables/userdata     -> pointer identity (caller handles __eq)
//	other GC kinds     -> pointer identity
func RawEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		// Lua allows no cross-kind equality except via arithmetic coercion,
		// which never applies to raw equality.
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Num == b.Num
	case KindLightUserData:
		return a.LUD == b.LUD
	default:
		return a.Obj == b.Obj
	}
}

// checkliveness is the debug-only assertion from spec.md §4.A: "the tag
// matches the object's header tag AND the object is not dead-white". It is
// a no-op unless debugChecks is true, so it costs nothing on the hot path
// in normal builds while remaining available for development builds that
// flip the flag.
const debugChecks = false

func checkliveness(g *GlobalState, v Value) {
	if !debugChecks || v.Obj == nil {
		return
	}
	h := v.Obj.gcHeader()
	if h.kind != v.Kind {
		panic(fmt.Sprintf("checkliveness: value kind %v does not match object kind %v", v.Kind, h.kind))
	}
	if h.isDeadWhite(g) {
		panic(fmt.Sprintf("checkliveness: stack write of dead-white %v object", v.Kind))
	}
}
