// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// StringObj is an interned, immutable byte string. Two live strings with
// equal bytes are always the same *StringObj (see intern below), so string
// equality anywhere in the VM is a pointer comparison.
type StringObj struct {
	GCHeader
	bytes []byte
	hash  uint32
}

// Bytes returns the string's raw bytes. Callers must not mutate the
// returned slice; strings are immutable for their entire lifetime.
func (s *StringObj) Bytes() []byte { return s.bytes }

func (s *StringObj) String() string { return string(s.bytes) }

func (s *StringObj) Len() int { return len(s.bytes) }

// stringHash mirrors spec.md §4.B's sampling rule: for long
// strings, hash only every skip-th byte to keep interning cheap.
func stringHash(b []byte) uint32 {
	var h uint32 = 2166136261 // FNV-1a offset basis; mixing only, not a
	// cryptographic or randomized function — stability across a process's
	// lifetime and across dump/load round trips is part of the contract.
	skip := (len(b) >> 5) + 1
	for i := len(b); i > 0; i -= skip {
		h = (h ^ uint32(b[i-1])) * 16777619
	}
	return h
}

// stringTable is the global intern pool (component B). It is owned by
// GlobalState and is itself swept incrementally during the GC's
// SWEEP-STRING state.
type stringTable struct {
	buckets [][]*StringObj
	nuse    int
}

func newStringTable() *stringTable {
	return &stringTable{buckets: make([][]*StringObj, 32)}
}

func (t *stringTable) bucketFor(hash uint32) int {
	return int(hash) & (len(t.buckets) - 1)
}

// intern returns the unique *StringObj for the given bytes, allocating and
// tracking a new one if no equal string already lives in the pool.
func (g *GlobalState) intern(b []byte) *StringObj {
	h := stringHash(b)
	t := g.strings
	idx := t.bucketFor(h)
	for _, s := range t.buckets[idx] {
		if s.hash == h && string(s.bytes) == string(b) {
			return s
		}
	}

	cp := make([]byte, len(b))
	copy(cp, b)
	s := &StringObj{bytes: cp, hash: h}
	s.kind = KindString
	s.marks = g.currentWhite
	t.buckets[idx] = append(t.buckets[idx], s)
	t.nuse++
	g.linkRoot(s)

	if t.nuse > len(t.buckets) {
		t.resize(len(t.buckets) * 2)
	}
	return s
}

// InternString is the exported entry point used by the host API and the
// bytecode loader to turn raw bytes into a VM string Value.
func (g *GlobalState) InternString(s string) Value {
	return objectValue(g.intern([]byte(s)))
}

func (t *stringTable) resize(newSize int) {
	nb := make([][]*StringObj, newSize)
	for _, bucket := range t.buckets {
		for _, s := range bucket {
			idx := int(s.hash) & (newSize - 1)
			nb[idx] = append(nb[idx], s)
		}
	}
	t.buckets = nb
}

// fix marks a string as never-collectable. Used at global-state init time
// for the pre-interned metamethod names so they survive every sweep, per
// spec.md §4.B.
func fix(s *StringObj) { s.setFixed() }

// removeFromBucket physically unlinks s from its bucket. The string-sweep
// phase (sweepStringBucket in gc.go) filters buckets in place instead of
// calling this.
func (t *stringTable) removeFromBucket(s *StringObj) {
	idx := t.bucketFor(s.hash)
	bucket := t.buckets[idx]
	for i, c := range bucket {
		if c == s {
			bucket[i] = bucket[len(bucket)-1]
			t.buckets[idx] = bucket[:len(bucket)-1]
			t.nuse--
			return
		}
	}
}

// Pattern matching (Lua's string.find/match/gmatch engine) is explicitly
// out of scope here: spec.md §1 places the string library in the external
// stdlib, and §9 notes that if implemented it calls back into the GC
// through string construction — any stdlib built on top of this package
// would intern its match results via InternString above, the same path
// every other string-producing opcode uses.
