// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package chunkid

import (
	"strings"
	"testing"
)

func TestDeriveIsDeterministic(t *testing.T) {
	a := Derive("script.lua")
	b := Derive("script.lua")
	if a != b {
		t.Error("Derive must be deterministic for the same input")
	}
	if Derive("other.lua") == a {
		t.Error("different inputs should not collide in this small test")
	}
}

func TestDisplayKeepsShortNamesVerbatim(t *testing.T) {
	short := "main.lua"
	if got := Display(short); got != short {
		t.Errorf("Display(%q) = %q, want it unchanged", short, got)
	}
}

func TestDisplayTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("a", maxInlineLen*2)
	got := Display(long)
	if len(got) > maxInlineLen {
		t.Errorf("Display result length = %d, want <= %d", len(got), maxInlineLen)
	}
	id := Derive(long)
	if !strings.HasSuffix(got, id.String()) {
		t.Errorf("Display(long) = %q, want it to end with the derived id %q", got, id.String())
	}
}

func TestIDStringIsLowercaseHex(t *testing.T) {
	id := Derive("x")
	s := id.String()
	if len(s) != Size*2 {
		t.Errorf("String() length = %d, want %d", len(s), Size*2)
	}
	if strings.ToLower(s) != s {
		t.Error("String() should already be lowercase")
	}
}
