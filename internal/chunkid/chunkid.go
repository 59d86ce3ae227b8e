// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package chunkid derives a short, fixed-width identifier for a bytecode
// chunk's source name. The bytecode dumper stores Display's result for
// each Proto's source: short names verbatim, long ones as a truncated
// prefix plus this identifier, so a stored name never exceeds 60 bytes
// regardless of how long the original file path was.
package chunkid

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Size is the length in bytes of a derived chunk id.
const Size = 16

// ID is a fixed-width chunk identifier.
type ID [Size]byte

// String renders id as lowercase hex.
func (id ID) String() string { return hex.EncodeToString(id[:]) }

// maxInlineLen is the longest source name the dumper stores verbatim;
// beyond this it stores only the derived ID plus a truncated display name,
// matching spec.md §6's bytecode format note that "a source name is
// diagnostic only, never used to resolve a reload".
const maxInlineLen = 60

// Derive computes the chunk id for a source name.
func Derive(source string) ID {
	var id ID
	sum := sha3.Sum256([]byte(source))
	copy(id[:], sum[:Size])
	return id
}

// Display returns a name suitable for embedding in a dumped chunk header:
// the source verbatim if short enough, otherwise its id plus a truncated
// prefix for human inspection.
func Display(source string) string {
	if len(source) <= maxInlineLen {
		return source
	}
	id := Derive(source)
	return source[:maxInlineLen-len(id.String())-1] + "#" + id.String()
}
