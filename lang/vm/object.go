// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

// object is implemented by every GC-tracked kind (String, Table, LClosure,
// CClosure, Proto, Upvalue, UserData, Thread). Embedding GCHeader satisfies
// it automatically via method promotion.
type object interface {
	gcHeader() *GCHeader
}

// markBits packs the two-white tri-color scheme plus the auxiliary bits
// spec.md §3 requires on every GC object header.
type markBits uint16

const (
	bitWhite0 markBits = 1 << iota
	bitWhite1
	bitBlack
	bitFixed      // never collected (interned keywords)
	bitSuperFixed // never collected, never even swept (main thread, etc.)
	bitFinalized  // userdata whose __gc already ran
	bitKeyWeak    // table: keys are weak
	bitValueWeak  // table: values are weak
)

const whiteBits = bitWhite0 | bitWhite1

// GCHeader is the common header every collectable object embeds: list
// membership, its kind tag, and its mark bits. Every object is linked into
// the root list; a string is additionally held in a string-table bucket,
// so strings sit on two GC-owned lists at once.
type GCHeader struct {
	next  object
	kind  Kind
	marks markBits
}

func (h *GCHeader) gcHeader() *GCHeader { return h }

func (h *GCHeader) isWhite() bool { return h.marks&whiteBits != 0 }
func (h *GCHeader) isBlack() bool { return h.marks&bitBlack != 0 }
func (h *GCHeader) isGray() bool  { return !h.isWhite() && !h.isBlack() }

// isDeadWhite reports whether h is white in the color that is NOT the
// current live color — i.e. it is garbage as of the last flip.
func (h *GCHeader) isDeadWhite(g *GlobalState) bool {
	return h.marks&whiteBits&^g.currentWhite != 0
}

func (h *GCHeader) isFixed() bool      { return h.marks&(bitFixed|bitSuperFixed) != 0 }
func (h *GCHeader) isSuperFixed() bool { return h.marks&bitSuperFixed != 0 }
func (h *GCHeader) isFinalized() bool  { return h.marks&bitFinalized != 0 }

func (h *GCHeader) makeWhite(g *GlobalState) {
	h.marks = (h.marks &^ (whiteBits | bitBlack)) | g.currentWhite
}

func (h *GCHeader) makeGray() {
	h.marks &^= whiteBits | bitBlack
}

func (h *GCHeader) makeBlack() {
	h.marks = (h.marks &^ whiteBits) | bitBlack
}

func (h *GCHeader) setFixed()      { h.marks |= bitFixed }
func (h *GCHeader) setSuperFixed() { h.marks |= bitSuperFixed }
func (h *GCHeader) setFinalized()  { h.marks |= bitFinalized }
