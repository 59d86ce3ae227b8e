// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package bytecode implements the precompiled chunk format (spec.md §6):
// a binary dump of a Proto tree that Load can read back without
// re-parsing source. The layout is a 4-byte signature and a one-byte
// format version, followed by a recursive per-Proto body whose integers
// are encoding/binary varints. Unlike Lua 5.1's luac header, it records no
// Lua version, endianness or type-size bytes.
package bytecode

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/probelang/luacore/internal/chunkid"
	"github.com/probelang/luacore/lang/vm"
)

// magic identifies a dumped chunk, mirroring Lua's "\x1bLua" signature.
var magic = [4]byte{0x1b, 'P', 'L', 'C'}

// formatVersion allows Load to reject chunks from an incompatible dumper.
const formatVersion = 1

// ErrBadHeader is returned when a chunk's magic or version don't match.
var ErrBadHeader = errors.New("bytecode: not a recognized chunk, or wrong version")

const (
	tagNil = iota
	tagBool
	tagNumber
	tagString
)

// Dump serializes p and everything it references to w.
func Dump(p *vm.Proto, w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(magic[:]); err != nil {
		return err
	}
	if err := bw.WriteByte(formatVersion); err != nil {
		return err
	}
	if err := dumpProto(bw, p); err != nil {
		return err
	}
	return bw.Flush()
}

func dumpProto(w *bufio.Writer, p *vm.Proto) error {
	if err := writeString(w, chunkid.Display(p.Source)); err != nil {
		return err
	}
	if err := writeInts(w, p.LineDefined, p.LastLineDefined, p.NumParams, p.MaxStackSize); err != nil {
		return err
	}
	if err := w.WriteByte(boolByte(p.IsVararg)); err != nil {
		return err
	}

	if err := writeUvarint(w, uint64(len(p.Code))); err != nil {
		return err
	}
	for _, inst := range p.Code {
		if err := writeInts(w, int(inst.Op), inst.A, inst.B, inst.C, inst.Bx, inst.SBx); err != nil {
			return err
		}
	}

	if err := writeUvarint(w, uint64(len(p.Constants))); err != nil {
		return err
	}
	for _, k := range p.Constants {
		if err := dumpValue(w, k); err != nil {
			return err
		}
	}

	if err := writeUvarint(w, uint64(len(p.Upvalues))); err != nil {
		return err
	}
	for _, uv := range p.Upvalues {
		if err := writeString(w, uv.Name); err != nil {
			return err
		}
		if err := w.WriteByte(boolByte(uv.InStack)); err != nil {
			return err
		}
		if err := writeInts(w, uv.Index); err != nil {
			return err
		}
	}

	if err := writeUvarint(w, uint64(len(p.Protos))); err != nil {
		return err
	}
	for _, child := range p.Protos {
		if err := dumpProto(w, child); err != nil {
			return err
		}
	}
	return nil
}

func dumpValue(w *bufio.Writer, v vm.Value) error {
	switch {
	case v.IsNil():
		return w.WriteByte(tagNil)
	case v.Kind == vm.KindBool:
		if err := w.WriteByte(tagBool); err != nil {
			return err
		}
		return w.WriteByte(boolByte(v.Bool))
	case v.IsNumber():
		if err := w.WriteByte(tagNumber); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.Num)
	case v.IsString():
		if err := w.WriteByte(tagString); err != nil {
			return err
		}
		return writeString(w, v.AsString().String())
	default:
		return fmt.Errorf("bytecode: constant of kind %s cannot be dumped", v.TypeName())
	}
}

func writeString(w *bufio.Writer, s string) error {
	if err := writeUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func writeUvarint(w *bufio.Writer, n uint64) error {
	var buf [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(buf[:], n)
	_, err := w.Write(buf[:l])
	return err
}

func writeInts(w *bufio.Writer, vals ...int) error {
	for _, v := range vals {
		if err := writeUvarint(w, zigzag(int64(v))); err != nil {
			return err
		}
	}
	return nil
}

func zigzag(n int64) uint64 { return uint64((n << 1) ^ (n >> 63)) }
func unzigzag(n uint64) int64 { return int64(n>>1) ^ -int64(n&1) }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Load reads a chunk produced by Dump, interning strings and allocating
// every Proto/constant through g so the result participates in g's GC like
// anything else.
func Load(r io.Reader, g *vm.GlobalState) (*vm.Proto, error) {
	br := bufio.NewReader(r)
	var hdr [4]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, err
	}
	if hdr != magic {
		return nil, ErrBadHeader
	}
	version, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, ErrBadHeader
	}
	return loadProto(br, g)
}

func loadProto(r *bufio.Reader, g *vm.GlobalState) (*vm.Proto, error) {
	source, err := readString(r)
	if err != nil {
		return nil, err
	}
	ints, err := readInts(r, 4)
	if err != nil {
		return nil, err
	}
	varargByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	p := g.NewProto()
	p.Source = source
	p.LineDefined, p.LastLineDefined, p.NumParams, p.MaxStackSize = ints[0], ints[1], ints[2], ints[3]
	p.IsVararg = varargByte != 0

	ncode, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	p.Code = make([]vm.Instruction, ncode)
	for i := range p.Code {
		fields, err := readInts(r, 6)
		if err != nil {
			return nil, err
		}
		p.Code[i] = vm.Instruction{
			Op: vm.Opcode(fields[0]), A: fields[1], B: fields[2], C: fields[3],
			Bx: fields[4], SBx: fields[5],
		}
	}

	nk, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	p.Constants = make([]vm.Value, nk)
	for i := range p.Constants {
		v, err := loadValue(r, g)
		if err != nil {
			return nil, err
		}
		p.Constants[i] = v
	}

	nup, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	p.Upvalues = make([]vm.UpvalDesc, nup)
	for i := range p.Upvalues {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		inStackByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		idx, err := readInts(r, 1)
		if err != nil {
			return nil, err
		}
		p.Upvalues[i] = vm.UpvalDesc{Name: name, InStack: inStackByte != 0, Index: idx[0]}
	}

	nchild, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	p.Protos = make([]*vm.Proto, nchild)
	for i := range p.Protos {
		child, err := loadProto(r, g)
		if err != nil {
			return nil, err
		}
		p.Protos[i] = child
	}
	return p, nil
}

func loadValue(r *bufio.Reader, g *vm.GlobalState) (vm.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return vm.Nil, err
	}
	switch tag {
	case tagNil:
		return vm.Nil, nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return vm.Nil, err
		}
		return vm.BoolValue(b != 0), nil
	case tagNumber:
		var n float64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return vm.Nil, err
		}
		return vm.NumberValue(n), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return vm.Nil, err
		}
		return g.InternString(s), nil
	default:
		return vm.Nil, fmt.Errorf("bytecode: unknown constant tag %d", tag)
	}
}

func readString(r *bufio.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readInts(r *bufio.Reader, n int) ([]int, error) {
	out := make([]int, n)
	for i := range out {
		u, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		out[i] = int(unzigzag(u))
	}
	return out, nil
}
