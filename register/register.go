// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package register models device registers and their named bit fields.
// A Template declares registers as data; NewMap binds a copy of it to a
// Device and exposes each named register, bit and bit range.
package register

import (
	"fmt"
	"sync"

	"github.com/platinasystems/sysplat/logging"
)

var log = logging.Get("register")

// Device is the register access of a driver.
type Device interface {
	Read(addr uint32) (uint32, error)
	Write(addr, v uint32) error
}

type Kind int

const (
	Plain Kind = iota
	ClearOnRead
	SetClear
	Array
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "Register"
	case ClearOnRead:
		return "ClearOnReadRegister"
	case SetClear:
		return "SetClearRegister"
	case Array:
		return "RegisterArray"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field is a BitField or a RangeField.
type Field interface {
	FieldName() string
}

// BitField is a single bit; fields are read-only unless RW is set. Flip
// turns an active low hardware bit into an active high accessor.
type BitField struct {
	Bit  uint
	Name string
	RW   bool
	Flip bool
}

func (f BitField) FieldName() string { return f.Name }

// RangeField covers bits Start through End inclusive.
type RangeField struct {
	Start, End uint
	Name       string
	RW         bool
	Flip       bool
}

func (f RangeField) FieldName() string { return f.Name }

func (f RangeField) mask() uint32 {
	return uint32(1)<<(f.End-f.Start+1) - 1
}

func Bit(bit uint, name string) BitField     { return BitField{Bit: bit, Name: name} }
func BitRW(bit uint, name string) BitField   { return BitField{Bit: bit, Name: name, RW: true} }
func BitFlip(bit uint, name string) BitField { return BitField{Bit: bit, Name: name, Flip: true} }

func Range(start, end uint, name string) RangeField {
	return RangeField{Start: start, End: end, Name: name}
}

func RangeRW(start, end uint, name string) RangeField {
	return RangeField{Start: start, End: end, Name: name, RW: true}
}

// Desc declares one register.
type Desc struct {
	Kind Kind
	Addr uint32
	// ClearAddr is the clear address of a SetClear register whose Addr
	// sets.
	ClearAddr uint32
	// Count is the length of an Array.
	Count      int
	Name       string
	RO         bool
	Default    uint32
	HasDefault bool
	Fields     []Field
}

func Reg(addr uint32, fields ...Field) Desc {
	return Desc{Kind: Plain, Addr: addr, Fields: fields}
}

// COR declares a clear-on-read register; its bit fields are read-only.
func COR(addr uint32, fields ...Field) Desc {
	fields = append([]Field(nil), fields...)
	for i, f := range fields {
		switch x := f.(type) {
		case BitField:
			x.RW = false
			fields[i] = x
		case RangeField:
			x.RW = false
			fields[i] = x
		}
	}
	return Desc{Kind: ClearOnRead, Addr: addr, Fields: fields}
}

func SetClr(set, clear uint32, fields ...Field) Desc {
	return Desc{Kind: SetClear, Addr: set, ClearAddr: clear, Fields: fields}
}

func Arr(addr uint32, count int) Desc {
	return Desc{Kind: Array, Addr: addr, Count: count}
}

func (d Desc) Named(name string) Desc {
	d.Name = name
	return d
}

func (d Desc) ReadOnly() Desc {
	d.RO = true
	return d
}

func (d Desc) WithDefault(v uint32) Desc {
	d.Default, d.HasDefault = v, true
	return d
}

func (d Desc) String() string {
	return fmt.Sprintf("%s(%#x, %s)", d.Kind, d.Addr, d.Name)
}

// Register is a Desc bound to a device.
type Register struct {
	Desc
	dev Device

	mu    sync.Mutex
	cache uint32
}

func (r *Register) String() string { return r.Desc.String() }

func (r *Register) Read() (uint32, error) {
	v, err := r.dev.Read(r.Addr)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r, err)
	}
	if r.Kind == ClearOnRead {
		r.mu.Lock()
		r.cache |= v
		v = r.cache
		r.mu.Unlock()
	}
	if len(r.Name) > 0 {
		log.Io("%s read(): %#x", r, v)
	}
	return v, nil
}

func (r *Register) Write(v uint32) error {
	if r.RO {
		panic(fmt.Errorf("%s: write to read-only register", r))
	}
	if len(r.Name) > 0 {
		log.Io("%s write(%#x)", r, v)
	}
	if err := r.dev.Write(r.Addr, v); err != nil {
		return fmt.Errorf("%s: %w", r, err)
	}
	return nil
}

func (r *Register) readBit(bit uint) (bool, error) {
	v, err := r.Read()
	if err != nil {
		return false, err
	}
	if r.Kind == ClearOnRead {
		r.mu.Lock()
		r.cache &^= 1 << bit
		r.mu.Unlock()
	}
	return v&(1<<bit) != 0, nil
}

func (r *Register) writeBit(bit uint, set bool) error {
	if r.Kind == SetClear {
		addr := r.ClearAddr
		if set {
			addr = r.Addr
		}
		return r.dev.Write(addr, 1<<bit)
	}
	v, err := r.Read()
	if err != nil {
		return err
	}
	if set {
		v |= 1 << bit
	} else {
		v &^= 1 << bit
	}
	return r.Write(v)
}

func (r *Register) readBits(f RangeField) (uint32, error) {
	v, err := r.Read()
	if err != nil {
		return 0, err
	}
	return (v >> f.Start) & f.mask(), nil
}

func (r *Register) writeBits(f RangeField, x uint32) error {
	v, err := r.Read()
	if err != nil {
		return err
	}
	m := f.mask()
	return r.Write(v&^(m<<f.Start) | (x&m)<<f.Start)
}

// BitAccessor reads and writes one bit field.
type BitAccessor struct {
	Field BitField
	reg   *Register
}

func (b *BitAccessor) String() string {
	return fmt.Sprintf("%s Bit(%d, %s, ro=%t)", b.reg, b.Field.Bit,
		b.Field.Name, !b.Field.RW)
}

func (b *BitAccessor) Get() (bool, error) {
	v, err := b.reg.readBit(b.Field.Bit)
	if err != nil {
		return false, err
	}
	if b.Field.Flip {
		v = !v
	}
	log.Io("%s read(): %t", b, v)
	return v, nil
}

// Set panics on a read-only field.
func (b *BitAccessor) Set(v bool) error {
	if !b.Field.RW {
		panic(fmt.Errorf("%s: write to read-only bit", b))
	}
	log.Io("%s write(%t)", b, v)
	if b.Field.Flip {
		v = !v
	}
	return b.reg.writeBit(b.Field.Bit, v)
}

func (b *BitAccessor) Register() *Register { return b.reg }

type RangeAccessor struct {
	Field RangeField
	reg   *Register
}

func (a *RangeAccessor) String() string {
	return fmt.Sprintf("%s BitRange(%d, %d, %s, ro=%t)", a.reg,
		a.Field.Start, a.Field.End, a.Field.Name, !a.Field.RW)
}

func (a *RangeAccessor) Get() (uint32, error) {
	v, err := a.reg.readBits(a.Field)
	if err != nil {
		return 0, err
	}
	if a.Field.Flip {
		v = ^v & a.Field.mask()
	}
	log.Io("%s read(): %#x", a, v)
	return v, nil
}

func (a *RangeAccessor) Set(v uint32) error {
	if !a.Field.RW {
		panic(fmt.Errorf("%s: write to read-only range", a))
	}
	log.Io("%s write(%#x)", a, v)
	if a.Field.Flip {
		v = ^v & a.Field.mask()
	}
	return a.reg.writeBits(a.Field, v)
}

// ArrayAccessor reads and writes Count consecutive registers.
type ArrayAccessor struct {
	reg *Register
}

func (a *ArrayAccessor) Len() int { return a.reg.Count }

func (a *ArrayAccessor) ReadAll() ([]uint32, error) {
	vals := make([]uint32, a.reg.Count)
	for i := range vals {
		v, err := a.reg.dev.Read(a.reg.Addr + uint32(i))
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", a.reg, i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

func (a *ArrayAccessor) WriteAll(vals []uint32) error {
	if len(vals) != a.reg.Count {
		return fmt.Errorf("%s: expected %d values, got %d", a.reg,
			a.reg.Count, len(vals))
	}
	for i, v := range vals {
		if err := a.reg.dev.Write(a.reg.Addr+uint32(i), v); err != nil {
			return fmt.Errorf("%s[%d]: %w", a.reg, i, err)
		}
	}
	return nil
}
