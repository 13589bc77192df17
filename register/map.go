// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package register

import (
	"fmt"
	"sort"
)

type Template []Desc

// Extend returns t with more appended. A register of more that shares a
// register name with one of t replaces it, and a field of more removes the
// same named field from t.
func (t Template) Extend(more ...Desc) Template {
	names := make(map[string]bool)
	fields := make(map[string]bool)
	for _, d := range more {
		if len(d.Name) > 0 {
			names[d.Name] = true
		}
		for _, f := range d.Fields {
			fields[f.FieldName()] = true
		}
	}
	r := make(Template, 0, len(t)+len(more))
	for _, d := range t {
		if len(d.Name) > 0 && names[d.Name] {
			continue
		}
		var kept []Field
		for _, f := range d.Fields {
			if !fields[f.FieldName()] {
				kept = append(kept, f)
			}
		}
		if len(d.Fields) > 0 && len(kept) == 0 && len(d.Name) == 0 {
			continue
		}
		d.Fields = kept
		r = append(r, d)
	}
	return append(r, more...)
}

// Map is a Template instance bound to a device.
type Map struct {
	regs   []*Register
	named  map[string]*Register
	bits   map[string]*BitAccessor
	ranges map[string]*RangeAccessor
	arrays map[string]*ArrayAccessor
}

// NewMap copies the template, moves every address by offset and binds the
// copy to dev. Duplicate names are programmer errors.
func NewMap(dev Device, offset uint32, t Template) *Map {
	m := &Map{
		named:  make(map[string]*Register),
		bits:   make(map[string]*BitAccessor),
		ranges: make(map[string]*RangeAccessor),
		arrays: make(map[string]*ArrayAccessor),
	}
	seen := make(map[string]bool)
	claim := func(name string) {
		if seen[name] {
			panic(fmt.Errorf("register: %s: duplicate name", name))
		}
		seen[name] = true
	}
	for _, d := range t {
		d.Addr += offset
		if d.Kind == SetClear {
			d.ClearAddr += offset
		}
		d.Fields = append([]Field(nil), d.Fields...)
		r := &Register{Desc: d, dev: dev}
		m.regs = append(m.regs, r)
		if len(d.Name) > 0 {
			claim(d.Name)
			if d.Kind == Array {
				m.arrays[d.Name] = &ArrayAccessor{r}
			} else {
				m.named[d.Name] = r
			}
		}
		for _, f := range d.Fields {
			claim(f.FieldName())
			switch x := f.(type) {
			case BitField:
				m.bits[x.Name] = &BitAccessor{x, r}
			case RangeField:
				m.ranges[x.Name] = &RangeAccessor{x, r}
			}
		}
	}
	return m
}

func (m *Map) Has(name string) bool {
	_, reg := m.named[name]
	_, bit := m.bits[name]
	_, rng := m.ranges[name]
	_, arr := m.arrays[name]
	return reg || bit || rng || arr
}

// Bit panics if the map has no such bit field.
func (m *Map) Bit(name string) *BitAccessor {
	b, found := m.bits[name]
	if !found {
		panic(fmt.Errorf("register: %s: no such bit", name))
	}
	return b
}

func (m *Map) Range(name string) *RangeAccessor {
	r, found := m.ranges[name]
	if !found {
		panic(fmt.Errorf("register: %s: no such range", name))
	}
	return r
}

func (m *Map) Register(name string) *Register {
	r, found := m.named[name]
	if !found {
		panic(fmt.Errorf("register: %s: no such register", name))
	}
	return r
}

func (m *Map) Array(name string) *ArrayAccessor {
	a, found := m.arrays[name]
	if !found {
		panic(fmt.Errorf("register: %s: no such array", name))
	}
	return a
}

func (m *Map) Registers() []*Register { return m.regs }

// ApplyDefaults writes every register declared with a default value.
func (m *Map) ApplyDefaults() error {
	for _, r := range m.regs {
		if r.HasDefault {
			if err := r.Write(r.Default); err != nil {
				return err
			}
		}
	}
	return nil
}

type Value struct {
	Name  string `json:"name"`
	Addr  string `json:"addr"`
	Value uint32 `json:"value"`
	Error string `json:"error,omitempty"`
}

// Dump reads every named register and field, in name order.
func (m *Map) Dump() []Value {
	var vals []Value
	add := func(name, addr string, v uint32, err error) {
		x := Value{Name: name, Addr: addr, Value: v}
		if err != nil {
			x.Error = err.Error()
		}
		vals = append(vals, x)
	}
	for name, r := range m.named {
		if r.Kind == ClearOnRead {
			add(name, r.String(), 0, nil)
			continue
		}
		v, err := r.Read()
		add(name, r.String(), v, err)
	}
	for name, b := range m.bits {
		if b.reg.Kind == ClearOnRead {
			continue
		}
		v, err := b.Get()
		var x uint32
		if v {
			x = 1
		}
		add(name, b.String(), x, err)
	}
	for name, a := range m.ranges {
		if a.reg.Kind == ClearOnRead {
			continue
		}
		v, err := a.Get()
		add(name, a.String(), v, err)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i].Name < vals[j].Name })
	return vals
}
