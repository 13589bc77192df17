// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package inventory

import (
	"reflect"
	"testing"

	"github.com/platinasystems/sysplat/address"
)

func checkEmpty(t *testing.T, what string, r Reader) {
	v := reflect.ValueOf(r)
	rt := reflect.TypeOf((*Reader)(nil)).Elem()
	for i := 0; i < rt.NumMethod(); i++ {
		name := rt.Method(i).Name
		out := v.MethodByName(name).Call(nil)[0]
		if out.IsNil() {
			t.Errorf("%s.%s: nil", what, name)
			continue
		}
		if out.Len() != 0 {
			t.Errorf("%s.%s: len %d", what, name, out.Len())
		}
		if out.Type() != rt.Method(i).Type.Out(0) {
			t.Errorf("%s.%s: type %s", what, name, out.Type())
		}
	}
}

func TestEmptyGetters(t *testing.T) {
	checkEmpty(t, "Inventory", New())
	checkEmpty(t, "Meta", NewMeta())
	checkEmpty(t, "Meta", NewMeta(New(), New()))
}

type led struct{ name string }

func (l led) Name() string        { return l.name }
func (led) Color() (Color, error) { return Off, nil }
func (led) SetColor(Color) error  { return nil }
func (led) IsStatus() bool        { return false }

type reset struct{ name string }

func (r reset) Name() string      { return r.name }
func (reset) Read() (bool, error) { return false, nil }
func (reset) ResetIn() error      { return nil }
func (reset) ResetOut() error     { return nil }

type xcvr struct {
	kind XcvrKind
	id   int
}

func (x xcvr) Kind() XcvrKind { return x.kind }
func (x xcvr) Name() string   { return string(x.kind) }
func (x xcvr) Id() int        { return x.id }
func (x xcvr) I2cAddr() address.I2cAddr {
	return address.I2c(10+x.id, 0x50)
}

func TestAdd(t *testing.T) {
	inv := New()
	inv.AddLed(led{"status"})
	inv.AddLed(led{"status"})
	inv.AddLedGroup("port1", led{"port1_1"}, led{"port1_2"})
	if n := len(inv.Leds()); n != 3 {
		t.Error("leds", n)
	}
	if _, ok := inv.Led("port1_2"); !ok {
		t.Error("group led not added")
	}
	inv.AddReset(reset{"switch_chip_reset"})
	if _, ok := inv.Reset("switch_chip_reset"); !ok {
		t.Error("reset")
	}
	inv.AddXcvr(xcvr{Sfp, 1})
	inv.AddXcvr(xcvr{Qsfp, 5})
	if n := len(inv.Xcvrs()); n != 2 {
		t.Error("xcvrs", n)
	}
	if n := len(inv.XcvrsOf(Qsfp)); n != 1 {
		t.Error("qsfps", n)
	}
	if p := inv.PortToEeprom()[5]; p != "/sys/bus/i2c/devices/15-0050/eeprom" {
		t.Error(p)
	}
}

func TestMeta(t *testing.T) {
	a, b := New(), New()
	a.AddLed(led{"a"})
	b.AddLed(led{"b"})
	a.AddTemp(nil)
	b.AddTemp(nil)
	b.AddTemp(nil)

	var members []Reader
	m := &Meta{Members: func() []Reader { return members }}
	if n := len(m.Leds()); n != 0 {
		t.Error("no members", n)
	}
	members = []Reader{a, b}
	if n := len(m.Leds()); n != 2 {
		t.Error("merged leds", n)
	}
	if n := len(m.Temps()); n != 3 {
		t.Error("concatenated temps", n)
	}
}

func TestDescRender(t *testing.T) {
	d := PsuDesc{
		Sensors: []SensorDesc{{Name: "Power supply {psuId} hotspot sensor"}},
		Fans:    []FanDesc{{FanId: 2, Name: "psu{psuId}/{fanId}"}},
		Rails:   []RailDesc{{RailId: 1, Direction: RailOutput}},
	}
	r := d.WithPsuId(3)
	if s := r.Sensors[0].Name; s != "Power supply 3 hotspot sensor" {
		t.Error(s)
	}
	if s := r.Fans[0].Name; s != "psu3/2" {
		t.Error(s)
	}
	if s := r.Rails[0].Name; s != "output1" {
		t.Error(s)
	}
	if d.Sensors[0].Name != "Power supply {psuId} hotspot sensor" {
		t.Error("template modified")
	}
	x := NewXcvrDesc(Qsfp, 7)
	if x.Lanes != 4 || x.String() != "qsfp(index=7)" {
		t.Error(x)
	}
}
