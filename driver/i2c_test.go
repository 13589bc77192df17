// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"bytes"
	"testing"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/register"
)

func TestI2cUser(t *testing.T) {
	sim := NewSimBus()
	dev := sim.Add(2, 0x50)
	dev.Regs[0x10] = 0xab
	dev.Blocks[0x9a] = []byte("PSU-500")

	for _, block := range []bool{true, false} {
		addr := address.I2c(2, 0x50)
		addr.Block = block
		d := NewI2cUser("eeprom", addr)
		d.Open = sim.Opener()

		if v, err := d.ReadByteData(0x10); err != nil || v != 0xab {
			t.Fatal(v, err)
		}
		if b, err := d.ReadBlockData(0x9a); err != nil || string(b) != "PSU-500" {
			t.Fatalf("block=%v: %q %v", block, b, err)
		}
		d.Close()
	}

	d := NewI2cUser("eeprom", address.I2c(2, 0x50))
	d.Open = sim.Opener()
	if err := d.WriteWordData(0x20, 0x1234); err != nil {
		t.Fatal(err)
	}
	if dev.Regs[0x20] != 0x34 || dev.Regs[0x21] != 0x12 {
		t.Fatal("word is little endian")
	}
	if v, _ := d.ReadWordData(0x20); v != 0x1234 {
		t.Fatalf("%#x", v)
	}

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	if err := d.WriteBytes(0x40, data); err != nil {
		t.Fatal(err)
	}
	got, err := d.ReadBytes(0x40, len(data))
	if err != nil || !bytes.Equal(got, data) {
		t.Fatal(got, err)
	}

	if err := d.WriteBlockData(0x99, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dev.Blocks[0x99], []byte{1, 2, 3}) {
		t.Fatal(dev.Blocks[0x99])
	}

	if !d.Ping() {
		t.Fatal("present client")
	}
	absent := NewI2cUser("absent", address.I2c(2, 0x51))
	absent.Open = sim.Opener()
	if absent.Ping() {
		t.Fatal("absent client acknowledged")
	}
}

func TestI2cRegisters(t *testing.T) {
	sim := NewSimBus()
	sim.Add(5, 0x23)
	d := NewI2cUser("cpld", address.I2c(5, 0x23))
	d.Open = sim.Opener()

	m := register.NewMap(d, 0, register.Template{
		register.Reg(0x01, register.BitRW(0, "psu1_enable"), register.BitRW(4, "fan_reset")),
	})
	if err := m.Bit("fan_reset").Set(true); err != nil {
		t.Fatal(err)
	}
	if sim.Device(5, 0x23).Regs[1] != 0x10 {
		t.Fatalf("%#x", sim.Device(5, 0x23).Regs[1])
	}
	if on, _ := m.Bit("psu1_enable").Get(); on {
		t.Fatal("bit 0 set")
	}
}
