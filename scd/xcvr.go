// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package scd

import (
	"fmt"

	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/register"
	"github.com/platinasystems/sysplat/xcvr"
)

// SlotOptions describes how a cage is wired to the scd.
type SlotOptions struct {
	// Addr is the cage control register.
	Addr uint32
	Bus  int
	// LedAddr is the first lane led, further lanes follow by LedStep. A
	// zero LedAddr is a cage without leds.
	LedAddr  uint32
	LedStep  uint32
	LedLanes int

	// Interrupts, when set, gives the cage a line: bank IntrReg(id), bit
	// IntrBit(id).
	Interrupts []*InterruptRegister
	IntrReg    func(id int) int
	IntrBit    func(id int) uint

	NoLpMode bool
	NoModSel bool
}

func (o *SlotOptions) defaults() {
	if o.LedStep == 0 {
		o.LedStep = 0x10
	}
	if o.LedLanes == 0 {
		o.LedLanes = 1
	}
}

// xcvrGpio is published but not declared to the kernel, which creates
// the cage objects itself.
func (s *Scd) xcvrGpio(desc inventory.GpioDesc) inventory.Gpio {
	return s.Inventory().AddGpio(s.gpioBit(desc))
}

func (s *Scd) xcvrReset(desc inventory.ResetDesc) inventory.Reset {
	m := register.NewMap(s.Dev, 0, register.Template{
		register.Reg(desc.Addr, register.BitRW(desc.Bit, desc.Name)),
	})
	r := component.NewResetBit(m, desc)
	s.xcvrResets = append(s.xcvrResets, r)
	return s.Inventory().AddReset(r)
}

func (s *Scd) addXcvrSlot(cfg xcvr.SlotConfig, o SlotOptions) *xcvr.Slot {
	o.defaults()
	name := cfg.Name
	if len(o.Interrupts) > 0 {
		reg := o.Interrupts[o.IntrReg(cfg.Id)]
		cfg.Interrupt = reg.Bit(name, o.IntrBit(cfg.Id))
	}
	s.I2cAddrTweak(o.Bus, xcvr.EepromAddr, XcvrTweak)
	cfg.Bus = s.Smbus(o.Bus)
	cfg.Present = s.xcvrGpio(inventory.GpioDesc{
		Name:      name + "_present",
		Addr:      o.Addr,
		Bit:       2,
		RO:        true,
		ActiveLow: true,
	})
	if o.LedAddr != 0 {
		var leds []LedAddr
		addr := o.LedAddr
		for lane := 1; lane <= o.LedLanes; lane++ {
			n := name
			if o.LedLanes > 1 {
				n = fmt.Sprintf("%s_%d", name, lane)
			}
			leds = append(leds, LedAddr{addr, n})
			addr += o.LedStep
		}
		cfg.Leds = s.AddLedGroup(name, leds...)
	}
	return xcvr.NewSlot(s, cfg)
}

func (s *Scd) AddSfpSlot(id int, o SlotOptions) *xcvr.Slot {
	name := fmt.Sprint("sfp", id)
	s.sfps = append(s.sfps, decl{addr: o.Addr, id: id})
	return s.addXcvrSlot(xcvr.SlotConfig{
		Id:   id,
		Name: name,
		Kind: inventory.Sfp,
		RxLos: s.xcvrGpio(inventory.GpioDesc{
			Name: name + "_rxlos", Addr: o.Addr, Bit: 0, RO: true,
		}),
		TxFault: s.xcvrGpio(inventory.GpioDesc{
			Name: name + "_txfault", Addr: o.Addr, Bit: 1, RO: true,
		}),
		TxDisable: s.xcvrGpio(inventory.GpioDesc{
			Name: name + "_txdisable", Addr: o.Addr, Bit: 6,
		}),
	}, o)
}

func (s *Scd) addModuleSlot(kind inventory.XcvrKind, id int, o SlotOptions) *xcvr.Slot {
	name := fmt.Sprint(kind, id)
	cfg := xcvr.SlotConfig{
		Id:   id,
		Name: name,
		Kind: kind,
	}
	if !o.NoLpMode {
		cfg.LpMode = s.xcvrGpio(inventory.GpioDesc{
			Name: name + "_lp_mode", Addr: o.Addr, Bit: 6,
		})
	}
	if !o.NoModSel {
		cfg.ModSel = s.xcvrGpio(inventory.GpioDesc{
			Name: name + "_modsel", Addr: o.Addr, Bit: 8, ActiveLow: true,
		})
	}
	cfg.Reset = s.xcvrReset(inventory.ResetDesc{
		Name: name + "_reset", Addr: o.Addr, Bit: 7,
	})
	return s.addXcvrSlot(cfg, o)
}

func (s *Scd) AddQsfpSlot(id int, o SlotOptions) *xcvr.Slot {
	s.qsfps = append(s.qsfps, decl{addr: o.Addr, id: id})
	return s.addModuleSlot(inventory.Qsfp, id, o)
}

func (s *Scd) AddOsfpSlot(id int, o SlotOptions) *xcvr.Slot {
	s.osfps = append(s.osfps, decl{addr: o.Addr, id: id})
	return s.addModuleSlot(inventory.Osfp, id, o)
}

// Block describes consecutive cages: each one steps its control register
// by AddrStep and its bus by BusStep, and its leds follow the previous
// cage's.
type Block struct {
	First, Last int
	AddrStep    uint32
	BusStep     int
}

func (b Block) each(o SlotOptions, add func(int, SlotOptions) *xcvr.Slot) []*xcvr.Slot {
	o.defaults()
	if b.AddrStep == 0 {
		b.AddrStep = 0x10
	}
	if b.BusStep == 0 {
		b.BusStep = 1
	}
	var l []*xcvr.Slot
	for id := b.First; id <= b.Last; id++ {
		l = append(l, add(id, o))
		o.Addr += b.AddrStep
		o.Bus += b.BusStep
		if o.LedAddr != 0 {
			o.LedAddr += o.LedStep * uint32(o.LedLanes)
		}
	}
	return l
}

func (s *Scd) AddSfpSlotBlock(b Block, o SlotOptions) []*xcvr.Slot {
	return b.each(o, s.AddSfpSlot)
}

func (s *Scd) AddQsfpSlotBlock(b Block, o SlotOptions) []*xcvr.Slot {
	return b.each(o, s.AddQsfpSlot)
}

func (s *Scd) AddOsfpSlotBlock(b Block, o SlotOptions) []*xcvr.Slot {
	return b.each(o, s.AddOsfpSlot)
}
