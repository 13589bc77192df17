// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platforms

import (
	"fmt"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/dpm"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/psu"
	"github.com/platinasystems/sysplat/scd"
)

var gardenaPsuTweak = scd.BusTweak{T: 3, Datr: 2, Datw: 3}

// Gardena is a 64 port QSFP fixed system.
type Gardena struct {
	*platform.FixedSystem
	Asic     *component.SwitchChip
	Scd      *scd.Scd
	Cpu      *Rook
	PsuSlots []*psu.Slot
}

func NewGardena() *Gardena {
	g := &Gardena{FixedSystem: platform.NewFixedSystem("Gardena")}
	g.Asic = component.Add(g, component.NewSwitchChip(address.PciAddr{Bus: 0x07}))

	s := scd.New(g, address.PciAddr{Bus: 0x06})
	g.Scd = s
	s.CreateWatchdog(0)
	s.AddProgrammable()
	component.NewSensor(s, "max6658", s.I2cAddr(0, 0x4c),
		inventory.Sensor(0, "Board sensor", inventory.PositionOther, 65, 75, 85))
	s.AddSmbusMasterRange(0x8000, 8, 0x80, 0)
	s.AddResets(
		inventory.ResetDesc{Name: "switch_chip_reset", Addr: 0x4000, Bit: 0},
		inventory.ResetDesc{Name: "switch_chip_pcie_reset", Addr: 0x4000, Bit: 1},
		inventory.ResetDesc{Name: "security_asic_reset", Addr: 0x4000, Bit: 2},
	)
	if r, found := s.Reset("switch_chip_reset"); found {
		g.Asic.CoreResets = append(g.Asic.CoreResets, r)
	}
	if r, found := s.Reset("switch_chip_pcie_reset"); found {
		g.Asic.PcieResets = append(g.Asic.PcieResets, r)
	}
	s.AddGpios(
		inventory.GpioDesc{Name: "psu1_present", Addr: 0x5000, Bit: 0, RO: true},
		inventory.GpioDesc{Name: "psu2_present", Addr: 0x5000, Bit: 1, RO: true},
		inventory.GpioDesc{Name: "psu1_status", Addr: 0x5000, Bit: 8, RO: true},
		inventory.GpioDesc{Name: "psu2_status", Addr: 0x5000, Bit: 9, RO: true},
		inventory.GpioDesc{Name: "psu1_ac_status", Addr: 0x5000, Bit: 10, RO: true},
		inventory.GpioDesc{Name: "psu2_ac_status", Addr: 0x5000, Bit: 11, RO: true},
	)

	g.Cpu = NewRook(g)
	g.Cpu.AddCpuDpm()
	dpm.New(g.Cpu.Cpld, dpm.Ucd90120A, g.Cpu.SwitchDpmAddr(0x34),
		dpm.Gpi("powerloss", 1),
		dpm.Gpi("reboot", 2),
		dpm.Gpi("watchdog", 3),
		dpm.Gpi("overtemp", 4),
	)

	models := psuModels("DPS750AB", "DPS1500AB", "DS495SPE")
	for id := 1; id <= 2; id++ {
		name := fmt.Sprint("psu", id)
		bus := 1 + id
		for _, m := range models {
			s.I2cAddrTweak(bus, m.PmbusAddr, gardenaPsuTweak)
		}
		gpio := func(suffix string) inventory.Gpio {
			pin, _ := s.Gpio(name + suffix)
			return pin
		}
		g.PsuSlots = append(g.PsuSlots, psu.NewSlot(s, psu.SlotConfig{
			Id:       id,
			Bus:      s.Smbus(bus),
			Models:   models,
			Present:  gpio("_present"),
			InputOk:  gpio("_ac_status"),
			OutputOk: gpio("_status"),
		}))
	}

	intrs := []*scd.InterruptRegister{
		s.CreateInterrupt(0x3000, 0, 0xffffffff),
		s.CreateInterrupt(0x3030, 1, 0xffffffff),
		s.CreateInterrupt(0x3060, 2, 0xffffffff),
	}
	s.AddQsfpSlotBlock(scd.Block{First: 1, Last: 64}, scd.SlotOptions{
		Addr:       0xA010,
		Bus:        8,
		LedAddr:    0x6100,
		LedLanes:   4,
		Interrupts: intrs,
		IntrReg:    func(id int) int { return id/33 + 1 },
		IntrBit:    func(id int) uint { return uint(id-1) % 32 },
		NoLpMode:   true,
	})
	s.AddSfpSlotBlock(scd.Block{First: 65, Last: 66}, scd.SlotOptions{
		Addr:    0xA410,
		Bus:     6,
		LedAddr: 0x7100,
	})
	return g
}

var gardenaDesc = &platform.Descriptor{
	Name: "Gardena",
	Skus: []string{"DCS-7260CX3-64", "DCS-7260CX3-64E"},
	Sids: []string{"Gardena", "GardenaE"},
	New:  func() platform.Platform { return NewGardena() },
}
