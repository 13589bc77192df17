// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platforms

import (
	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/pci"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/scd"
)

// SprucefishRecoveryPin is the kernel gpio of the cpu recovery strap.
const SprucefishRecoveryPin = 496

// Sprucefish is the cpu module of the Denali supervisors.
type Sprucefish struct {
	component.Component
	PciRoot  *pci.Root
	Cpld     *scd.Scd
	Eeprom   *platform.Eeprom
	Seu      *scd.SeuReporter
	Recovery *component.SysfsGpio
}

func NewSprucefish(parent component.Node) *Sprucefish {
	c := &Sprucefish{}
	c.Component.Name = "SprucefishCpu"
	component.Add(parent, c)
	c.PciRoot = component.Add(c, pci.NewRoot())
	port := c.PciRoot.RootPort(0, 0xff, 0x0b, 3)
	cpld := scd.New(port, port.Address())
	c.Cpld = cpld

	cpld.CreatePowerCycle()
	cpld.AddProgrammable()
	c.Seu = cpld.AddSeuReporter(scd.SeuRegisters(0x2300))
	cpld.AddSmbusMasterRange(0x8000, 0, 0x80, 9)
	cpld.AddSfpSlot(1, scd.SlotOptions{Addr: 0x5010, Bus: 3})
	cpld.AddLeds(
		scd.LedAddr{Addr: 0x6050, Name: "status"},
		scd.LedAddr{Addr: 0x6060, Name: "active"},
		scd.LedAddr{Addr: 0x6070, Name: "fan_status"},
		scd.LedAddr{Addr: 0x6080, Name: "fabric_status"},
		scd.LedAddr{Addr: 0x6090, Name: "psu_status"},
		scd.LedAddr{Addr: 0x60A0, Name: "linecard_status"},
		scd.LedAddr{Addr: 0x60B0, Name: "beacon"},
	)
	c.Eeprom = platform.NewEeprom(cpld, cpld.I2cAddr(0, 0x50), "supervisor")
	component.NewSensor(cpld, "max6658", cpld.I2cAddr(0, 0x4c))

	c.Recovery = component.NewSysfsGpio(inventory.GpioDesc{
		Name: "cpu_recovery",
		Bit:  SprucefishRecoveryPin,
		RO:   true,
	})
	c.Inventory().AddGpio(c.Recovery)
	return c
}

func (c *Sprucefish) CpuDpmAddr() address.I2cAddr  { return c.Cpld.I2cAddr(1, 0x4e) }
func (c *Sprucefish) ShimDpmAddr() address.I2cAddr { return c.Cpld.I2cAddr(1, 0x75) }

func (c *Sprucefish) ShimEepromAddr() address.I2cAddr {
	return c.Cpld.I2cAddr(0, 0x51)
}
