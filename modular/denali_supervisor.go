// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"fmt"

	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/pci"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/psu"
	"github.com/platinasystems/sysplat/scd"
)

// PsuSlotDesc places a power supply behind its arbiter; Bank is 1 or 2.
type PsuSlotDesc struct {
	Id   int
	Bank int
	Bus  int
	Addr uint16
}

// DenaliConfig is the slot wiring of a Denali supervisor.
type DenaliConfig struct {
	LinecardPorts []MicrosemiPortDesc
	FabricPorts   []MicrosemiPortDesc
	Psus          []PsuSlotDesc
	PsuModels     []*psu.Model
}

// DenaliSupervisor drives the slots of a Denali chassis through its SCD
// and reaches the cards through a Microsemi PCIe switch.
type DenaliSupervisor struct {
	Supervisor
	Config  DenaliConfig
	PciRoot *pci.Root
	Scd     *scd.Scd
}

func NewDenaliSupervisor(name string, reg *platform.Registry, cfg DenaliConfig) *DenaliSupervisor {
	d := &DenaliSupervisor{Config: cfg}
	d.Supervisor = *NewSupervisor(name, reg)
	if len(d.Config.PsuModels) == 0 {
		d.Config.PsuModels = []*psu.Model{psu.ECD3000}
	}
	d.PciRoot = component.Add(d, pci.NewRoot())
	d.createScd()
	d.createPciSwitch()
	d.createCardSlots(Linecard, cfg.LinecardPorts, 0x4100, 0)
	d.createCardSlots(Fabric, cfg.FabricPorts, 0x4110, len(cfg.LinecardPorts))
	d.createPsus()
	d.ReadSlotId = d.readSlotId
	return d
}

func (d *DenaliSupervisor) createScd() {
	port := d.PciRoot.RootPort(0, 0, 0x1c, 0).Endpoint(0, 0)
	s := scd.New(port, port.Address())
	d.Scd = s
	s.AddSmbusMasterRange(0x8000, 3, 0x80, 0)
	s.AddUartPortRange(0x7e00, len(d.Config.LinecardPorts), 0)
	s.CreateWatchdog(0)
	s.AddGpios(
		inventory.GpioDesc{Name: "supervisor_want_active", Addr: 0x5000, Bit: 0},
		inventory.GpioDesc{Name: "supervisor_active", Addr: 0x5000, Bit: 1, RO: true},
		inventory.GpioDesc{Name: "supervisor_slotid", Addr: 0x5000, Bit: 2, RO: true},
		inventory.GpioDesc{Name: "peer_supervisor_present", Addr: 0x5000, Bit: 3, RO: true},
		inventory.GpioDesc{Name: "heartbeat_in", Addr: 0x5000, Bit: 4, RO: true},
		inventory.GpioDesc{Name: "heartbeat_out", Addr: 0x5000, Bit: 5},
	)
	d.ChassisEeproms = []*platform.Eeprom{
		platform.NewEeprom(s, s.I2cAddr(14, 0x51), "chassis1"),
		platform.NewEeprom(s, s.I2cAddr(15, 0x51), "chassis2"),
	}
}

func (d *DenaliSupervisor) createPciSwitch() {
	d.PciSwitch = NewMicrosemi(d.PciRoot, d.PciRoot.RootPort(0, 0, 0x03, 0))
}

func (d *DenaliSupervisor) createCardSlots(kind Kind, ports []MicrosemiPortDesc, presentAddr uint32, firstBus int) {
	prefix := "lc"
	if kind == Fabric {
		prefix = "fc"
	}
	for i, desc := range ports {
		name := fmt.Sprint(prefix, i+1)
		present := d.Scd.AddGpio(inventory.GpioDesc{
			Name: name + "_present", Addr: presentAddr, Bit: uint(i), RO: true,
		})
		d.Scd.AddGpio(inventory.GpioDesc{
			Name: name + "_present_changed", Addr: presentAddr, Bit: uint(16 + i),
		})
		slotId := kind.Base() + i
		slot := NewCardSlot(d.Scd, d.Registry, SlotConfig{
			Id:      slotId,
			Kind:    kind,
			Pci:     d.PciSwitch.AddPort(slotId, desc),
			Bus:     d.Scd.Smbus(firstBus + i),
			Present: present,
		})
		slot.Supervisor = &d.Supervisor
		if kind == Linecard {
			d.LinecardSlots = append(d.LinecardSlots, slot)
		} else {
			d.FabricSlots = append(d.FabricSlots, slot)
		}
	}
}

func (d *DenaliSupervisor) createPsus() {
	for i, desc := range d.Config.Psus {
		name := fmt.Sprint("psu", desc.Id)
		// banks are one bit apart
		bit := uint(i)
		if desc.Bank != 1 {
			bit++
		}
		gpio := func(suffix string, addr uint32) inventory.Gpio {
			g := d.Scd.AddGpio(inventory.GpioDesc{
				Name: name + suffix, Addr: addr, Bit: bit, RO: true,
			})
			d.Scd.AddGpio(inventory.GpioDesc{
				Name: name + suffix + "_changed", Addr: addr, Bit: 16 + bit,
			})
			return g
		}
		present := gpio("_present", 0x5080)
		ok := gpio("_ok", 0x5090)
		acA := gpio("_ac_a_ok", 0x50A0)
		gpio("_ac_b_ok", 0x50B0)
		pca := NewPca9541(d.Scd, d.Scd.I2cAddr(desc.Bus, desc.Addr), true)
		d.PsuSlots = append(d.PsuSlots, psu.NewSlot(pca, psu.SlotConfig{
			Id:       desc.Id,
			Bus:      pca,
			Models:   d.Config.PsuModels,
			Present:  present,
			InputOk:  ok,
			OutputOk: acA,
		}))
	}
}

// readSlotId is 2 when the slot id pin is set.
func (d *DenaliSupervisor) readSlotId() (int, error) {
	g, found := d.Scd.Gpio("supervisor_slotid")
	if !found {
		return 0, fmt.Errorf("%s: no slot id gpio", d.Name)
	}
	on, err := g.IsActive()
	if err != nil {
		return 0, err
	}
	if on {
		return 2, nil
	}
	return 1, nil
}
