// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platforms

import (
	"fmt"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/dpm"
	"github.com/platinasystems/sysplat/hwapi"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/scd"
)

const clearwaterPhys = 12

// Phy is a retimer of a port group, reached over two mdio ports.
type Phy struct {
	Model string
	id    int
	Mdios []address.MdioRef
	reset inventory.Reset
}

func (p *Phy) Id() int                { return p.id }
func (p *Phy) Reset() inventory.Reset { return p.reset }

func (p *Phy) String() string { return fmt.Sprintf("%s(%d)", p.Model, p.id) }

// clearwaterPorts declares the cages and the retimers of the linecard
// scd. Interrupt banks 2 and 3 carry cages 1-31 and 32-48.
func clearwaterPorts(s *scd.Scd, phyModel string) {
	var intrs []*scd.InterruptRegister
	for i := 0; i <= 6; i++ {
		intrs = append(intrs,
			s.CreateInterrupt(0x3000+uint32(i)*0x30, i, 0xffffffff))
	}
	s.AddQsfpSlotBlock(scd.Block{First: 1, Last: 48}, scd.SlotOptions{
		Addr:       0xA010,
		LedAddr:    0x6100,
		Interrupts: intrs,
		IntrReg:    func(id int) int { return id/32 + 2 },
		IntrBit:    func(id int) uint { return uint(id-1) % 32 },
		NoModSel:   true,
	})
	s.AddMdioMasterRange(0x9000, clearwaterPhys, 0, 1, address.S10)
	for i := 0; i < clearwaterPhys; i++ {
		id := i + 1
		p := &Phy{
			Model: phyModel,
			id:    id,
			reset: s.AddReset(inventory.ResetDesc{
				Name: fmt.Sprintf("phy%d_reset", id), Addr: 0x4000, Bit: uint(8 + i),
			}),
			Mdios: []address.MdioRef{
				s.AddMdio(i, 0, 0, 1, address.C45),
				s.AddMdio(i, 1, 0, 1, address.C45),
			},
		}
		s.Inventory().AddPhy(p)
	}
}

func clearwaterMain(d *modular.DenaliCard, phyModel string) {
	d.Scd.AddSmbusMasterRange(0x8000, 14, 0x80, 0)
	clearwaterPorts(d.Scd, phyModel)
}

func standbySensors(module string) func(*modular.DenaliCard, *modular.PowerDomain) {
	return func(d *modular.DenaliCard, p *modular.PowerDomain) {
		pca := d.Slot.Pca
		component.NewSensor(p, module, pca.I2cAddr(0x49),
			inventory.Sensor(0, "Front", inventory.PositionInlet, 65, 75, 85))
		component.NewSensor(p, module, pca.I2cAddr(0x4a),
			inventory.Sensor(0, "Mid", inventory.PositionOther, 80, 90, 95))
		component.NewSensor(p, module, pca.I2cAddr(0x48),
			inventory.Sensor(0, "Back", inventory.PositionOther, 80, 90, 95))
	}
}

var hwApi45 = hwapi.New(45)

// daughterCard declares the sensor and eeprom of a daughter card; sensor
// picks the chip and its address.
func daughterCard(d *modular.DenaliCard, id int, sensor func(id int) (string, uint16)) {
	s := d.Scd
	bus := 10 + id
	module, addr := sensor(id)
	component.NewSensor(s, module, s.I2cAddr(bus, addr),
		inventory.Sensor(0, fmt.Sprint("Daughtercard ", id),
			inventory.PositionOther, 75, 85, 95))
	platform.NewEeprom(s, s.I2cAddr(bus, 0x52+uint16(id)),
		fmt.Sprintf("card%d_daughter%d", d.SlotId(), id))
}

func clearwaterSensors(d *modular.DenaliCard, daughter func(id int) (string, uint16)) {
	s := d.Scd
	dpm.New(s, dpm.Ucd90320, s.I2cAddr(0, 0x13))
	component.NewSensor(s, "max6581", s.I2cAddr(8, 0x4d),
		inventory.Sensor(1, "Board sensor 1", inventory.PositionOther, 75, 85, 95),
		inventory.Sensor(4, "Fap0 core1", inventory.PositionOther, 85, 100, 105),
		inventory.Sensor(5, "Fap0 core0", inventory.PositionOther, 85, 100, 105),
	)
	component.NewSensor(s, "max6581", s.I2cAddr(9, 0x4d),
		inventory.Sensor(2, "Fap0 PCB", inventory.PositionOther, 85, 100, 105),
		inventory.Sensor(7, "PCIE", inventory.PositionOther, 75, 85, 95),
	)
	daughterCard(d, 0, daughter)
	daughterCard(d, 1, daughter)
}

var clearwaterAsics = []modular.DenaliAsic{
	{PciOffset: 2, CoreReset: "je1Reset", PcieReset: "je1PcieReset"},
}

// ClearwaterConfig is the 48 port QSFP linecard.
var ClearwaterConfig = modular.DenaliCardConfig{
	Kind:  modular.Linecard,
	Gpio1: modular.LinecardGpio1,
	Gpio1Addr: func(d *modular.DenaliCard) uint16 {
		if d.HwApi().Less(hwApi45) {
			return 0x20
		}
		return 0x74
	},
	Asics:        clearwaterAsics,
	ScdPciOffset: 3,
	StandbyFn:    standbySensors("lm73"),
	MainFn: func(d *modular.DenaliCard, p *modular.PowerDomain) {
		clearwaterMain(d, "babbage")
		old := d.HwApi().Less(hwApi45)
		clearwaterSensors(d, func(id int) (string, uint16) {
			if old {
				return "lm73", []uint16{0x49, 0x48}[id]
			}
			return "tmp464", []uint16{0x48, 0x49}[id]
		})
	},
}

// ClearwaterMsConfig lacks the standby sensors.
var ClearwaterMsConfig = modular.DenaliCardConfig{
	Kind:         modular.Linecard,
	Gpio1:        modular.LinecardGpio1,
	Gpio1Addr:    func(*modular.DenaliCard) uint16 { return 0x74 },
	Asics:        clearwaterAsics,
	ScdPciOffset: 3,
	MainFn: func(d *modular.DenaliCard, p *modular.PowerDomain) {
		clearwaterMain(d, "babbage")
		clearwaterSensors(d, func(id int) (string, uint16) {
			return "tmp75", 0x48 + uint16(id)
		})
	},
}

// clearwater2Config carries its own cpu behind the PLX.
func clearwater2Config(phyModel string) modular.DenaliCardConfig {
	return modular.DenaliCardConfig{
		Kind:         modular.Linecard,
		Gpio1:        modular.LinecardGpio1,
		Gpio1Addr:    func(*modular.DenaliCard) uint16 { return 0x74 },
		Asics:        clearwaterAsics,
		ScdPciOffset: 3,
		Lcpu:         true,
		PlxLcpuMode: []uint32{
			1<<0 | 1<<2 | 1<<13,
			1<<1 | 1<<3 | 1<<5,
		},
		StandbyFn: standbySensors("tmp75"),
		MainFn: func(d *modular.DenaliCard, p *modular.PowerDomain) {
			clearwaterMain(d, phyModel)
			s := d.Scd
			component.NewSensor(s, "tmp464", s.I2cAddr(8, 0x48),
				inventory.Sensor(0, "Center back", inventory.PositionOther, 75, 85, 95),
				inventory.Sensor(1, "Fap0 core0", inventory.PositionOther, 85, 100, 105),
				inventory.Sensor(2, "Fap0 core1", inventory.PositionOther, 85, 100, 105),
				inventory.Sensor(3, "PCIE", inventory.PositionOther, 75, 85, 90),
			)
			for riser := 1; riser <= 12; riser++ {
				platform.NewEeprom(s, s.I2cAddr(96+riser, 0x50),
					fmt.Sprint("riser", riser))
			}
		},
	}
}

func cardDesc(name string, skus, sids []string, cfg modular.DenaliCardConfig) *platform.Descriptor {
	return &platform.Descriptor{
		Name: name,
		Skus: skus,
		Sids: sids,
		NewCard: func(slot platform.Slot) platform.Platform {
			return modular.NewDenaliCard(name, slot.(*modular.CardSlot), cfg)
		},
	}
}

var (
	clearwaterDesc = cardDesc("Clearwater",
		[]string{"7800R-48QC-LC", "7800R3-48CQ-LC"},
		[]string{"Clearwater"}, ClearwaterConfig)
	clearwaterMsDesc = cardDesc("ClearwaterMs",
		[]string{"7800R3-48CQM-LC", "7800R-48QCM-LC"},
		[]string{"ClearwaterMs"}, ClearwaterMsConfig)
	clearwater2Desc = cardDesc("Clearwater2",
		[]string{"7800R3-48CQ2-LC", "7800R-48QC2-LC"},
		[]string{"Clearwater2"}, clearwater2Config("babbage"))
	clearwater2MsDesc = cardDesc("Clearwater2Ms",
		[]string{"7800R3-48CQM2-LC", "7800R-48QCM2-LC"},
		[]string{"Clearwater2Ms"}, clearwater2Config("b52"))
)
