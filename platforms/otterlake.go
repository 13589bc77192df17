// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platforms

import (
	"github.com/platinasystems/sysplat/dpm"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/platform"
)

// Otterlake is the supervisor of the Denali chassis.
type Otterlake struct {
	*modular.DenaliSupervisor
	Cpu      *Sprucefish
	CpuDpm   *dpm.Ucd
	ShimDpm  *dpm.Ucd
	ShimProm *platform.Eeprom
}

func otterlakeConfig() modular.DenaliConfig {
	var cfg modular.DenaliConfig
	for i := 0; i < 8; i++ {
		cfg.LinecardPorts = append(cfg.LinecardPorts,
			modular.MicrosemiPortDesc{Port: 32 + i, Dsp: 8 + i})
	}
	for i := 0; i < 6; i++ {
		cfg.FabricPorts = append(cfg.FabricPorts,
			modular.MicrosemiPortDesc{Port: 24 + i, Dsp: 1 + i})
	}
	// three supplies per arbiter bus, six per bank
	for i := 0; i < 12; i++ {
		bank := 1
		if i >= 6 {
			bank = 2
		}
		cfg.Psus = append(cfg.Psus, modular.PsuSlotDesc{
			Id:   i + 1,
			Bank: bank,
			Bus:  16 + i/3,
			Addr: 0x70 + uint16(i%3),
		})
	}
	return cfg
}

func NewOtterlake(reg *platform.Registry) *Otterlake {
	o := &Otterlake{
		DenaliSupervisor: modular.NewDenaliSupervisor("Otterlake", reg,
			otterlakeConfig()),
	}
	o.Cpu = NewSprucefish(o)
	o.CpuDpm = dpm.New(o.Cpu.Cpld, dpm.Ucd90160, o.Cpu.CpuDpmAddr())
	o.ShimDpm = dpm.New(o.Cpu.Cpld, dpm.Ucd90120A, o.Cpu.ShimDpmAddr(),
		dpm.Gpi("peer", 4),
		dpm.Gpi("reboot", 5),
		dpm.Gpi("watchdog", 6),
		dpm.Mon("powerloss", 9),
	)
	o.ShimProm = platform.NewEeprom(o.Cpu.Cpld, o.Cpu.ShimEepromAddr(),
		"supervisor_shim")
	return o
}

func otterlakeDesc(reg *platform.Registry) *platform.Descriptor {
	return &platform.Descriptor{
		Name: "Otterlake",
		Skus: []string{"DCS-7800-SUP", "DCS-7800-SUP1A", "DCS-7800-SUP1S"},
		Sids: []string{"Otterlake"},
		New:  func() platform.Platform { return NewOtterlake(reg) },
	}
}
