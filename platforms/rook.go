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
	"github.com/platinasystems/sysplat/pci"
	"github.com/platinasystems/sysplat/reloadcause"
	"github.com/platinasystems/sysplat/scd"
)

const rookFans = 4

// dpmTweak slows the sequencer buses down.
var dpmTweak = scd.BusTweak{T: 3, Datr: 3, Datw: 3}

// Rook is the cpu module of the fixed systems: its own cpld, thermal
// sensors and fan controller.
type Rook struct {
	component.Component
	PciRoot *pci.Root
	Cpld    *scd.Scd
	Fans    *component.I2cChip
}

func NewRook(parent component.Node) *Rook {
	r := &Rook{}
	r.Component.Name = "RookCpu"
	component.Add(parent, r)
	r.PciRoot = component.Add(r, pci.NewRoot())
	port := r.PciRoot.RootPort(0, 0xff, 0x0b, 3)
	r.Cpld = scd.New(port, port.Address())
	r.Cpld.AddSmbusMasterRange(0x8000, 4, 0x80, 4)
	component.NewSensor(r.Cpld, "max6658", r.Cpld.I2cAddr(0, 0x4c),
		inventory.Sensor(0, "CPU board temp sensor", inventory.PositionOther, 70, 80, 85),
		inventory.Sensor(1, "Back-panel temp sensor", inventory.PositionOutlet, 55, 65, 75),
	)
	r.Fans = component.NewI2cChip(r.Cpld, "rook-fan-cpld", "la_cpld",
		r.Cpld.I2cAddr(12, 0x60))
	r.Fans.Priority = component.Cooling
	for id := 1; id <= rookFans; id++ {
		r.Fans.AddFan(inventory.FanDesc{
			FanId:    id,
			Name:     fmt.Sprint("fan", id),
			Position: inventory.PositionInlet,
			Airflow:  inventory.AirflowExhaust,
		}, nil)
	}
	r.Cpld.CreatePowerCycle()
	return r
}

// CpuDpmAddr is the sequencer of the cpu module.
func (r *Rook) CpuDpmAddr(addr uint16) address.I2cAddr {
	return r.Cpld.I2cAddrTweak(1, addr, dpmTweak)
}

// SwitchDpmAddr is the sequencer of the switch board.
func (r *Rook) SwitchDpmAddr(addr uint16) address.I2cAddr {
	return r.Cpld.I2cAddrTweak(10, addr, dpmTweak)
}

// AddCpuDpm declares the cpu sequencer with its usual causes.
func (r *Rook) AddCpuDpm() *dpm.Ucd {
	return dpm.New(r.Cpld, dpm.Ucd90160, r.CpuDpmAddr(0x4e),
		dpm.Gpi("overtemp", 3),
		dpm.Gpi("procerror", 4).WithPriority(reloadcause.PriorityLow),
		dpm.Gpi("fansmissing", 5),
	)
}
