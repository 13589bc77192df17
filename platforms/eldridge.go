// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platforms

import (
	"fmt"

	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/dpm"
	"github.com/platinasystems/sysplat/hwapi"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/register"
)

// EldridgeGpio2 holds the fan fault leds and the Ramon resets.
var EldridgeGpio2 = register.Template{
	register.Reg(0x0,
		register.BitRW(0, "fanFault1"),
		register.BitRW(1, "fanFault2"),
		register.BitRW(2, "fanFault3"),
		register.BitRW(3, "fanFault4"),
		register.BitRW(4, "fanFault5"),
		register.BitRW(5, "fanFault6"),
		register.BitRW(6, "fanFault7"),
		register.BitRW(7, "fanFault8"),
	),
	register.Reg(0x1,
		register.BitField{Bit: 0, Name: "ramon0SysReset", RW: true, Flip: true},
		register.BitField{Bit: 1, Name: "ramon0PcieReset", RW: true, Flip: true},
		register.BitField{Bit: 2, Name: "ramon1SysReset", RW: true, Flip: true},
		register.BitField{Bit: 3, Name: "ramon1PcieReset", RW: true, Flip: true},
		register.BitField{Bit: 4, Name: "ramon2SysReset", RW: true, Flip: true},
		register.BitField{Bit: 5, Name: "ramon2PcieReset", RW: true, Flip: true},
		register.BitField{Bit: 6, Name: "ramonSmbusEnable", RW: true, Flip: true},
		register.BitField{Bit: 7, Name: "polSmbusEnable", RW: true, Flip: true},
	),
}

var hwApi42 = hwapi.New(42)

// eldridgeFans declares two fans per slot of first..last on chip; both
// fans of a slot share its fault led.
func eldridgeFans(d *modular.DenaliCard, chip *component.I2cChip, first, last int) {
	rel := d.RelativeSlotId()
	for i, slot := 0, first; slot <= last; i, slot = i+1, slot+1 {
		bit := fmt.Sprint("fanFault", slot)
		led := component.NewBitLed(fmt.Sprintf("fabric%d_fan%d", rel, slot),
			inventory.Red, d.Gpio2.Regs.Bit(bit))
		d.Gpio2.Inventory().AddLed(led)
		for j, pos := range []string{inventory.PositionInlet, inventory.PositionOutlet} {
			chip.AddFan(inventory.FanDesc{
				FanId:    i*2 + j + 1,
				Name:     fmt.Sprintf("fabric%d/%d", rel, (slot-1)*2+j+1),
				Position: pos,
				Airflow:  inventory.AirflowExhaust,
			}, led)
		}
	}
}

func eldridgeSensors(d *modular.DenaliCard, p *modular.PowerDomain) {
	pca := d.Slot.Pca
	other := inventory.PositionOther
	if d.HwApi().Less(hwApi42) {
		component.NewSensor(p, "tmp468", pca.I2cAddr(0x48),
			inventory.Sensor(0, "Board sensor 1", other, 75, 85, 95),
			inventory.Sensor(1, "Ramon 0 PCB", other, 70, 80, 90),
			inventory.Sensor(2, "Ramon 1 PCB", other, 70, 80, 90),
			inventory.Sensor(3, "Ramon 2 PCB", other, 70, 80, 90),
			inventory.Sensor(4, "Inlet", inventory.PositionInlet, 75, 85, 95),
			inventory.Sensor(5, "Exhaust", inventory.PositionOutlet, 75, 85, 95),
			inventory.Sensor(7, "Ramon 0 Core (secondary)", other, 75, 85, 95),
			inventory.Sensor(8, "Ramon 1 Core (secondary)", other, 75, 85, 95),
		)
		component.NewSensor(p, "max6658", pca.I2cAddr(0x4c),
			inventory.Sensor(0, "Ramon 2 Core (secondary)", other, 75, 85, 95))
		return
	}
	component.NewSensor(p, "tmp464", pca.I2cAddr(0x48),
		inventory.Sensor(0, "Board sensor 1", other, 75, 85, 95),
		inventory.Sensor(1, "Ramon 0 PCB", other, 70, 80, 90),
		inventory.Sensor(2, "Ramon 1 PCB", other, 70, 80, 90),
		inventory.Sensor(3, "Ramon 2 PCB", other, 70, 80, 90),
		inventory.Sensor(4, "Inlet", inventory.PositionInlet, 75, 85, 95),
	)
	component.NewSensor(p, "tmp464", pca.I2cAddr(0x49),
		inventory.Sensor(0, "Board sensor 2", other, 75, 85, 95),
		inventory.Sensor(1, "Exhaust", inventory.PositionOutlet, 75, 85, 95),
		inventory.Sensor(2, "Ramon 0 Core (secondary)", other, 75, 85, 95),
		inventory.Sensor(3, "Ramon 1 Core (secondary)", other, 75, 85, 95),
		inventory.Sensor(4, "Ramon 2 Core (secondary)", other, 75, 85, 95),
	)
}

// EldridgeConfig is the fabric card with three Ramon chips.
var EldridgeConfig = modular.DenaliCardConfig{
	Kind:  modular.Fabric,
	Gpio1: modular.FabricGpio1,
	Gpio2: EldridgeGpio2,
	Asics: []modular.DenaliAsic{
		{PciOffset: 1, CoreReset: "ramon0SysReset", PcieReset: "ramon0PcieReset"},
		{PciOffset: 3, CoreReset: "ramon1SysReset", PcieReset: "ramon1PcieReset"},
		{PciOffset: 4, CoreReset: "ramon2SysReset", PcieReset: "ramon2PcieReset"},
	},
	StandbyFn: func(d *modular.DenaliCard, p *modular.PowerDomain) {
		pca := d.Slot.Pca
		for _, c := range []struct {
			addr        uint16
			first, last int
		}{{0x2d, 1, 4}, {0x2c, 5, 8}} {
			chip := component.NewI2cChip(p, "max31790", "amax31790_8u",
				pca.I2cAddr(c.addr))
			chip.Priority = component.Cooling
			eldridgeFans(d, chip, c.first, c.last)
		}
		eldridgeSensors(d, p)
		dpm.New(p, dpm.Ucd90320, pca.I2cAddr(0x11))
	},
}

var eldridgeDesc = cardDesc("Eldridge",
	[]string{"DCS-7808-FM", "7808R3-FM"},
	[]string{"Eldridge"}, EldridgeConfig)
