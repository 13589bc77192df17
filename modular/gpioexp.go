// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"fmt"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/register"
)

const (
	pca9555Input  = 0x0
	pca9555Output = 0x2
	pca9555Config = 0x6
)

// pca9555 maps bank 0 and 1 of the expander: reads come from the input
// port, writes go to the output port and turn the written pins to
// outputs.
type pca9555 struct {
	dev  *driver.I2cUser
	outs [2]uint8
}

func (p *pca9555) Read(bank uint32) (uint32, error) {
	v, err := p.dev.ReadByteData(uint8(pca9555Input + bank))
	return uint32(v), err
}

func (p *pca9555) Write(bank, v uint32) error {
	if err := p.dev.WriteByteData(uint8(pca9555Output+bank), uint8(v)); err != nil {
		return err
	}
	cfg, err := p.dev.ReadByteData(uint8(pca9555Config + bank))
	if err != nil {
		return err
	}
	return p.dev.WriteByteData(uint8(pca9555Config+bank), cfg&^p.outs[bank&1])
}

// GpioExpander is a PCA9555 whose pins are named by a register template
// with one register per bank, at address 0 and 1.
type GpioExpander struct {
	component.Component
	Addr address.I2cAddr
	Dev  register.Device
	// Mem is the simulated expander, nil on hardware.
	Mem  *register.Memory
	Regs *register.Map
}

func NewGpioExpander(parent component.Node, addr address.I2cAddr, t register.Template) *GpioExpander {
	g := &GpioExpander{Addr: addr}
	g.Component.Name = fmt.Sprintf("Pca9555(addr=%s)", addr)
	if config.Get().InSimulation() {
		g.Mem = register.NewMemory()
		g.Dev = g.Mem
	} else {
		u := driver.NewI2cUser("pca9555", addr)
		p := &pca9555{dev: u}
		for _, d := range t {
			for _, f := range d.Fields {
				if b, ok := f.(register.BitField); ok && b.RW {
					p.outs[d.Addr&1] |= 1 << b.Bit
				}
			}
		}
		g.Component.Driver = u
		g.Dev = p
	}
	g.Regs = register.NewMap(g.Dev, 0, t)
	return component.Add(parent, g)
}

func (g *GpioExpander) Has(name string) bool { return g.Regs.Has(name) }

func (g *GpioExpander) Get(name string) (bool, error) {
	return g.Regs.Bit(name).Get()
}

func (g *GpioExpander) Set(name string, on bool) error {
	return g.Regs.Bit(name).Set(on)
}

// Led publishes a red/green status led over two pins.
func (g *GpioExpander) Led(name, red, green string) *component.RedGreenLed {
	l := component.NewRedGreenLed(name, g.Regs.Bit(red), g.Regs.Bit(green))
	g.Inventory().AddLed(l)
	return l
}
