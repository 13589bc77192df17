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
	PlxVendorId = 0x10b5

	pexI2cRead  = 0x4
	pexI2cWrite = 0x3
)

// pex8700Regs are the registers of the transparent port 0 config space.
var pex8700Regs = register.Template{
	register.Reg(0x7c,
		register.BitRW(5, "hotPlugSurprise"),
		register.BitRW(6, "hotPlugCapable"),
	),
	register.Reg(0x208).Named("portDisable"),
	register.Reg(0x360,
		register.RangeRW(0, 4, "upstreamPort"),
		register.RangeRW(8, 12, "ntPort"),
		register.BitRW(13, "ntEnable"),
	),
	register.Reg(0x380).Named("vs0PortVec"),
	register.Reg(0x384).Named("vs1PortVec"),
}

// PexI2c accesses the memory mapped registers of a PEX switch through its
// i2c slave. Addresses follow the BAR0 layout: 4k of config space per
// transparent port.
type PexI2c struct {
	Dev *driver.I2cUser
}

func pexCommand(rdwr uint8, addr uint32) []byte {
	port := addr >> 12
	off := addr & 0xfff
	const mode, bsel = 0, 0xf
	return []byte{
		rdwr,
		mode<<4 | byte((port&0x1e)>>1),
		byte((port&1)<<7) | bsel<<2 | byte((off>>10)&0x3),
		byte((off >> 2) & 0xff),
	}
}

func (p *PexI2c) Read(addr uint32) (uint32, error) {
	cmd := pexCommand(pexI2cRead, addr)
	data := make([]byte, 4)
	if err := p.Dev.Transfer(cmd, data); err != nil {
		return 0, err
	}
	return uint32(data[0])<<24 | uint32(data[1])<<16 |
		uint32(data[2])<<8 | uint32(data[3]), nil
}

func (p *PexI2c) Write(addr, v uint32) error {
	cmd := pexCommand(pexI2cWrite, addr)
	cmd = append(cmd, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return p.Dev.Transfer(cmd, nil)
}

// Plx is the PEX8700 switch linking a card to both supervisors.
type Plx struct {
	component.Component
	Addr address.I2cAddr
	Dev  register.Device
	// Mem is the simulated register space, nil on hardware.
	Mem  *register.Memory
	Regs *register.Map
}

func NewPlx(parent component.Node, addr address.I2cAddr) *Plx {
	p := &Plx{Addr: addr}
	p.Component.Name = fmt.Sprintf("PlxPex8700(addr=%s)", addr)
	if config.Get().InSimulation() {
		p.Mem = register.NewMemory()
		p.Mem.Set(0, PlxVendorId)
		p.Dev = p.Mem
	} else {
		u := driver.NewI2cUser("plx", addr)
		p.Component.Driver = u
		p.Dev = &PexI2c{Dev: u}
	}
	p.Regs = register.NewMap(p.Dev, 0, pex8700Regs)
	return component.Add(parent, p)
}

// Ping reads the vendor id of port 0.
func (p *Plx) Ping() bool {
	v, err := p.Dev.Read(0)
	if err != nil {
		log.Debug("%s: %v", p, err)
		return false
	}
	if v&0xffff != PlxVendorId {
		log.Debug("%s: vendor id %#x is not PLX", p, v&0xffff)
		return false
	}
	return true
}

func (p *Plx) EnableHotPlug() error {
	if err := p.Regs.Bit("hotPlugSurprise").Set(true); err != nil {
		return err
	}
	return p.Regs.Bit("hotPlugCapable").Set(true)
}

// DisableUpstreamPort holds the link of port down while off is set.
func (p *Plx) DisableUpstreamPort(port int, off bool) error {
	r := p.Regs.Register("portDisable")
	v, err := r.Read()
	if err != nil {
		return err
	}
	if off {
		v |= 1 << uint(port)
	} else {
		v &^= 1 << uint(port)
	}
	return r.Write(v)
}

func (p *Plx) SetUpstreamPort(port int) error {
	return p.Regs.Range("upstreamPort").Set(uint32(port))
}

func (p *Plx) SetNtPort(port int) error {
	return p.Regs.Range("ntPort").Set(uint32(port))
}

func (p *Plx) EnableNt(on bool) error {
	return p.Regs.Bit("ntEnable").Set(on)
}

// VsPortVec assigns ports to virtual switch vs, 0 or 1.
func (p *Plx) VsPortVec(vs int, ports uint32) error {
	return p.Regs.Register(fmt.Sprintf("vs%dPortVec", vs)).Write(ports)
}
