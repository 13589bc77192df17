// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package component

import (
	"fmt"

	"github.com/platinasystems/gpio"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/register"
)

// GpioBit is a gpio backed by a register bit.
type GpioBit struct {
	Desc inventory.GpioDesc
	Reg  *register.BitAccessor
}

func NewGpioBit(m *register.Map, desc inventory.GpioDesc) *GpioBit {
	return &GpioBit{Desc: desc, Reg: m.Bit(desc.Name)}
}

func (g *GpioBit) Name() string      { return g.Desc.Name }
func (g *GpioBit) Addr() uint32      { return g.Desc.Addr }
func (g *GpioBit) Bit() uint         { return g.Desc.Bit }
func (g *GpioBit) IsRo() bool        { return g.Desc.RO }
func (g *GpioBit) IsActiveLow() bool { return g.Desc.ActiveLow }

func (g *GpioBit) RawValue() (uint32, error) {
	on, err := g.Reg.Get()
	if on {
		return 1, err
	}
	return 0, err
}

func (g *GpioBit) IsActive() (bool, error) {
	on, err := g.Reg.Get()
	return on != g.Desc.ActiveLow, err
}

func (g *GpioBit) SetActive(on bool) error {
	if g.Desc.RO {
		return fmt.Errorf("%s: read only gpio", g.Name())
	}
	return g.Reg.Set(on != g.Desc.ActiveLow)
}

// ResetBit holds a device in reset while its bit is set.
type ResetBit struct {
	Desc inventory.ResetDesc
	Reg  *register.BitAccessor
}

func NewResetBit(m *register.Map, desc inventory.ResetDesc) *ResetBit {
	return &ResetBit{Desc: desc, Reg: m.Bit(desc.Name)}
}

func (r *ResetBit) Name() string { return r.Desc.Name }

func (r *ResetBit) Read() (bool, error) {
	on, err := r.Reg.Get()
	return on != r.Desc.ActiveLow, err
}

func (r *ResetBit) ResetIn() error {
	log.Debug("%s: reset in", r.Desc.Name)
	return r.Reg.Set(!r.Desc.ActiveLow)
}

func (r *ResetBit) ResetOut() error {
	log.Debug("%s: reset out", r.Desc.Name)
	return r.Reg.Set(r.Desc.ActiveLow)
}

// SysfsGpio is a gpio of the host cpu numbered by the kernel gpio
// subsystem.
type SysfsGpio struct {
	Desc inventory.GpioDesc
	Pin  gpio.Pin
}

func NewSysfsGpio(desc inventory.GpioDesc) *SysfsGpio {
	return &SysfsGpio{Desc: desc, Pin: gpio.Pin(desc.Bit)}
}

func (g *SysfsGpio) Name() string      { return g.Desc.Name }
func (g *SysfsGpio) Addr() uint32      { return g.Desc.Addr }
func (g *SysfsGpio) Bit() uint         { return g.Desc.Bit }
func (g *SysfsGpio) IsRo() bool        { return g.Desc.RO }
func (g *SysfsGpio) IsActiveLow() bool { return g.Desc.ActiveLow }

func (g *SysfsGpio) RawValue() (uint32, error) {
	v, err := g.Pin.Value()
	if v {
		return 1, err
	}
	return 0, err
}

func (g *SysfsGpio) IsActive() (bool, error) {
	v, err := g.Pin.Value()
	return v != g.Desc.ActiveLow, err
}

func (g *SysfsGpio) SetActive(on bool) error {
	if g.Desc.RO {
		return fmt.Errorf("%s: read only gpio", g.Name())
	}
	return g.Pin.SetValue(on != g.Desc.ActiveLow)
}
