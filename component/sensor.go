// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package component

import (
	"fmt"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/inventory"
)

// I2cChip is an i2c client handled by a hwmon kernel driver: thermal
// diodes and fan controllers.
type I2cChip struct {
	Component
	Kernel *driver.I2cKernel
	Temps  []*driver.Temp
	Fans   []*driver.Fan
}

// NewI2cChip binds module to the client named name at addr.
func NewI2cChip(parent Node, module, name string, addr address.I2cAddr) *I2cChip {
	k := driver.NewI2cKernel(module, name, addr)
	c := &I2cChip{Kernel: k}
	c.Component.Name = fmt.Sprintf("%s(addr=%s)", name, addr)
	c.Component.Driver = driver.Select(config.Get().InSimulation(), k)
	return Add(parent, c)
}

// NewSensor declares a thermal chip and its diodes.
func NewSensor(parent Node, module string, addr address.I2cAddr, sensors ...inventory.SensorDesc) *I2cChip {
	c := NewI2cChip(parent, module, module, addr)
	c.Priority = Thermal
	for _, s := range sensors {
		c.AddTemp(s)
	}
	return c
}

func (c *I2cChip) AddTemp(desc inventory.SensorDesc) *driver.Temp {
	t := driver.NewTemp(&c.Kernel.Kernel, desc)
	c.Temps = append(c.Temps, t)
	c.Inventory().AddTemp(t)
	return t
}

func (c *I2cChip) AddFan(desc inventory.FanDesc, led inventory.Led) *driver.Fan {
	f := driver.NewFan(&c.Kernel.Kernel, desc, led)
	c.Fans = append(c.Fans, f)
	c.Inventory().AddFan(f)
	return f
}
