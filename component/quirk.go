// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package component

import (
	"fmt"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
)

// Quirk is a one shot hardware fix-up. Delayed quirks run from the
// daemon once the platform is up instead of during setup.
type Quirk interface {
	Run(Node) error
	Delayed() bool
	String() string
}

// ApplyQuirks runs the quirks of n whose Delayed matches delayed.
func ApplyQuirks(n Node, delayed bool) error {
	for _, q := range n.Base().Quirks {
		if q.Delayed() != delayed {
			continue
		}
		log.Info("%s: applying quirk %s", n.Base(), q)
		if err := q.Run(n); err != nil {
			return fmt.Errorf("%s: quirk %s: %w", n.Base(), q, err)
		}
	}
	return nil
}

// Cmd runs an external command.
type Cmd struct {
	Argv        []string
	Description string
	Late        bool
}

func (q *Cmd) Run(Node) error {
	if config.Get().InSimulation() {
		log.Debug("simulating %s", q.Argv)
		return nil
	}
	return driver.Run(q.Argv[0], q.Argv[1:]...)
}
func (q *Cmd) Delayed() bool  { return q.Late }
func (q *Cmd) String() string { return q.Description }

// PciConfig applies a setpci expression to a device.
func PciConfig(addr fmt.Stringer, expr, description string) *Cmd {
	return &Cmd{
		Argv:        []string{"setpci", "-s", addr.String(), expr},
		Description: description,
	}
}

// I2cWriter is the register access i2c quirks need from a driver.
type I2cWriter interface {
	WriteByteData(cmd, v uint8) error
	WriteBytes(cmd uint8, b []byte) error
}

// I2cByte writes one register of the component's i2c client.
type I2cByte struct {
	Reg         uint8
	Data        uint8
	Description string
	Late        bool
}

func (q *I2cByte) Delayed() bool { return q.Late }

func (q *I2cByte) String() string {
	if len(q.Description) > 0 {
		return q.Description
	}
	return fmt.Sprintf("I2cByte(%#02x)", q.Reg)
}

func (q *I2cByte) Run(n Node) error {
	w, err := i2cWriter(n)
	if err != nil {
		return err
	}
	return w.WriteByteData(q.Reg, q.Data)
}

// I2cBlock writes a length prefixed block to the component's client.
type I2cBlock struct {
	Reg         uint8
	Data        []byte
	Description string
	Late        bool
}

func (q *I2cBlock) Delayed() bool { return q.Late }

func (q *I2cBlock) String() string {
	if len(q.Description) > 0 {
		return q.Description
	}
	return fmt.Sprintf("I2cBlock(%#02x)", q.Reg)
}

func (q *I2cBlock) Run(n Node) error {
	w, err := i2cWriter(n)
	if err != nil {
		return err
	}
	return w.WriteBytes(q.Reg, append([]byte{uint8(len(q.Data))}, q.Data...))
}

func i2cWriter(n Node) (I2cWriter, error) {
	if w, ok := driver.Unwrap(n.Base().Driver).(I2cWriter); ok {
		return w, nil
	}
	return nil, fmt.Errorf("%s: no i2c driver", n.Base())
}
