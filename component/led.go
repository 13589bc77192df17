// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package component

import (
	"fmt"

	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/register"
)

// BitLed is a single color led lit by a register bit.
type BitLed struct {
	name  string
	color inventory.Color
	Bit   *register.BitAccessor
}

func NewBitLed(name string, color inventory.Color, bit *register.BitAccessor) *BitLed {
	return &BitLed{name: name, color: color, Bit: bit}
}

func (l *BitLed) Name() string   { return l.name }
func (l *BitLed) IsStatus() bool { return false }

func (l *BitLed) Color() (inventory.Color, error) {
	on, err := l.Bit.Get()
	if err != nil || !on {
		return inventory.Off, err
	}
	return l.color, nil
}

func (l *BitLed) SetColor(c inventory.Color) error {
	switch c {
	case inventory.Off:
		return l.Bit.Set(false)
	case l.color:
		return l.Bit.Set(true)
	}
	return fmt.Errorf("%s: unsupported color %s", l.name, c)
}

// RedGreenLed mixes a red and a green bit; both lit is amber.
type RedGreenLed struct {
	name       string
	Red, Green *register.BitAccessor
}

func NewRedGreenLed(name string, red, green *register.BitAccessor) *RedGreenLed {
	return &RedGreenLed{name: name, Red: red, Green: green}
}

func (l *RedGreenLed) Name() string   { return l.name }
func (l *RedGreenLed) IsStatus() bool { return true }

func (l *RedGreenLed) Color() (inventory.Color, error) {
	red, err := l.Red.Get()
	if err != nil {
		return inventory.Off, err
	}
	green, err := l.Green.Get()
	if err != nil {
		return inventory.Off, err
	}
	switch {
	case red && green:
		return inventory.Amber, nil
	case red:
		return inventory.Red, nil
	case green:
		return inventory.Green, nil
	}
	return inventory.Off, nil
}

func (l *RedGreenLed) SetColor(c inventory.Color) error {
	var red, green bool
	switch c {
	case inventory.Off:
	case inventory.Red:
		red = true
	case inventory.Green:
		green = true
	case inventory.Amber:
		red, green = true, true
	default:
		return fmt.Errorf("%s: unsupported color %s", l.name, c)
	}
	if err := l.Red.Set(red); err != nil {
		return err
	}
	return l.Green.Set(green)
}
