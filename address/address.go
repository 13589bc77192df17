// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package address provides the typed hardware addresses of platform
// components. Each has a canonical string and, where the kernel exposes one,
// a sysfs directory.
package address

import (
	"fmt"
	"path/filepath"
)

// SysfsPath is implemented by addresses with a kernel device directory.
type SysfsPath interface {
	SysfsPath() string
}

// Path is a literal sysfs directory.
type Path string

func (p Path) String() string    { return string(p) }
func (p Path) SysfsPath() string { return string(p) }

type PciAddr struct {
	Domain, Bus, Device, Func int
}

func (a PciAddr) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%d", a.Domain, a.Bus, a.Device, a.Func)
}

func (a PciAddr) SysfsPath() string {
	return filepath.Join("/sys/bus/pci/devices", a.String())
}

// ParsePci parses the canonical "dddd:bb:dd.f" form.
func ParsePci(s string) (PciAddr, error) {
	var a PciAddr
	_, err := fmt.Sscanf(s, "%04x:%02x:%02x.%d",
		&a.Domain, &a.Bus, &a.Device, &a.Func)
	if err != nil {
		return a, fmt.Errorf("%s: invalid pci address: %w", s, err)
	}
	return a, nil
}

type MdioClause int

const (
	C22 MdioClause = 1
	C45 MdioClause = 2
)

func (c MdioClause) String() string {
	switch c {
	case C22:
		return "c22"
	case C45:
		return "c45"
	}
	return fmt.Sprintf("MdioClause(%d)", int(c))
}

type MdioSpeed int

const (
	S20 MdioSpeed = iota
	S2_5
	S5
	S10
)

// MdioRef names a PHY behind an mdio master bus.
type MdioRef struct {
	Master, Bus, DevIdx, Port, Device int
	Clause                            MdioClause
}

func (m MdioRef) String() string {
	return fmt.Sprintf("mdio%d_%d_%d", m.Master, m.Bus, m.DevIdx)
}

// GpioRef is a single bit of a register.
type GpioRef struct {
	Addr      uint32
	Bit       uint
	ActiveLow bool
	RO        bool
}

func (g GpioRef) String() string {
	return fmt.Sprintf("%#x.%d", g.Addr, g.Bit)
}
