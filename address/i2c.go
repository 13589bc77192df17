// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package address

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/platinasystems/sysplat/internal/sysfs"
)

const AdapterClass = "/sys/class/i2c-adapter"

// Bus resolves the kernel i2c bus number, which for adapters created at
// runtime is only known after setup.
type Bus interface {
	BusId() int
}

// FixedBus is a kernel bus number known in advance.
type FixedBus int

func (b FixedBus) BusId() int { return int(b) }

// I2cAddr is a 7 bit device address on a bus.
type I2cAddr struct {
	Bus     Bus
	Address uint16
	// Block reports SMBus block transfer support of the adapter.
	Block bool
}

func I2c(bus int, addr uint16) I2cAddr {
	return I2cAddr{Bus: FixedBus(bus), Address: addr, Block: true}
}

func (a I2cAddr) BusId() int { return a.Bus.BusId() }

func (a I2cAddr) String() string {
	return fmt.Sprintf("%d-00%02x", a.Bus.BusId(), a.Address)
}

func (a I2cAddr) GoString() string {
	return fmt.Sprintf("I2cAddr(%d, %#x)", a.Bus.BusId(), a.Address)
}

func (a I2cAddr) SysfsPath() string {
	return filepath.Join("/sys/bus/i2c/devices", a.String())
}

// Rebase returns the address moved to the given bus, as needed when an
// adapter's kernel id is learned during setup.
func (a I2cAddr) Rebase(bus Bus) I2cAddr {
	a.Bus = bus
	return a
}

var adapters struct {
	sync.Mutex
	ids   []int
	names map[int]string
}

// Adapters returns the kernel i2c adapters by bus number. The listing is
// cached until force is set.
func Adapters(force bool) (map[int]string, error) {
	adapters.Lock()
	defer adapters.Unlock()
	if adapters.names != nil && !force {
		return adapters.names, nil
	}
	entries, err := sysfs.ReadDir(AdapterClass)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string)
	var ids []int
	for _, e := range entries {
		id, err := strconv.Atoi(strings.TrimPrefix(e, "i2c-"))
		if err != nil {
			continue
		}
		name, err := sysfs.ReadString(filepath.Join(AdapterClass, e, "name"))
		if err != nil {
			continue
		}
		names[id] = name
		ids = append(ids, id)
	}
	sort.Ints(ids)
	adapters.ids, adapters.names = ids, names
	return names, nil
}

// BusFromName returns the idx'th adapter, in bus order, with the given
// name or -1.
func BusFromName(name string, idx int, force bool) int {
	if _, err := Adapters(force); err != nil {
		return -1
	}
	adapters.Lock()
	defer adapters.Unlock()
	for _, id := range adapters.ids {
		if adapters.names[id] != name {
			continue
		}
		if idx == 0 {
			return id
		}
		idx--
	}
	return -1
}

// NamedBus is an adapter identified by its kernel name, such as
// "SCD 0000:02:00.0 SMBus master 0 bus 3".
type NamedBus struct {
	Name string
	Idx  int
	// Simulated buses resolve to 1.
	Simulated bool

	mu sync.Mutex
	id int
}

func NewNamedBus(name string, simulated bool) *NamedBus {
	return &NamedBus{Name: name, Simulated: simulated, id: -1}
}

func (b *NamedBus) BusId() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.id < 0 {
		if b.Simulated {
			b.id = 1
		} else {
			b.id = BusFromName(b.Name, b.Idx, false)
		}
	}
	return b.id
}

// Refresh forgets the resolved id and re-enumerates the adapters.
func (b *NamedBus) Refresh() {
	b.mu.Lock()
	b.id = -1
	b.mu.Unlock()
	if !b.Simulated {
		Adapters(true)
	}
}

func (b *NamedBus) I2cAddr(addr uint16) I2cAddr {
	return I2cAddr{Bus: b, Address: addr, Block: true}
}

func (b *NamedBus) String() string { return b.Name }
