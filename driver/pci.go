// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/resource"
)

// BarTimeout bounds the wait for the BAR attribute of a new device.
var BarTimeout = 5 * time.Second

// PciKernel maps BAR0 of a PCI device and accesses it 32 bits at a time.
type PciKernel struct {
	Kernel
	Addr address.PciAddr
	Bar  string

	mu  sync.Mutex
	res resource.Resource
}

func NewPciKernel(module string, addr address.PciAddr) *PciKernel {
	d := &PciKernel{
		Kernel: *NewKernel(module),
		Addr:   addr,
		Bar:    "resource0",
	}
	d.Kernel.Path = addr.SysfsPath()
	return d
}

func (d *PciKernel) String() string {
	return fmt.Sprintf("PciKernel(module=%s, addr=%s)", d.Module, d.Addr)
}

func (d *PciKernel) resource() (resource.Resource, error) {
	if d.res != nil {
		return d.res, nil
	}
	path := filepath.Join(d.Addr.SysfsPath(), d.Bar)
	if err := wait.Files(BarTimeout, path); err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	m, err := resource.OpenMmap(sysfs.Path(path))
	if err != nil {
		return nil, err
	}
	d.res = m
	return m, nil
}

func (d *PciKernel) Read(addr uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.resource()
	if err != nil {
		return 0, err
	}
	return r.Read32(addr)
}

func (d *PciKernel) Write(addr, v uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := d.resource()
	if err != nil {
		return err
	}
	return r.Write32(addr, v)
}

// Clean unmaps the BAR before unloading the module.
func (d *PciKernel) Clean() error {
	d.mu.Lock()
	if d.res != nil {
		d.res.Close()
		d.res = nil
	}
	d.mu.Unlock()
	return d.Kernel.Clean()
}
