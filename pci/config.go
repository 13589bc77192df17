// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pci

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/resource"
)

const (
	CapPciExpress = 0x10

	regStatus     = 0x06
	regCapPtr     = 0x34
	statusCapList = 1 << 4

	pcieLinkControl = 0x10
	linkDisable     = 1 << 4
)

// ConfigTimeout bounds the wait for the config attribute of a device.
var ConfigTimeout = 5 * time.Second

// Config is the configuration space of a function through its sysfs
// config attribute.
type Config struct {
	path func() string

	mu  sync.Mutex
	res resource.Resource
}

func NewConfig(dir func() string) *Config {
	return &Config{path: dir}
}

func (c *Config) do(fn func(resource.Resource) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.res == nil {
		path := filepath.Join(c.path(), "config")
		if err := wait.Files(ConfigTimeout, path); err != nil {
			return err
		}
		r, err := resource.OpenFile(sysfs.Path(path))
		if err != nil {
			return err
		}
		c.res = r
	}
	return fn(c.res)
}

func (c *Config) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.res == nil {
		return nil
	}
	err := c.res.Close()
	c.res = nil
	return err
}

func (c *Config) Read8(addr uint32) (v uint8, err error) {
	err = c.do(func(r resource.Resource) (e error) {
		v, e = r.Read8(addr)
		return
	})
	return
}

func (c *Config) Read16(addr uint32) (v uint16, err error) {
	err = c.do(func(r resource.Resource) (e error) {
		v, e = r.Read16(addr)
		return
	})
	return
}

func (c *Config) Write16(addr uint32, v uint16) error {
	return c.do(func(r resource.Resource) error {
		return r.Write16(addr, v)
	})
}

// FindCapability walks the capability list for id and returns its
// offset, or 0 when absent.
func (c *Config) FindCapability(id uint8) (uint32, error) {
	status, err := c.Read16(regStatus)
	if err != nil {
		return 0, err
	}
	if status&statusCapList == 0 {
		return 0, nil
	}
	ptr, err := c.Read8(regCapPtr)
	if err != nil {
		return 0, err
	}
	off := uint32(ptr & 0xfc)
	for seen := 0; off != 0 && seen < 48; seen++ {
		cur, err := c.Read8(off)
		if err != nil {
			return 0, err
		}
		if cur == id {
			return off, nil
		}
		next, err := c.Read8(off + 1)
		if err != nil {
			return 0, err
		}
		off = uint32(next)
	}
	return 0, nil
}

func (c *Config) linkControl() (uint32, error) {
	off, err := c.FindCapability(CapPciExpress)
	if err != nil {
		return 0, err
	}
	if off == 0 {
		return 0, fmt.Errorf("%s: no PCIe capability", c.path())
	}
	return off + pcieLinkControl, nil
}

func (c *Config) LinkDisabled() (bool, error) {
	reg, err := c.linkControl()
	if err != nil {
		return false, err
	}
	v, err := c.Read16(reg)
	return v&linkDisable != 0, err
}

// SetLinkDisabled toggles the link disable bit when it differs.
func (c *Config) SetLinkDisabled(disabled bool) error {
	reg, err := c.linkControl()
	if err != nil {
		return err
	}
	v, err := c.Read16(reg)
	if err != nil {
		return err
	}
	if (v&linkDisable != 0) == disabled {
		return nil
	}
	if disabled {
		v |= linkDisable
	} else {
		v &^= linkDisable
	}
	return c.Write16(reg, v)
}

func waitGone(paths []string, desc string) error {
	return wait.For(func() bool {
		for _, p := range paths {
			if sysfs.Exists(p) {
				return false
			}
		}
		return true
	}, desc)
}
