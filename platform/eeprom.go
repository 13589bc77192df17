// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/prefdl"
)

const (
	SyseepromFile   = ".syseeprom"
	PrefdlBinFile   = ".system-prefdl-bin"
	PrefdlTextFile  = ".system-prefdl"
	SystemEepromBus = 1
	SystemEepromDev = 0x52
	systemEepromLen = 256
)

// SimulatedPrefdl is the eeprom every box reports in simulation.
func SimulatedPrefdl() *prefdl.Prefdl {
	return prefdl.FromMap(map[string]string{
		"SKU":   "simulation",
		"HwApi": "42",
	})
}

// ReadEeprom reads the raw system eeprom.
var ReadEeprom = func() ([]byte, error) {
	return readEeprom(address.I2c(SystemEepromBus, SystemEepromDev), systemEepromLen)
}

// readEeprom reads size bytes through the kernel eeprom driver when bound,
// otherwise directly over SMBus.
func readEeprom(addr address.I2cAddr, size int) ([]byte, error) {
	path := addr.SysfsPath() + "/eeprom"
	if sysfs.Exists(path) {
		return os.ReadFile(sysfs.Path(path))
	}
	d := driver.NewI2cUser("eeprom", addr)
	defer d.Close()
	var b []byte
	for off := 0; off < size; off += 32 {
		chunk, err := d.ReadBytes(uint8(off), 32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", addr, err)
		}
		b = append(b, chunk...)
	}
	return b, nil
}

// ReadPrefdl decodes the system prefdl. The text cache under etc wins;
// flash copies come next and the eeprom last. Whatever is decoded from
// flash or eeprom is cached as text.
func ReadPrefdl() (*prefdl.Prefdl, error) {
	c := config.Get()
	if c.InSimulation() {
		return SimulatedPrefdl(), nil
	}
	cache := c.Etc(SyseepromFile)
	if st, err := os.Stat(cache); err == nil && st.Size() > 0 {
		if p, err := prefdl.ReadTextFile(cache); err == nil {
			return p, nil
		}
		log.Warning("%s: unreadable cache, ignored", cache)
	}
	p, err := readPrefdlSource(c)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		log.Error("system prefdl: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(cache), 0755); err != nil {
		log.Warning("%s: %v", cache, err)
	} else if err := p.WriteTextFile(cache); err != nil {
		log.Warning("%s: %v", cache, err)
	}
	return p, nil
}

func readPrefdlSource(c *config.Config) (*prefdl.Prefdl, error) {
	if path := c.Flash(PrefdlBinFile); exists(path) {
		return prefdl.ReadFile(path, 0)
	}
	if path := c.Flash(PrefdlTextFile); exists(path) {
		return prefdl.ReadTextFile(path)
	}
	b, err := ReadEeprom()
	if err != nil {
		return nil, err
	}
	return prefdl.Decode(b)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var sysEeprom struct {
	sync.Mutex
	p *prefdl.Prefdl
}

// SystemEeprom returns the cached system prefdl, reading it once. A box
// with an unreadable eeprom reports an empty one.
func SystemEeprom() *prefdl.Prefdl {
	sysEeprom.Lock()
	defer sysEeprom.Unlock()
	if sysEeprom.p == nil {
		p, err := ReadPrefdl()
		if err != nil {
			log.Error("system eeprom: %v", err)
			p = prefdl.FromMap(nil)
		}
		sysEeprom.p = p
	}
	return sysEeprom.p
}

// ResetSystemEeprom drops the cached system prefdl.
func ResetSystemEeprom() {
	sysEeprom.Lock()
	defer sysEeprom.Unlock()
	sysEeprom.p = nil
}

// ErrNoPrefdl is returned by readers of cards whose eeprom is absent.
var ErrNoPrefdl = errors.New("no prefdl")

// Eeprom is an identity eeprom of a card or chassis holding a prefdl.
type Eeprom struct {
	component.Component
	Addr  address.I2cAddr
	Label string
	// Read returns the raw content; the kernel driver or SMBus if nil.
	Read func() ([]byte, error)
}

func NewEeprom(parent component.Node, addr address.I2cAddr, label string) *Eeprom {
	e := &Eeprom{Addr: addr, Label: label}
	e.Component.Name = fmt.Sprintf("Eeprom(%s, addr=%s)", label, addr)
	return component.Add(parent, e)
}

// Prefdl decodes the eeprom; a blank one is ErrNoPrefdl.
func (e *Eeprom) Prefdl() (*prefdl.Prefdl, error) {
	read := e.Read
	if read == nil {
		read = func() ([]byte, error) { return readEeprom(e.Addr, systemEepromLen) }
	}
	b, err := read()
	if err != nil {
		return nil, err
	}
	if blank(b) {
		return nil, fmt.Errorf("%s: %w", e, ErrNoPrefdl)
	}
	p, err := prefdl.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e, err)
	}
	return p, nil
}

func blank(b []byte) bool {
	for _, c := range b {
		if c != 0xff && c != 0 {
			return false
		}
	}
	return true
}
