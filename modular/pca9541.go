// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/internal/wait"
)

const (
	pcaCtrlReg = 0x01

	pcaMyBus  = 1 << 0
	pcaNMyBus = 1 << 1
	pcaBusOn  = 1 << 2
	pcaNBusOn = 1 << 3
)

// pcaCtrlCmds maps the low nibble of the control register to the command
// that requests the bus; zero means leave it alone.
var pcaCtrlCmds = [16]uint8{
	0x4, 0x4, 0x5, 0x5, 0, 0x4, 0x5, 0, 0, 0, 0x1, 0, 0, 0, 0x1, 0x1,
}

// PcaSimBus is the downstream bus a kernel bound arbiter reports in
// simulation.
const PcaSimBus = 42

// Pca9541 is the two master bus arbiter shared by both supervisors in
// front of the devices of a card or a power supply. In user mode the
// supervisor arbitrates through SMBus and the devices behind keep the
// arbiter bus; in kernel mode the mux driver creates a channel adapter.
type Pca9541 struct {
	component.Component
	Addr   address.I2cAddr
	Kernel bool
	Dev    *driver.I2cUser
	// Retries of the arbitration, Delay apart.
	Retries int
	Delay   time.Duration
}

func NewPca9541(parent component.Node, addr address.I2cAddr, kernel bool) *Pca9541 {
	p := &Pca9541{
		Addr:    addr,
		Kernel:  kernel,
		Dev:     driver.NewI2cUser("pca9541", addr),
		Retries: 10,
		Delay:   time.Millisecond,
	}
	p.Component.Name = fmt.Sprintf("Pca9541(addr=%s)", addr)
	if kernel {
		k := driver.NewI2cKernel("i2c-mux-pca9541", "pca9541", addr)
		p.Component.Driver = driver.Select(config.Get().InSimulation(), k)
	} else {
		p.Component.Driver = p.Dev
	}
	return component.Add(parent, p)
}

// BusId is the bus of the devices behind the arbiter.
func (p *Pca9541) BusId() int {
	if !p.Kernel {
		return p.Addr.BusId()
	}
	if config.Get().InSimulation() {
		return PcaSimBus
	}
	link, err := os.Readlink(sysfs.Path(p.Addr.SysfsPath(), "channel-0"))
	if err != nil {
		log.Debug("%s: %v", p, err)
		return -1
	}
	id, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(link), "i2c-"))
	if err != nil {
		return -1
	}
	return id
}

// I2cAddr is a device behind the arbiter.
func (p *Pca9541) I2cAddr(addr uint16) address.I2cAddr {
	return address.I2cAddr{Bus: p, Address: addr, Block: p.Addr.Block}
}

// Ping reports whether the arbiter answers, which tells a card is
// plugged. The kernel driver owns the bus in kernel mode.
func (p *Pca9541) Ping() bool {
	if p.Kernel {
		return true
	}
	_, err := p.Dev.ReadByte()
	return err == nil
}

func (p *Pca9541) arbitrate() (bool, error) {
	ctrl, err := p.Dev.ReadByteData(pcaCtrlReg)
	if err != nil {
		return false, err
	}
	if cmd := pcaCtrlCmds[ctrl&0xf]; cmd != 0 {
		if err = p.Dev.WriteByteData(pcaCtrlReg, cmd); err != nil {
			return false, err
		}
	}
	if ctrl, err = p.Dev.ReadByteData(pcaCtrlReg); err != nil {
		return false, err
	}
	busOn := (ctrl&pcaBusOn != 0) != (ctrl&pcaNBusOn != 0)
	myBus := (ctrl&pcaMyBus != 0) == (ctrl&pcaNMyBus != 0)
	return busOn && myBus, nil
}

// TakeOwnership requests the downstream bus for this supervisor.
func (p *Pca9541) TakeOwnership() error {
	if p.Kernel {
		return nil
	}
	var last error
	ok := wait.Retrying{Delay: p.Delay, MaxAttempts: p.Retries}.Do(
		func(int) bool {
			owned, err := p.arbitrate()
			last = err
			return owned
		})
	if ok {
		return nil
	}
	if last != nil {
		return fmt.Errorf("%s: arbitration: %w", p, last)
	}
	return fmt.Errorf("%s: bus owned by peer supervisor", p)
}
