// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"fmt"

	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/lock"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/pci"
	"github.com/platinasystems/sysplat/register"
)

// Global address space of the switchtec management function.
const (
	gasInputData   = 0x000
	gasCommand     = 0x800
	gasStatus      = 0x804
	gasReturnValue = 0x808

	gasDone = 2

	mrpcPortPartP2P = 12

	p2pBind   = 0
	p2pUnbind = 1

	DefaultUnbindFlags = 0x2
)

// MicrosemiPortDesc binds a switch port to a downstream port of a
// partition.
type MicrosemiPortDesc struct {
	Port, Dsp, Partition int
}

// Microsemi is the supervisor PCIe switch fanning out to the card slots.
// Cards are attached by binding their port to the supervisor partition
// through MRPC commands.
type Microsemi struct {
	component.Component
	// Mgmt is the management function; Bridge the switch itself.
	Mgmt   *pci.Port
	Bridge *pci.Bridge
	Dev    register.Device
	// Mem is the simulated address space, nil on hardware.
	Mem *register.Memory

	ports map[int]*MicrosemiPort
}

// MicrosemiPort is a downstream port wired to a slot.
type MicrosemiPort struct {
	Desc MicrosemiPortDesc
	Pci  *pci.Port
}

// NewMicrosemi declares the switch behind root port rp: function 0 of the
// endpoint is the upstream bridge, function 1 the management function.
func NewMicrosemi(parent component.Node, rp *pci.Port) *Microsemi {
	m := &Microsemi{
		Mgmt:   rp.Endpoint(0, 1),
		Bridge: rp.Switch(0, 0),
		ports:  make(map[int]*MicrosemiPort),
	}
	m.Component.Name = "Microsemi(" + rp.String() + ")"
	if config.Get().InSimulation() {
		m.Mem = register.NewMemory()
		m.Mem.Set(gasStatus, gasDone)
		m.Dev = m.Mem
	}
	return component.Add(parent, m)
}

func (m *Microsemi) device() (register.Device, error) {
	if m.Dev != nil {
		return m.Dev, nil
	}
	addr, err := m.Mgmt.Addr()
	if err != nil {
		return nil, err
	}
	m.Dev = driver.NewPciKernel("", addr)
	return m.Dev, nil
}

// AddPort wires slotId to a downstream port.
func (m *Microsemi) AddPort(slotId int, desc MicrosemiPortDesc) *pci.Port {
	p := m.Bridge.DownstreamPort(desc.Port, desc.Dsp, 0)
	p.Label = fmt.Sprint("slot", slotId)
	m.ports[slotId] = &MicrosemiPort{Desc: desc, Pci: p}
	return p
}

func (m *Microsemi) port(slotId int) (*MicrosemiPort, error) {
	p, found := m.ports[slotId]
	if !found {
		return nil, fmt.Errorf("%s: slot %d has no downstream port", m, slotId)
	}
	return p, nil
}

func (m *Microsemi) lockPath() string {
	return config.Get().Tmpfs(fmt.Sprintf("Microsemi_%s.lock", m.Mgmt))
}

// gas runs an MRPC command and returns its return value.
func (m *Microsemi) gas(cmd uint32, data ...uint32) (v uint32, err error) {
	dev, err := m.device()
	if err != nil {
		return 0, err
	}
	err = lock.New(m.lockPath()).Do(func() error {
		for i, x := range data {
			if err := dev.Write(gasInputData+uint32(i)*4, x); err != nil {
				return err
			}
		}
		if err := dev.Write(gasCommand, cmd); err != nil {
			return err
		}
		var rerr error
		if err := wait.For(func() bool {
			var status uint32
			status, rerr = dev.Read(gasStatus)
			return rerr == nil && status == gasDone
		}, fmt.Sprint(m, " mrpc completion")); err != nil {
			if rerr != nil {
				return rerr
			}
			return err
		}
		v, rerr = dev.Read(gasReturnValue)
		return rerr
	})
	return
}

// Bind attaches the port of slotId to its partition.
func (m *Microsemi) Bind(slotId int) error {
	p, err := m.port(slotId)
	if err != nil {
		return err
	}
	d := p.Desc
	data := p2pBind | uint32(d.Partition)<<8 | uint32(d.Dsp)<<16 | uint32(d.Port)<<24
	log.Debug("%s: bind slot %d: %+v", m, slotId, d)
	rv, err := m.gas(mrpcPortPartP2P, data)
	if err != nil {
		return fmt.Errorf("%s: bind slot %d: %w", m, slotId, err)
	}
	if rv != 0 {
		log.Debug("%s: bind slot %d returned %#x", m, slotId, rv)
	}
	return nil
}

func (m *Microsemi) Unbind(slotId int, flags uint32) error {
	p, err := m.port(slotId)
	if err != nil {
		return err
	}
	d := p.Desc
	data := p2pUnbind | uint32(d.Partition)<<8 | uint32(d.Dsp)<<16 | flags<<24
	log.Debug("%s: unbind slot %d: %+v", m, slotId, d)
	rv, err := m.gas(mrpcPortPartP2P, data)
	if err != nil {
		return fmt.Errorf("%s: unbind slot %d: %w", m, slotId, err)
	}
	if rv != 0 {
		log.Debug("%s: unbind slot %d returned %#x", m, slotId, rv)
	}
	return nil
}
