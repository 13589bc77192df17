// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pci models the PCIe topology between the cpu and the devices a
// platform manages: root bridges, their ports, switches and endpoints.
// Bus numbers are read from sysfs on demand since the kernel renumbers
// them across hotplug.
package pci

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/logging"
)

var log = logging.Get("pci")

var (
	// ErrNotReady means the port exists but the kernel has not assigned
	// the buses below it yet.
	ErrNotReady   = errors.New("pci port not ready")
	ErrNotPresent = errors.New("pci device not present")
)

// Rescan asks the kernel to enumerate the PCI buses again.
func Rescan() error {
	log.Info("triggering kernel pci rescan")
	return sysfs.WriteString("/sys/bus/pci/rescan", "1")
}

// upstream is what a port hangs from.
type upstream interface {
	domain() int
	downstreamBus() (int, error)
	dir() string
	Reachable() bool
}

// Root holds the root bridges of the host.
type Root struct {
	component.Component
	roots map[[2]int]*RootBridge
}

func NewRoot() *Root {
	return &Root{
		Component: component.Component{Name: "PciRoot"},
		roots:     make(map[[2]int]*RootBridge),
	}
}

func (r *Root) RootBridge(domain, bus int) *RootBridge {
	k := [2]int{domain, bus}
	rb := r.roots[k]
	if rb == nil {
		rb = component.Add(r, &RootBridge{
			Component: component.Component{
				Name: fmt.Sprintf("pci%04x:%02x", domain, bus),
			},
			Domain: domain,
			Bus:    bus,
			ports:  make(map[[2]int]*Port),
		})
		r.roots[k] = rb
	}
	return rb
}

func (r *Root) RootPort(domain, bus, device, fn int) *Port {
	return r.RootBridge(domain, bus).Port(device, fn)
}

func (r *Root) Bridge(domain, bus, device, fn int) *Bridge {
	return r.RootBridge(domain, bus).Bridge(device, fn)
}

// RootBridge is a host bridge, /sys/devices/pciDDDD:BB.
type RootBridge struct {
	component.Component
	Domain, Bus int
	ports       map[[2]int]*Port
}

func (rb *RootBridge) domain() int                 { return rb.Domain }
func (rb *RootBridge) downstreamBus() (int, error) { return rb.Bus, nil }
func (rb *RootBridge) Reachable() bool             { return true }
func (rb *RootBridge) dir() string                 { return rb.SysfsPath() }

func (rb *RootBridge) SysfsPath() string {
	return filepath.Join("/sys/devices", rb.Name)
}

// Port returns the root port at device.fn, creating it once.
func (rb *RootBridge) Port(device, fn int) *Port {
	k := [2]int{device, fn}
	p := rb.ports[k]
	if p == nil {
		p = component.Add(rb, newPort(rb, device, fn))
		rb.ports[k] = p
	}
	return p
}

// Bridge returns a bridge whose upstream is the root port at device.fn.
func (rb *RootBridge) Bridge(device, fn int) *Bridge {
	return rb.Port(device, fn).bridge()
}

// LinkSwitch enables and disables a port through a vendor interface
// instead of the PCIe link control register.
type LinkSwitch interface {
	EnablePort(*Port) error
	DisablePort(*Port) error
}

// Port is a PCI function: a root port, a switch port or an endpoint.
type Port struct {
	component.Component
	Device, Func int
	// Index is the port number within its switch.
	Index int
	// Label names switch ports.
	Label string
	// Link overrides the link control of the port.
	Link LinkSwitch

	up        upstream
	simulated bool
	ports     map[[2]int]*Port
	br        *Bridge
	cfg       *Config
}

func newPort(up upstream, device, fn int) *Port {
	p := &Port{
		Device:    device,
		Func:      fn,
		up:        up,
		simulated: config.Get().InSimulation(),
		ports:     make(map[[2]int]*Port),
	}
	p.Component.Name = fmt.Sprintf("PciPort(%02x.%d)", device, fn)
	return p
}

// Bus is the bus the port sits on.
func (p *Port) Bus() (int, error) { return p.up.downstreamBus() }

func (p *Port) Addr() (address.PciAddr, error) {
	bus, err := p.Bus()
	if err != nil {
		return address.PciAddr{}, err
	}
	return address.PciAddr{
		Domain: p.up.domain(),
		Bus:    bus,
		Device: p.Device,
		Func:   p.Func,
	}, nil
}

// Address is Addr for declarations made before the kernel enumerated the
// port; the bus is left zero when unknown.
func (p *Port) Address() address.PciAddr {
	a, err := p.Addr()
	if err != nil {
		log.Debug("%s: %v", p.Name, err)
		return address.PciAddr{Domain: p.up.domain(), Device: p.Device, Func: p.Func}
	}
	return a
}

func (p *Port) String() string {
	a, err := p.Addr()
	if err != nil {
		return fmt.Sprintf("----:--:%02x.%d", p.Device, p.Func)
	}
	return a.String()
}

// SysfsPath nests the port below the directory of its upstream.
func (p *Port) SysfsPath() string {
	return filepath.Join(p.up.dir(), p.String())
}

func (p *Port) dir() string     { return p.SysfsPath() }
func (p *Port) domain() int     { return p.up.domain() }
func (p *Port) Upstream() *Port { u, _ := p.up.(*Port); return u }
func (p *Port) Config() *Config {
	if p.cfg == nil {
		p.cfg = NewConfig(p.SysfsPath)
	}
	return p.cfg
}

func (p *Port) downstreamBus() (int, error) { return p.Secondary() }

func (p *Port) readBus(attr string, sim int) (int, error) {
	if p.simulated {
		return sim, nil
	}
	v, err := sysfs.ReadInt(filepath.Join(p.SysfsPath(), attr))
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%s: %s: %w", p, attr, ErrNotReady)
	}
	return v, err
}

// Secondary reads the first bus behind the port.
func (p *Port) Secondary() (int, error) { return p.readBus("secondary_bus_number", 1) }

// Subordinate reads the last bus behind the port.
func (p *Port) Subordinate() (int, error) { return p.readBus("subordinate_bus_number", 255) }

// Reachable reports whether the port and every upstream are enumerated.
func (p *Port) Reachable() bool {
	if !p.up.Reachable() {
		return false
	}
	if p.simulated {
		return true
	}
	return sysfs.Exists(p.SysfsPath())
}

// Endpoint returns the function at device.fn on the port's secondary bus.
func (p *Port) Endpoint(device, fn int) *Port {
	k := [2]int{device, fn}
	e := p.ports[k]
	if e == nil {
		e = component.Add(p, newPort(p, device, fn))
		p.ports[k] = e
	}
	return e
}

// Switch returns the bridge whose upstream port is the endpoint at
// device.fn behind this port.
func (p *Port) Switch(device, fn int) *Bridge {
	return p.Endpoint(device, fn).bridge()
}

func (p *Port) bridge() *Bridge {
	if p.br == nil {
		p.br = component.Add(p, &Bridge{
			Component:  component.Component{Name: "PciBridge(" + p.String() + ")"},
			Up:         p,
			downstream: make(map[int]*Port),
		})
	}
	return p.br
}

func (p *Port) Enable() error {
	if p.Link != nil {
		return p.Link.EnablePort(p)
	}
	if p.simulated {
		return nil
	}
	return p.Config().SetLinkDisabled(false)
}

// Disable brings the link down and waits for the kernel to remove the
// devices behind the port.
func (p *Port) Disable() error {
	if p.Link != nil {
		return p.Link.DisablePort(p)
	}
	if p.simulated {
		return nil
	}
	if err := p.Config().SetLinkDisabled(true); err != nil {
		return err
	}
	return p.waitChildrenGone()
}

func (p *Port) waitChildrenGone() error {
	var paths []string
	for _, e := range p.ports {
		paths = append(paths, e.SysfsPath())
	}
	return waitGone(paths, "devices behind "+p.String()+" to disappear")
}

// Bridge has one upstream port and numbered downstream ports on the
// upstream's secondary bus.
type Bridge struct {
	component.Component
	Up         *Port
	downstream map[int]*Port
}

// DownstreamPort returns switch port index at device.fn.
func (b *Bridge) DownstreamPort(index, device, fn int) *Port {
	p := b.downstream[index]
	if p == nil {
		p = b.Up.Endpoint(device, fn)
		p.Index = index
		b.downstream[index] = p
	}
	return p
}

// Ports lists the downstream ports by index.
func (b *Bridge) Ports() map[int]*Port {
	m := make(map[int]*Port, len(b.downstream))
	for k, v := range b.downstream {
		m[k] = v
	}
	return m
}

// PortByLabel finds a downstream port by its label.
func (b *Bridge) PortByLabel(label string) (*Port, bool) {
	for _, p := range b.downstream {
		if strings.EqualFold(p.Label, label) {
			return p, true
		}
	}
	return nil, false
}

// BusForPort is the bus assigned behind downstream port index.
func (b *Bridge) BusForPort(index int) (int, error) {
	sec, err := b.Up.Secondary()
	if err != nil {
		return 0, err
	}
	sub, err := b.Up.Subordinate()
	if err != nil {
		return 0, err
	}
	if sec+index > sub {
		return 0, fmt.Errorf("%s: port %d beyond bus %d", b.Up, index, sub)
	}
	return sec + index, nil
}
