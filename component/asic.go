// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package component

import (
	"fmt"
	"time"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/inventory"
)

// AsicYieldTime is left to the switch chip driver once the device shows.
var AsicYieldTime = 2 * time.Second

// SwitchChip is a forwarding asic: powered, reset and waited for.
type SwitchChip struct {
	Component
	Addr address.PciAddr
	// Rescan the PCI bus once if the device is slow to show up.
	Rescan bool
	// PcieResetDelay separates the core and PCIe reset release.
	PcieResetDelay time.Duration

	PowerGpios     []inventory.Gpio
	PowerGoodGpios []inventory.Gpio
	CoreResets     []inventory.Reset
	PcieResets     []inventory.Reset

	simulated bool
}

func NewSwitchChip(addr address.PciAddr) *SwitchChip {
	sim := config.Get().InSimulation()
	k := driver.NewPciKernel("", addr)
	k.Passive = true
	return &SwitchChip{
		Component: Component{
			Name:   fmt.Sprintf("SwitchChip(addr=%s)", addr),
			Driver: driver.Select(sim, k),
		},
		Addr:           addr,
		PcieResetDelay: 500 * time.Millisecond,
		simulated:      sim,
	}
}

func allActive(gpios []inventory.Gpio, want bool) bool {
	for _, g := range gpios {
		on, err := g.IsActive()
		if err != nil || on != want {
			return false
		}
	}
	return true
}

func (s *SwitchChip) IsPowerGood() bool { return allActive(s.PowerGoodGpios, true) }
func (s *SwitchChip) IsPowerDown() bool { return allActive(s.PowerGoodGpios, false) }

func (s *SwitchChip) power(on bool) error {
	if len(s.PowerGoodGpios) > 0 && s.IsPowerGood() == on {
		log.Debug("%s: power already %v", s, on)
		return nil
	}
	log.Debug("%s: turning power %v", s, on)
	for _, g := range s.PowerGpios {
		if err := g.SetActive(on); err != nil {
			return err
		}
	}
	if len(s.PowerGoodGpios) == 0 {
		return nil
	}
	cond, desc := s.IsPowerGood, "waiting for power good"
	if !on {
		cond, desc = s.IsPowerDown, "waiting for power down"
	}
	return wait.For(cond, desc, wait.Interval(50*time.Millisecond))
}

func (s *SwitchChip) PowerOn() error  { return s.power(true) }
func (s *SwitchChip) PowerOff() error { return s.power(false) }

// InReset reports whether any reset is held.
func (s *SwitchChip) InReset() bool {
	for _, r := range append(append([]inventory.Reset(nil), s.CoreResets...), s.PcieResets...) {
		if held, err := r.Read(); err != nil || held {
			return true
		}
	}
	return false
}

// ResetOut powers the chip, releases the core resets, waits
// PcieResetDelay and releases the PCIe resets.
func (s *SwitchChip) ResetOut() error {
	if len(s.CoreResets) == 0 {
		return nil
	}
	if err := s.PowerOn(); err != nil {
		return err
	}
	if !s.InReset() {
		log.Debug("%s: already out of reset", s)
		return nil
	}
	log.Debug("%s: taking core out of reset", s)
	for _, r := range s.CoreResets {
		if err := r.ResetOut(); err != nil {
			return err
		}
	}
	wait.Sleep(s.PcieResetDelay)
	log.Debug("%s: taking pcie out of reset", s)
	for _, r := range s.PcieResets {
		if err := r.ResetOut(); err != nil {
			return err
		}
	}
	return ApplyQuirks(s, false)
}

// ResetIn holds the PCIe resets, then the core resets, then powers off.
func (s *SwitchChip) ResetIn() error {
	if len(s.CoreResets) == 0 {
		return nil
	}
	if s.InReset() {
		log.Debug("%s: already in reset", s)
	} else {
		log.Debug("%s: putting in reset", s)
		for _, r := range append(append([]inventory.Reset(nil), s.PcieResets...), s.CoreResets...) {
			if err := r.ResetIn(); err != nil {
				return err
			}
		}
	}
	return s.PowerOff()
}

// WaitForIt waits for the chip to enumerate on PCI.
func (s *SwitchChip) WaitForIt(timeout time.Duration) error {
	log.Debug("%s: waiting for switch chip", s)
	if s.simulated {
		return nil
	}
	start := wait.Now()
	rescanned := !s.Rescan
	err := wait.For(func() bool {
		if sysfs.Exists(s.Addr.SysfsPath()) {
			return true
		}
		if !rescanned && wait.Now().Sub(start) > time.Second {
			rescanned = true
			sysfs.WriteString("/sys/bus/pci/rescan", "1")
		}
		return false
	}, fmt.Sprint(s, " to appear"), wait.Timeout(timeout),
		wait.Interval(100*time.Millisecond))
	if err != nil {
		log.Error("%s: timed out waiting for the switch chip", s)
		return err
	}
	log.Debug("switch chip is ready")
	wait.Sleep(AsicYieldTime)
	return nil
}
