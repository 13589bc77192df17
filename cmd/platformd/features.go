// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platformd

import (
	"fmt"
	"sort"

	"github.com/platinasystems/sysplat/inventory"
)

// Feature is polled by platformd every Interval ticks.
type Feature interface {
	fmt.Stringer
	Init(inventory.Reader)
	Poll(inventory.Reader)
}

// Seu disables the power cycle on single event upsets and logs each new
// upset once.
type Seu struct {
	detected map[string]bool
}

func (*Seu) String() string { return "seu" }

func (f *Seu) Init(inv inventory.Reader) {
	f.detected = make(map[string]bool)
	for _, r := range inv.SeuReporters() {
		name := r.Component()
		f.detected[name] = false
		on, err := r.PowerCycleOnSeu()
		switch {
		case err != nil:
			log.Warning("%s: %v", name, err)
		case on:
			log.Info("%s: disabling powercycle on SEU", name)
			if err = r.SetPowerCycleOnSeu(false); err != nil {
				log.Warning("%s: %v", name, err)
			}
		default:
			log.Info("%s: powercycle on SEU already disabled", name)
		}
	}
}

func (f *Seu) Poll(inv inventory.Reader) {
	for _, r := range inv.SeuReporters() {
		name := r.Component()
		if f.detected[name] {
			continue
		}
		if seu, err := r.HasSeuError(); err == nil && seu {
			log.Error("a SEU error was detected on %s", name)
			log.Info("power cycling the system would restore it to a clean slate")
			f.detected[name] = true
		}
	}
}

// Detected lists the components with an upset seen.
func (f *Seu) Detected() []string {
	var l []string
	for name, seen := range f.detected {
		if seen {
			l = append(l, name)
		}
	}
	sort.Strings(l)
	return l
}

// StatusLeds colors the front panel leds from the state of the fans and
// power supplies.
type StatusLeds struct{}

func (StatusLeds) String() string { return "led" }

func (StatusLeds) Init(inventory.Reader) {}

// Policy returns the color of the named led, false for leds platformd
// leaves alone.
func (StatusLeds) Policy(inv inventory.Reader, name string) (inventory.Color, bool) {
	switch name {
	case "active", "status", "linecard_status", "fabric_status":
		return inventory.Green, true
	case "fan_status":
		for _, f := range inv.Fans() {
			if !f.Status() {
				return inventory.Red, true
			}
		}
		return inventory.Green, true
	case "psu_status":
		for _, s := range inv.PsuSlots() {
			if s.Presence() && !s.Status() {
				return inventory.Red, true
			}
		}
		return inventory.Green, true
	}
	return "", false
}

func (f StatusLeds) Poll(inv inventory.Reader) {
	for _, name := range sortedLeds(inv) {
		color, ok := f.Policy(inv, name)
		if !ok {
			continue
		}
		if err := inv.Leds()[name].SetColor(color); err != nil {
			log.Error("failed to set led color %s for %s: %v", color, name, err)
		}
	}
}

func sortedLeds(inv inventory.Reader) []string {
	leds := inv.Leds()
	l := make([]string, 0, len(leds))
	for name := range leds {
		l = append(l, name)
	}
	sort.Strings(l)
	return l
}
