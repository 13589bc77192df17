// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package inventory collects the hardware objects a component tree
// exposes. Collections keyed by OS visible identity are maps and adding
// twice replaces; the rest are lists and adding appends. Getters never fail
// and return empty, non-nil containers.
package inventory

import "sort"

type Reader interface {
	Leds() map[string]Led
	LedGroups() map[string][]Led
	Xcvrs() map[int]Xcvr
	XcvrSlots() map[int]XcvrSlot
	Psus() []Psu
	PsuSlots() []PsuSlot
	Fans() []Fan
	FanSlots() []FanSlot
	Watchdogs() []Watchdog
	PowerCycles() []PowerCycle
	Interrupts() map[string]Interrupt
	Rails() []Rail
	Resets() map[string]Reset
	Phys() []Phy
	Slots() []Slot
	Temps() []Temp
	Gpios() map[string]Gpio
	ReloadCauseProviders() []CauseProvider
	Programmables() []Programmable
	SeuReporters() []SeuReporter
}

type Inventory struct {
	leds       map[string]Led
	ledGroups  map[string][]Led
	xcvrs      map[XcvrKind]map[int]Xcvr
	xcvrSlots  map[XcvrKind]map[int]XcvrSlot
	psus       []Psu
	psuSlots   []PsuSlot
	fans       []Fan
	fanSlots   []FanSlot
	watchdogs  []Watchdog
	powerCycle []PowerCycle
	interrupts map[string]Interrupt
	rails      []Rail
	resets     map[string]Reset
	phys       []Phy
	slots      []Slot
	temps      []Temp
	gpios      map[string]Gpio
	causes     []CauseProvider
	progs      []Programmable
	seus       []SeuReporter
}

func New() *Inventory {
	inv := &Inventory{
		leds:       make(map[string]Led),
		ledGroups:  make(map[string][]Led),
		xcvrs:      make(map[XcvrKind]map[int]Xcvr),
		xcvrSlots:  make(map[XcvrKind]map[int]XcvrSlot),
		interrupts: make(map[string]Interrupt),
		resets:     make(map[string]Reset),
		gpios:      make(map[string]Gpio),
	}
	for _, k := range []XcvrKind{Ethernet, Sfp, Qsfp, Osfp} {
		inv.xcvrs[k] = make(map[int]Xcvr)
		inv.xcvrSlots[k] = make(map[int]XcvrSlot)
	}
	return inv
}

func (inv *Inventory) AddLed(led Led) Led {
	inv.leds[led.Name()] = led
	return led
}

func (inv *Inventory) AddLeds(leds ...Led) []Led {
	for _, led := range leds {
		inv.AddLed(led)
	}
	return leds
}

func (inv *Inventory) AddLedGroup(name string, leds ...Led) []Led {
	inv.ledGroups[name] = leds
	return inv.AddLeds(leds...)
}

func (inv *Inventory) Led(name string) (Led, bool) {
	led, found := inv.leds[name]
	return led, found
}

func (inv *Inventory) Leds() map[string]Led        { return copyMap(inv.leds) }
func (inv *Inventory) LedGroups() map[string][]Led { return copyMap(inv.ledGroups) }
func (inv *Inventory) LedGroup(name string) []Led  { return inv.ledGroups[name] }

func (inv *Inventory) AddXcvr(x Xcvr) Xcvr {
	inv.xcvrs[x.Kind()][x.Id()] = x
	return x
}

// XcvrsOf returns the transceivers of one form factor.
func (inv *Inventory) XcvrsOf(kind XcvrKind) map[int]Xcvr {
	return copyMap(inv.xcvrs[kind])
}

func (inv *Inventory) Xcvrs() map[int]Xcvr {
	m := make(map[int]Xcvr)
	for _, k := range []XcvrKind{Ethernet, Sfp, Qsfp, Osfp} {
		for id, x := range inv.xcvrs[k] {
			m[id] = x
		}
	}
	return m
}

func (inv *Inventory) AddXcvrSlot(s XcvrSlot) XcvrSlot {
	inv.xcvrSlots[s.Kind()][s.Id()] = s
	return s
}

func (inv *Inventory) XcvrSlotsOf(kind XcvrKind) map[int]XcvrSlot {
	return copyMap(inv.xcvrSlots[kind])
}

func (inv *Inventory) XcvrSlots() map[int]XcvrSlot {
	m := make(map[int]XcvrSlot)
	for _, k := range []XcvrKind{Ethernet, Sfp, Qsfp, Osfp} {
		for id, s := range inv.xcvrSlots[k] {
			m[id] = s
		}
	}
	return m
}

func (inv *Inventory) XcvrSlot(id int) (XcvrSlot, bool) {
	for _, k := range []XcvrKind{Ethernet, Sfp, Qsfp, Osfp} {
		if s, found := inv.xcvrSlots[k][id]; found {
			return s, true
		}
	}
	return nil, false
}

// PortToEeprom maps transceiver ids to their kernel eeprom attribute.
func (inv *Inventory) PortToEeprom() map[int]string {
	m := make(map[int]string)
	for id, x := range inv.Xcvrs() {
		m[id] = x.I2cAddr().SysfsPath() + "/eeprom"
	}
	return m
}

func (inv *Inventory) AddPsuSlot(s PsuSlot) PsuSlot {
	inv.psuSlots = append(inv.psuSlots, s)
	return s
}

func (inv *Inventory) PsuSlots() []PsuSlot { return copyList(inv.psuSlots) }

func (inv *Inventory) AddPsu(p Psu) Psu {
	inv.psus = append(inv.psus, p)
	return p
}

func (inv *Inventory) Psus() []Psu { return copyList(inv.psus) }

func (inv *Inventory) AddFan(f Fan) Fan {
	inv.fans = append(inv.fans, f)
	return f
}

func (inv *Inventory) AddFans(fans ...Fan) []Fan {
	inv.fans = append(inv.fans, fans...)
	return fans
}

func (inv *Inventory) Fans() []Fan { return copyList(inv.fans) }

func (inv *Inventory) AddFanSlot(s FanSlot) FanSlot {
	inv.fanSlots = append(inv.fanSlots, s)
	return s
}

func (inv *Inventory) FanSlots() []FanSlot { return copyList(inv.fanSlots) }

func (inv *Inventory) AddWatchdog(w Watchdog) Watchdog {
	inv.watchdogs = append(inv.watchdogs, w)
	return w
}

func (inv *Inventory) Watchdogs() []Watchdog { return copyList(inv.watchdogs) }

func (inv *Inventory) AddPowerCycle(p PowerCycle) PowerCycle {
	inv.powerCycle = append(inv.powerCycle, p)
	return p
}

func (inv *Inventory) PowerCycles() []PowerCycle { return copyList(inv.powerCycle) }

func (inv *Inventory) AddInterrupt(i Interrupt) Interrupt {
	inv.interrupts[i.Name()] = i
	return i
}

func (inv *Inventory) Interrupts() map[string]Interrupt { return copyMap(inv.interrupts) }

func (inv *Inventory) AddRail(r Rail) Rail {
	inv.rails = append(inv.rails, r)
	return r
}

func (inv *Inventory) Rails() []Rail { return copyList(inv.rails) }

func (inv *Inventory) AddReset(r Reset) Reset {
	inv.resets[r.Name()] = r
	return r
}

func (inv *Inventory) AddResets(resets ...Reset) {
	for _, r := range resets {
		inv.AddReset(r)
	}
}

func (inv *Inventory) Reset(name string) (Reset, bool) {
	r, found := inv.resets[name]
	return r, found
}

func (inv *Inventory) Resets() map[string]Reset { return copyMap(inv.resets) }

func (inv *Inventory) AddPhy(p Phy) Phy {
	inv.phys = append(inv.phys, p)
	return p
}

func (inv *Inventory) Phys() []Phy { return copyList(inv.phys) }

func (inv *Inventory) AddSlot(s Slot) Slot {
	inv.slots = append(inv.slots, s)
	return s
}

func (inv *Inventory) Slots() []Slot { return copyList(inv.slots) }

func (inv *Inventory) AddTemp(t Temp) Temp {
	inv.temps = append(inv.temps, t)
	return t
}

func (inv *Inventory) Temps() []Temp { return copyList(inv.temps) }

func (inv *Inventory) AddGpio(g Gpio) Gpio {
	inv.gpios[g.Name()] = g
	return g
}

func (inv *Inventory) AddGpios(gpios ...Gpio) {
	for _, g := range gpios {
		inv.AddGpio(g)
	}
}

func (inv *Inventory) Gpio(name string) (Gpio, bool) {
	g, found := inv.gpios[name]
	return g, found
}

func (inv *Inventory) Gpios() map[string]Gpio { return copyMap(inv.gpios) }

func (inv *Inventory) AddReloadCauseProvider(p CauseProvider) {
	inv.causes = append(inv.causes, p)
}

func (inv *Inventory) ReloadCauseProviders() []CauseProvider { return copyList(inv.causes) }

func (inv *Inventory) AddProgrammable(p Programmable) {
	inv.progs = append(inv.progs, p)
}

func (inv *Inventory) Programmables() []Programmable { return copyList(inv.progs) }

func (inv *Inventory) AddSeuReporter(s SeuReporter) {
	inv.seus = append(inv.seus, s)
}

func (inv *Inventory) SeuReporters() []SeuReporter { return copyList(inv.seus) }

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	r := make(map[K]V, len(m))
	for k, v := range m {
		r[k] = v
	}
	return r
}

func copyList[T any](l []T) []T {
	return append(make([]T, 0, len(l)), l...)
}

// SortedKeys returns the keys of an id keyed collection in order.
func SortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
