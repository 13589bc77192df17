// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package inventory

// Meta unions inventories; maps merge with later members winning and
// lists concatenate in member order.
type Meta struct {
	// Members is called on each query so that inventories added after
	// construction, such as those of hot inserted cards, are seen.
	Members func() []Reader
}

func NewMeta(invs ...Reader) *Meta {
	return &Meta{Members: func() []Reader { return invs }}
}

func merge[K comparable, V any](m *Meta, get func(Reader) map[K]V) map[K]V {
	r := make(map[K]V)
	for _, inv := range m.Members() {
		for k, v := range get(inv) {
			r[k] = v
		}
	}
	return r
}

func concat[T any](m *Meta, get func(Reader) []T) []T {
	r := make([]T, 0)
	for _, inv := range m.Members() {
		r = append(r, get(inv)...)
	}
	return r
}

func (m *Meta) Leds() map[string]Led {
	return merge(m, Reader.Leds)
}

func (m *Meta) LedGroups() map[string][]Led {
	return merge(m, Reader.LedGroups)
}

func (m *Meta) Xcvrs() map[int]Xcvr {
	return merge(m, Reader.Xcvrs)
}

func (m *Meta) XcvrSlots() map[int]XcvrSlot {
	return merge(m, Reader.XcvrSlots)
}

func (m *Meta) Psus() []Psu {
	return concat(m, Reader.Psus)
}

func (m *Meta) PsuSlots() []PsuSlot {
	return concat(m, Reader.PsuSlots)
}

func (m *Meta) Fans() []Fan {
	return concat(m, Reader.Fans)
}

func (m *Meta) FanSlots() []FanSlot {
	return concat(m, Reader.FanSlots)
}

func (m *Meta) Watchdogs() []Watchdog {
	return concat(m, Reader.Watchdogs)
}

func (m *Meta) PowerCycles() []PowerCycle {
	return concat(m, Reader.PowerCycles)
}

func (m *Meta) Interrupts() map[string]Interrupt {
	return merge(m, Reader.Interrupts)
}

func (m *Meta) Rails() []Rail {
	return concat(m, Reader.Rails)
}

func (m *Meta) Resets() map[string]Reset {
	return merge(m, Reader.Resets)
}

func (m *Meta) Phys() []Phy {
	return concat(m, Reader.Phys)
}

func (m *Meta) Slots() []Slot {
	return concat(m, Reader.Slots)
}

func (m *Meta) Temps() []Temp {
	return concat(m, Reader.Temps)
}

func (m *Meta) Gpios() map[string]Gpio {
	return merge(m, Reader.Gpios)
}

func (m *Meta) ReloadCauseProviders() []CauseProvider {
	return concat(m, Reader.ReloadCauseProviders)
}

func (m *Meta) Programmables() []Programmable {
	return concat(m, Reader.Programmables)
}

func (m *Meta) SeuReporters() []SeuReporter {
	return concat(m, Reader.SeuReporters)
}
