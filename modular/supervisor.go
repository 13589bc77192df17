// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"errors"
	"fmt"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/prefdl"
	"github.com/platinasystems/sysplat/psu"
)

// Supervisor is the card running the platform: a fixed system owning the
// slots of the chassis it is plugged in.
type Supervisor struct {
	platform.FixedSystem
	Registry *platform.Registry
	// Chassis is set once identified.
	Chassis        *Chassis
	ChassisEeproms []*platform.Eeprom
	// PciSwitch attaches the card slots.
	PciSwitch *Microsemi

	LinecardSlots []*CardSlot
	FabricSlots   []*CardSlot
	PsuSlots      []*psu.Slot
	FanSlots      []inventory.FanSlot

	// ReadSlotId reads the slot the supervisor is plugged in.
	ReadSlotId func() (int, error)

	slotId     int
	slotIdRead bool
}

func NewSupervisor(name string, reg *platform.Registry) *Supervisor {
	s := &Supervisor{Registry: reg}
	s.FixedSystem = *platform.NewFixedSystem(name)
	return s
}

// ReadChassisEeprom tries each chassis eeprom in turn.
func (s *Supervisor) ReadChassisEeprom() (*prefdl.Prefdl, error) {
	if config.Get().InSimulation() {
		return prefdl.FromMap(map[string]string{"SKU": "DCS-7808-CH"}), nil
	}
	for _, e := range s.ChassisEeproms {
		p, err := e.Prefdl()
		if err == nil {
			return p, nil
		}
		log.Warning("failed to read chassis eeprom %s: %v", e, err)
	}
	return nil, errors.New("failed to read chassis eeprom")
}

// SlotId is the supervisor slot, 0 in simulation.
func (s *Supervisor) SlotId() int {
	if s.slotIdRead {
		return s.slotId
	}
	if config.Get().InSimulation() || s.ReadSlotId == nil {
		s.slotIdRead = true
		return s.slotId
	}
	id, err := s.ReadSlotId()
	if err != nil {
		log.Error("%s: slot id: %v", s.Name, err)
		return 0
	}
	s.slotId, s.slotIdRead = id, true
	return s.slotId
}

// GetChassis identifies the chassis from its eeprom and seats this
// supervisor in it as the active one.
func (s *Supervisor) GetChassis() (*Chassis, error) {
	if s.Chassis != nil {
		return s.Chassis, nil
	}
	log.Debug("identifying chassis")
	p, err := s.ReadChassisEeprom()
	if err != nil {
		return nil, err
	}
	sid, _ := p.Get("SID")
	sku, _ := p.Get("SKU")
	var names []string
	for _, n := range []string{sid, sku} {
		if len(n) > 0 {
			names = append(names, n)
		}
	}
	d, err := s.Registry.Lookup(names...)
	if err != nil {
		return nil, err
	}
	if d.New == nil {
		return nil, fmt.Errorf("%s: not instantiable", d)
	}
	c, ok := d.New().(*Chassis)
	if !ok {
		return nil, fmt.Errorf("%s: not a chassis", d)
	}
	if err = c.InsertSupervisor(s, s.SlotId(), true); err != nil {
		return nil, err
	}
	return c, nil
}

// Slot returns the card slot of an absolute slot id.
func (s *Supervisor) Slot(slotId int) (*CardSlot, bool) {
	for _, l := range [][]*CardSlot{s.LinecardSlots, s.FabricSlots} {
		for _, slot := range l {
			if slot.Id == slotId {
				return slot, true
			}
		}
	}
	return nil, false
}
