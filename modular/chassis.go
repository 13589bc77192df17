// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/prefdl"
	"github.com/platinasystems/sysplat/psu"
)

// Dims bounds the slots of a chassis.
type Dims struct {
	Supervisors, Linecards, Fabrics, Fans, Psus int
}

var DefaultDims = Dims{
	Supervisors: NumSupervisors,
	Linecards:   NumLinecards,
	Fabrics:     NumFabrics,
	Fans:        NumFans,
	Psus:        NumPsus,
}

var ErrNoActiveSupervisor = errors.New("no active supervisor")

// Chassis is the enclosure. Its identity is the chassis eeprom read by
// the active supervisor, its inventory the union of the supervisor's
// and of every loaded card.
type Chassis struct {
	platform.Sku
	Dims        Dims
	Supervisors []*Supervisor
	Active      *Supervisor
}

func NewChassis(name string, dims Dims) *Chassis {
	c := &Chassis{
		Dims:        dims,
		Supervisors: make([]*Supervisor, dims.Supervisors),
	}
	c.Component.Name = name
	c.Inv = inventory.New()
	c.Prefdl = func() (*prefdl.Prefdl, error) {
		if c.Active == nil {
			return nil, ErrNoActiveSupervisor
		}
		return c.Active.ReadChassisEeprom()
	}
	return c
}

// InsertSupervisor seats s in slotId; slot 0, simulation, shares the
// first position.
func (c *Chassis) InsertSupervisor(s *Supervisor, slotId int, active bool) error {
	i := slotId - 1
	if i < 0 {
		i = 0
	}
	if i >= len(c.Supervisors) {
		return fmt.Errorf("%s: no supervisor slot %d", c.Name, slotId)
	}
	if c.Supervisors[i] != nil {
		return fmt.Errorf("%s: supervisor slot %d is occupied", c.Name, slotId)
	}
	c.Supervisors[i] = s
	s.Chassis = c
	if active {
		c.Active = s
	}
	return nil
}

// PresentSupervisors skips the empty positions.
func (c *Chassis) PresentSupervisors() []*Supervisor {
	var l []*Supervisor
	for _, s := range c.Supervisors {
		if s != nil {
			l = append(l, s)
		}
	}
	return l
}

func wanted(id int, ids []int) bool {
	if len(ids) == 0 {
		return true
	}
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func capSlots[T any](l []T, n int) []T {
	if len(l) > n {
		return l[:n]
	}
	return l
}

func (c *Chassis) loadCards(slots []*CardSlot, n int, opts LoadOptions, ids []int) error {
	var first error
	for _, s := range capSlots(slots, n) {
		if !wanted(s.Id, ids) {
			continue
		}
		log.Debug("loading %s slot %d", s.Kind, s.Id)
		s.SetOptions(opts)
		if _, err := s.LoadCard(); err != nil {
			log.Error("%v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// LoadLinecards loads the cards of the linecard slots, or of those listed.
// Linecards load their standby domain only unless configured otherwise.
func (c *Chassis) LoadLinecards(slotIds ...int) error {
	if c.Active == nil {
		return ErrNoActiveSupervisor
	}
	opts := LoadOptions{StandbyOnly: config.Get().LinecardStandbyOnly}
	return c.loadCards(c.Active.LinecardSlots, c.Dims.Linecards, opts, slotIds)
}

func (c *Chassis) LoadFabrics(slotIds ...int) error {
	if c.Active == nil {
		return ErrNoActiveSupervisor
	}
	return c.loadCards(c.Active.FabricSlots, c.Dims.Fabrics, LoadOptions{}, slotIds)
}

// LoadPsus identifies the units plugged in the power supply slots.
func (c *Chassis) LoadPsus(slotIds ...int) error {
	if c.Active == nil {
		return ErrNoActiveSupervisor
	}
	var first error
	for _, s := range capSlots(c.Active.PsuSlots, c.Dims.Psus) {
		if !wanted(s.Id(), slotIds) {
			continue
		}
		log.Debug("loading psu slot %d", s.Id())
		if err := s.Load(true, false); err != nil {
			log.Error("%s: %v", s.Name(), err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func loaded(slots []*CardSlot, n int) []*Card {
	var l []*Card
	for _, s := range capSlots(slots, n) {
		if s.Card != nil {
			l = append(l, s.Card)
		}
	}
	return l
}

// Linecards are the loaded linecards in slot order.
func (c *Chassis) Linecards() []*Card {
	if c.Active == nil {
		return nil
	}
	return loaded(c.Active.LinecardSlots, c.Dims.Linecards)
}

func (c *Chassis) Fabrics() []*Card {
	if c.Active == nil {
		return nil
	}
	return loaded(c.Active.FabricSlots, c.Dims.Fabrics)
}

// Cards are the linecards followed by the fabric cards.
func (c *Chassis) Cards() []*Card {
	return append(c.Linecards(), c.Fabrics()...)
}

// Card returns the loaded card of an absolute slot id.
func (c *Chassis) Card(slotId int) (*Card, bool) {
	for _, card := range c.Cards() {
		if card.SlotId() == slotId {
			return card, true
		}
	}
	return nil, false
}

// PsuSlots are the populated power supply slots.
func (c *Chassis) PsuSlots() []*psu.Slot {
	if c.Active == nil {
		return nil
	}
	var l []*psu.Slot
	for _, s := range capSlots(c.Active.PsuSlots, c.Dims.Psus) {
		if s.Presence() {
			l = append(l, s)
		}
	}
	return l
}

// FanSlots are the populated fan slots.
func (c *Chassis) FanSlots() []inventory.FanSlot {
	if c.Active == nil {
		return nil
	}
	var l []inventory.FanSlot
	for _, s := range capSlots(c.Active.FanSlots, c.Dims.Fans) {
		if s.Presence() {
			l = append(l, s)
		}
	}
	return l
}

// InventoryReader unions the active supervisor with the loaded cards,
// re-evaluated on every query.
func (c *Chassis) InventoryReader() inventory.Reader {
	return &inventory.Meta{Members: func() []inventory.Reader {
		var l []inventory.Reader
		if c.Active != nil {
			l = append(l, c.Active.InventoryReader())
		}
		for _, card := range c.Cards() {
			l = append(l, card.InventoryReader())
		}
		return l
	}}
}

// SetupCards runs fn for each card concurrently, each under a logger
// prefixed by its slot. Failures are logged and do not stop the other
// cards; the first one is returned.
func (c *Chassis) SetupCards(cards []*Card, fn func(*Card, *logging.Logger) error) error {
	var g errgroup.Group
	for _, card := range cards {
		card := card
		g.Go(func() error {
			l := log.Child(fmt.Sprintf("card%d: ", card.SlotId()))
			if err := fn(card, l); err != nil {
				l.Error("%v", err)
				return fmt.Errorf("%s: %w", card, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// SlotDiag is the state of a card slot.
type SlotDiag struct {
	SlotId  int               `json:"slotId"`
	Kind    string            `json:"kind"`
	Present bool              `json:"present"`
	Card    string            `json:"card,omitempty"`
	Powered bool              `json:"powered,omitempty"`
	Eeprom  map[string]string `json:"eeprom,omitempty"`
}

// Diag is the state of the chassis.
type Diag struct {
	Version     int        `json:"version"`
	Name        string     `json:"name"`
	Supervisors []string   `json:"supervisors"`
	Linecards   []SlotDiag `json:"linecardSlots"`
	Fabrics     []SlotDiag `json:"fabricSlots"`
	Psus        []string   `json:"psuSlots"`
}

func slotDiag(s *CardSlot) SlotDiag {
	d := SlotDiag{SlotId: s.Id, Kind: s.Kind.String(), Present: s.Presence()}
	if s.Card != nil {
		d.Card = s.Card.Name
		d.Powered = s.Card.PoweredOn()
		d.Eeprom = s.Card.Eeprom()
	}
	return d
}

// Diag reports the chassis, loading the cards first when performIo.
func (c *Chassis) Diag(performIo bool) Diag {
	d := Diag{Version: 1, Name: c.Name}
	if c.Active == nil {
		return d
	}
	if performIo {
		c.LoadLinecards()
		c.LoadFabrics()
	}
	for _, s := range c.PresentSupervisors() {
		d.Supervisors = append(d.Supervisors, s.String())
	}
	for _, s := range capSlots(c.Active.LinecardSlots, c.Dims.Linecards) {
		d.Linecards = append(d.Linecards, slotDiag(s))
	}
	for _, s := range capSlots(c.Active.FabricSlots, c.Dims.Fabrics) {
		d.Fabrics = append(d.Fabrics, slotDiag(s))
	}
	for _, s := range c.PsuSlots() {
		d.Psus = append(d.Psus, s.Name())
	}
	return d
}
