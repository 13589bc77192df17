// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"fmt"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/lock"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/pci"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/prefdl"
)

// Behavior powers a card up and down. Linecards and fabric cards
// sequence their domains differently.
type Behavior interface {
	PowerOnIs(on bool, lcpu *LcpuCtx) error
	PoweredOn() bool
}

// CardNode is a card product.
type CardNode interface {
	platform.Platform
	CardBase() *Card
}

// PowerDomain groups the components that share a power rail. A disabled
// domain is skipped by setup.
type PowerDomain struct {
	component.Component
	Enabled func() bool
}

func NewPowerDomain(parent component.Node, name string) *PowerDomain {
	d := &PowerDomain{}
	d.Component.Name = name
	return component.Add(parent, d)
}

func (d *PowerDomain) IsEnabled() bool {
	return d.Enabled == nil || d.Enabled()
}

// LoadOptions selects which domains of a card are declared.
type LoadOptions struct {
	StandbyOnly bool
	NoStandby   bool
}

// Card is the base of every card product. It has its own inventory,
// which the chassis unions with the supervisor's.
type Card struct {
	platform.Sku
	Kind Kind
	Slot *CardSlot
	// Standby and Main are nil when not declared.
	Standby *PowerDomain
	Main    *PowerDomain
	// Cpu is set when running on the card cpu.
	Cpu      component.Node
	Behavior Behavior
	Options  LoadOptions
}

// NewCard returns the card of slot with its own inventory; domains are
// declared by LoadDomains.
func NewCard(name string, kind Kind, slot *CardSlot) *Card {
	c := &Card{Kind: kind, Slot: slot}
	c.Component.Name = name
	c.Inv = inventory.New()
	if slot != nil {
		c.Options = slot.opts
		c.Prefdl = slot.Prefdl
	} else {
		c.Prefdl = func() (*prefdl.Prefdl, error) {
			return platform.SystemEeprom(), nil
		}
	}
	return c
}

func (c *Card) CardBase() *Card { return c }

// LoadDomains declares the standby and main domains allowed by the load
// options, calling standby and main to populate them.
func (c *Card) LoadDomains(standby, main func(*PowerDomain)) {
	if !c.Options.NoStandby {
		c.Standby = NewPowerDomain(c, "standby")
		if standby != nil {
			standby(c.Standby)
		}
	}
	if !c.Options.StandbyOnly {
		c.Main = NewPowerDomain(c, "main")
		c.Main.Enabled = c.PoweredOn
		if main != nil {
			main(c.Main)
		}
	}
}

func (c *Card) String() string {
	if c.Slot == nil || c.RunningOnLcpu() {
		return c.Name + "()"
	}
	return fmt.Sprintf("%s(slotId=%d)", c.Name, c.Slot.Id)
}

func (c *Card) RunningOnLcpu() bool { return c.Cpu != nil }

func (c *Card) SlotId() int {
	if c.Slot == nil {
		return 0
	}
	return c.Slot.Id
}

// RelativeSlotId numbers cards of a kind from 1.
func (c *Card) RelativeSlotId() int {
	return c.SlotId() - c.Kind.Base() + 1
}

func (c *Card) Presence() bool {
	if c.RunningOnLcpu() {
		return true
	}
	if c.Slot == nil {
		return false
	}
	return c.Slot.Presence()
}

func (c *Card) HasCpuModule() bool { return c.Cpu != nil }

// IsDetected reports whether the eeprom identifies the card.
func (c *Card) IsDetected() bool {
	m := c.Eeprom()
	return len(m["SID"]) > 0 || len(m["SKU"]) > 0
}

func (c *Card) PoweredOn() bool {
	if c.RunningOnLcpu() {
		return true
	}
	if c.Behavior == nil {
		return false
	}
	return c.Behavior.PoweredOn()
}

func (c *Card) PowerOnIs(on bool, lcpu *LcpuCtx) error {
	if c.Behavior == nil {
		return fmt.Errorf("%s: power control not supported", c)
	}
	log.Info("%s: turning power %s", c, onOff(on))
	return c.Behavior.PowerOnIs(on, lcpu)
}

// Locked runs fn holding the lock of the card slot.
func (c *Card) Locked(fn func() error) error {
	return lock.New(config.Get().LinecardLockFile(c.SlotId())).Do(fn)
}

func (c *Card) setup(f component.Filter, nodes ...component.Node) error {
	return c.Locked(func() error {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if d, ok := n.(*PowerDomain); ok && !d.IsEnabled() {
				log.Debug("%s: %s domain disabled, skipped", c, d.Name)
				continue
			}
			if err := component.Setup(n, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetupCard brings up every enabled domain of the card.
func (c *Card) SetupCard(f component.Filter) error {
	return c.setup(f, c.Children()...)
}

func (c *Card) SetupStandby(f component.Filter) error {
	if c.Standby == nil {
		return nil
	}
	return c.setup(f, c.Standby)
}

func (c *Card) SetupMain(f component.Filter) error {
	if c.Main == nil {
		return nil
	}
	return c.setup(f, c.Main)
}

func (c *Card) CleanCard() error {
	return c.Locked(func() error { return component.Clean(c) })
}

// CardSlot is a slot of the chassis backplane, owned by a supervisor.
// The slot carries the bus arbiter and identification eeprom of whatever
// card is plugged so that the card can be identified before it is
// loaded.
type CardSlot struct {
	component.Component
	Id         int
	Kind       Kind
	Supervisor *Supervisor
	Registry   *platform.Registry
	// Pci is the supervisor switch port of the slot.
	Pci *pci.Port
	Bus address.Bus
	// Present is nil when presence is detected by pinging the arbiter.
	Present inventory.Gpio
	Pca     *Pca9541
	Eeprom  *platform.Eeprom

	Node CardNode
	Card *Card

	opts LoadOptions
}

// SlotConfig wires a card slot.
type SlotConfig struct {
	Id      int
	Kind    Kind
	Pci     *pci.Port
	Bus     address.Bus
	Present inventory.Gpio
}

func NewCardSlot(parent component.Node, reg *platform.Registry, cfg SlotConfig) *CardSlot {
	s := &CardSlot{
		Id:       cfg.Id,
		Kind:     cfg.Kind,
		Registry: reg,
		Pci:      cfg.Pci,
		Bus:      cfg.Bus,
		Present:  cfg.Present,
	}
	s.Component.Name = fmt.Sprintf("CardSlot(%s, slotId=%d)", cfg.Kind, cfg.Id)
	component.Add(parent, s)
	if s.Bus != nil {
		s.Pca = NewPca9541(s, address.I2cAddr{Bus: s.Bus, Address: 0x77, Block: true}, false)
		s.Eeprom = platform.NewEeprom(s.Pca, s.Pca.I2cAddr(0x50),
			fmt.Sprint("card_", s.Id))
	}
	return s
}

func (s *CardSlot) SlotId() int              { return s.Id }
func (s *CardSlot) Options() LoadOptions     { return s.opts }
func (s *CardSlot) SetOptions(o LoadOptions) { s.opts = o }

// I2cAddr is a device on the slot bus.
func (s *CardSlot) I2cAddr(addr uint16) address.I2cAddr {
	return address.I2cAddr{Bus: s.Bus, Address: addr, Block: true}
}

func (s *CardSlot) Presence() bool {
	if s.Present != nil {
		on, err := s.Present.IsActive()
		if err != nil {
			log.Debug("%s: presence: %v", s, err)
			return false
		}
		return on
	}
	if s.Pca == nil {
		return false
	}
	return s.Pca.Ping()
}

// Prefdl takes the arbiter and reads the card eeprom.
func (s *CardSlot) Prefdl() (*prefdl.Prefdl, error) {
	if s.Eeprom == nil {
		return nil, fmt.Errorf("%s: %w", s, platform.ErrNoPrefdl)
	}
	if !s.Presence() {
		return nil, fmt.Errorf("%s: card not present", s)
	}
	if err := s.Pca.TakeOwnership(); err != nil {
		return nil, err
	}
	return s.Eeprom.Prefdl()
}

// PciAddr is the address busOffset buses behind the slot port.
func (s *CardSlot) PciAddr(busOffset int) (address.PciAddr, error) {
	addr, err := s.Pci.Addr()
	if err != nil {
		return address.PciAddr{}, err
	}
	sec, err := s.Pci.Secondary()
	if err != nil {
		return address.PciAddr{}, err
	}
	return address.PciAddr{Domain: addr.Domain, Bus: sec + busOffset}, nil
}

func (s *CardSlot) EnablePciPort() error {
	if s.Pci == nil {
		return nil
	}
	return s.Pci.Enable()
}

func (s *CardSlot) DisablePciPort() error {
	if s.Pci == nil {
		return nil
	}
	return s.Pci.Disable()
}

// LoadCard identifies the plugged card by its SID and instantiates its
// product. An empty slot or an unsupported card loads nothing.
func (s *CardSlot) LoadCard() (*Card, error) {
	if !s.Presence() {
		log.Debug("card slot %d is not present", s.Id)
		return nil, nil
	}
	p, err := s.Prefdl()
	if err != nil {
		return nil, fmt.Errorf("unknown card in slot %d, eeprom is invalid: %w", s.Id, err)
	}
	sid, found := p.Get("SID")
	if !found || len(sid) == 0 {
		return nil, fmt.Errorf("unknown card in slot %d, eeprom is invalid", s.Id)
	}
	d, err := s.Registry.Lookup(sid)
	if err != nil || d.NewCard == nil {
		log.Debug("unsupported card %s for slot %d", sid, s.Id)
		return nil, nil
	}
	log.Debug("loading card %s in slot %d", d, s.Id)
	n, ok := d.NewCard(s).(CardNode)
	if !ok {
		return nil, fmt.Errorf("%s: not a card product", d)
	}
	component.Check(n)
	s.Node, s.Card = n, n.CardBase()
	if err := component.Refresh(n); err != nil {
		return s.Card, fmt.Errorf("%s: refresh: %w", s.Card, err)
	}
	return s.Card, nil
}
