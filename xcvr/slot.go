// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package xcvr models transceiver cages, the modules plugged into them and
// the presence events they raise.
package xcvr

import (
	"fmt"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/logging"
)

// EepromAddr is where every module answers with its id eeprom.
const EepromAddr = 0x50

var log = logging.Get("xcvr")

// optoe client names by cage type.
var optoe = map[inventory.XcvrKind]string{
	inventory.Sfp:  "optoe2",
	inventory.Qsfp: "optoe1",
	inventory.Osfp: "optoe3",
}

// SlotConfig lists the handles wired to a cage. Handles a cage type does
// not support must be nil and handles the hardware lacks may be nil.
type SlotConfig struct {
	Id   int
	Name string
	Kind inventory.XcvrKind
	// Bus carries the module eeprom; nil for cages without one.
	Bus       address.Bus
	Present   inventory.Gpio
	Interrupt inventory.Interrupt
	Leds      []inventory.Led

	// sfp
	RxLos     inventory.Gpio
	TxDisable inventory.Gpio
	TxFault   inventory.Gpio

	// qsfp and osfp
	LpMode inventory.Gpio
	ModSel inventory.Gpio
	Reset  inventory.Reset
}

func (cfg *SlotConfig) check() error {
	switch cfg.Kind {
	case inventory.Sfp:
		if cfg.LpMode != nil || cfg.ModSel != nil || cfg.Reset != nil {
			return fmt.Errorf("%s: sfp cages have no lp_mode, modsel or reset", cfg.Name)
		}
	case inventory.Qsfp, inventory.Osfp:
		if cfg.RxLos != nil || cfg.TxDisable != nil || cfg.TxFault != nil {
			return fmt.Errorf("%s: %s cages have no rx_los, tx_disable or tx_fault",
				cfg.Name, cfg.Kind)
		}
	case inventory.Ethernet:
	default:
		return fmt.Errorf("%s: unknown cage type %q", cfg.Name, cfg.Kind)
	}
	return nil
}

// Caps holds the optional controls of a slot; a nil field is a control
// the cage or the board does not provide.
type Caps struct {
	LowPowerMode inventory.LowPowerModer
	ModuleSelect inventory.ModuleSelecter
	TxDisable    inventory.TxDisabler
	RxLos        inventory.RxLoser
	TxFault      inventory.TxFaulter
	Reset        inventory.Reset
}

// Slot is a transceiver cage.
type Slot struct {
	component.Component
	Cfg  SlotConfig
	Caps Caps

	xcvr *Xcvr
}

// NewSlot registers the cage and its module in parent's inventory. A
// handle the cage type cannot carry is a wiring bug and panics.
func NewSlot(parent component.Node, cfg SlotConfig) *Slot {
	if len(cfg.Name) == 0 {
		cfg.Name = fmt.Sprint(cfg.Kind, cfg.Id)
	}
	if err := cfg.check(); err != nil {
		panic(err)
	}
	s := &Slot{Cfg: cfg}
	s.Component.Name = cfg.Name
	component.Add(parent, s)

	if cfg.RxLos != nil {
		s.Caps.RxLos = gpioInput{cfg.RxLos}
	}
	if cfg.TxFault != nil {
		s.Caps.TxFault = gpioInput{cfg.TxFault}
	}
	if cfg.TxDisable != nil {
		s.Caps.TxDisable = gpioControl{cfg.TxDisable}
	}
	if cfg.LpMode != nil {
		s.Caps.LowPowerMode = gpioControl{cfg.LpMode}
	}
	if cfg.ModSel != nil {
		s.Caps.ModuleSelect = gpioControl{cfg.ModSel}
	}
	s.Caps.Reset = cfg.Reset

	inv := s.Inventory()
	inv.AddXcvrSlot(s)
	if cfg.Bus != nil && cfg.Kind != inventory.Ethernet {
		s.xcvr = newXcvr(s)
		inv.AddXcvr(s.xcvr)
	}
	return s
}

func (s *Slot) Capabilities() Caps { return s.Caps }

type capser interface {
	Capabilities() Caps
}

// CapsOf returns the controls of any slot; slots other than Slot expose
// theirs by implementing the capability interfaces.
func CapsOf(s inventory.XcvrSlot) Caps {
	if c, ok := s.(capser); ok {
		return c.Capabilities()
	}
	var caps Caps
	caps.LowPowerMode, _ = s.(inventory.LowPowerModer)
	caps.ModuleSelect, _ = s.(inventory.ModuleSelecter)
	caps.TxDisable, _ = s.(inventory.TxDisabler)
	caps.RxLos, _ = s.(inventory.RxLoser)
	caps.TxFault, _ = s.(inventory.TxFaulter)
	if r, ok := s.(inventory.Resettable); ok {
		caps.Reset = r.Reset()
	}
	return caps
}

func (s *Slot) Id() int                            { return s.Cfg.Id }
func (s *Slot) Name() string                       { return s.Cfg.Name }
func (s *Slot) Kind() inventory.XcvrKind           { return s.Cfg.Kind }
func (s *Slot) Leds() []inventory.Led              { return s.Cfg.Leds }
func (s *Slot) InterruptLine() inventory.Interrupt { return s.Cfg.Interrupt }

func (s *Slot) Xcvr() inventory.Xcvr {
	if s.xcvr == nil {
		return nil
	}
	return s.xcvr
}

// Presence reads the present gpio; cages without one, such as fixed
// ethernet ports, are always present.
func (s *Slot) Presence() (bool, error) {
	if s.Cfg.Present == nil {
		return true, nil
	}
	return s.Cfg.Present.IsActive()
}

// Setup takes modules out of low power mode when configured to.
func (s *Slot) Setup() error {
	if s.Caps.LowPowerMode == nil || !config.Get().XcvrLpmodeOut {
		return nil
	}
	log.Debug("%s: leaving low power mode", s.Cfg.Name)
	return s.Caps.LowPowerMode.SetLowPowerMode(false)
}

type gpioInput struct{ g inventory.Gpio }

func (c gpioInput) RxLos() (bool, error)   { return c.g.IsActive() }
func (c gpioInput) TxFault() (bool, error) { return c.g.IsActive() }

type gpioControl struct{ g inventory.Gpio }

func (c gpioControl) LowPowerMode() (bool, error)  { return c.g.IsActive() }
func (c gpioControl) SetLowPowerMode(v bool) error { return c.g.SetActive(v) }
func (c gpioControl) ModuleSelect() (bool, error)  { return c.g.IsActive() }
func (c gpioControl) SetModuleSelect(v bool) error { return c.g.SetActive(v) }
func (c gpioControl) TxDisable() (bool, error)     { return c.g.IsActive() }
func (c gpioControl) SetTxDisable(v bool) error    { return c.g.SetActive(v) }

// Xcvr is the module plugged in a slot, bound to the optoe eeprom driver.
type Xcvr struct {
	component.Component
	slot *Slot
	addr address.I2cAddr
}

func newXcvr(s *Slot) *Xcvr {
	x := &Xcvr{
		slot: s,
		addr: address.I2cAddr{Bus: s.Cfg.Bus, Address: EepromAddr, Block: true},
	}
	x.Component.Name = s.Cfg.Name + "-eeprom"
	x.Driver = driver.Select(config.Get().InSimulation(),
		driver.NewI2cKernel("optoe", optoe[s.Cfg.Kind], x.addr))
	component.Add(s, x)
	return x
}

func (x *Xcvr) Kind() inventory.XcvrKind { return x.slot.Cfg.Kind }
func (x *Xcvr) Name() string             { return x.slot.Cfg.Name }
func (x *Xcvr) Id() int                  { return x.slot.Cfg.Id }
func (x *Xcvr) I2cAddr() address.I2cAddr { return x.addr }
func (x *Xcvr) Slot() *Slot              { return x.slot }
