// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package platform discovers the running box and builds its device tree.
//
// Platforms are described by Descriptors held in a Registry. Discovery
// reads the system prefdl and the kernel command line, picks a descriptor
// and instantiates its root component.
package platform

import (
	"fmt"

	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/hwapi"
	"github.com/platinasystems/sysplat/internal/lock"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/prefdl"
)

var log = logging.Get("platform")

// Platform is the root of a device tree.
type Platform interface {
	component.Node
	Eeprom() map[string]string
	HwApi() hwapi.HwApi
	InventoryReader() inventory.Reader
}

// Sku is the base of every product: a component with an identity eeprom.
type Sku struct {
	component.Component
	// Prefdl reads the identity eeprom; nil for products without one.
	Prefdl func() (*prefdl.Prefdl, error)

	api hwapi.HwApi
}

func (s *Sku) prefdl() *prefdl.Prefdl {
	if s.Prefdl == nil {
		return nil
	}
	p, err := s.Prefdl()
	if err != nil {
		log.Debug("%s: eeprom: %v", s.Name, err)
		return nil
	}
	return p
}

// Eeprom returns the decoded identity fields, empty when unreadable.
func (s *Sku) Eeprom() map[string]string {
	if p := s.prefdl(); p != nil {
		return p.Map()
	}
	return map[string]string{}
}

// HwApi is read from the eeprom once; boards without one report 0.0.
func (s *Sku) HwApi() hwapi.HwApi {
	if s.api == nil {
		s.api = hwapi.New(0, 0)
		if p := s.prefdl(); p != nil {
			if h, ok := p.HwApi(); ok {
				s.api = h
			}
		}
	}
	return s.api
}

// SetHwApi overrides the eeprom revision.
func (s *Sku) SetHwApi(h hwapi.HwApi) { s.api = h }

func (s *Sku) Presence() bool  { return true }
func (s *Sku) PoweredOn() bool { return true }

// InventoryReader is the tree inventory, unioned from every component
// when meta inventories are configured.
func (s *Sku) InventoryReader() inventory.Reader {
	if config.Get().UseMetainventory {
		node := component.Node(&s.Component)
		return &inventory.Meta{Members: func() []inventory.Reader {
			return component.Inventories(node)
		}}
	}
	return s.Inventory()
}

// FixedSystem is a single board product identified by the system eeprom.
type FixedSystem struct {
	Sku
}

func NewFixedSystem(name string) *FixedSystem {
	f := &FixedSystem{}
	f.Component.Name = name
	f.Prefdl = func() (*prefdl.Prefdl, error) { return SystemEeprom(), nil }
	f.Inv = inventory.New()
	return f
}

// Discover collects the identity of the running box.
func Discover() Identity {
	cmd := config.Get().Cmdline()
	id := Identity{Sid: cmd["sid"], Name: cmd["platform"]}
	id.Sku, _ = SystemEeprom().Get("SKU")
	return id
}

// Get instantiates the platform named by names, or the detected one, and
// refreshes it.
func (r *Registry) Get(names ...string) (Platform, error) {
	var (
		d   *Descriptor
		err error
	)
	if len(names) > 0 {
		d, err = r.Lookup(names...)
	} else {
		d, err = r.Detect(Discover())
	}
	if err != nil {
		return nil, err
	}
	if d.New == nil {
		return nil, fmt.Errorf("%s: card products are loaded by their chassis", d)
	}
	log.Debug("loading platform %s", d)
	p := d.New()
	component.Check(p)
	if err = component.Refresh(p); err != nil {
		return nil, fmt.Errorf("%s: refresh: %w", d, err)
	}
	return p, nil
}

// Setup brings up the priorities f selects under the platform lock.
func Setup(p Platform, f component.Filter) error {
	return lock.New(config.Get().LockFile).Do(func() error {
		return component.Setup(p, f)
	})
}

// Clean tears the platform down under the platform lock.
func Clean(p Platform) error {
	return lock.New(config.Get().LockFile).Do(func() error {
		return component.Clean(p)
	})
}
