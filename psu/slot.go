// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package psu

import (
	"fmt"
	"sort"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/jsonstore"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/logging"
)

var log = logging.Get("psu")

// SlotConfig wires a PSU bay. A nil Bus is a fixed supply that cannot be
// probed; it must list exactly one model. A nil Present gpio is a bay
// that is always populated and nil ok gpios fall back to the rail power
// readings of the unit.
type SlotConfig struct {
	Id       int
	Bus      address.Bus
	Models   []*Model
	Present  inventory.Gpio
	InputOk  inventory.Gpio
	OutputOk inventory.Gpio
	Led      inventory.Led
	// ForceLoad loads the only listed model when detection fails.
	ForceLoad bool
}

// Slot is a PSU bay and, once identified, the unit plugged in it.
type Slot struct {
	component.Component
	Cfg SlotConfig

	// Detect probes an address; NewDetector if nil.
	Detect func(address.I2cAddr) *Detector

	model *Model
	ident Ident
	unit  *Unit
}

type cached struct {
	Cls        string `json:"cls"`
	Identifier Ident  `json:"identifier"`
}

func NewSlot(parent component.Node, cfg SlotConfig) *Slot {
	if cfg.Bus == nil && len(cfg.Models) != 1 {
		panic(fmt.Errorf("psu%d: a fixed supply lists exactly one model",
			cfg.Id))
	}
	s := &Slot{Cfg: cfg}
	s.Component.Name = fmt.Sprint("psu", cfg.Id)
	s.Component.Priority = component.Power
	component.Add(parent, s)
	s.Inventory().AddPsuSlot(s)
	if err := s.Load(true, true); err != nil {
		log.Debug("%s: %v", s.Name(), err)
	}
	return s
}

func (s *Slot) Id() int            { return s.Cfg.Id }
func (s *Slot) Name() string       { return s.Component.Name }
func (s *Slot) Led() inventory.Led { return s.Cfg.Led }

func (s *Slot) Presence() bool {
	if s.Cfg.Present == nil {
		return true
	}
	on, err := s.Cfg.Present.IsActive()
	if err != nil {
		log.Debug("%s: presence: %v", s.Name(), err)
		return false
	}
	return on
}

func (s *Slot) good(g inventory.Gpio, rail inventory.RailDirection) bool {
	if g != nil {
		on, err := g.IsActive()
		return err == nil && on
	}
	if s.unit == nil {
		return true
	}
	return s.unit.powered(rail)
}

func (s *Slot) InputOk() bool  { return s.good(s.Cfg.InputOk, inventory.RailInput) }
func (s *Slot) OutputOk() bool { return s.good(s.Cfg.OutputOk, inventory.RailOutput) }

func (s *Slot) Status() bool {
	return s.Presence() && s.InputOk() && s.OutputOk()
}

func (s *Slot) Psu() inventory.Psu {
	if s.unit == nil || !s.Presence() {
		return nil
	}
	return s.unit
}

// Unit returns the identified unit, if any.
func (s *Slot) Unit() *Unit { return s.unit }

func (s *Slot) Model() string {
	if p := s.Psu(); p != nil {
		return p.Model()
	}
	return NA
}

func (s *Slot) Serial() string {
	if p := s.Psu(); p != nil {
		return p.Serial()
	}
	return NA
}

func (s *Slot) store() *jsonstore.Store {
	return jsonstore.Temporary(fmt.Sprintf("psu_slot_%d.json", s.Cfg.Id))
}

// Setup identifies the unit and brings its driver up.
func (s *Slot) Setup() error {
	if err := s.Load(false, false); err != nil {
		log.Error("%s: %v", s.Name(), err)
		return nil
	}
	if s.unit == nil {
		return nil
	}
	if err := component.Setup(s.unit, component.All); err != nil {
		log.Error("%s: %v", s.Name(), err)
	}
	return nil
}

func (s *Slot) Clean() error {
	if s.unit == nil {
		return nil
	}
	return component.Clean(s.unit)
}

// Load identifies the unit, from the model cache when useCache is set.
// With cacheOnly no i2c access is made.
func (s *Slot) Load(useCache, cacheOnly bool) error {
	st := s.store()
	if !useCache {
		if err := st.Clear(); err != nil {
			return err
		}
	}
	if !cacheOnly && !s.Presence() {
		log.Debug("%s is not inserted", s.Name())
		return st.Clear()
	}
	m, id, err := s.loadModel(st, useCache, cacheOnly)
	if err != nil || m == nil {
		return err
	}
	s.insert(m, id)
	return nil
}

func (s *Slot) loadModel(st *jsonstore.Store, useCache, cacheOnly bool) (*Model, Ident, error) {
	if useCache {
		var c cached
		found, err := st.ReadOrClear(&c)
		if err != nil {
			return nil, Ident{}, err
		}
		if found {
			if m, ok := s.lookup(c.Cls); ok {
				log.Debug("%s loaded from cache", s.Name())
				return m, c.Identifier, nil
			}
		}
	}
	if cacheOnly {
		log.Debug("%s model not found in cache, skipping IO", s.Name())
		return nil, Ident{}, nil
	}
	m, id, found := s.autodetect()
	if !found {
		log.Error("%s unknown, discovery failed", s.Name())
		return nil, Ident{}, nil
	}
	log.Debug("%s discovered: %s", s.Name(), id.AristaName)
	keys := make([]string, 0, len(id.Metadata))
	for k := range id.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Debug("%s %s: %s", s.Name(), k, id.Metadata[k])
	}
	if !config.Get().InSimulation() {
		if err := st.Write(cached{Cls: m.Name, Identifier: id}); err != nil {
			log.Warning("%s: cache: %v", s.Name(), err)
		}
	}
	return m, id, nil
}

func (s *Slot) lookup(name string) (*Model, bool) {
	for _, m := range s.Cfg.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Lookup(name)
}

// candidates lists the expected models first, then the catalog.
func (s *Slot) candidates() []*Model {
	models := append([]*Model(nil), s.Cfg.Models...)
	seen := make(map[*Model]bool)
	for _, m := range models {
		seen[m] = true
	}
	for _, m := range Models {
		if !seen[m] {
			models = append(models, m)
		}
	}
	return models
}

func (s *Slot) autodetect() (*Model, Ident, bool) {
	if s.Cfg.Bus != nil {
		detect := s.Detect
		if detect == nil {
			detect = NewDetector
		}
		detectors := make(map[uint16]*Detector)
		for _, m := range s.candidates() {
			if m.PmbusAddr == 0 {
				continue
			}
			d := detectors[m.PmbusAddr]
			if d == nil {
				d = detect(address.I2cAddr{Bus: s.Cfg.Bus,
					Address: m.PmbusAddr, Block: true})
				detectors[m.PmbusAddr] = d
				if d.Exists() {
					log.Debug("searching for psu vendor %q model %q",
						d.Id(), d.Model())
				}
			}
			if id, found := m.Identify(d); found {
				log.Debug("found matching psu %s", m.Name)
				return m, id, true
			}
		}
	}
	if s.Cfg.Bus == nil || s.Cfg.ForceLoad {
		if len(s.Cfg.Models) != 1 {
			log.Error("%s: forcing a model needs exactly one", s.Name())
			return nil, Ident{}, false
		}
		m := s.Cfg.Models[0]
		id := m.Identifiers[0]
		id.Metadata = UnknownMetadata()
		return m, id, true
	}
	return nil, Ident{}, false
}

func (s *Slot) insert(m *Model, id Ident) {
	if s.unit != nil && s.model == m && s.ident.AristaName == id.AristaName {
		s.unit.Ident = id
		return
	}
	s.model, s.ident = m, id
	s.unit = newUnit(s, m, id)
}

// Unit is an identified power supply. Its sensors, fans and rails are
// published in the slot's inventory.
type Unit struct {
	component.Component
	Family *Model
	Ident  Ident

	slot  *Slot
	temps []*driver.Temp
	fans  []*driver.Fan
	rails []*driver.Rail
}

// newUnit builds the unit outside of the slot's children, the slot sets
// it up itself once identified.
func newUnit(s *Slot, m *Model, id Ident) *Unit {
	u := &Unit{Family: m, Ident: id, slot: s}
	u.Component.Name = m.driver()
	u.Component.Priority = component.Power
	u.Component.Inv = inventory.New()
	if s.Cfg.Bus == nil {
		return u
	}
	addr := address.I2cAddr{Bus: s.Cfg.Bus, Address: m.PmbusAddr, Block: true}
	k := driver.NewI2cKernel("pmbus", m.driver(), addr)
	u.Driver = driver.Select(config.Get().InSimulation(), k)

	desc := m.Description(s.Cfg.Id, id.Airflow)
	inv := s.Inventory()
	for _, d := range desc.Sensors {
		t := driver.NewTemp(&k.Kernel, d)
		u.temps = append(u.temps, t)
		u.Inv.AddTemp(t)
		inv.AddTemp(t)
	}
	for _, d := range desc.Fans {
		f := driver.NewFan(&k.Kernel, d, nil)
		u.fans = append(u.fans, f)
		u.Inv.AddFan(f)
		inv.AddFan(f)
	}
	for _, d := range desc.Rails {
		r := driver.NewRail(&k.Kernel, d)
		u.rails = append(u.rails, r)
		u.Inv.AddRail(r)
		inv.AddRail(r)
	}
	inv.AddPsu(u)
	return u
}

func (u *Unit) Name() string     { return u.slot.Name() }
func (u *Unit) Model() string    { return u.Ident.AristaName }
func (u *Unit) Presence() bool   { return u.slot.Presence() }
func (u *Unit) Status() bool     { return u.slot.Status() }
func (u *Unit) Capacity() int    { return u.Family.Capacity }
func (u *Unit) Revision() string { return u.meta("revision") }
func (u *Unit) Serial() string   { return u.meta("serial") }

func (u *Unit) Mfr() map[string]string { return u.Ident.Metadata }

func (u *Unit) Temps() []*driver.Temp { return u.temps }
func (u *Unit) Fans() []*driver.Fan   { return u.fans }
func (u *Unit) Rails() []*driver.Rail { return u.rails }

func (u *Unit) meta(k string) string {
	if v, found := u.Ident.Metadata[k]; found {
		return v
	}
	return NA
}

// powered reports a non zero power reading on the first rail of the
// given direction; units without such a rail are assumed good.
func (u *Unit) powered(dir inventory.RailDirection) bool {
	for _, r := range u.rails {
		if r.Desc.Direction != dir {
			continue
		}
		w, err := r.Power()
		return err == nil && w != 0
	}
	return true
}
