// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package psu identifies power supplies through their PMBus manufacturer
// strings and publishes them in the inventory of their slot.
package psu

import (
	"fmt"
	"strings"

	"github.com/platinasystems/sysplat/inventory"
)

const (
	exhaust = inventory.AirflowExhaust
	intake  = inventory.AirflowIntake
)

// Ident maps a manufacturer part number to the product name.
type Ident struct {
	PartName   string            `json:"partName"`
	AristaName string            `json:"aristaName"`
	Airflow    inventory.Airflow `json:"airflow"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Model is a family of units sharing a PMBus address and description.
type Model struct {
	Name         string
	Manufacturer string
	Aliases      []string
	Identifiers  []Ident
	PmbusAddr    uint16
	// Capacity in Watts.
	Capacity  int
	DualInput bool
	// Driver is the kernel i2c client name, pmbus if empty.
	Driver string
	Desc   inventory.PsuDesc
}

func (m *Model) String() string { return m.Name }

func (m *Model) driver() string {
	if len(m.Driver) > 0 {
		return m.Driver
	}
	return "pmbus"
}

func clean(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IsManufacturer matches the manufacturer or one of its aliases.
func (m *Model) IsManufacturer(name string) bool {
	name = clean(name)
	if name == clean(m.Manufacturer) {
		return true
	}
	for _, a := range m.Aliases {
		if name == clean(a) {
			return true
		}
	}
	return false
}

// Ident returns the first identifier whose part name prefixes model.
func (m *Model) Ident(model string) (Ident, bool) {
	model = strings.TrimSpace(model)
	for _, id := range m.Identifiers {
		if strings.HasPrefix(model, strings.TrimSpace(id.PartName)) {
			return id, true
		}
	}
	return Ident{}, false
}

// Identify returns the identifier of the unit behind the detector if it
// is of this model.
func (m *Model) Identify(d *Detector) (Ident, bool) {
	if !d.Exists() {
		return Ident{}, false
	}
	if !m.IsManufacturer(d.Id()) {
		return Ident{}, false
	}
	id, found := m.Ident(d.Model())
	if !found {
		return Ident{}, false
	}
	id.Metadata = d.Metadata()
	return id, true
}

// Description renders the model description for a slot and airflow.
func (m *Model) Description(slotId int, airflow inventory.Airflow) inventory.PsuDesc {
	d := m.Desc.WithPsuId(slotId)
	d.SetAirflow(airflow)
	return d
}

type sensor struct {
	name                       string
	position                   string
	target, overheat, critical float64
}

// describe builds the usual description of a unit with one fan, an input
// and an output rail.
func describe(fans bool, sensors ...sensor) inventory.PsuDesc {
	d := inventory.PsuDesc{
		Rails: []inventory.RailDesc{
			{RailId: 1, Direction: inventory.RailInput, Voltage: 1, Current: 1, Power: 1},
			{RailId: 1, Direction: inventory.RailOutput, Voltage: 2, Current: 2, Power: 2},
		},
	}
	if fans {
		d.Fans = []inventory.FanDesc{{
			FanId:    1,
			Name:     "psu{psuId}/{fanId}",
			Position: inventory.PositionOutlet,
		}}
	}
	for i, s := range sensors {
		d.Sensors = append(d.Sensors, inventory.Sensor(i,
			fmt.Sprintf("Power supply {psuId} %s sensor", s.name),
			s.position, s.target, s.overheat, s.critical))
	}
	return d
}

var (
	deltaDesc = describe(true,
		sensor{"hotspot", inventory.PositionOther, 80, 95, 100},
		sensor{"inlet temp", inventory.PositionInlet, 55, 70, 75},
		sensor{"exhaust temp", inventory.PositionOutlet, 80, 108, 113})
	artesynDesc = describe(true,
		sensor{"inlet", inventory.PositionInlet, 55, 70, 75},
		sensor{"secondary hotspot", inventory.PositionOther, 70, 95, 100},
		sensor{"primary hotspot", inventory.PositionOther, 70, 95, 100})
	liteonDesc = describe(true,
		sensor{"inlet", inventory.PositionInlet, 50, 60, 65},
		sensor{"secondary hotspot", inventory.PositionOther, 80, 108, 113},
		sensor{"primary hotspot", inventory.PositionOther, 80, 108, 113})
)

// Models is the catalog tried when a slot lists no candidate or none of
// its candidates matches.
var Models = []*Model{
	{
		Name:         "DPS495CB",
		Manufacturer: "delta",
		PmbusAddr:    0x58,
		Capacity:     500,
		Desc:         deltaDesc,
		Identifiers: []Ident{
			{PartName: "DPS-495CB A", AristaName: "PWR-500AC-F", Airflow: exhaust},
			{PartName: "DPS-495CB-1 A", AristaName: "PWR-500AC-R", Airflow: intake},
			{PartName: "DPS-495CB C", AristaName: "PWR-500AC-F", Airflow: exhaust},
			{PartName: "DPS-495CB-1 C", AristaName: "PWR-500AC-R", Airflow: intake},
		},
	},
	{
		Name:         "DPS500AB",
		Manufacturer: "delta",
		PmbusAddr:    0x58,
		Capacity:     500,
		Desc:         deltaDesc,
		Identifiers: []Ident{
			{PartName: "DPS-500AB-40 A", AristaName: "PWR-511-AC-RED", Airflow: exhaust},
			{PartName: "DPS-500AB-41 A", AristaName: "PWR-511-DC-RED", Airflow: exhaust},
			{PartName: "DPS-500AB-42 A", AristaName: "PWR-511-DC-BLUE", Airflow: intake},
			{PartName: "DPS-500AB-43 A", AristaName: "PWR-511-AC-BLUE", Airflow: intake},
		},
	},
	{
		Name:         "DPS750AB",
		Manufacturer: "delta",
		PmbusAddr:    0x58,
		Capacity:     750,
		Desc:         deltaDesc,
		Identifiers: []Ident{
			{PartName: "DPS-750AB-24", AristaName: "PWR-745AC-F", Airflow: exhaust},
			{PartName: "DPS-750AB-25", AristaName: "PWR-745AC-R", Airflow: intake},
		},
	},
	{
		Name:         "DPS1500AB",
		Manufacturer: "delta",
		PmbusAddr:    0x58,
		Capacity:     1500,
		Desc:         deltaDesc,
		Identifiers: []Ident{
			{PartName: "DPS-1500AB-7 A", AristaName: "PWR-1511-AC-RED", Airflow: exhaust},
			{PartName: "DPS-1500AB-9 A", AristaName: "PWR-1511-DC-RED", Airflow: exhaust},
		},
	},
	{
		Name:         "DS495SPE",
		Manufacturer: "artesyn",
		Aliases:      []string{"emerson"},
		PmbusAddr:    0x58,
		Capacity:     500,
		Desc:         artesynDesc,
		Identifiers: []Ident{
			{PartName: "DS495SPE-3-401", AristaName: "PWR-500AC-F", Airflow: exhaust},
			{PartName: "DS495SPE-3-402", AristaName: "PWR-500AC-R", Airflow: intake},
			{PartName: "DS495SPE-3-404", AristaName: "PWR-500AC-R", Airflow: intake},
			{PartName: "DS495SPE-3-405", AristaName: "PWR-500AC-F", Airflow: exhaust},
		},
	},
	{
		Name:         "DS460",
		Manufacturer: "artesyn",
		Aliases:      []string{"emerson"},
		PmbusAddr:    0x58,
		Capacity:     460,
		Driver:       "dps460",
		Desc:         artesynDesc,
		Identifiers: []Ident{
			{PartName: "DS460S-3-001", AristaName: "PWR-460AC-R", Airflow: intake},
			{PartName: "DS460S-3-002", AristaName: "PWR-460AC-F", Airflow: exhaust},
			{PartName: "DS460S-3-003", AristaName: "PWR-460AC-R", Airflow: intake},
			{PartName: "DS460", AristaName: "PWR-460AC-F", Airflow: exhaust},
		},
	},
	{
		Name:         "PS2102",
		Manufacturer: "liteon power",
		PmbusAddr:    0x58,
		Capacity:     1000,
		Driver:       "dps800",
		Desc:         liteonDesc,
		Identifiers: []Ident{
			{PartName: "PS-2102-1AR", AristaName: "PWR-1011-AC-BLUE", Airflow: intake},
			{PartName: "DD-2102-1AR", AristaName: "PWR-1011-DC-BLUE", Airflow: intake},
			{PartName: "PS-2102-1A", AristaName: "PWR-1011-AC-RED", Airflow: exhaust},
			{PartName: "DD-2102-1A", AristaName: "PWR-1011-DC-RED", Airflow: exhaust},
		},
	},
	{
		Name:         "Pwr585",
		Manufacturer: "arista",
		PmbusAddr:    0x58,
		Capacity:     1500,
		DualInput:    true,
		Desc:         deltaDesc,
		Identifiers: []Ident{
			{PartName: "PWR-00585", AristaName: "PWR-1513-AC-RED", Airflow: exhaust},
			{PartName: "PWR-00586", AristaName: "PWR-1513-AC-BLUE", Airflow: intake},
		},
	},
}

// ECD3000 lists the 3kW chassis supplies of modular systems.
var ECD3000 = &Model{
	Name:         "ECD3000",
	Manufacturer: "delta",
	PmbusAddr:    0x58,
	Capacity:     3000,
	DualInput:    true,
	Driver:       "dps800",
	Desc:         deltaDesc,
	Identifiers: []Ident{
		{PartName: "ECD16020102", AristaName: "PWR-3001-AC-RED", Airflow: exhaust},
		{PartName: "ECD26020037", AristaName: "PWR-3001-DC-RED", Airflow: exhaust},
	},
}

// Fixed150AC is the fixed supply of boards without a PSU slot.
var Fixed150AC = &Model{
	Name:         "Fixed150AC",
	Manufacturer: "arista",
	Capacity:     150,
	Identifiers: []Ident{
		{PartName: "PWR-440-AC", AristaName: "PWR-440-AC", Airflow: exhaust},
	},
}

// Lookup finds a catalog model by name.
func Lookup(name string) (*Model, bool) {
	for _, m := range Models {
		if m.Name == name {
			return m, true
		}
	}
	for _, m := range []*Model{Fixed150AC, ECD3000} {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}
