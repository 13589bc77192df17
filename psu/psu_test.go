// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package psu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/jsonstore"
	"github.com/platinasystems/sysplat/inventory"
)

func simulation(t *testing.T) {
	config.Set(config.Simulated(t.TempDir()))
	driver.Sim.Reset()
	t.Cleanup(func() {
		config.Set(nil)
		driver.Sim.Reset()
	})
}

func plug(bus int, mfr, model, serial string) *driver.SimDevice {
	d := driver.Sim.Add(bus, 0x58)
	d.Blocks[MfrId] = []byte(mfr)
	d.Blocks[MfrModel] = []byte(model)
	d.Blocks[MfrSerial] = []byte(serial)
	return d
}

func model(t *testing.T, name string) *Model {
	m, found := Lookup(name)
	require.True(t, found, name)
	return m
}

type fakeGpio struct {
	active bool
}

func (g *fakeGpio) Name() string              { return "psu_present" }
func (g *fakeGpio) Addr() uint32              { return 0 }
func (g *fakeGpio) Bit() uint                 { return 0 }
func (g *fakeGpio) IsRo() bool                { return true }
func (g *fakeGpio) IsActiveLow() bool         { return false }
func (g *fakeGpio) RawValue() (uint32, error) { return 0, nil }
func (g *fakeGpio) IsActive() (bool, error)   { return g.active, nil }
func (g *fakeGpio) SetActive(v bool) error    { g.active = v; return nil }

func TestIdentify(t *testing.T) {
	simulation(t)
	plug(5, "DELTA", "DPS-495CB-1 A", "SN123")

	root := component.New("board")
	s := NewSlot(root, SlotConfig{
		Id:     1,
		Bus:    address.FixedBus(5),
		Models: []*Model{model(t, "DPS495CB")},
	})
	// nothing cached, no i2c access before setup
	assert.Nil(t, s.Psu())
	assert.Equal(t, NA, s.Model())
	assert.Equal(t, NA, s.Serial())

	require.NoError(t, component.Setup(root, component.All))
	require.NotNil(t, s.Psu())
	assert.Equal(t, "PWR-500AC-R", s.Model())
	assert.Equal(t, "SN123", s.Serial())
	assert.Equal(t, "psu1", s.Psu().Name())
	assert.True(t, s.Status())

	u := s.Unit()
	assert.Equal(t, 500, u.Capacity())
	assert.Equal(t, NA, u.Revision())
	assert.Equal(t, "DELTA", u.Mfr()["id"])
	require.Len(t, u.Fans(), 1)
	assert.Equal(t, "psu1/1", u.Fans()[0].Name())
	assert.Equal(t, inventory.AirflowIntake, u.Fans()[0].Direction())
	require.Len(t, u.Temps(), 3)
	assert.Equal(t, "Power supply 1 hotspot sensor", u.Temps()[0].Name())
	assert.Equal(t, 95.0, u.Temps()[0].HighThreshold())

	inv := root.Inventory()
	assert.Len(t, inv.PsuSlots(), 1)
	assert.Len(t, inv.Psus(), 1)
	assert.Len(t, inv.Temps(), 3)
	assert.Len(t, inv.Rails(), 2)

	// identifying again keeps the published objects
	require.NoError(t, s.Load(false, false))
	assert.Same(t, u, s.Unit())
	assert.Len(t, inv.Temps(), 3)

	// the model cache is never written in simulation
	assert.False(t, s.store().Exists())
	require.NoError(t, component.Clean(root))
}

func TestCatalogFallback(t *testing.T) {
	simulation(t)
	plug(6, "Liteon Power", "PS-2102-1AR", "L1")

	root := component.New("board")
	s := NewSlot(root, SlotConfig{
		Id:     2,
		Bus:    address.FixedBus(6),
		Models: []*Model{model(t, "DPS495CB")},
	})
	require.NoError(t, s.Load(false, false))
	assert.Equal(t, "PWR-1011-AC-BLUE", s.Model())
	assert.Equal(t, "dps800", s.Unit().Component.Name)
}

func TestUnknownAndAbsent(t *testing.T) {
	simulation(t)
	plug(7, "DELTA", "DPS-9999 A", "D1")

	root := component.New("board")
	s := NewSlot(root, SlotConfig{Id: 1, Bus: address.FixedBus(7)})
	require.NoError(t, s.Load(false, false))
	assert.Nil(t, s.Psu())
	assert.Equal(t, NA, s.Model())

	present := &fakeGpio{}
	plug(8, "DELTA", "DPS-495CB A", "D2")
	s = NewSlot(root, SlotConfig{Id: 2, Bus: address.FixedBus(8), Present: present})
	require.NoError(t, s.Load(false, false))
	assert.Nil(t, s.Psu())
	assert.False(t, s.Status())
	assert.Equal(t, NA, s.Serial())

	present.active = true
	require.NoError(t, s.Load(false, false))
	assert.Equal(t, "PWR-500AC-F", s.Model())
	assert.Equal(t, inventory.AirflowExhaust, s.Unit().Fans()[0].Direction())

	// pulling the unit hides it without another load
	present.active = false
	assert.Equal(t, NA, s.Model())
}

func TestCache(t *testing.T) {
	simulation(t)
	require.NoError(t, jsonstore.Temporary("psu_slot_3.json").Write(cached{
		Cls: "DPS750AB",
		Identifier: Ident{
			PartName:   "DPS-750AB-24 A",
			AristaName: "PWR-745AC-F",
			Airflow:    inventory.AirflowExhaust,
			Metadata:   map[string]string{"serial": "C750"},
		},
	}))

	root := component.New("board")
	s := NewSlot(root, SlotConfig{Id: 3, Bus: address.FixedBus(9)})
	assert.Equal(t, "PWR-745AC-F", s.Model())
	assert.Equal(t, "C750", s.Serial())

	// a fresh load drops the cache; nothing answers on the bus
	require.NoError(t, s.Load(false, false))
	assert.False(t, s.store().Exists())
}

func TestForceLoad(t *testing.T) {
	simulation(t)
	root := component.New("board")
	s := NewSlot(root, SlotConfig{
		Id:        1,
		Bus:       address.FixedBus(11),
		Models:    []*Model{model(t, "DPS1500AB")},
		ForceLoad: true,
	})
	require.NoError(t, s.Load(false, false))
	assert.Equal(t, "PWR-1511-AC-RED", s.Model())
	assert.Equal(t, NA, s.Serial())

	fixed := NewSlot(root, SlotConfig{Id: 2, Models: []*Model{Fixed150AC}})
	require.NoError(t, fixed.Load(false, false))
	assert.Equal(t, "PWR-440-AC", fixed.Model())
	assert.True(t, fixed.Status())
	assert.Empty(t, fixed.Unit().Fans())

	assert.Panics(t, func() {
		NewSlot(root, SlotConfig{Id: 3, Models: Models[:2]})
	})
}

type fakeClient struct {
	present bool
	blocks  map[uint8]string
	writes  [][2]uint8
	reads   int
}

func (c *fakeClient) Ping() bool { return c.present }

func (c *fakeClient) ReadBlockData(cmd uint8) ([]byte, error) {
	c.reads++
	s, found := c.blocks[cmd]
	if !found {
		return nil, errors.New("nack")
	}
	return []byte(s), nil
}

func (c *fakeClient) WriteByteData(cmd, v uint8) error {
	c.writes = append(c.writes, [2]uint8{cmd, v})
	return nil
}

func TestDetector(t *testing.T) {
	c := &fakeClient{
		present: true,
		blocks: map[uint8]string{
			MfrId:        "Arista",
			MfrModel:     "PWR-00585\x00",
			MfrSerial:    "A585",
			VendorMfrId:  "DELTA",
			AristaMfrSku: "PWR-1513-AC-RED",
		},
	}
	d := NewDetectorWith(address.I2c(1, 0x58), c)
	assert.Equal(t, [][2]uint8{{0, 0}}, c.writes)
	assert.Equal(t, "PWR-00585", d.Model())
	assert.Equal(t, NA, d.Revision())

	md := d.Metadata()
	assert.Equal(t, "A585", md["serial"])
	assert.Equal(t, "DELTA", md["arista_mfr_id"])
	assert.Equal(t, NA, md["arista_mfr_model"])
	assert.Equal(t, "PWR-1513-AC-RED", md["arista_sku"])

	// strings are read once
	reads := c.reads
	d.Model()
	d.Serial()
	assert.Equal(t, reads, c.reads)

	id, found := model(t, "Pwr585").Identify(d)
	require.True(t, found)
	assert.Equal(t, "PWR-1513-AC-RED", id.AristaName)
	_, found = model(t, "DPS495CB").Identify(d)
	assert.False(t, found)

	ac := &fakeClient{}
	absent := NewDetectorWith(address.I2c(1, 0x58), ac)
	assert.Empty(t, ac.writes)
	assert.Equal(t, UnknownMetadata(), absent.Metadata())
}

func TestIsManufacturer(t *testing.T) {
	m := model(t, "DS495SPE")
	assert.True(t, m.IsManufacturer(" Artesyn "))
	assert.True(t, m.IsManufacturer("EMERSON"))
	assert.False(t, m.IsManufacturer("delta"))

	id, found := model(t, "DS460").Ident("DS460S-3-003")
	require.True(t, found)
	assert.Equal(t, inventory.AirflowIntake, id.Airflow)
}
