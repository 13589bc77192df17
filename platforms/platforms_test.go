// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platforms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/prefdl"
)

func simulation(t *testing.T) *config.Config {
	c := config.Simulated(t.TempDir())
	config.Set(c)
	driver.Sim.Reset()
	platform.ResetSystemEeprom()
	sleep := wait.Sleep
	wait.Sleep = func(time.Duration) {}
	t.Cleanup(func() {
		wait.Sleep = sleep
		config.Set(nil)
		driver.Sim.Reset()
		platform.ResetSystemEeprom()
	})
	return c
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	for _, tc := range []struct {
		name, want string
	}{
		{"DCS-7260CX3-64E", "Gardena"},
		{"GardenaE", "Gardena"},
		{"DCS-7800-SUP1A", "Otterlake"},
		{"DCS-7808-CH", "NorthFace"},
		{"DCS-7804-CH", "Camp"},
		{"7800R3-48CQ-LC", "Clearwater"},
		{"ClearwaterMs", "ClearwaterMs"},
		{"7800R3-48CQM2-LC", "Clearwater2Ms"},
		{"7808R3-FM", "Eldridge"},
		{"simulation", "simulation"},
	} {
		d, err := reg.Lookup(tc.name)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, d.Name, tc.name)
	}

	_, err := reg.Lookup("DCS-0000")
	var unknown *platform.UnknownPlatformError
	assert.ErrorAs(t, err, &unknown)

	assert.Panics(t, func() { Register(reg) })
}

func TestCardsNeedAChassis(t *testing.T) {
	simulation(t)
	_, err := NewRegistry().Get("Clearwater")
	assert.Error(t, err)
}

func TestSimulationPlatform(t *testing.T) {
	simulation(t)
	p, err := NewRegistry().Get("simulation")
	require.NoError(t, err)
	s, ok := p.(*Simulation)
	require.True(t, ok)
	assert.Equal(t, 2, s.Scd.I2cOffset)
	assert.Len(t, p.InventoryReader().Watchdogs(), 1)
	assert.Equal(t, "simulation", p.Eeprom()["SKU"])
}

func TestGardena(t *testing.T) {
	simulation(t)
	p, err := NewRegistry().Get("DCS-7260CX3-64")
	require.NoError(t, err)
	g, ok := p.(*Gardena)
	require.True(t, ok)

	inv := p.InventoryReader()
	assert.Len(t, inv.XcvrSlots(), 66)
	assert.Len(t, inv.PsuSlots(), 2)
	assert.Len(t, inv.Watchdogs(), 1)
	assert.Len(t, inv.PowerCycles(), 1)
	assert.Len(t, inv.Fans(), rookFans)
	assert.Len(t, inv.ReloadCauseProviders(), 2)
	assert.Len(t, inv.Programmables(), 3)

	_, found := inv.Resets()["switch_chip_reset"]
	assert.True(t, found)
	require.Len(t, g.Asic.CoreResets, 1)
	require.Len(t, g.Asic.PcieResets, 1)

	_, found = inv.Gpios()["psu2_ac_status"]
	assert.True(t, found)

	// cages 1-32 share bank 1, 33-64 bank 2
	slots := inv.XcvrSlots()
	require.Contains(t, slots, 1)
	require.Contains(t, slots, 64)
	_, found = inv.Leds()["qsfp1_4"]
	assert.True(t, found)
	_, found = inv.Leds()["sfp66"]
	assert.True(t, found)

	dpms := component.FindAll[*component.I2cChip](g.Cpu)
	assert.NotEmpty(t, dpms)
}

// plugClearwater simulates a Clearwater card in linecard slot i.
func plugClearwater(o *Otterlake, i int) {
	bus := o.Scd.I2cOffset + i
	driver.Sim.Add(bus, 0x77)
	eeprom := driver.Sim.Add(bus, 0x50)
	p := prefdl.FromMap(map[string]string{
		"SKU": "7800R3-48CQ-LC",
		"SID": "Clearwater",
	})
	copy(eeprom.Regs[:], p.Encode())
}

func TestOtterlake(t *testing.T) {
	simulation(t)
	p, err := NewRegistry().Get("Otterlake")
	require.NoError(t, err)
	o, ok := p.(*Otterlake)
	require.True(t, ok)

	assert.Len(t, o.LinecardSlots, 8)
	assert.Len(t, o.FabricSlots, 6)
	require.Len(t, o.PsuSlots, 12)
	assert.Equal(t, 7, o.PsuSlots[6].Id())
	assert.Equal(t, 2, o.Scd.I2cOffset)

	inv := p.InventoryReader()
	_, found := inv.Leds()["linecard_status"]
	assert.True(t, found)
	assert.Len(t, inv.SeuReporters(), 1)
	assert.Len(t, inv.ReloadCauseProviders(), 2)
	_, found = inv.Gpios()["cpu_recovery"]
	assert.True(t, found)
	assert.Equal(t, "supervisor_shim", o.ShimProm.Label)
}

func TestLoadClearwaterCards(t *testing.T) {
	simulation(t)
	p, err := NewRegistry().Get("Otterlake")
	require.NoError(t, err)
	o := p.(*Otterlake)

	o.Scd.Mem.Set(0x4100, 0xf)
	for i := 0; i < 4; i++ {
		plugClearwater(o, i)
	}

	c, err := o.GetChassis()
	require.NoError(t, err)
	assert.Equal(t, "NorthFace", c.Name)
	assert.Equal(t, "DCS-7808-CH", c.Eeprom()["SKU"])
	assert.Equal(t, NorthFaceDims, c.Dims)

	require.NoError(t, c.LoadLinecards())
	cards := c.Linecards()
	require.Len(t, cards, 4)
	for i, card := range cards {
		assert.Equal(t, "Clearwater", card.Name)
		assert.Equal(t, i+1, card.RelativeSlotId())
		assert.Equal(t, "7800R3-48CQ-LC", card.Eeprom()["SKU"])
		require.NotNil(t, card.Standby)
		assert.Nil(t, card.Main)
	}

	lc, ok := o.LinecardSlots[0].Node.(*modular.DenaliCard)
	require.True(t, ok)
	// no hardware api revision in the eeprom
	assert.Equal(t, uint16(0x20), lc.Gpio1.Addr.Address)
	assert.Len(t, lc.Inventory().Temps(), 3)
}

func TestClearwaterMainDomain(t *testing.T) {
	c := simulation(t)
	c.LinecardStandbyOnly = false
	p, err := NewRegistry().Get("Otterlake")
	require.NoError(t, err)
	o := p.(*Otterlake)

	o.Scd.Mem.Set(0x4100, 1)
	plugClearwater(o, 0)
	ch, err := o.GetChassis()
	require.NoError(t, err)
	require.NoError(t, ch.LoadLinecards(3))

	lc, ok := o.LinecardSlots[0].Node.(*modular.DenaliCard)
	require.True(t, ok)
	require.NotNil(t, lc.Main)
	require.NotNil(t, lc.Scd)
	require.Len(t, lc.Asics, 1)
	assert.Len(t, lc.Asics[0].CoreResets, 1)

	inv := lc.Inventory()
	assert.Len(t, inv.XcvrSlots(), 48)
	phys := inv.Phys()
	require.Len(t, phys, clearwaterPhys)
	assert.Equal(t, "phy12_reset", phys[11].Reset().Name())
	assert.Len(t, phys[0].(*Phy).Mdios, 2)
	// the sequencer and the daughter cards
	assert.Len(t, inv.ReloadCauseProviders(), 1)
	assert.Len(t, inv.Temps(), 3+5+2)
}

func TestEldridge(t *testing.T) {
	simulation(t)
	p, err := NewRegistry().Get("Otterlake")
	require.NoError(t, err)
	o := p.(*Otterlake)

	o.Scd.Mem.Set(0x4110, 1)
	bus := o.FabricSlots[0].Bus.BusId()
	driver.Sim.Add(bus, 0x77)
	eeprom := driver.Sim.Add(bus, 0x50)
	copy(eeprom.Regs[:], prefdl.FromMap(map[string]string{
		"SKU": "7808R3-FM", "SID": "Eldridge",
	}).Encode())

	ch, err := o.GetChassis()
	require.NoError(t, err)
	require.NoError(t, ch.LoadFabrics())
	cards := ch.Fabrics()
	require.Len(t, cards, 1)
	fc, ok := o.FabricSlots[0].Node.(*modular.DenaliCard)
	require.True(t, ok)

	inv := fc.Inventory()
	fans := inv.Fans()
	require.Len(t, fans, 16)
	assert.Equal(t, "fabric1/1", fans[0].Name())
	assert.Equal(t, "fabric1/16", fans[15].Name())
	_, found := inv.Leds()["fabric1_fan8"]
	assert.True(t, found)
	// tmp468 and max6658 before revision 42
	assert.Len(t, inv.Temps(), 9)
	require.Len(t, fc.Asics, 3)
	assert.Equal(t, "ramon2SysReset", fc.Asics[2].CoreResets[0].Name())
}

func TestPsuModels(t *testing.T) {
	l := psuModels("DPS750AB", "DS495SPE")
	require.Len(t, l, 2)
	assert.Equal(t, "DS495SPE", l[1].Name)
	assert.Panics(t, func() { psuModels("nope") })
}

func TestSimulatedLifecycle(t *testing.T) {
	reg := NewRegistry()
	var n int
	for _, d := range reg.Descriptors() {
		if d.New == nil {
			continue
		}
		n++
		t.Run(d.Name, func(t *testing.T) {
			simulation(t)
			p, err := reg.Get(d.Name)
			require.NoError(t, err)
			assert.NotPanics(t, func() { component.Check(p) })
			require.NoError(t, platform.Setup(p, component.DefaultFilter))
			require.NoError(t, platform.Setup(p, component.BackgroundFilter))
			require.NoError(t, platform.Clean(p))
		})
	}
	assert.GreaterOrEqual(t, n, 5)
}
