// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/pci"
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

var testCard = DenaliCardConfig{
	Kind:  Linecard,
	Gpio1: LinecardGpio1,
	Asics: []DenaliAsic{
		{PciOffset: 1, CoreReset: "je0Reset", PcieReset: "je0PcieReset"},
	},
	ScdPciOffset: 2,
}

func testRegistry() *platform.Registry {
	r := platform.NewRegistry()
	r.Register(
		&platform.Descriptor{
			Name: "TestChassis",
			Skus: []string{"DCS-7808-CH"},
			New: func() platform.Platform {
				return NewChassis("TestChassis", DefaultDims)
			},
		},
		&platform.Descriptor{
			Name: "TestCard",
			Sids: []string{"TestCard"},
			NewCard: func(slot platform.Slot) platform.Platform {
				return NewDenaliCard("TestCard", slot.(*CardSlot), testCard)
			},
		},
	)
	return r
}

func testSupervisor(t *testing.T) *DenaliSupervisor {
	sup := NewDenaliSupervisor("TestSup", testRegistry(), DenaliConfig{
		LinecardPorts: []MicrosemiPortDesc{{Port: 32, Dsp: 8}, {Port: 33, Dsp: 9}},
		FabricPorts:   []MicrosemiPortDesc{{Port: 24, Dsp: 1}},
		Psus:          []PsuSlotDesc{{Id: 1, Bank: 1, Bus: 16, Addr: 0x70}},
	})
	require.NoError(t, component.Refresh(sup))
	return sup
}

// plugCard simulates a card in linecard slot i: presence, arbiter and
// eeprom.
func plugCard(sup *DenaliSupervisor, i int, sid string) {
	v := sup.Scd.Mem.Get(0x4100)
	sup.Scd.Mem.Set(0x4100, v|1<<uint(i))
	bus := sup.Scd.I2cOffset + i
	driver.Sim.Add(bus, 0x77)
	eeprom := driver.Sim.Add(bus, 0x50)
	p := prefdl.FromMap(map[string]string{"SKU": "TEST-LC", "SID": sid})
	copy(eeprom.Regs[:], p.Encode())
}

func TestKind(t *testing.T) {
	assert.Equal(t, "linecard", Linecard.String())
	assert.Equal(t, "fabric", Fabric.String())
	assert.Equal(t, LinecardBase, Linecard.Base())
	assert.Equal(t, FabricBase, Fabric.Base())
	assert.Equal(t, 11, FabricBase)
}

func TestProvision(t *testing.T) {
	simulation(t)

	assert.Equal(t, ProvisionNone, ReadProvision(3))
	require.NoError(t, SetProvision(3, ProvisionStatic))
	assert.Equal(t, ProvisionStatic, ReadProvision(3))
	assert.Equal(t, ProvisionNone, ReadProvision(4))
	require.NoError(t, SetProvision(3, ProvisionNone))
	assert.Equal(t, ProvisionNone, ReadProvision(3))
	require.NoError(t, SetProvision(3, ProvisionNone))
	assert.Error(t, SetProvision(3, ProvisionMode(7)))

	m, err := ParseProvisionMode("Static")
	require.NoError(t, err)
	assert.Equal(t, ProvisionStatic, m)
	_, err = ParseProvisionMode("dynamic")
	assert.Error(t, err)
}

func TestPcaArbitration(t *testing.T) {
	simulation(t)
	root := component.New("root")

	dev := driver.Sim.Add(5, 0x77)
	p := NewPca9541(root, address.I2c(5, 0x77), false)
	assert.True(t, p.Ping())
	require.NoError(t, p.TakeOwnership())
	assert.Equal(t, uint8(0x4), dev.Regs[pcaCtrlReg])

	// the peer holds the bus and no command applies
	dev.Regs[pcaCtrlReg] = 0x9
	p.Retries = 3
	err := p.TakeOwnership()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peer")

	absent := NewPca9541(root, address.I2c(6, 0x77), false)
	assert.False(t, absent.Ping())
	assert.Error(t, absent.TakeOwnership())

	kernel := NewPca9541(root, address.I2c(7, 0x70), true)
	assert.Equal(t, PcaSimBus, kernel.BusId())
	assert.Equal(t, PcaSimBus, kernel.I2cAddr(0x58).BusId())
	assert.NoError(t, kernel.TakeOwnership())
}

func TestMicrosemiBind(t *testing.T) {
	simulation(t)
	root := pci.NewRoot()
	m := NewMicrosemi(root, root.RootPort(0, 0, 3, 0))
	port := m.AddPort(3, MicrosemiPortDesc{Port: 32, Dsp: 8, Partition: 1})
	assert.Equal(t, "slot3", port.Label)

	require.NoError(t, m.Bind(3))
	assert.Equal(t, uint32(32<<24|8<<16|1<<8), m.Mem.Get(gasInputData))
	assert.Equal(t, uint32(mrpcPortPartP2P), m.Mem.Get(gasCommand))

	require.NoError(t, m.Unbind(3, DefaultUnbindFlags))
	assert.Equal(t, uint32(DefaultUnbindFlags<<24|8<<16|1<<8|p2pUnbind),
		m.Mem.Get(gasInputData))

	assert.Error(t, m.Bind(4))
}

func TestPlx(t *testing.T) {
	simulation(t)
	p := NewPlx(component.New("root"), address.I2c(1, 0x38))
	assert.True(t, p.Ping())

	require.NoError(t, p.DisableUpstreamPort(2, true))
	assert.Equal(t, uint32(1<<2), p.Mem.Get(0x208))
	require.NoError(t, p.DisableUpstreamPort(0, true))
	require.NoError(t, p.DisableUpstreamPort(2, false))
	assert.Equal(t, uint32(1), p.Mem.Get(0x208))

	require.NoError(t, p.SetUpstreamPort(2))
	v, err := p.Regs.Range("upstreamPort").Get()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)

	p.Mem.Set(0, 0x8086)
	assert.False(t, p.Ping())
}

func TestPexCommand(t *testing.T) {
	assert.Equal(t, []byte{pexI2cRead, 0x0, 0x3c, 0x82}, pexCommand(pexI2cRead, 0x208))
	// port 3 sits in the odd half of the port pair
	assert.Equal(t, []byte{pexI2cWrite, 0x1, 0xbc, 0x00}, pexCommand(pexI2cWrite, 0x3000))
}

func TestGpioExpanderLed(t *testing.T) {
	simulation(t)
	root := component.New("root")
	g := NewGpioExpander(root, address.I2c(1, 0x20), LinecardGpio1)
	l := g.Led("status", "statusRed", "statusGrn")

	_, found := root.Inventory().Leds()["status"]
	assert.True(t, found)

	require.NoError(t, g.Set("cpEcbOn", true))
	on, err := g.Get("cpEcbOn")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, g.Has("powerGood"))
	assert.False(t, g.Has("ramonSmbusEnable"))
	assert.NotNil(t, l)
}

func TestInsertSupervisor(t *testing.T) {
	simulation(t)
	c := NewChassis("Test", DefaultDims)
	s1 := NewSupervisor("sup1", nil)
	s2 := NewSupervisor("sup2", nil)

	require.NoError(t, c.InsertSupervisor(s1, 1, true))
	assert.Same(t, c, s1.Chassis)
	assert.Same(t, s1, c.Active)
	assert.Error(t, c.InsertSupervisor(s2, 1, false))
	assert.Error(t, c.InsertSupervisor(s2, 3, false))
	require.NoError(t, c.InsertSupervisor(s2, 2, false))
	assert.Same(t, s1, c.Active)
	assert.Len(t, c.PresentSupervisors(), 2)

	empty := NewChassis("Empty", DefaultDims)
	_, err := empty.Prefdl()
	assert.True(t, errors.Is(err, ErrNoActiveSupervisor))
	assert.ErrorIs(t, empty.LoadLinecards(), ErrNoActiveSupervisor)
	assert.Empty(t, empty.Cards())
}

func TestSupervisorSlots(t *testing.T) {
	simulation(t)
	sup := testSupervisor(t)

	require.Len(t, sup.LinecardSlots, 2)
	require.Len(t, sup.FabricSlots, 1)
	require.Len(t, sup.PsuSlots, 1)
	assert.Equal(t, 3, sup.LinecardSlots[0].Id)
	assert.Equal(t, 4, sup.LinecardSlots[1].Id)
	assert.Equal(t, 11, sup.FabricSlots[0].Id)
	assert.Equal(t, 0, sup.SlotId())

	s, found := sup.Slot(11)
	require.True(t, found)
	assert.Equal(t, Fabric, s.Kind)
	_, found = sup.Slot(5)
	assert.False(t, found)

	assert.Equal(t, 2, sup.LinecardSlots[0].Bus.BusId())
	assert.Equal(t, 4, sup.FabricSlots[0].Bus.BusId())

	assert.False(t, sup.LinecardSlots[0].Presence())
	sup.Scd.Mem.Set(0x4100, 1)
	assert.True(t, sup.LinecardSlots[0].Presence())
	assert.False(t, sup.LinecardSlots[1].Presence())

	// slot id pin
	id, err := sup.readSlotId()
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	sup.Scd.Mem.Set(0x5000, 1<<2)
	id, err = sup.readSlotId()
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestGetChassis(t *testing.T) {
	simulation(t)
	sup := testSupervisor(t)

	c, err := sup.GetChassis()
	require.NoError(t, err)
	assert.Equal(t, "TestChassis", c.Name)
	assert.Same(t, &sup.Supervisor, c.Active)
	assert.Equal(t, "DCS-7808-CH", c.Eeprom()["SKU"])

	again, err := sup.GetChassis()
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestLoadLinecards(t *testing.T) {
	simulation(t)
	sup := testSupervisor(t)
	plugCard(sup, 0, "TestCard")
	plugCard(sup, 1, "Unknown")

	c, err := sup.GetChassis()
	require.NoError(t, err)
	require.NoError(t, c.LoadLinecards())

	cards := c.Linecards()
	require.Len(t, cards, 1)
	card := cards[0]
	assert.Equal(t, "TestCard(slotId=3)", card.String())
	assert.Equal(t, 1, card.RelativeSlotId())
	assert.True(t, card.Presence())
	assert.True(t, card.IsDetected())
	assert.Equal(t, "TEST-LC", card.Eeprom()["SKU"])
	// standby only by default
	assert.NotNil(t, card.Standby)
	assert.Nil(t, card.Main)

	got, found := c.Card(3)
	require.True(t, found)
	assert.Same(t, card, got)
	_, found = c.Card(4)
	assert.False(t, found)

	_, found = c.InventoryReader().Leds()["status"]
	assert.True(t, found)

	d := c.Diag(false)
	require.Len(t, d.Linecards, 2)
	assert.True(t, d.Linecards[0].Present)
	assert.Equal(t, "TestCard", d.Linecards[0].Card)
	assert.True(t, d.Linecards[1].Present)
	assert.Empty(t, d.Linecards[1].Card)
	assert.False(t, d.Fabrics[0].Present)
}

func TestLoadInvalidEeprom(t *testing.T) {
	simulation(t)
	sup := testSupervisor(t)
	sup.Scd.Mem.Set(0x4100, 1)
	driver.Sim.Add(sup.Scd.I2cOffset, 0x77)
	driver.Sim.Add(sup.Scd.I2cOffset, 0x50)

	_, err := sup.LinecardSlots[0].LoadCard()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eeprom is invalid")
	assert.Nil(t, sup.LinecardSlots[0].Card)
}

func TestSetupCards(t *testing.T) {
	simulation(t)
	sup := testSupervisor(t)
	plugCard(sup, 0, "TestCard")
	plugCard(sup, 1, "TestCard")
	c, err := sup.GetChassis()
	require.NoError(t, err)
	require.NoError(t, c.LoadLinecards())
	require.Len(t, c.Linecards(), 2)

	err = c.SetupCards(c.Linecards(), func(card *Card, l *logging.Logger) error {
		if card.SlotId() == 4 {
			return errors.New("boom")
		}
		return card.SetupStandby(nil)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slotId=4")
	assert.Contains(t, err.Error(), "boom")
}

type countedLink struct {
	pci.LinkSwitch
	enabled, disabled int
}

func (l *countedLink) EnablePort(p *pci.Port) error {
	l.enabled++
	if l.LinkSwitch == nil {
		return nil
	}
	return l.LinkSwitch.EnablePort(p)
}

func (l *countedLink) DisablePort(p *pci.Port) error {
	l.disabled++
	if l.LinkSwitch == nil {
		return nil
	}
	return l.LinkSwitch.DisablePort(p)
}

func TestLinecardPower(t *testing.T) {
	simulation(t)
	sup := testSupervisor(t)
	plugCard(sup, 0, "TestCard")

	slot := sup.LinecardSlots[0]
	slot.SetOptions(LoadOptions{})
	card, err := slot.LoadCard()
	require.NoError(t, err)
	require.NotNil(t, card)
	lc, ok := slot.Node.(*DenaliCard)
	require.True(t, ok)
	require.NotNil(t, lc.Main)
	require.NotNil(t, lc.Scd)
	require.Len(t, lc.Asics, 1)
	lc.Timeout = time.Second

	link := &countedLink{LinkSwitch: slot.Pci.Link}
	slot.Pci.Link = link

	assert.False(t, card.PoweredOn())
	lc.Gpio1.Mem.Set(0, 1<<2)
	require.NoError(t, card.PowerOnIs(true, nil))
	assert.True(t, card.PoweredOn())
	assert.Equal(t, 1, link.enabled)
	assert.Equal(t, 1, link.disabled)

	bit := func(name string) bool {
		on, err := lc.Gpio1.Get(name)
		require.NoError(t, err)
		return on
	}
	assert.True(t, bit("cpEcbOn"))
	assert.True(t, bit("dpEcbOn"))
	assert.False(t, bit("scdReset"))
	assert.False(t, bit("pcieUpstream"))
	assert.False(t, bit("pcieReset"))

	// supervisor 1 uses plx port 0, enabled once bound
	assert.Equal(t, 0, lc.UpstreamPort())
	assert.Equal(t, uint32(0), lc.Plx.Mem.Get(0x208))
	assert.Equal(t, uint32(32<<24|8<<16), sup.PciSwitch.Mem.Get(gasInputData))

	color, err := card.InventoryReader().Leds()["status"].Color()
	require.NoError(t, err)
	assert.EqualValues(t, "amber", color)
	assert.False(t, lc.Asics[0].InReset())

	lc.Gpio1.Mem.Set(0, 0)
	require.NoError(t, card.PowerOnIs(false, nil))
	assert.True(t, lc.Asics[0].InReset())
	assert.True(t, bit("pcieReset"))
	assert.False(t, bit("cpEcbOn"))
	assert.Equal(t, uint32(1), lc.Plx.Mem.Get(0x208))
	assert.Equal(t, uint32(DefaultUnbindFlags<<24|8<<16|p2pUnbind),
		sup.PciSwitch.Mem.Get(gasInputData))
}

func TestPowerWithoutBehavior(t *testing.T) {
	simulation(t)
	c := NewCard("Bare", Linecard, nil)
	assert.Error(t, c.PowerOnIs(true, nil))
	assert.False(t, c.PoweredOn())
	assert.Equal(t, "Bare()", c.String())
}
