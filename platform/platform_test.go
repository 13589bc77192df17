// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platform

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/hwapi"
	"github.com/platinasystems/sysplat/internal/cmdline"
	"github.com/platinasystems/sysplat/prefdl"
)

func simulation(t *testing.T) *config.Config {
	c := config.Simulated(t.TempDir())
	config.Set(c)
	ResetSystemEeprom()
	t.Cleanup(func() {
		config.Set(nil)
		ResetSystemEeprom()
	})
	return c
}

func hardware(t *testing.T) *config.Config {
	c := simulation(t)
	sim := false
	c.Simulation = &sim
	return c
}

type box struct {
	*FixedSystem
	setups int
}

func (b *box) Setup() error {
	b.setups++
	return nil
}

func registry() (*Registry, map[string]int) {
	built := make(map[string]int)
	desc := func(name string, skus, sids []string) *Descriptor {
		return &Descriptor{
			Name: name,
			Skus: skus,
			Sids: sids,
			New: func() Platform {
				built[name]++
				return &box{FixedSystem: NewFixedSystem(name)}
			},
		}
	}
	r := NewRegistry()
	r.Register(
		desc("simulation", []string{"simulation"}, nil),
		desc("Clearlake", []string{"DCS-7050TX-64"}, []string{"Clearlake"}),
		desc("Gardena", []string{"DCS-7260CX3-64"}, []string{"Gardena", "GardenaE"}),
	)
	return r, built
}

func TestRegistry(t *testing.T) {
	r, _ := registry()

	d, err := r.Lookup("DCS-7260CX3-64")
	require.NoError(t, err)
	assert.Equal(t, "Gardena", d.Name)
	d, err = r.Lookup("nope", "GardenaE")
	require.NoError(t, err)
	assert.Equal(t, "Gardena", d.Name)

	_, err = r.Lookup("DCS-0000")
	var unknown *UnknownPlatformError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "DCS-0000", unknown.Name)

	assert.Equal(t, []string{"DCS-7050TX-64", "DCS-7260CX3-64", "simulation"}, r.Skus())
	assert.Contains(t, r.Sids(), "GardenaE")
	assert.Len(t, r.Descriptors(), 3)

	assert.Panics(t, func() {
		r.Register(&Descriptor{Name: "Gardena", New: func() Platform { return nil }})
	})
}

func TestDetectOrder(t *testing.T) {
	r, _ := registry()

	// sid beats sku which beats the platform name
	d, err := r.Detect(Identity{Sku: "DCS-7050TX-64", Sid: "GardenaE", Name: "simulation"})
	require.NoError(t, err)
	assert.Equal(t, "Gardena", d.Name)
	d, err = r.Detect(Identity{Sku: "DCS-7050TX-64", Sid: "Unknown", Name: "simulation"})
	require.NoError(t, err)
	assert.Equal(t, "Clearlake", d.Name)
	d, err = r.Detect(Identity{Sku: "DCS-0000", Name: "simulation"})
	require.NoError(t, err)
	assert.Equal(t, "simulation", d.Name)

	_, err = r.Detect(Identity{Sku: "DCS-0000", Sid: "Foo"})
	var unknown *UnknownPlatformError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "DCS-0000", unknown.Sku)
	assert.Equal(t, "Foo", unknown.Sid)
	assert.Equal(t, "unknown platform: sku DCS-0000, sid Foo", err.Error())
}

func TestSimulationLifecycle(t *testing.T) {
	simulation(t)
	r, built := registry()

	p, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, built["simulation"])
	assert.Equal(t, "simulation", p.Eeprom()["SKU"])
	assert.True(t, p.HwApi().Equal(hwapi.New(42)))

	require.NoError(t, Setup(p, component.DefaultFilter))
	require.NoError(t, Setup(p, component.BackgroundFilter))
	require.NoError(t, Clean(p))
	assert.Equal(t, 1, p.(*box).setups)

	p, err = r.Get("Clearlake")
	require.NoError(t, err)
	assert.Equal(t, "Clearlake", p.Base().Name)
}

func TestDetectFromCmdline(t *testing.T) {
	c := simulation(t)
	require.NoError(t, c.ApplyCmdline(cmdline.Parse("Aboot=1 sid=GardenaE")))
	r, built := registry()
	_, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, built["Gardena"])
}

func TestReadPrefdl(t *testing.T) {
	c := hardware(t)
	src := prefdl.FromMap(map[string]string{
		"SKU":          "DCS-7050TX-64",
		"SerialNumber": "JPE12345678",
		"HwApi":        "01.00",
	})
	require.NoError(t, os.MkdirAll(c.FlashPath, 0755))
	require.NoError(t, os.WriteFile(c.Flash(PrefdlBinFile), src.Encode(), 0644))

	p, err := ReadPrefdl()
	require.NoError(t, err)
	assert.True(t, p.CrcValid())
	sku, _ := p.Get("SKU")
	assert.Equal(t, "DCS-7050TX-64", sku)

	// the decode was cached as text and now wins over flash
	require.FileExists(t, c.Etc(SyseepromFile))
	require.NoError(t, os.Remove(c.Flash(PrefdlBinFile)))
	p, err = ReadPrefdl()
	require.NoError(t, err)
	serial, _ := p.Get("SerialNumber")
	assert.Equal(t, "JPE12345678", serial)
	h, ok := p.HwApi()
	require.True(t, ok)
	assert.Equal(t, "01.00", h.String())
}

func TestReadPrefdlEeprom(t *testing.T) {
	c := hardware(t)
	src := prefdl.FromMap(map[string]string{"SKU": "DCS-7260CX3-64"})
	save := ReadEeprom
	ReadEeprom = func() ([]byte, error) {
		// trailing erased bytes follow the crc
		b := src.Encode()
		for len(b) < 256 {
			b = append(b, 0xff)
		}
		return b, nil
	}
	t.Cleanup(func() { ReadEeprom = save })

	// an empty text cache is ignored
	require.NoError(t, os.MkdirAll(c.EtcPath, 0755))
	require.NoError(t, os.WriteFile(c.Etc(SyseepromFile), nil, 0644))

	id := Discover()
	assert.Equal(t, "DCS-7260CX3-64", id.Sku)
	r, built := registry()
	_, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, built["Gardena"])

	ReadEeprom = func() ([]byte, error) { return nil, errors.New("nack") }
	require.NoError(t, os.Remove(c.Etc(SyseepromFile)))
	ResetSystemEeprom()
	assert.Empty(t, SystemEeprom().Map())
	_, err = r.Get()
	var unknown *UnknownPlatformError
	assert.True(t, errors.As(err, &unknown))
}

func TestSkuDefaults(t *testing.T) {
	simulation(t)
	s := &Sku{}
	s.Component.Name = "card"
	assert.Empty(t, s.Eeprom())
	assert.True(t, s.HwApi().Equal(hwapi.New(0, 0)))
	assert.True(t, s.Presence())
	assert.True(t, s.PoweredOn())
	s.SetHwApi(hwapi.New(2, 1))
	assert.Equal(t, 1, s.HwApi().Minor())

	config.Get().UseMetainventory = true
	f := NewFixedSystem("meta")
	child := component.Add(f, component.New("child"))
	assert.NotSame(t, f.Inventory(), child.Inventory())
	assert.Empty(t, f.InventoryReader().Temps())
}
