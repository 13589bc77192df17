// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package action

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/reloadcause"
)

func TestParseIds(t *testing.T) {
	for _, x := range []struct {
		s   string
		ids []int
	}{
		{"", nil},
		{"3", []int{3}},
		{"3,4", []int{3, 4}},
		{"3 4", []int{3, 4}},
		{"3-6", []int{3, 4, 5, 6}},
		{"1,5-6", []int{1, 5, 6}},
	} {
		ids, err := ParseIds(x.s)
		require.NoError(t, err, x.s)
		assert.Equal(t, x.ids, ids, x.s)
	}
	for _, s := range []string{"x", "6-3", "3-x"} {
		_, err := ParseIds(s)
		assert.Error(t, err, s)
		assert.Equal(t, 1, sysplat.ExitCode(err))
	}
}

func TestOnOff(t *testing.T) {
	on, err := OnOff("on")
	require.NoError(t, err)
	assert.True(t, on)
	on, err = OnOff("off")
	require.NoError(t, err)
	assert.False(t, on)
	_, err = OnOff("maybe")
	assert.Error(t, err)
}

func TestParseCardArgs(t *testing.T) {
	_, err := ParseCardArgs(nil)
	assert.Error(t, err)

	a, err := ParseCardArgs([]string{"-i", "3,4", "--parallel",
		"setup", "--on"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, a.Ids)
	assert.True(t, a.Parallel)
	assert.Equal(t, "setup", a.Command)
	assert.Equal(t, []string{"--on"}, a.Args)

	_, err = ParseCardArgs([]string{"--id", "z", "setup"})
	assert.Error(t, err)
}

func TestPhases(t *testing.T) {
	for _, x := range []struct {
		args []string
		want []component.Filter
	}{
		{nil, []component.Filter{component.DefaultFilter,
			component.BackgroundFilter}},
		{[]string{"--early"}, []component.Filter{component.DefaultFilter}},
		{[]string{"--late"}, []component.Filter{component.BackgroundFilter}},
		{[]string{"--early", "--late"}, []component.Filter{
			component.DefaultFilter, component.BackgroundFilter}},
	} {
		ph, rest := ParsePhases(x.args)
		assert.Empty(t, rest)
		var n int
		err := ph.Run(func(component.Filter) error {
			n++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, len(x.want), n, "%v", x.args)
	}

	ph, _ := ParsePhases(nil)
	var n int
	err := ph.Run(func(component.Filter) error {
		n++
		return errors.New("early failed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestEachContinues(t *testing.T) {
	cards := []*modular.Card{
		modular.NewCard("Clearwater", modular.Linecard, nil),
		modular.NewCard("Clearwater", modular.Linecard, nil),
	}
	var n int
	err := Each(nil, cards, false, func(*modular.Card, *logging.Logger) error {
		n++
		return errors.New("no power")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, n)

	n = 0
	err = Each(nil, cards, false, func(*modular.Card, *logging.Logger) error {
		n++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrintCauses(t *testing.T) {
	var b bytes.Buffer
	PrintCauses(&b, nil)
	assert.Equal(t, "No reboot cause detected\n", b.String())

	b.Reset()
	e := reloadcause.NewEntry("watchdog", "", "", reloadcause.Event)
	PrintCauses(&b, []*reloadcause.Report{{}, {Cause: &e}})
	assert.Equal(t, "Found reboot cause(s):\n"+
		"----------------------\n"+
		"watchdog\n", b.String())
}

func TestPrintJson(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, PrintJson(&b, map[string]int{"a": 1}, false))
	assert.Equal(t, "{\"a\":1}\n", b.String())
	b.Reset()
	require.NoError(t, PrintJson(&b, map[string]int{"a": 1}, true))
	assert.Equal(t, "{\n   \"a\": 1\n}\n", b.String())
}

func TestSimulationSummary(t *testing.T) {
	config.Set(config.Simulated(t.TempDir()))
	platform.ResetSystemEeprom()
	t.Cleanup(func() {
		config.Set(nil)
		platform.ResetSystemEeprom()
	})
	p, err := Platform()
	require.NoError(t, err)
	_, err = Chassis(p)
	assert.Error(t, err)

	s := Summarize(p)
	assert.Equal(t, "simulation", s.Platform)
	assert.Len(t, s.Watchdogs, 1)
	assert.Empty(t, Xcvrs(p.InventoryReader()))
}
