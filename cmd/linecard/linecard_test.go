// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package linecard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/modular"
)

type power1 struct {
	on    bool
	calls []bool
	fail  error
}

func (p *power1) PoweredOn() bool { return p.on }

func (p *power1) PowerOnIs(on bool, _ *modular.LcpuCtx) error {
	if p.fail != nil {
		return p.fail
	}
	p.calls = append(p.calls, on)
	p.on = on
	return nil
}

func simulation(t *testing.T, standbyOnly bool) {
	c := config.Simulated(t.TempDir())
	c.LinecardStandbyOnly = standbyOnly
	config.Set(c)
	t.Cleanup(func() { config.Set(nil) })
}

func fake(on bool) (*modular.Card, *power1) {
	p := &power1{on: on}
	card := modular.NewCard("Fake", modular.Linecard, nil)
	card.Behavior = p
	return card, p
}

func run(cards []*modular.Card, args ...string) error {
	a, err := action.ParseCardArgs(args)
	if err != nil {
		return err
	}
	return Run(nil, cards, a)
}

func TestParse(t *testing.T) {
	o, err := parseSetup([]string{"--late", "--on", "--provision", "static"})
	require.NoError(t, err)
	assert.True(t, o.Late)
	assert.False(t, o.Early)
	assert.True(t, o.On)
	assert.Equal(t, modular.ProvisionStatic, o.Provision)

	_, err = parseSetup([]string{"--provision", "dynamic"})
	assert.Error(t, err)

	c, err := parseClean([]string{"-r", "--off"})
	require.NoError(t, err)
	assert.Equal(t, clean{Reset: true, Off: true}, c)

	p, err := parsePower([]string{"off", "--powerCycleIfOn"})
	require.NoError(t, err)
	assert.Equal(t, power{PowerCycleIfOn: true}, p)

	_, err = parsePower([]string{})
	assert.Error(t, err)
	_, err = parsePower([]string{"maybe"})
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	simulation(t, true)
	assert.Error(t, run(nil, "frobnicate"))
	assert.Error(t, run(nil, "setup", "--now"))
	assert.Error(t, run(nil))
}

func TestSetupStandbyOnly(t *testing.T) {
	simulation(t, true)
	card, p := fake(false)
	require.NoError(t, run([]*modular.Card{card}, "setup", "--on"))
	assert.Empty(t, p.calls)
}

func TestSetupOn(t *testing.T) {
	simulation(t, false)
	card, p := fake(true)
	require.NoError(t, run([]*modular.Card{card},
		"setup", "--on", "--powerCycleIfOn"))
	assert.Equal(t, []bool{false, true}, p.calls)

	// lcpu requires standby only mode
	card, p = fake(false)
	require.NoError(t, run([]*modular.Card{card}, "setup", "--on", "--lcpu"))
	assert.Empty(t, p.calls)
}

func TestPower(t *testing.T) {
	simulation(t, true)
	card, p := fake(false)
	require.NoError(t, run([]*modular.Card{card}, "power", "on"))
	assert.True(t, card.PoweredOn())
	require.NoError(t, run([]*modular.Card{card}, "power", "off"))
	assert.Equal(t, []bool{true, false}, p.calls)

	// no cpu module, skipped
	require.NoError(t, run([]*modular.Card{card}, "power", "on", "--lcpu"))
	assert.Len(t, p.calls, 2)
}

func TestPowerFailureContinues(t *testing.T) {
	simulation(t, true)
	bad, _ := fake(false)
	bad.Behavior.(*power1).fail = errors.New("stuck")
	good, p := fake(false)

	err := run([]*modular.Card{bad, good}, "power", "on")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck")
	assert.Equal(t, []bool{true}, p.calls)
}

func TestClean(t *testing.T) {
	simulation(t, false)
	card, p := fake(true)
	require.NoError(t, run([]*modular.Card{card}, "clean", "--reset", "--off"))
	assert.Equal(t, []bool{false}, p.calls)

	simulation(t, true)
	card, p = fake(true)
	require.NoError(t, run([]*modular.Card{card}, "clean", "--off"))
	assert.Empty(t, p.calls)
}

func TestProvisionSkipsCardsWithoutCpu(t *testing.T) {
	simulation(t, true)
	card, _ := fake(true)
	require.NoError(t, run([]*modular.Card{card}, "provision", "--set", "static"))
	assert.Equal(t, modular.ProvisionNone, modular.ReadProvision(card.SlotId()))
	assert.Error(t, run([]*modular.Card{card}, "provision", "--set", "bogus"))
}

func TestRebootWithoutCards(t *testing.T) {
	simulation(t, true)
	require.NoError(t, run(nil, "reboot", "--mode", "soft"))
	assert.Error(t, run(nil, "reboot", "--mode", "warm"))
}
