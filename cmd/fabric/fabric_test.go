// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package fabric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/modular"
)

type switchable struct {
	on    bool
	calls []bool
}

func (s *switchable) PoweredOn() bool { return s.on }

func (s *switchable) PowerOnIs(on bool, _ *modular.LcpuCtx) error {
	s.calls = append(s.calls, on)
	s.on = on
	return nil
}

func run(t *testing.T, args ...string) (*switchable, error) {
	config.Set(config.Simulated(t.TempDir()))
	t.Cleanup(func() { config.Set(nil) })
	s := &switchable{}
	card := modular.NewCard("Fake", modular.Fabric, nil)
	card.Behavior = s
	a, err := action.ParseCardArgs(args)
	if err != nil {
		return s, err
	}
	return s, Run(nil, []*modular.Card{card}, a)
}

func TestSetup(t *testing.T) {
	s, err := run(t, "setup")
	require.NoError(t, err)
	assert.Empty(t, s.calls)

	s, err = run(t, "setup", "--early", "--on")
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, s.calls)
}

func TestCleanOff(t *testing.T) {
	s, err := run(t, "clean", "-r", "--off")
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, s.calls)
}

func TestPower(t *testing.T) {
	s, err := run(t, "--parallel", "power", "on")
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, s.calls)

	_, err = run(t, "power")
	assert.Error(t, err)
	_, err = run(t, "power", "up")
	assert.Error(t, err)
}

func TestUnknown(t *testing.T) {
	_, err := run(t, "provision", "--set", "static")
	assert.Error(t, err)
	_, err = run(t, "setup", "--lcpu")
	assert.Error(t, err)
}
