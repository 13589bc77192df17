// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package setup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
)

func simulation(t *testing.T) {
	config.Set(config.Simulated(t.TempDir()))
	spawn := Spawn
	t.Cleanup(func() {
		Spawn = spawn
		config.Set(nil)
		sysplat.Globals = nil
	})
}

func TestParse(t *testing.T) {
	a, err := Parse([]string{"--early", "--reset"})
	require.NoError(t, err)
	assert.Equal(t, Args{Early: true, Reset: true}, a)

	_, err = Parse([]string{"--now"})
	assert.Error(t, err)
}

func TestSetupSimulation(t *testing.T) {
	simulation(t)
	p, err := action.Registry().Get("simulation")
	require.NoError(t, err)

	Spawn = func(...string) error {
		t.Fatal("unexpected spawn")
		return nil
	}
	require.NoError(t, Run(p, Args{Reset: true}))
	require.NoError(t, Run(p, Args{Early: true}))
	require.NoError(t, Run(p, Args{Late: true}))
}

func TestSetupBackground(t *testing.T) {
	simulation(t)
	p, err := action.Registry().Get("simulation")
	require.NoError(t, err)

	var spawned []string
	Spawn = func(args ...string) error {
		spawned = args
		return nil
	}
	sysplat.Globals = []string{"-simulation"}
	require.NoError(t, Run(p, Args{Background: true}))
	assert.Equal(t, []string{"-simulation", "setup", "--late"}, spawned)

	spawned = nil
	Spawn = func(...string) error { return errors.New("no fork") }
	require.NoError(t, Run(p, Args{Background: true}))
	assert.Nil(t, spawned)
}
