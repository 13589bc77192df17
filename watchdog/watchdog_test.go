// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/clock"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/register"
)

func hardware(t *testing.T) {
	c := config.Simulated(t.TempDir())
	sim := false
	c.Simulation = &sim
	config.Set(c)
	t.Cleanup(func() { config.Set(nil) })
}

func fakeClock(t *testing.T) *time.Duration {
	now := 1000 * time.Second
	raw := clock.MonotonicRaw
	clock.MonotonicRaw = func() time.Duration { return now }
	t.Cleanup(func() { clock.MonotonicRaw = raw })
	return &now
}

func TestControlWord(t *testing.T) {
	assert.Equal(t, uint32(0xc0007530), ControlWord(30000, PowerCycle))
	assert.Zero(t, ControlWord(0, PowerCycle))
}

func TestRemainingTime(t *testing.T) {
	hardware(t)
	now := fakeClock(t)
	mem := register.NewMemory()
	w := NewScd(mem)

	require.NoError(t, w.Arm(30000))
	assert.Equal(t, uint32(0xc0007530), mem.Get(DefaultReg))

	*now += 5 * time.Second
	st, err := w.Status()
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, 30000, st.Timeout)
	assert.Equal(t, 29500, st.Remaining)

	*now += 45 * time.Second
	st, err = w.Status()
	require.NoError(t, err)
	assert.InDelta(t, 25000, st.Remaining, 500)
	assert.Equal(t, 250, Seconds(st.Remaining))

	require.NoError(t, w.Stop())
	assert.Zero(t, mem.Get(DefaultReg))
	st, err = w.Status()
	require.NoError(t, err)
	assert.False(t, st.Enabled)
	assert.Equal(t, -1, st.Remaining)
	assert.Equal(t, -1, Seconds(st.Remaining))
}

func TestStateAcrossProcesses(t *testing.T) {
	hardware(t)
	now := fakeClock(t)
	mem := register.NewMemory()
	require.NoError(t, NewScd(mem).Arm(6000))

	// another process only has the register and the state file
	*now += 10 * time.Second
	st, err := NewScd(mem).Status()
	require.NoError(t, err)
	assert.Equal(t, 5000, st.Remaining)

	// the hardware timeout wins over a stale record
	mem.Set(DefaultReg, ControlWord(9000, PowerCycle))
	st, err = NewScd(mem).Status()
	require.NoError(t, err)
	assert.Equal(t, 9000, st.Timeout)
	assert.Equal(t, 8000, st.Remaining)
}

func TestLimits(t *testing.T) {
	hardware(t)
	mem := register.NewMemory()
	w := NewScd(mem)
	assert.Error(t, w.Arm(MaxTimeout+1))
	assert.Error(t, w.Arm(-1))
	assert.Zero(t, mem.Get(DefaultReg))
	require.NoError(t, w.Arm(MaxTimeout))
}

func TestSimulation(t *testing.T) {
	config.Set(config.Simulated(t.TempDir()))
	t.Cleanup(func() { config.Set(nil) })

	mem := register.NewMemory()
	w := NewScd(mem)
	require.NoError(t, w.Arm(100))
	assert.Zero(t, mem.Get(DefaultReg))
	st, err := w.Status()
	require.NoError(t, err)
	assert.Equal(t, inventory.WatchdogStatus{Enabled: true, Timeout: 300, Remaining: 100}, st)
	require.NoError(t, w.Stop())
}

func TestSoft(t *testing.T) {
	hardware(t)
	now := fakeClock(t)
	var w inventory.Watchdog = NewSoft()
	st, err := w.Status()
	require.NoError(t, err)
	assert.Equal(t, inventory.WatchdogStatus{Remaining: -1}, st)

	require.NoError(t, w.Arm(1000))
	*now += 2 * time.Second
	st, err = w.Status()
	require.NoError(t, err)
	assert.Equal(t, inventory.WatchdogStatus{Enabled: true, Timeout: 1000, Remaining: 800}, st)

	require.NoError(t, w.Stop())
	st, _ = w.Status()
	assert.Equal(t, -1, st.Remaining)
}
