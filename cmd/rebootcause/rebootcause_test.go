// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rebootcause

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/reloadcause"
)

func newTest(t *testing.T, sim bool) (*sysplat.Sysplat, *bytes.Buffer) {
	c := config.Simulated(t.TempDir())
	c.Simulation = &sim
	config.Set(c)
	t.Cleanup(func() { config.Set(nil) })
	s := sysplat.New("sysplat")
	buf := new(bytes.Buffer)
	s.Stdout = buf
	s.Plot(&Command{})
	return s, buf
}

func record(t *testing.T, cause, time string) {
	h := reloadcause.NewHelper("scd", reloadcause.NewEntry(cause, time,
		reloadcause.Descriptions[cause],
		reloadcause.Logged|reloadcause.PriorityHigh))
	_, err := reloadcause.Open("platform", action.CausePath(),
		[]reloadcause.Provider{h}, true)
	require.NoError(t, err)
}

func TestNoCause(t *testing.T) {
	s, buf := newTest(t, false)
	require.NoError(t, s.Run("reboot-cause"))
	assert.Equal(t, "No reboot cause detected\n", buf.String())
}

func TestLastAndHistory(t *testing.T) {
	s, buf := newTest(t, false)
	record(t, reloadcause.CausePowerloss, "2020-01-01 00:00:00")
	record(t, reloadcause.CauseWatchdog, "2020-01-02 00:00:00")

	require.NoError(t, s.Run("reboot-cause"))
	assert.Equal(t, "Found reboot cause(s):\n"+
		"----------------------\n"+
		"watchdog, description: Watchdog fired, time: 2020-01-02 00:00:00\n",
		buf.String())

	buf.Reset()
	require.NoError(t, s.Run("reboot-cause", "--history"))
	assert.Equal(t, "Found reboot cause(s):\n"+
		"----------------------\n"+
		"watchdog, description: Watchdog fired, time: 2020-01-02 00:00:00\n"+
		"powerloss, description: System lost power, time: 2020-01-01 00:00:00\n",
		buf.String())
}

func TestSimulation(t *testing.T) {
	s, buf := newTest(t, true)
	require.NoError(t, s.Run("reboot-cause", "--history"))
	assert.Empty(t, buf.String())
	assert.Error(t, s.Run("reboot-cause", "extra"))
}
