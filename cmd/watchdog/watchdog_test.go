// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package watchdog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/inventory"
)

func simulation(t *testing.T) (*sysplat.Sysplat, *bytes.Buffer) {
	config.Set(config.Simulated(t.TempDir()))
	sysplat.PlatformName = "simulation"
	t.Cleanup(func() {
		config.Set(nil)
		sysplat.PlatformName = ""
	})
	s := sysplat.New("sysplat")
	buf := new(bytes.Buffer)
	s.Stdout = buf
	s.Plot(&Command{})
	return s, buf
}

func TestStatus(t *testing.T) {
	s, buf := simulation(t)
	require.NoError(t, s.Run("watchdog", "--status"))
	assert.Equal(t, "Enabled:   true\nTimeout:   3s\nRemaining: 1s\n",
		buf.String())
}

func TestArmStop(t *testing.T) {
	s, _ := simulation(t)
	assert.NoError(t, s.Run("watchdog", "--arm"))
	assert.NoError(t, s.Run("watchdog", "--arm", "500"))
	assert.Error(t, s.Run("watchdog", "--arm", "700000"))
	assert.Error(t, s.Run("watchdog", "--arm", "soon"))
	assert.NoError(t, s.Run("watchdog", "--stop"))
	assert.Error(t, s.Run("watchdog"))
}

type fakeWatchdog struct{ armed int }

func (w *fakeWatchdog) Arm(cs int) error { w.armed = cs; return nil }
func (w *fakeWatchdog) Stop() error      { w.armed = 0; return nil }

func (w *fakeWatchdog) Status() (inventory.WatchdogStatus, error) {
	return inventory.WatchdogStatus{Enabled: w.armed > 0, Timeout: w.armed}, nil
}

func TestArmCentiseconds(t *testing.T) {
	w := &fakeWatchdog{}
	require.NoError(t, Arm(w, DefaultArmTimeout))
	assert.Equal(t, 30000, w.armed)
	require.NoError(t, Arm(w, 655350))
	assert.Equal(t, 65535, w.armed)
	assert.Error(t, Arm(w, 655360))
}
