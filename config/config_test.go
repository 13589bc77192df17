// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package config

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/internal/cmdline"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "native", c.PluginXcvr)
	assert.Equal(t, "/var/lock/arista.lock", c.LockFile)
	assert.Equal(t, "/var/lock/arista.linecard3.lock", c.LinecardLockFile(3))
	assert.Equal(t, "127.100.4.1", c.LinecardRpcAddr(4))
	assert.Equal(t, 0.8, c.CoolingTargetFactor)
	assert.True(t, c.LinecardStandbyOnly)
	assert.False(t, c.LinecardCpuEnable)
}

func TestLoadYaml(t *testing.T) {
	dir, err := ioutil.TempDir("", "config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "arista.config")
	require.NoError(t, ioutil.WriteFile(fn, []byte(`
lock_file: /tmp/platform.lock
linecard_cpu_enable: true
cooling_min_speed: 40
`), 0644))

	c, err := Load(fn)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/platform.lock", c.LockFile)
	assert.True(t, c.LinecardCpuEnable)
	assert.Equal(t, 40.0, c.CoolingMinSpeed)
	assert.Equal(t, "native", c.PluginPsu)

	c, err = Load(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Equal(t, Default().LockFile, c.LockFile)

	require.NoError(t, ioutil.WriteFile(fn, []byte("lock_file: [\n"), 0644))
	_, err = Load(fn)
	assert.Error(t, err)
}

func TestCmdlineOverride(t *testing.T) {
	c := Default()
	err := c.ApplyCmdline(cmdline.Parse(
		"arista.linecard_standby_only=No arista.cooling_gc_count=3 " +
			"arista.api_rpc_port=9000 arista.simulation=Y Aboot=x"))
	require.NoError(t, err)
	assert.False(t, c.LinecardStandbyOnly)
	assert.Equal(t, 3, c.CoolingGcCount)
	assert.Equal(t, "9000", c.ApiRpcPort)
	assert.True(t, c.InSimulation())

	err = c.ApplyCmdline(cmdline.Parse("arista.init_irq=maybe"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownKey))
}

func TestCmdlineUnknownKeys(t *testing.T) {
	c := Default()
	require.NoError(t, c.ApplyCmdline(cmdline.Parse(
		"Aboot=1 arista.no_such_key=1 arista.api_use_sfpoptoe=no arista.verbose=yes")))
	assert.True(t, c.Verbose)
	assert.False(t, c.ApiUseSfpOptoe)

	err := c.SetKey("no_such_key", "1")
	assert.True(t, errors.Is(err, ErrUnknownKey))

	c = Default()
	err = c.ApplyCmdline(cmdline.Parse(
		"arista.cooling_gc_count=x arista.zzz=1 arista.verbose=yes arista.xcvr_lpmode_out=y"))
	assert.Error(t, err)
	assert.True(t, c.Verbose)
	assert.True(t, c.XcvrLpmodeOut)
}

func TestSimulationFromCmdline(t *testing.T) {
	c := Default()
	require.NoError(t, c.ApplyCmdline(cmdline.Parse("quiet")))
	assert.True(t, c.InSimulation())
	require.NoError(t, c.ApplyCmdline(cmdline.Parse("Aboot=Aboot-6 quiet")))
	assert.False(t, c.InSimulation())
	assert.False(t, c.Debug())
	require.NoError(t, c.ApplyCmdline(cmdline.Parse("arista-debug")))
	assert.True(t, c.Debug())
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"yes", "Y", "TRUE"} {
		b, err := ParseBool(s)
		assert.NoError(t, err)
		assert.True(t, b, s)
	}
	for _, s := range []string{"no", "n", "False"} {
		b, err := ParseBool(s)
		assert.NoError(t, err)
		assert.False(t, b, s)
	}
	_, err := ParseBool("1")
	assert.Error(t, err)
}
