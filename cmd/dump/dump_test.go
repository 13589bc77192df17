// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dump

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
)

func TestDumpSimulation(t *testing.T) {
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

	require.NoError(t, s.Run("dump"))
	var d Dump
	require.NoError(t, json.Unmarshal(buf.Bytes(), &d))
	assert.Equal(t, 1, d.Version)
	require.NotNil(t, d.Platform)
	assert.Equal(t, "simulation", d.Platform.Name)
	require.NotNil(t, d.Summary)
	assert.Len(t, d.Summary.Watchdogs, 1)
	assert.Nil(t, d.Chassis)

	buf.Reset()
	require.NoError(t, s.Run("dump", "--noIo"))
	d = Dump{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &d))
	assert.Nil(t, d.Summary)
}
