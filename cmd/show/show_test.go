// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package show

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/platform"
)

func show(t *testing.T, args ...string) (string, error) {
	config.Set(config.Simulated(t.TempDir()))
	platform.ResetSystemEeprom()
	sysplat.PlatformName = "simulation"
	t.Cleanup(func() {
		config.Set(nil)
		platform.ResetSystemEeprom()
		sysplat.PlatformName = ""
	})
	buf := new(bytes.Buffer)
	s := sysplat.New("sysplat")
	s.Stdout = buf
	s.Plot(&Command{})
	err := s.Run(append([]string{"show"}, args...)...)
	return buf.String(), err
}

func TestPlatformEeprom(t *testing.T) {
	out, err := show(t, "platform", "eeprom")
	require.NoError(t, err)
	assert.Contains(t, out, "SKU: simulation\n")
}

func TestOnieEeprom(t *testing.T) {
	out, err := show(t, "platform", "eeprom", "--onie")
	require.NoError(t, err)
	assert.Contains(t, out, "0x21: simulation\n")
	assert.Contains(t, out, "0x2B: Arista Networks\n")
}

func TestJsonEnvelope(t *testing.T) {
	out, err := show(t, "--json", "platform", "xcvr")
	require.NoError(t, err)
	var v struct {
		Version   int                          `json:"version"`
		Renderers map[string][]json.RawMessage `json:"renderers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, 1, v.Version)
	l, found := v.Renderers["xcvr"]
	require.True(t, found)
	assert.Empty(t, l)
}

func TestPrettyJson(t *testing.T) {
	out, err := show(t, "-j", "-p", "platform", "reboot-cause")
	require.NoError(t, err)
	assert.Equal(t, "{\n   \"version\": 1,\n   \"renderers\": {\n      \"reboot-cause\": []\n   }\n}\n", out)
}

func TestPlatformStatus(t *testing.T) {
	out, err := show(t, "-j", "platform", "status")
	require.NoError(t, err)
	var v struct {
		Renderers struct {
			Status action.Summary `json:"status"`
		} `json:"renderers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "simulation", v.Renderers.Status.Platform)
	assert.Len(t, v.Renderers.Status.Watchdogs, 1)

	out, err = show(t, "platform", "status")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Platform: simulation\n"), out)
}

func TestXcvrTable(t *testing.T) {
	out, err := show(t, "platform", "xcvr")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Id Type"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "-- ----"), lines[1])
}

func TestNotASupervisor(t *testing.T) {
	_, err := show(t, "chassis", "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a supervisor")
	_, err = show(t, "linecard", "status")
	assert.Error(t, err)
}

func TestBadArguments(t *testing.T) {
	_, err := show(t)
	assert.Error(t, err)
	_, err = show(t, "kitchen", "sink")
	assert.Error(t, err)
	_, err = show(t, "platform")
	assert.Error(t, err)
	_, err = show(t, "platform", "eeprom", "extra")
	assert.Error(t, err)
	_, err = show(t, "platform", "weather")
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	out, err := show(t, "supported")
	require.NoError(t, err)
	assert.Contains(t, out, "simulation\n - simulation\n")
}

func TestChassisSummaryText(t *testing.T) {
	buf := new(bytes.Buffer)
	r := ChassisSummary(ChassisReport{
		Sku:    "DCS-7808-CH",
		Serial: "JPE12345678",
		Linecards: []CardSummary{
			{SlotId: 3, Present: true, Sku: "7800R3-36P-LC", Serial: "JPE00000003"},
			{SlotId: 4},
			{SlotId: 5, Present: true, Error: "invalid prefdl"},
		},
		Fabrics: []CardSummary{},
	})
	r.Text(buf)
	assert.Equal(t, `Sku: DCS-7808-CH
Serial: JPE12345678
Linecards:
  3: 7800R3-36P-LC (JPE00000003)
  4: not present
  5: invalid prefdl
Fabrics:
`, buf.String())
}
