// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/platform"
)

func TestClean(t *testing.T) {
	config.Set(config.Simulated(t.TempDir()))
	platform.ResetSystemEeprom()
	sysplat.PlatformName = "simulation"
	t.Cleanup(func() {
		config.Set(nil)
		platform.ResetSystemEeprom()
		sysplat.PlatformName = ""
	})
	assert.NoError(t, Command{}.Main())

	err := Command{}.Main("now")
	assert.Error(t, err)
	assert.Equal(t, 1, sysplat.ExitCode(err))
}
