// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package pidfile

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/config"
)

func TestPidfile(t *testing.T) {
	config.Set(config.Simulated(t.TempDir()))
	t.Cleanup(func() { config.Set(nil) })

	fn, err := New("xcvrd")
	require.NoError(t, err)
	assert.Equal(t, Path("xcvrd"), fn)
	pid, err := Read("xcvrd")
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, Remove("xcvrd"))
	require.NoError(t, Remove("xcvrd"))
	_, err = Read("xcvrd")
	assert.Error(t, err)
}
