// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package reloadcause

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/internal/jsonstore"
)

func newStore(t *testing.T) Store {
	dir, err := ioutil.TempDir("", "reloadcause")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return Store{jsonstore.New(filepath.Join(dir, "last_reboot_cause"))}
}

var expected = []Entry{
	NewEntry(CausePowerloss, "1970-01-01 00:01:11 UTC", "", Event),
	NewEntry(CauseReboot, "unknown", "", Event),
}

func TestStoreV1(t *testing.T) {
	s := newStore(t)
	require.NoError(t, ioutil.WriteFile(s.Path, []byte(`[
		{"reloadReason": "powerloss", "time": "1970-01-01 00:01:11 UTC"},
		{"reloadReason": "reboot", "time": "unknown"}
	]`), 0644))
	causes, err := s.ReadCauses()
	require.NoError(t, err)
	assert.Equal(t, expected, causes)
}

func TestStoreEmpty(t *testing.T) {
	s := newStore(t)
	require.NoError(t, ioutil.WriteFile(s.Path, nil, 0644))
	causes, err := s.ReadCauses()
	require.NoError(t, err)
	assert.Empty(t, causes)
}

func TestStoreWriteRead(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.WriteCauses(expected))
	causes, err := s.ReadCauses()
	require.NoError(t, err)
	assert.Equal(t, expected, causes)
}

func TestUpdateHistory(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.UpdateHistory(expected))
	require.NoError(t, s.UpdateHistory([]Entry{
		expected[1],
		NewEntry(CauseWatchdog, "2020-01-01 00:00:00", "", Event),
	}))
	causes, err := s.ReadCauses()
	require.NoError(t, err)
	assert.Len(t, causes, 3)

	var many []Entry
	for i := 0; i < HistorySize+10; i++ {
		many = append(many, NewEntry(CauseReboot, string(rune('a'+i%26))+
			string(rune('0'+i/26)), "", Event))
	}
	require.NoError(t, s.UpdateHistory(many))
	causes, err = s.ReadCauses()
	require.NoError(t, err)
	assert.Len(t, causes, HistorySize)
	assert.Equal(t, many[len(many)-1], causes[len(causes)-1])
}
