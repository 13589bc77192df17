// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hwapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	h, err := Parse("02.00")
	require.NoError(t, err)
	assert.Equal(t, HwApi{2, 0}, h)
	assert.Equal(t, "02.00", h.String())
	assert.Equal(t, "HwApi(2.0)", h.GoString())
	assert.Equal(t, "0c.01", New(12, 1).Hex())

	_, err = Parse("")
	assert.Error(t, err)
	_, err = Parse("2.x")
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	values := []HwApi{{1}, {1, 0}, {1, 1}, {1, 2}, {2}, {2, 0}, {2, 1}, {3, 0}, {0, 9}}
	for _, a := range values {
		for _, b := range values {
			lt, eq, gt := a.Less(b), a.Equal(b), a.Greater(b)
			n := 0
			for _, v := range []bool{lt, eq, gt} {
				if v {
					n++
				}
			}
			assert.Equal(t, 1, n, "%#v %#v", a, b)
			if lt {
				assert.True(t, a.LessEqual(b))
				assert.False(t, a.GreaterEqual(b))
			}
			if eq {
				assert.True(t, a.LessEqual(b) && a.GreaterEqual(b))
			}
			assert.Equal(t, -a.Compare(b), b.Compare(a))
		}
	}

	// lexicographic: the minor only matters on equal majors
	assert.True(t, New(1, 9).Less(New(2, 0)))
	assert.True(t, New(2, 1).Greater(New(2)))
	assert.True(t, New(2).Equal(New(2, 0)))
	assert.Equal(t, New(2), New(2, 7).MajorOnly())
}
