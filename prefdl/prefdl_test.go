// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package prefdl

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/sysplat/hwapi"
)

var (
	prefdl2 = []byte("0002PCA012345678MFG1234567812304000cASY012345678090010unknownfield0001" +
		"0A000502.000B000502.1105000c11223344556602000e202010201255420C0007Prod" +
		"uct03000dDCS-1234AB-42000000CE9B25EC\xff\xff\xff\xff\xff\xff")
	prefdl3 = []byte("00030d000cPCA0123456780E000bMFG123456780F000312304000cASY0123456780900" +
		"10unknownfield00010A000502.000B000502.1105000c11223344556602000e202010" +
		"201255420C0007Product03000dDCS-1234AB-42000000D4CDA7F2\xff\xff\xff\xff")
	empty      = []byte("0003000000318A626B\xff")
	invalidCrc = []byte("0003000000318A626C\xff")

	expected = map[string]string{
		"PCA":          "PCA012345678",
		"SerialNumber": "MFG12345678",
		"KVN":          "123",
		"ASY":          "ASY012345678",
		"HwApi":        "02.00",
		"HwRev":        "02.11",
		"MAC":          "11:22:33:44:55:66",
		"MfgTime":      "20201020125542",
		"SID":          "Product",
		"SKU":          "DCS-1234AB-42",
	}
)

func tlv(code uint8, v string) string {
	return fmt.Sprintf("%02x%04x%s", code, len(v), v)
}

func seal(body string) []byte {
	body += "000000"
	return []byte(fmt.Sprintf("%s%08X", body, crc32.ChecksumIEEE([]byte(body))))
}

func TestNoDuplicates(t *testing.T) {
	names := 0
	for _, f := range Fields {
		names += 1 + len(f.Aliases)
	}
	assert.Len(t, byName, names)
	assert.Len(t, byCode, len(Fields))
}

func TestDecode(t *testing.T) {
	for _, b := range [][]byte{prefdl2, prefdl3} {
		p, err := Decode(b)
		require.NoError(t, err)
		assert.True(t, p.CrcValid())
		require.NoError(t, p.Validate())
		assert.Equal(t, expected, p.Map())
	}

	p, err := Decode(empty)
	require.NoError(t, err)
	assert.True(t, p.CrcValid())
	assert.Empty(t, p.Map())

	p, err = Decode(invalidCrc)
	require.NoError(t, err)
	assert.False(t, p.CrcValid())
	assert.True(t, errors.Is(p.Validate(), ErrCrc))
}

func TestDecodeV3(t *testing.T) {
	b := seal(V3 + tlv(0x03, "DCS-1234AB-42") + tlv(0x0e, "MFG12345678") +
		tlv(0x0a, "02.00"))
	p, err := Decode(b)
	require.NoError(t, err)
	assert.True(t, p.CrcValid())

	sku, _ := p.Get("SKU")
	assert.Equal(t, "DCS-1234AB-42", sku)
	sku, _ = p.Get("Sku")
	assert.Equal(t, "DCS-1234AB-42", sku)
	sn, _ := p.Get("SerialNumber")
	assert.Equal(t, "MFG12345678", sn)
	h, found := p.HwApi()
	require.True(t, found)
	assert.True(t, h.Equal(hwapi.New(2, 0)))
}

func TestDecodeErrors(t *testing.T) {
	for _, b := range []string{
		"",
		"0001000000318A626B",
		"000303000DDCS",
		"0003zz0000",
		"0003000000",
		"0003000000nothex!!",
	} {
		_, err := Decode([]byte(b))
		assert.True(t, errors.Is(err, ErrInvalid), "%q: %v", b, err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, b := range [][]byte{
		prefdl2,
		prefdl3,
		empty,
		seal(V3 + tlv(0x05, "001c73000001") + tlv(0x42, "vendor") + tlv(0x0c, "Sid")),
	} {
		p, err := Decode(b)
		require.NoError(t, err)
		enc := p.Encode()
		q, err := Decode(enc)
		require.NoError(t, err)
		assert.True(t, q.CrcValid())
		assert.Equal(t, p.Map(), q.Map())
		assert.Equal(t, p.Crc(), q.Crc())
	}

	// unknown records stay in the crc
	p, err := Decode(prefdl3)
	require.NoError(t, err)
	var unknown []uint8
	for _, r := range p.Records() {
		if !r.Known {
			unknown = append(unknown, r.Code)
		}
	}
	assert.Equal(t, []uint8{0x09}, unknown)
	assert.True(t, bytes.HasPrefix(prefdl3, p.Encode()))
}

func TestFromMap(t *testing.T) {
	p := FromMap(expected)
	assert.Equal(t, expected, p.Map())
	q, err := Decode(p.Encode())
	require.NoError(t, err)
	assert.True(t, q.CrcValid())
	assert.Equal(t, expected, q.Map())
}

func TestSerial(t *testing.T) {
	assert.True(t, ValidSerial("MFG12345678"))
	assert.True(t, ValidSerial("jpe-1234-abcd"))
	assert.False(t, ValidSerial("MF12345678"))
	assert.False(t, ValidSerial("MFG1234567!"))

	p := FromMap(map[string]string{"SerialNumber": "bogus", "SKU": "DCS-7050"})
	_, found := p.Get("SerialNumber")
	assert.False(t, found)
}

func TestText(t *testing.T) {
	dir := t.TempDir()
	src := strings.Join([]string{
		"MacAddrBase: 11:22:33:44:55:66",
		"Sku: DCS-7050QX-32",
		"",
		"garbage",
		"HwApi: 01.00",
		"Unknown: value",
	}, "\n")
	p, err := ReadText(strings.NewReader(src))
	require.NoError(t, err)
	want := map[string]string{
		"MAC":   "11:22:33:44:55:66",
		"SKU":   "DCS-7050QX-32",
		"HwApi": "01.00",
	}
	assert.Equal(t, want, p.Map())

	path := filepath.Join(dir, ".syseeprom")
	require.NoError(t, p.WriteTextFile(path))
	q, err := ReadTextFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, q.Map())

	var buf bytes.Buffer
	require.NoError(t, q.WriteText(&buf))
	assert.Equal(t, "HwApi: 01.00\nMAC: 11:22:33:44:55:66\nSKU: DCS-7050QX-32\n",
		buf.String())
}
