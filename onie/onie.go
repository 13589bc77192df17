// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package onie synthesizes the ONIE TLV eeprom view of a prefdl.
package onie

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/hwapi"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/prefdl"
)

var log = logging.Get("onie")

// ONIE TLV type codes.
const (
	ProductName      = 0x21
	PartNumber       = 0x22
	SerialNumber     = 0x23
	BaseMac          = 0x24
	ManufactureDate  = 0x25
	DeviceVersion    = 0x26
	LabelRevision    = 0x27
	PlatformName     = 0x28
	NumMacs          = 0x2a
	Manufacturer     = 0x2b
	CountryCode      = 0x2c
	Vendor           = 0x2d
	DiagVersion      = 0x2e
	ServiceTag       = 0x2f
	Crc32            = 0xfe
	manufacturerName = "Arista Networks"
)

// Env is what the eeprom needs beyond the prefdl.
type Env struct {
	// Platform is the onie platform string, the prefdl SID if empty.
	Platform string
	Aboot    string
}

// Environment looks the platform up on the kernel command line, then in
// the onie machine.conf and then in the sonic environment file.
func Environment() Env {
	c := config.Get()
	cl := c.Cmdline()
	env := Env{Aboot: "N/A"}
	if v, found := cl["Aboot"]; found {
		env.Aboot = v
	}
	if v, found := cl["onie_platform"]; found {
		env.Platform = v
		return env
	}
	if m, err := ReadKeyValues(c.Flash("machine.conf")); err == nil {
		for k, v := range m {
			if i := strings.Index(k, "_"); i > 0 && k[i+1:] == "platform" {
				env.Platform = v
				return env
			}
		}
	}
	if m, err := ReadKeyValues(c.Etc("sonic-environment")); err == nil {
		env.Platform = m["PLATFORM"]
	}
	return env
}

// ReadKeyValues parses KEY=VALUE lines, ignoring comments.
func ReadKeyValues(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m := make(map[string]string)
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		m[strings.TrimSpace(kv[0])] = strings.Trim(strings.TrimSpace(kv[1]), `"'`)
	}
	return m, scan.Err()
}

type Eeprom struct {
	fields map[uint8]string
}

func MfgTime(s string) (string, error) {
	t, err := time.Parse("20060102150405", s)
	if err != nil {
		return "", err
	}
	return t.Format("2006/01/02 15:04:05"), nil
}

func New(p *prefdl.Prefdl, env Env) *Eeprom {
	get := func(name string) string {
		v, _ := p.Get(name)
		return v
	}
	e := &Eeprom{fields: map[uint8]string{
		ProductName:   get("SKU"),
		PartNumber:    get("ASY"),
		SerialNumber:  get("SerialNumber"),
		BaseMac:       get("MAC"),
		DeviceVersion: "01",
		PlatformName:  env.Platform,
		NumMacs:       fmt.Sprint(0xffff),
		Manufacturer:  manufacturerName,
		CountryCode:   "US",
		Vendor:        manufacturerName,
		DiagVersion:   env.Aboot,
		ServiceTag:    get("SerialNumber"),
		Crc32:         fmt.Sprintf("%#x", 0xdeadbeef),
	}}
	if len(env.Platform) == 0 {
		e.fields[PlatformName] = get("SID")
	}
	mfg := get("MfgTime2")
	if len(mfg) == 0 {
		mfg = get("MfgTime")
	}
	if len(mfg) > 0 {
		if v, err := MfgTime(mfg); err == nil {
			e.fields[ManufactureDate] = v
		} else {
			log.Warning("mfg time %q: %v", mfg, err)
		}
	}
	if h, found := p.HwApi(); found {
		e.fields[LabelRevision] = h.Hex()
	} else if v := get("HwApi"); len(v) > 0 {
		e.fields[LabelRevision] = v
	} else {
		e.fields[LabelRevision] = hwapi.New(0, 0).Hex()
	}
	return e
}

func (e *Eeprom) Field(code uint8) (string, bool) {
	v, found := e.fields[code]
	return v, found && len(v) > 0
}

// Data returns the non empty fields keyed 0xNN, without the codes in
// filterOut.
func (e *Eeprom) Data(filterOut ...uint8) map[string]string {
	skip := make(map[uint8]bool)
	for _, c := range filterOut {
		skip[c] = true
	}
	m := make(map[string]string)
	for code, v := range e.fields {
		if len(v) == 0 || skip[code] {
			continue
		}
		m[fmt.Sprintf("0x%02X", code)] = v
	}
	return m
}

// Codes returns the codes of the non empty fields in order.
func (e *Eeprom) Codes() []uint8 {
	var codes []uint8
	for code, v := range e.fields {
		if len(v) > 0 {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
