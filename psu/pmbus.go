// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package psu

import (
	"strings"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/driver"
)

// PMBus manufacturer registers.
const (
	MfrId       = 0x99
	MfrModel    = 0x9a
	MfrRevision = 0x9b
	MfrLocation = 0x9c
	MfrDate     = 0x9d
	MfrSerial   = 0x9e

	VendorMfrId       = 0xc9
	VendorMfrModel    = 0xca
	VendorMfrRevision = 0xcb
	AristaMfrSku      = 0xcc

	pageReg = 0x00
)

const NA = "N/A"

// Client is the SMBus access a Detector needs.
type Client interface {
	Ping() bool
	ReadBlockData(cmd uint8) ([]byte, error)
	WriteByteData(cmd, v uint8) error
}

// UnknownMetadata describes a unit that could not be read.
func UnknownMetadata() map[string]string {
	return map[string]string{
		"id":       NA,
		"model":    NA,
		"revision": NA,
		"location": NA,
		"date":     NA,
		"serial":   NA,
	}
}

// Detector reads, once, the manufacturer strings of the unit at an
// address.
type Detector struct {
	Addr   address.I2cAddr
	client Client

	exists *bool
	cache  map[uint8]string
}

func NewDetector(addr address.I2cAddr) *Detector {
	addr.Block = true
	return NewDetectorWith(addr, driver.NewI2cUser("pmbus-detect", addr))
}

func NewDetectorWith(addr address.I2cAddr, c Client) *Detector {
	d := &Detector{Addr: addr, client: c, cache: make(map[uint8]string)}
	if d.Exists() {
		// select page 0 on multi page units
		if err := c.WriteByteData(pageReg, 0); err != nil {
			log.Debug("%s: page 0: %v", addr, err)
		}
	}
	return d
}

func (d *Detector) Exists() bool {
	if d.exists == nil {
		ok := d.client.Ping()
		d.exists = &ok
	}
	return *d.exists
}

func (d *Detector) read(reg uint8) (string, error) {
	if s, found := d.cache[reg]; found {
		return s, nil
	}
	b, err := d.client.ReadBlockData(reg)
	if err != nil {
		return "", err
	}
	s := strings.TrimRight(string(b), "\x00")
	d.cache[reg] = s
	return s, nil
}

func (d *Detector) readOr(reg uint8, def string) string {
	s, err := d.read(reg)
	if err != nil {
		return def
	}
	return s
}

// Id and Model are required to identify a unit; they are empty when
// unreadable.
func (d *Detector) Id() string    { return d.readOr(MfrId, "") }
func (d *Detector) Model() string { return d.readOr(MfrModel, "") }

func (d *Detector) Revision() string { return d.readOr(MfrRevision, NA) }
func (d *Detector) Location() string { return d.readOr(MfrLocation, NA) }
func (d *Detector) Date() string     { return d.readOr(MfrDate, NA) }
func (d *Detector) Serial() string   { return d.readOr(MfrSerial, NA) }

// Metadata returns the manufacturer strings; units made for Arista add
// the vendor registers under an arista_ prefix.
func (d *Detector) Metadata() map[string]string {
	if !d.Exists() {
		return UnknownMetadata()
	}
	m := map[string]string{
		"id":       d.readOr(MfrId, NA),
		"model":    d.readOr(MfrModel, NA),
		"revision": d.Revision(),
		"location": d.Location(),
		"date":     d.Date(),
		"serial":   d.Serial(),
	}
	if m["id"] == "Arista" {
		m["arista_mfr_id"] = d.readOr(VendorMfrId, NA)
		m["arista_mfr_model"] = d.readOr(VendorMfrModel, NA)
		m["arista_mfr_revision"] = d.readOr(VendorMfrRevision, NA)
		if sku, err := d.read(AristaMfrSku); err == nil {
			m["arista_sku"] = sku
		}
	}
	return m
}
