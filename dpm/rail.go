// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dpm

import (
	"fmt"
	"math"
	"sync"
)

// Rail is a page of a sequencer. Readings select the page first so
// accesses to one chip are serialized.
type Rail struct {
	Ucd  *Ucd
	Page int
	name string
}

var pageLock sync.Mutex

// AddRail publishes the one based rail page as name.
func (u *Ucd) AddRail(page int, name string) *Rail {
	r := &Rail{Ucd: u, Page: page, name: name}
	u.Inventory().AddRail(r)
	return r
}

func (r *Rail) Name() string { return r.name }

func (r *Rail) String() string {
	return fmt.Sprintf("%s.rail%d", r.Ucd, r.Page)
}

// linear11 decodes 5 bits of exponent over 11 bits of mantissa.
func linear11(v uint16) float64 {
	exp := int(int16(v) >> 11)
	mant := int(int16(v<<5) >> 5)
	return float64(mant) * math.Exp2(float64(exp))
}

// linear16 scales an unsigned mantissa by the exponent of VOUT_MODE.
func linear16(v uint16, mode uint8) float64 {
	exp := int(int8(mode<<3) >> 3)
	return math.Round(float64(v)*math.Exp2(float64(exp))*1000) / 1000
}

func (r *Rail) read(cmd uint8) (uint16, error) {
	if r.Page < 1 {
		return 0, fmt.Errorf("%s: rail subscript out of range", r)
	}
	if err := r.Ucd.Dev.WriteByteData(regPage, uint8(r.Page-1)); err != nil {
		return 0, err
	}
	return r.Ucd.Dev.ReadWordData(cmd)
}

func (r *Rail) Voltage() (float64, error) {
	pageLock.Lock()
	defer pageLock.Unlock()
	v, err := r.read(regReadVout)
	if err != nil {
		return 0, err
	}
	mode, err := r.Ucd.Dev.ReadByteData(regVoutMode)
	if err != nil {
		return 0, err
	}
	return linear16(v, mode), nil
}

func (r *Rail) Current() (float64, error) {
	pageLock.Lock()
	defer pageLock.Unlock()
	v, err := r.read(regReadIout)
	if err != nil {
		return 0, err
	}
	return linear11(v), nil
}

func (r *Rail) Power() (float64, error) {
	pageLock.Lock()
	defer pageLock.Unlock()
	v, err := r.read(regReadPout)
	if err != nil {
		return 0, err
	}
	return linear11(v), nil
}
