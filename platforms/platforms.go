// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package platforms declares the supported products. Nothing registers at
// init; callers hand a registry to Register.
package platforms

import (
	"fmt"

	"github.com/platinasystems/sysplat/address"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/psu"
	"github.com/platinasystems/sysplat/scd"
)

var log = logging.Get("platforms")

// Descriptors lists every product; reg resolves the cards of the
// supervisors it builds.
func Descriptors(reg *platform.Registry) []*platform.Descriptor {
	return []*platform.Descriptor{
		simulationDesc,
		gardenaDesc,
		northFaceDesc,
		campDesc,
		otterlakeDesc(reg),
		clearwaterDesc,
		clearwaterMsDesc,
		clearwater2Desc,
		clearwater2MsDesc,
		eldridgeDesc,
	}
}

// Register adds every product to reg.
func Register(reg *platform.Registry) {
	reg.Register(Descriptors(reg)...)
}

// NewRegistry returns a registry holding every product.
func NewRegistry() *platform.Registry {
	reg := platform.NewRegistry()
	Register(reg)
	return reg
}

// psuModels resolves catalog names; an unknown name is a programming
// error.
func psuModels(names ...string) []*psu.Model {
	var l []*psu.Model
	for _, name := range names {
		m, found := psu.Lookup(name)
		if !found {
			panic(fmt.Errorf("%s: unknown psu model", name))
		}
		l = append(l, m)
	}
	return l
}

// Simulation is a bare fixed system around a simulated SCD.
type Simulation struct {
	*platform.FixedSystem
	Scd *scd.Scd
}

func NewSimulation() *Simulation {
	s := &Simulation{FixedSystem: platform.NewFixedSystem("simulation")}
	s.Scd = scd.New(s, address.PciAddr{Bus: 0x01})
	s.Scd.AddSmbusMasterRange(0x8000, 1, 0x80, 0)
	s.Scd.CreateWatchdog(0)
	return s
}

var simulationDesc = &platform.Descriptor{
	Name: "simulation",
	Skus: []string{"simulation"},
	New:  func() platform.Platform { return NewSimulation() },
}
