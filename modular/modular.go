// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package modular runs chassis products: a supervisor holding linecard,
// fabric and power supply slots, and the cards plugged in them.
//
// A card is powered in two domains. The standby domain carries the
// identification eeprom, the board gpios and the PLX PCIe switch that
// links the card to the supervisor; the main domain carries the switch
// chips. Cards are brought up under a per slot lock and their PCIe link is
// attached only after the PLX upstream link is bound.
package modular

import (
	"fmt"

	"github.com/platinasystems/sysplat/logging"
)

var log = logging.Get("modular")

// Chassis dimensions of the largest product.
const (
	NumSupervisors = 2
	NumLinecards   = 8
	NumFabrics     = 6
	NumFans        = 48
	NumPsus        = 20
)

// Absolute slot id of the first card of each kind. Supervisors use 1 and 2.
const (
	LinecardBase = 3
	FabricBase   = LinecardBase + NumLinecards
)

// Kind tells linecards from fabric cards.
type Kind int

const (
	Linecard Kind = iota
	Fabric
)

func (k Kind) String() string {
	switch k {
	case Linecard:
		return "linecard"
	case Fabric:
		return "fabric"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Base is the absolute slot id of the first card of kind k.
func (k Kind) Base() int {
	if k == Fabric {
		return FabricBase
	}
	return LinecardBase
}

// LcpuCtx requests that a linecard boots its own cpu instead of having
// its switch chips driven by the supervisor.
type LcpuCtx struct {
	Provision ProvisionMode
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
