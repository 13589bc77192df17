// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platforms

import (
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/platform"
)

var (
	NorthFaceDims = modular.Dims{
		Supervisors: 2, Linecards: 8, Fabrics: 6, Fans: 48, Psus: 20,
	}
	CampDims = modular.Dims{
		Supervisors: 2, Linecards: 4, Fabrics: 6, Fans: 24, Psus: 8,
	}
)

var northFaceDesc = &platform.Descriptor{
	Name: "NorthFace",
	Skus: []string{"DCS-7808-CH"},
	New: func() platform.Platform {
		return modular.NewChassis("NorthFace", NorthFaceDims)
	},
}

var campDesc = &platform.Descriptor{
	Name: "Camp",
	Skus: []string{"DCS-7804-CH"},
	New: func() platform.Platform {
		return modular.NewChassis("Camp", CampDims)
	},
}
