// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package clean

import (
	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/platform"
)

type Command struct{}

func (Command) String() string { return "clean" }
func (Command) Usage() string  { return "clean" }

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "unload drivers for this platform",
	}
}

func (Command) Main(args ...string) error {
	if len(args) > 0 {
		return sysplat.Errorf("unexpected %v", args)
	}
	p, err := action.Platform()
	if err != nil {
		return err
	}
	return platform.Clean(p)
}
