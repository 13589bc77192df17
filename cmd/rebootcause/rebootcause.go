// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package rebootcause reports why the box last rebooted.
package rebootcause

import (
	"github.com/platinasystems/flags"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/lang"
)

type Command struct {
	s *sysplat.Sysplat
}

func (*Command) String() string { return "reboot-cause" }

func (*Command) Usage() string {
	return "reboot-cause [--history] [--process]"
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "print the last reboot cause",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `DESCRIPTION
	Print the cause of the last reboot recorded in the history kept on
	flash.

OPTIONS
	--history
		print the cause of every recorded reboot
	--process
		read the causes left by the hardware and record a new report`,
	}
}

func (c *Command) Sysplat(s *sysplat.Sysplat) { c.s = s }

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "--history", "--process")
	if len(args) > 0 {
		return sysplat.Errorf("unexpected %v", args)
	}
	if config.Get().InSimulation() {
		return nil
	}
	var inv inventory.Reader
	process := flag.ByName["--process"]
	if process {
		p, err := action.Platform()
		if err != nil {
			return err
		}
		inv = p.InventoryReader()
	}
	m, err := action.Causes(inv, process)
	if err != nil {
		return err
	}
	action.PrintCauses(action.Stdout(c.s),
		action.Reports(m, flag.ByName["--history"]))
	return nil
}
