// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package reset

import (
	"time"

	"github.com/platinasystems/flags"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/platform"
)

// ToggleDelay is how long a toggle holds the devices in reset.
const ToggleDelay = time.Second

var log = logging.Get("reset")

type Command struct{}

func (Command) String() string { return "reset" }

func (Command) Usage() string {
	return "reset [--toggle | --in | --out] [NAME]..."
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "put devices in or out of reset",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `DESCRIPTION
	Put the platform devices in reset, take them out of it, or both.
	Named resets are looked up in the platform inventory, the whole
	component tree is reset otherwise.`,
	}
}

type Args struct {
	In, Out bool
	Names   []string
}

func Parse(args []string) Args {
	flag, args := flags.New(args, "--toggle", "--in", "--out")
	a := Args{
		In:    flag.ByName["--in"] || flag.ByName["--toggle"],
		Out:   flag.ByName["--out"] || flag.ByName["--toggle"],
		Names: args,
	}
	return a
}

func (Command) Main(args ...string) error {
	a := Parse(args)
	p, err := action.Platform()
	if err != nil {
		return err
	}
	return Run(p, a)
}

func Run(p platform.Platform, a Args) error {
	var resets []inventory.Reset
	for _, name := range a.Names {
		r, found := p.InventoryReader().Resets()[name]
		if !found {
			return sysplat.Errorf("%s: no such reset", name)
		}
		resets = append(resets, r)
	}
	if a.In {
		log.Debug("putting devices in reset")
		if err := resetIn(p, resets); err != nil {
			return err
		}
	}
	if a.In && a.Out {
		wait.Sleep(ToggleDelay)
	}
	if a.Out {
		log.Debug("taking devices out of reset")
		return resetOut(p, resets)
	}
	return nil
}

func resetIn(p platform.Platform, resets []inventory.Reset) error {
	if len(resets) == 0 {
		return component.ResetIn(p)
	}
	for _, r := range resets {
		if err := r.ResetIn(); err != nil {
			return err
		}
	}
	return nil
}

func resetOut(p platform.Platform, resets []inventory.Reset) error {
	if len(resets) == 0 {
		return component.ResetOut(p)
	}
	for _, r := range resets {
		if err := r.ResetOut(); err != nil {
			return err
		}
	}
	return nil
}
