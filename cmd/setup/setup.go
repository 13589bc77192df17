// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package setup brings up the platform drivers.
package setup

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/platinasystems/flags"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/internal/lock"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/xcvr"
)

var log = logging.Get("setup")

// Spawn starts the background half of the setup, detached.
var Spawn = func(args ...string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err = cmd.Start(); err != nil {
		return err
	}
	log.Debug("initializing slow drivers in child %d", cmd.Process.Pid)
	return cmd.Process.Release()
}

type Command struct{}

func (Command) String() string { return "setup" }

func (Command) Usage() string {
	return "setup [--early | --late] [--background] [--reset]"
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "setup drivers for this platform",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `DESCRIPTION
	Bring up the platform devices. The default pass sets up the
	critical drivers, then the slow background ones, and waits for
	every device to appear.

OPTIONS
	--early
		only setup the critical drivers
	--late
		only setup the background drivers
	--background
		setup the background drivers in a detached process
	--reset
		take the devices out of reset and enable the transceivers`,
	}
}

type Args struct {
	Early, Late, Background, Reset bool
}

func Parse(args []string) (Args, error) {
	flag, args := flags.New(args,
		"--early", "--late", "--background", "--reset")
	if len(args) > 0 {
		return Args{}, sysplat.Errorf("unexpected %v", args)
	}
	return Args{
		Early:      flag.ByName["--early"],
		Late:       flag.ByName["--late"],
		Background: flag.ByName["--background"],
		Reset:      flag.ByName["--reset"],
	}, nil
}

func (Command) Main(args ...string) error {
	a, err := Parse(args)
	if err != nil {
		return err
	}
	p, err := action.Platform()
	if err != nil {
		return err
	}
	return Run(p, a)
}

// Run sets p up, holding the platform lock.
func Run(p platform.Platform, a Args) error {
	early := a.Early || !a.Late
	late := a.Late || !a.Early
	background := false
	err := lock.New(config.Get().LockFile).Do(func() error {
		if early {
			log.Debug("setting up critical drivers")
			if err := component.Setup(p, component.DefaultFilter); err != nil {
				return err
			}
		}
		if a.Reset {
			log.Debug("taking devices out of reset")
			if err := component.ResetOut(p); err != nil {
				return err
			}
			log.Debug("initializing xcvrs")
			Xcvrs(p.InventoryReader())
		}
		if late {
			if a.Background {
				log.Debug("setting up slow drivers in background")
				args := append(append([]string(nil), sysplat.Globals...),
					"setup", "--late")
				err := Spawn(args...)
				if err == nil {
					background = true
					return nil
				}
				log.Warning("spawn failed, setting up background drivers normally: %v", err)
			} else {
				log.Debug("setting up slow drivers normally")
			}
			if err := component.Setup(p, component.BackgroundFilter); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if early && (background || !a.Background) {
		return component.WaitForIt(p, component.DefaultWaitTimeout)
	}
	return nil
}

// Xcvrs selects every transceiver module with its transmitter enabled and
// out of low power mode. Slots lacking a control are skipped.
func Xcvrs(inv inventory.Reader) {
	for _, id := range inventory.SortedKeys(inv.XcvrSlots()) {
		s := inv.XcvrSlots()[id]
		caps := xcvr.CapsOf(s)
		if c := caps.ModuleSelect; c != nil {
			report(s, "module select", c.SetModuleSelect(true))
		}
		if c := caps.TxDisable; c != nil {
			report(s, "tx disable", c.SetTxDisable(false))
		}
		if c := caps.LowPowerMode; c != nil {
			report(s, "low power mode", c.SetLowPowerMode(false))
		}
	}
}

func report(s inventory.XcvrSlot, what string, err error) {
	if err != nil {
		log.Warning("%s: %s: %v", s.Name(), what, err)
	}
}
