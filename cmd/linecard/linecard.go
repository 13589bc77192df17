// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package linecard operates the linecards of a chassis from its active
// supervisor.
package linecard

import (
	"fmt"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/reboot"
)

type Command struct {
	s *sysplat.Sysplat
}

func (*Command) String() string { return "linecard" }

func (*Command) Usage() string {
	return `linecard [-i ID]... [--parallel] COMMAND [OPTION]...

	setup [--early | --late] [--on] [--lcpu] [--provision MODE] [--powerCycleIfOn]
	clean [-r | --reset] [--off] [--lcpu]
	power on|off [--lcpu] [--powerCycleIfOn]
	reboot [--mode soft|hard]
	provision --set none|static
	reboot-cause [--process]`
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "linecard related features",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `DESCRIPTION
	Operate the linecards present in the slots given by -i, absolute
	slot ids as in 3,4 or 3-6, every linecard by default. Failures on a
	card are logged and do not stop the others.

OPTIONS
	--parallel
		run the card operations concurrently
	--lcpu
		also operate the linecard cpu, by default when
		linecard_cpu_enable is configured`,
	}
}

func (c *Command) Sysplat(s *sysplat.Sysplat) { c.s = s }

func (c *Command) Main(args ...string) error {
	a, err := action.ParseCardArgs(args)
	if err != nil {
		return err
	}
	ch, cards, err := action.LoadCards(modular.Linecard, a)
	if err != nil {
		return err
	}
	return Run(ch, cards, a)
}

// Run performs the command of a on cards.
func Run(ch *modular.Chassis, cards []*modular.Card, a action.CardArgs) error {
	var fn func(*modular.Card, *logging.Logger) error
	switch a.Command {
	case "setup":
		o, err := parseSetup(a.Args)
		if err != nil {
			return err
		}
		fn = o.run
	case "clean":
		o, err := parseClean(a.Args)
		if err != nil {
			return err
		}
		fn = o.run
	case "power":
		o, err := parsePower(a.Args)
		if err != nil {
			return err
		}
		fn = o.run
	case "provision":
		parm, args := parms.New(a.Args, "--set")
		if len(args) > 0 {
			return sysplat.Errorf("unexpected %v", args)
		}
		mode, err := modular.ParseProvisionMode(parm.ByName["--set"])
		if err != nil {
			return sysplat.Errorf("%v", err)
		}
		fn = func(card *modular.Card, l *logging.Logger) error {
			return provision(card, mode, l)
		}
	case "reboot-cause":
		flag, args := flags.New(a.Args, "--process")
		if len(args) > 0 {
			return sysplat.Errorf("unexpected %v", args)
		}
		if config.Get().InSimulation() {
			return nil
		}
		fn = func(card *modular.Card, l *logging.Logger) error {
			_, err := action.LinecardCauses(card, flag.ByName["--process"])
			if err != nil {
				return fmt.Errorf("failed to read reboot-cause information: %w", err)
			}
			return nil
		}
	case "reboot":
		parm, args := parms.New(a.Args, "--mode")
		if len(args) > 0 {
			return sysplat.Errorf("unexpected %v", args)
		}
		mode, err := reboot.ParseMode(parm.ByName["--mode"])
		if err != nil {
			return sysplat.Errorf("%v", err)
		}
		lcs := make([]reboot.Linecard, 0, len(cards))
		for _, card := range cards {
			lcs = append(lcs, card)
		}
		if len(lcs) == 0 {
			return nil
		}
		return reboot.NewLinecardRebootManager(ch, lcs...).RebootLinecards(mode)
	default:
		return sysplat.Errorf("%s: unknown linecard command", a.Command)
	}
	return action.Each(ch, cards, a.Parallel, fn)
}

// lcpu reports whether the linecard cpu is operated, from --lcpu or
// the configuration.
func lcpu(flag bool) bool {
	return flag || config.Get().LinecardCpuEnable
}

type setup struct {
	action.Phases
	On, Lcpu, PowerCycleIfOn bool
	Provision                modular.ProvisionMode
}

func parseSetup(args []string) (setup, error) {
	var o setup
	o.Phases, args = action.ParsePhases(args)
	flag, args := flags.New(args, "--on", "--lcpu", "--powerCycleIfOn")
	parm, args := parms.New(args, "--provision")
	if len(args) > 0 {
		return o, sysplat.Errorf("unexpected %v", args)
	}
	o.On = flag.ByName["--on"]
	o.Lcpu = flag.ByName["--lcpu"]
	o.PowerCycleIfOn = flag.ByName["--powerCycleIfOn"]
	if s := parm.ByName["--provision"]; len(s) > 0 {
		mode, err := modular.ParseProvisionMode(s)
		if err != nil {
			return o, sysplat.Errorf("%v", err)
		}
		o.Provision = mode
	}
	return o, nil
}

func (o setup) run(card *modular.Card, l *logging.Logger) error {
	l.Debug("setting up %s", card)
	if err := o.Phases.Run(card.SetupStandby); err != nil {
		return err
	}
	if !o.On {
		return nil
	}
	withLcpu := lcpu(o.Lcpu)
	standbyOnly := config.Get().LinecardStandbyOnly
	if !standbyOnly && withLcpu {
		l.Warning("LCPU cannot be powered on in non standby mode")
		return nil
	}
	var ctx *modular.LcpuCtx
	if o.Lcpu {
		if !card.HasCpuModule() {
			l.Info("%s has no LCPU module, skipping...", card)
			return nil
		}
		ctx = &modular.LcpuCtx{Provision: o.Provision}
	}
	if standbyOnly && !withLcpu {
		return nil
	}
	if card.PoweredOn() && o.PowerCycleIfOn {
		if err := card.PowerOnIs(false, ctx); err != nil {
			return err
		}
	}
	if err := card.PowerOnIs(true, ctx); err != nil {
		return err
	}
	if !withLcpu {
		if err := o.Phases.Run(card.SetupMain); err != nil {
			return err
		}
	}
	l.Info("%s: process reload cause info", card)
	_, err := action.LinecardCauses(card, true)
	return err
}

type clean struct {
	Reset, Off, Lcpu bool
}

func parseClean(args []string) (clean, error) {
	flag, args := flags.New(args, "-r", "--reset", "--off", "--lcpu")
	if len(args) > 0 {
		return clean{}, sysplat.Errorf("unexpected %v", args)
	}
	return clean{
		Reset: flag.ByName["-r"] || flag.ByName["--reset"],
		Off:   flag.ByName["--off"],
		Lcpu:  flag.ByName["--lcpu"],
	}, nil
}

func (o clean) run(card *modular.Card, l *logging.Logger) error {
	l.Debug("cleaning %s", card)
	if err := action.CleanCard(card, o.Reset); err != nil {
		return err
	}
	if !o.Off {
		return nil
	}
	withLcpu := lcpu(o.Lcpu)
	standbyOnly := config.Get().LinecardStandbyOnly
	if !standbyOnly && withLcpu {
		l.Warning("LCPU cannot be powered off in non standby mode")
		return nil
	}
	var ctx *modular.LcpuCtx
	if withLcpu {
		ctx = &modular.LcpuCtx{}
	}
	if standbyOnly && !withLcpu {
		return nil
	}
	return card.PowerOnIs(false, ctx)
}

type power struct {
	On, Lcpu, PowerCycleIfOn bool
}

func parsePower(args []string) (power, error) {
	flag, args := flags.New(args, "--lcpu", "--powerCycleIfOn")
	if len(args) != 1 {
		return power{}, sysplat.Errorf("expected on or off")
	}
	on, err := action.OnOff(args[0])
	if err != nil {
		return power{}, err
	}
	return power{
		On:             on,
		Lcpu:           flag.ByName["--lcpu"],
		PowerCycleIfOn: flag.ByName["--powerCycleIfOn"],
	}, nil
}

func (o power) run(card *modular.Card, l *logging.Logger) error {
	var ctx *modular.LcpuCtx
	if lcpu(o.Lcpu) {
		ctx = &modular.LcpuCtx{}
		if !card.HasCpuModule() {
			l.Info("%s has no LCPU module, skipping...", card)
			return nil
		}
	}
	if card.PoweredOn() && o.PowerCycleIfOn && o.On {
		if err := card.PowerOnIs(false, ctx); err != nil {
			return fmt.Errorf("failed to power off: %w", err)
		}
	}
	if err := card.PowerOnIs(o.On, ctx); err != nil {
		return fmt.Errorf("failed to power %s: %w", onOff(o.On), err)
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func provision(card *modular.Card, mode modular.ProvisionMode, l *logging.Logger) error {
	if !card.HasCpuModule() {
		l.Info("%s has no LCPU module, skipping...", card)
		return nil
	}
	if !card.PoweredOn() {
		l.Info("%s is not powered on, skipping...", card)
		return nil
	}
	l.Debug("setting provision mode to %s on %s", mode, card)
	return modular.SetProvision(card.SlotId(), mode)
}
