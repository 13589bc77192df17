// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package fabric operates the fabric cards of a chassis.
package fabric

import (
	"fmt"

	"github.com/platinasystems/flags"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/modular"
)

type Command struct{}

func (Command) String() string { return "fabric" }

func (Command) Usage() string {
	return `fabric [-i ID]... [--parallel] COMMAND [OPTION]...

	setup [--early | --late] [--on]
	clean [-r | --reset] [--off]
	power on|off`
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "fabric related features",
	}
}

func (Command) Main(args ...string) error {
	a, err := action.ParseCardArgs(args)
	if err != nil {
		return err
	}
	ch, cards, err := action.LoadCards(modular.Fabric, a)
	if err != nil {
		return err
	}
	return Run(ch, cards, a)
}

func Run(ch *modular.Chassis, cards []*modular.Card, a action.CardArgs) error {
	var fn func(*modular.Card, *logging.Logger) error
	switch a.Command {
	case "setup":
		ph, args := action.ParsePhases(a.Args)
		flag, args := flags.New(args, "--on")
		if len(args) > 0 {
			return sysplat.Errorf("unexpected %v", args)
		}
		on := flag.ByName["--on"]
		fn = func(card *modular.Card, l *logging.Logger) error {
			l.Debug("setting up %s", card)
			if err := ph.Run(card.SetupCard); err != nil {
				return err
			}
			if !on {
				return nil
			}
			if err := card.PowerOnIs(true, nil); err != nil {
				return err
			}
			return ph.Run(card.SetupMain)
		}
	case "clean":
		flag, args := flags.New(a.Args, "-r", "--reset", "--off")
		if len(args) > 0 {
			return sysplat.Errorf("unexpected %v", args)
		}
		reset := flag.ByName["-r"] || flag.ByName["--reset"]
		off := flag.ByName["--off"]
		fn = func(card *modular.Card, l *logging.Logger) error {
			l.Debug("cleaning %s", card)
			if err := action.CleanCard(card, reset); err != nil {
				return err
			}
			if off {
				return card.PowerOnIs(false, nil)
			}
			return nil
		}
	case "power":
		if len(a.Args) != 1 {
			return sysplat.Errorf("expected on or off")
		}
		on, err := action.OnOff(a.Args[0])
		if err != nil {
			return err
		}
		fn = func(card *modular.Card, _ *logging.Logger) error {
			if err := card.PowerOnIs(on, nil); err != nil {
				return fmt.Errorf("failed to power %s: %w", a.Args[0], err)
			}
			return nil
		}
	default:
		return sysplat.Errorf("%s: unknown fabric command", a.Command)
	}
	return action.Each(ch, cards, a.Parallel, fn)
}
