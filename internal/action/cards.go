// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package action

import (
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/component"
	"github.com/platinasystems/sysplat/modular"
)

// Phases are the setup passes selected by --early and --late; neither
// selects both.
type Phases struct {
	Early, Late bool
}

func ParsePhases(args []string) (Phases, []string) {
	flag, args := flags.New(args, "--early", "--late")
	return Phases{
		Early: flag.ByName["--early"],
		Late:  flag.ByName["--late"],
	}, args
}

// Run calls fn with the filter of each selected pass.
func (ph Phases) Run(fn func(component.Filter) error) error {
	if ph.Early || !ph.Late {
		if err := fn(component.DefaultFilter); err != nil {
			return err
		}
	}
	if ph.Late || !ph.Early {
		return fn(component.BackgroundFilter)
	}
	return nil
}

// CardArgs are the options common to the linecard and fabric commands.
type CardArgs struct {
	Ids      []int
	Parallel bool
	Command  string
	Args     []string
}

func ParseCardArgs(args []string) (CardArgs, error) {
	parm, args := parms.New(args, "-i", "--id")
	flag, args := flags.New(args, "--parallel")
	var a CardArgs
	for _, s := range []string{parm.ByName["-i"], parm.ByName["--id"]} {
		ids, err := ParseIds(s)
		if err != nil {
			return a, err
		}
		a.Ids = append(a.Ids, ids...)
	}
	a.Parallel = flag.ByName["--parallel"]
	if len(args) == 0 {
		return a, sysplat.Errorf("missing command")
	}
	a.Command, a.Args = args[0], args[1:]
	return a, nil
}

// LoadCards returns the present cards of kind that a selects.
func LoadCards(kind modular.Kind, a CardArgs) (*modular.Chassis, []*modular.Card, error) {
	p, err := Platform()
	if err != nil {
		return nil, nil, err
	}
	c, err := Chassis(p)
	if err != nil {
		return nil, nil, err
	}
	cards, err := Cards(c, kind, a.Ids)
	return c, cards, err
}

// CleanCard tears the card down, in reset first when reset.
func CleanCard(card *modular.Card, reset bool) error {
	if reset {
		err := card.Locked(func() error { return component.ResetIn(card) })
		if err != nil {
			return err
		}
	}
	return card.CleanCard()
}
