// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dump prints the component tree and inventory of the platform,
// of every card too on a supervisor.
package dump

import (
	"github.com/platinasystems/flags"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/platform"
)

type Command struct {
	s *sysplat.Sysplat
}

func (*Command) String() string { return "dump" }
func (*Command) Usage() string  { return "dump [--noIo]" }

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "dump the platform component tree and inventory",
	}
}

func (c *Command) Sysplat(s *sysplat.Sysplat) { c.s = s }

type Dump struct {
	Version  int                `json:"version"`
	Platform *action.NodeReport `json:"platform"`
	Summary  *action.Summary    `json:"inventory,omitempty"`
	Chassis  *modular.Diag      `json:"chassis,omitempty"`
	Cards    []*CardDump        `json:"cards,omitempty"`
}

type CardDump struct {
	Card      action.CardReport  `json:"card"`
	Tree      *action.NodeReport `json:"tree"`
	Inventory action.Summary     `json:"inventory"`
}

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "--noIo")
	if len(args) > 0 {
		return sysplat.Errorf("unexpected %v", args)
	}
	p, err := action.Platform()
	if err != nil {
		return err
	}
	d, err := New(p, !flag.ByName["--noIo"])
	if err != nil {
		return err
	}
	return action.PrintJson(action.Stdout(c.s), d, true)
}

// New walks p; without performIo, the inventory is not read.
func New(p platform.Platform, performIo bool) (*Dump, error) {
	d := &Dump{Version: 1, Platform: action.Tree(p)}
	if performIo {
		s := action.Summarize(p)
		d.Summary = &s
	}
	if _, ok := p.(interface {
		GetChassis() (*modular.Chassis, error)
	}); !ok {
		return d, nil
	}
	ch, err := action.Chassis(p)
	if err != nil {
		return nil, err
	}
	diag := ch.Diag(performIo)
	d.Chassis = &diag
	for _, card := range ch.Cards() {
		if !card.Presence() {
			continue
		}
		cd := &CardDump{
			Card: action.Card(card, performIo),
			Tree: action.Tree(card),
		}
		if performIo {
			cd.Inventory = action.Summarize(card)
		}
		d.Cards = append(d.Cards, cd)
	}
	return d, nil
}
