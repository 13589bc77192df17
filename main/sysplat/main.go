// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This is the platform tool and daemons of a switch cpu.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/cmd/clean"
	"github.com/platinasystems/sysplat/cmd/dump"
	"github.com/platinasystems/sysplat/cmd/fabric"
	"github.com/platinasystems/sysplat/cmd/linecard"
	"github.com/platinasystems/sysplat/cmd/platformd"
	"github.com/platinasystems/sysplat/cmd/rebootcause"
	"github.com/platinasystems/sysplat/cmd/reset"
	"github.com/platinasystems/sysplat/cmd/setup"
	"github.com/platinasystems/sysplat/cmd/show"
	"github.com/platinasystems/sysplat/cmd/watchdog"
	"github.com/platinasystems/sysplat/cmd/xcvrd"
)

func Sysplat() *sysplat.Sysplat {
	s := sysplat.New("sysplat")
	s.Plot(setup.Command{},
		clean.Command{},
		&dump.Command{},
		reset.Command{},
		&watchdog.Command{},
		&rebootcause.Command{},
		&linecard.Command{},
		fabric.Command{},
		&show.Command{},
		&xcvrd.Command{},
		&platformd.Command{},
	)
	return s
}

func main() {
	s := Sysplat()
	args := os.Args[1:]
	// installed as a link named after a command, e.g. xcvrd
	if name := filepath.Base(os.Args[0]); s.ByName[name] != nil {
		args = append([]string{name}, args...)
	}
	err := s.Main(args...)
	if code := sysplat.ExitCode(err); code != 0 {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}
