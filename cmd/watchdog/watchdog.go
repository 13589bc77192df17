// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package watchdog

import (
	"fmt"
	"io"
	"strconv"

	"github.com/platinasystems/flags"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/watchdog"
)

// DefaultArmTimeout in milliseconds.
const DefaultArmTimeout = 300000

type Command struct {
	s *sysplat.Sysplat
}

func (*Command) String() string { return "watchdog" }

func (*Command) Usage() string {
	return "watchdog --arm [MS] | --stop | --status"
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "arm, stop or query the hardware watchdog",
	}
}

func (c *Command) Sysplat(s *sysplat.Sysplat) { c.s = s }

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "--arm", "--stop", "--status")
	ms := DefaultArmTimeout
	if flag.ByName["--arm"] && len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return sysplat.Errorf("%s: invalid timeout", args[0])
		}
		ms, args = v, args[1:]
	}
	if len(args) > 0 {
		return sysplat.Errorf("unexpected %v", args)
	}
	p, err := action.Platform()
	if err != nil {
		return err
	}
	l := p.InventoryReader().Watchdogs()
	if len(l) == 0 {
		return sysplat.Errorf("%s has no watchdog", p)
	}
	w := l[0]
	switch {
	case flag.ByName["--arm"]:
		return Arm(w, ms)
	case flag.ByName["--stop"]:
		return w.Stop()
	case flag.ByName["--status"]:
		st, err := w.Status()
		if err != nil {
			return err
		}
		Print(action.Stdout(c.s), st)
		return nil
	}
	return sysplat.Errorf("usage: %s", c.Usage())
}

// Arm the watchdog to expire in ms milliseconds.
func Arm(w inventory.Watchdog, ms int) error {
	cs := ms / 10
	if cs > watchdog.MaxTimeout {
		return sysplat.Errorf("%dms exceeds the %dms maximum", ms,
			watchdog.MaxTimeout*10)
	}
	return w.Arm(cs)
}

func Print(w io.Writer, st inventory.WatchdogStatus) {
	fmt.Fprintf(w, "Enabled:   %t\n", st.Enabled)
	fmt.Fprintf(w, "Timeout:   %ds\n", watchdog.Seconds(st.Timeout))
	fmt.Fprintf(w, "Remaining: %ds\n", watchdog.Seconds(st.Remaining))
}
