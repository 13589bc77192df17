// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sysplat

import (
	"fmt"
	"strings"

	"github.com/platinasystems/sysplat/lang"
)

type maner interface {
	Man() lang.Alt
}

var section = struct {
	name, synopsis lang.Alt
}{
	name: lang.Alt{
		lang.EnUS: "NAME",
	},
	synopsis: lang.Alt{
		lang.EnUS: "SYNOPSIS",
	},
}

func (s *Sysplat) Man() lang.Alt {
	man := s.MAN
	if man == nil {
		man = lang.Alt{
			lang.EnUS: `
OPTIONS
	-c CONFIG	configuration file, /etc/sonic/arista.config
	-d	debug messages on the console
	-l LOGFILE	also log to LOGFILE
	-platform NAME	use platform NAME instead of detecting it
	-simulation	don't touch the hardware
	-syslog	also log to syslog
	-v VERBOSITY	comma separated [LOGGER/]LEVEL rules

EXIT STATUS
	0 on success, 1 on a failed action, or the code of the failing
	subsystem.

SEE ALSO
	sysplat apropos [COMMAND], sysplat man COMMAND`,
		}
	}
	return man
}

func (s *Sysplat) man(args ...string) error {
	var cmds []Cmd
	for i, arg := range args {
		v := s.ByName[arg]
		if v == nil {
			if i == 0 {
				return fmt.Errorf("%s: not found", arg)
			}
			break
		}
		cmds = append(cmds, v)
	}
	if len(cmds) == 0 {
		cmds = []Cmd{s}
	}
	for i, v := range cmds {
		if i > 0 {
			fmt.Fprintln(s.Stdout)
		}
		fmt.Fprint(s.Stdout, section.name, "\n\t", v, " - ",
			v.Apropos(), "\n\n", section.synopsis, "\n\t",
			strings.TrimSpace(v.Usage()), "\n")
		if method, found := v.(maner); found {
			man := method.Man().String()
			if !strings.HasPrefix(man, "\n") {
				fmt.Fprintln(s.Stdout)
			}
			fmt.Fprint(s.Stdout, man)
			if !strings.HasSuffix(man, "\n") {
				fmt.Fprintln(s.Stdout)
			}
		}
	}
	return nil
}
