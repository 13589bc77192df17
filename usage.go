// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sysplat

import (
	"fmt"
	"strings"
)

func Usage(v Usager) string {
	return fmt.Sprint("usage:\t", strings.TrimSpace(v.Usage()))
}

type Usager interface {
	Usage() string
}

func (s *Sysplat) Usage() string {
	usage := s.USAGE
	if len(usage) == 0 {
		usage = `
	sysplat [ OPTION ]... COMMAND [ ARGS ]...
	sysplat COMMAND -[-]HELPER [ ARGS ]...
	sysplat HELPER [ COMMAND ] [ ARGS ]...

	OPTION := { -c CONFIG | -d | -l LOGFILE | -platform NAME |
		-simulation | -syslog | -v VERBOSITY }
	HELPER := { apropos | complete | help | man | usage }`
	}
	return usage
}

func (s *Sysplat) usage(args ...string) error {
	var u Usager = s
	if len(args) > 0 {
		v := s.ByName[args[0]]
		if v == nil {
			return fmt.Errorf("%s: not found", args[0])
		}
		u = v
	}
	fmt.Fprintln(s.Stdout, Usage(u))
	return nil
}
