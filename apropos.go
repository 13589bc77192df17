// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sysplat

import (
	"fmt"

	"github.com/platinasystems/sysplat/lang"
)

func (s *Sysplat) Apropos() lang.Alt {
	apropos := s.APROPOS
	if apropos == nil {
		apropos = lang.Alt{
			lang.EnUS: "switch platform bring-up and inspection",
		}
	}
	return apropos
}

func (s *Sysplat) apropos(args ...string) error {
	pad := func(n int) {
		if n < 0 {
			fmt.Fprint(s.Stdout, "\n\t\t")
		} else {
			fmt.Fprint(s.Stdout, "                "[:n])
		}
	}
	if len(args) == 0 {
		args = s.Names()
	}
	for i, name := range args {
		if len(name) == 0 {
			continue
		}
		if v, found := s.ByName[name]; found {
			fmt.Fprint(s.Stdout, name)
			pad(16 - len(name))
			fmt.Fprintln(s.Stdout, v.Apropos())
		} else if i == 0 {
			return fmt.Errorf("%s: not found", name)
		}
	}
	return nil
}
