// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sysplat

import (
	"fmt"
	"strings"
)

type completer interface {
	Complete(...string) []string
}

func (s *Sysplat) Complete(args ...string) (completions []string) {
	n := len(args)
	if n == 0 || len(args[0]) == 0 {
		return s.Names()
	}
	if v, found := s.ByName[args[0]]; found {
		if method, found := v.(completer); found {
			return method.Complete(args[1:]...)
		}
		return nil
	}
	if n == 1 {
		for _, name := range s.Names() {
			if strings.HasPrefix(name, args[0]) {
				completions = append(completions, name)
			}
		}
	}
	return
}

// This may be used for bash completion of sysplat commands like this.
//
//	_sysplat() {
//		if [ -z ${COMP_WORDS[COMP_CWORD]} ] ; then
//			COMPREPLY=($(sysplat complete ${COMP_WORDS[@]:1} ''))
//		else
//			COMPREPLY=($(sysplat complete ${COMP_WORDS[@]:1}))
//		fi
//		return 0
//	}
//
//	type -p sysplat >/dev/null && complete -F _sysplat sysplat
func (s *Sysplat) complete(args ...string) error {
	for _, c := range s.Complete(args...) {
		fmt.Fprintln(s.Stdout, c)
	}
	return nil
}
