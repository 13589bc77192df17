// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sysplat

type helper interface {
	Help(...string) string
}

// Help returns the command's own help, else its usage.
func (s *Sysplat) Help(args ...string) string {
	if len(args) > 0 {
		if v, found := s.ByName[args[0]]; found {
			if method, found := v.(helper); found {
				return method.Help(args[1:]...)
			}
			return Usage(v)
		}
	}
	return Usage(s)
}
