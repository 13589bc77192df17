// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmdline

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	m := Parse(`BOOT_IMAGE=/boot/vmlinuz quiet Aboot=Aboot-norcal6-6.1.7 ` +
		`sid=Clearwater arista.lock_file='/tmp/a lock' arista-debug` + "\n")
	expect := Cmdline{
		"BOOT_IMAGE":       "/boot/vmlinuz",
		"quiet":            "true",
		"Aboot":            "Aboot-norcal6-6.1.7",
		"sid":              "Clearwater",
		"arista.lock_file": "/tmp/a lock",
		"arista-debug":     "true",
	}
	if !reflect.DeepEqual(m, expect) {
		t.Error("unexpected:", m)
	}
	if sub := m.Prefixed("arista."); !reflect.DeepEqual(sub,
		map[string]string{"lock_file": "/tmp/a lock"}) {
		t.Error("unexpected:", sub)
	}
	if !m.Has("quiet") || m.Has("loud") {
		t.Error("Has")
	}
}

func TestString(t *testing.T) {
	m := Parse("b=2 a c=3")
	if s := m.String(); s != "a b=2 c=3" {
		t.Error("unexpected:", s)
	}
}
