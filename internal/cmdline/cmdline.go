// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package cmdline maps the kernel command line.
package cmdline

import (
	"io/ioutil"
	"regexp"
	"sort"
	"strings"

	"github.com/platinasystems/sysplat/internal/sysfs"
)

// Cmdline maps KEY to VALUE; a bare KEY maps to "true".
type Cmdline map[string]string

var File = "/proc/cmdline"

var tokenRe = regexp.MustCompile(`\S+='[^']*'|\S+="[^"]*"|\S+=\S+|\S+`)

// Load reads File below the sysfs root.
func Load() (Cmdline, error) {
	b, err := ioutil.ReadFile(sysfs.Path(File))
	if err != nil {
		return nil, err
	}
	return Parse(string(b)), nil
}

func Parse(s string) Cmdline {
	m := make(Cmdline)
	for _, line := range strings.Split(s, "\n") {
		for _, tok := range tokenRe.FindAllString(line, -1) {
			m.Set(tok)
		}
	}
	return m
}

// Set is m[KEY] = VALUE if kv has '=' and m[KEY] = "true" otherwise.
func (m Cmdline) Set(kv string) {
	eq := strings.Index(kv, "=")
	switch {
	case eq < 1:
		m[kv] = "true"
	case eq == len(kv)-1:
		m[kv[:eq]] = ""
	case kv[eq+1] == '\'' || kv[eq+1] == '"':
		m[kv[:eq]] = strings.Trim(kv[eq+1:], `'"`)
	default:
		m[kv[:eq]] = kv[eq+1:]
	}
}

func (m Cmdline) Has(key string) bool {
	_, found := m[key]
	return found
}

// Prefixed returns the entries whose key begins with prefix, with the
// prefix removed, e.g. Prefixed("arista.") of "arista.lock_file=/x" is
// {"lock_file": "/x"}.
func (m Cmdline) Prefixed(prefix string) map[string]string {
	sub := make(map[string]string)
	for k, v := range m {
		if strings.HasPrefix(k, prefix) && len(k) > len(prefix) {
			sub[k[len(prefix):]] = v
		}
	}
	return sub
}

func (m Cmdline) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String reformats the command line in key order.
func (m Cmdline) String() string {
	var b strings.Builder
	for _, k := range m.Keys() {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		if v := m[k]; v != "true" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}
