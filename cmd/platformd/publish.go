// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package platformd

import (
	"fmt"
	"sort"

	"github.com/platinasystems/sysplat/internal/action"
)

type printer interface {
	Print(args ...interface{}) (int, error)
}

// Keys flattens s into the redis keys platformd publishes.
func Keys(s action.Summary) map[string]string {
	m := make(map[string]string)
	for _, p := range s.Power.Slots {
		prefix := fmt.Sprint("psu", p.SlotId, ".")
		m[prefix+"present"] = fmt.Sprint(p.Present)
		m[prefix+"status"] = fmt.Sprint(p.Status)
		m[prefix+"model"] = p.Model
	}
	for _, f := range s.Environment.Fans {
		prefix := fmt.Sprint("fan", f.Id, ".")
		m[prefix+"status"] = fmt.Sprint(f.Status)
		m[prefix+"speed"] = fmt.Sprint(f.Speed)
	}
	for _, t := range s.Environment.Temps {
		v := action.NA
		if t.Value != nil {
			v = fmt.Sprint(*t.Value)
		}
		m["temp."+t.Name] = v
	}
	for _, x := range s.Xcvrs {
		m[fmt.Sprint(x.Type, x.Id, ".present")] = fmt.Sprint(x.Present)
	}
	return m
}

// Publisher prints the keys that changed since its previous update.
type Publisher struct {
	pub  printer
	last map[string]string
}

func NewPublisher(pub printer) *Publisher {
	return &Publisher{pub: pub, last: make(map[string]string)}
}

func (p *Publisher) Update(s action.Summary) error {
	m := Keys(s)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if last, found := p.last[k]; found && last == v {
			continue
		}
		if _, err := p.pub.Print(k, ": ", v); err != nil {
			return err
		}
		p.last[k] = v
	}
	for k := range p.last {
		if _, found := m[k]; !found {
			if _, err := p.pub.Print("delete: ", k); err != nil {
				return err
			}
			delete(p.last, k)
		}
	}
	return nil
}
