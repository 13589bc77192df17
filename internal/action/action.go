// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package action loads the platform and the chassis cards the commands
// operate on.
package action

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/logging"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/platforms"
)

var log = logging.Get("action")

var registry struct {
	once sync.Once
	r    *platform.Registry
}

// Registry holds every product descriptor.
func Registry() *platform.Registry {
	registry.once.Do(func() { registry.r = platforms.NewRegistry() })
	return registry.r
}

// Platform instantiates the platform named with -platform, else the one
// detected from the system eeprom.
func Platform() (platform.Platform, error) {
	var names []string
	if len(sysplat.PlatformName) > 0 {
		names = append(names, sysplat.PlatformName)
	}
	p, err := Registry().Get(names...)
	if err != nil {
		return nil, &sysplat.ActionError{Msg: err.Error(), Code: 1}
	}
	m := p.Eeprom()
	log.Debug("platform info: SKU=%s SID=%s SerialNumber=%s",
		m["SKU"], m["SID"], m["SerialNumber"])
	return p, nil
}

type chassisGetter interface {
	GetChassis() (*modular.Chassis, error)
}

// Chassis returns the chassis of a supervisor platform.
func Chassis(p platform.Platform) (*modular.Chassis, error) {
	s, ok := p.(chassisGetter)
	if !ok {
		return nil, sysplat.Errorf("platform %s is not a supervisor", p)
	}
	return s.GetChassis()
}

// Cards loads the cards of kind in the absolute slot ids, every slot when
// none, and returns those present.
func Cards(c *modular.Chassis, kind modular.Kind, ids []int) ([]*modular.Card, error) {
	var (
		err   error
		cards []*modular.Card
	)
	if kind == modular.Fabric {
		err = c.LoadFabrics(ids...)
		cards = c.Fabrics()
	} else {
		err = c.LoadLinecards(ids...)
		cards = c.Linecards()
	}
	if err != nil {
		log.Warning("loading %ss: %v", kind, err)
	}
	var l []*modular.Card
	for _, card := range cards {
		if card.Slot == nil || !card.Slot.Presence() {
			continue
		}
		if len(ids) > 0 && !contains(ids, card.SlotId()) {
			continue
		}
		l = append(l, card)
	}
	return l, nil
}

func contains(l []int, x int) bool {
	for _, v := range l {
		if v == x {
			return true
		}
	}
	return false
}

// ParseIds parses comma or space separated slot ids, as in "3,4" or "3-6".
func ParseIds(s string) ([]int, error) {
	var ids []int
	if len(s) == 0 {
		return ids, nil
	}
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	}) {
		lo, hi := f, f
		if i := strings.IndexByte(f, '-'); i > 0 {
			lo, hi = f[:i], f[i+1:]
		}
		first, err := strconv.Atoi(lo)
		if err != nil {
			return nil, sysplat.Errorf("%s: invalid slot id", f)
		}
		last, err := strconv.Atoi(hi)
		if err != nil || last < first {
			return nil, sysplat.Errorf("%s: invalid slot range", f)
		}
		for id := first; id <= last; id++ {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// OnOff parses a power state argument.
func OnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, sysplat.Errorf("%q: expected on or off", s)
}

// Each runs fn on every card, concurrently when parallel, logging the
// failures. It returns the first failure.
func Each(c *modular.Chassis, cards []*modular.Card, parallel bool, fn func(*modular.Card, *logging.Logger) error) error {
	if parallel {
		return c.SetupCards(cards, fn)
	}
	var first error
	for _, card := range cards {
		l := log.Child(fmt.Sprintf("card%d: ", card.SlotId()))
		if err := fn(card, l); err != nil {
			l.Warning("%v", err)
			if first == nil {
				first = fmt.Errorf("%s: %w", card, err)
			}
		}
	}
	return first
}

// Stdout is where a command plotted on s prints.
func Stdout(s *sysplat.Sysplat) io.Writer {
	if s == nil || s.Stdout == nil {
		return os.Stdout
	}
	return s.Stdout
}

// PrintJson encodes v to w, indented when pretty.
func PrintJson(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "   ")
	}
	return enc.Encode(v)
}
