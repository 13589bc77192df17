// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package component is the device tree of a platform and its lifecycle.
//
// Every device is a Node embedding a Component. Setup walks the tree in
// declaration order, filtered by priority; Clean walks it in reverse.
package component

import (
	"fmt"
	"time"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/driver"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/logging"
)

var log = logging.Get("component")

// DefaultWaitTimeout bounds WaitForIt.
const DefaultWaitTimeout = 15 * time.Second

type Priority int

const (
	Default Priority = iota
	Thermal
	Power
	Dpm
	Cooling
	Led
	Background
)

var priorityNames = []string{
	Default:    "default",
	Thermal:    "thermal",
	Power:      "power",
	Dpm:        "dpm",
	Cooling:    "cooling",
	Led:        "led",
	Background: "background",
}

func (p Priority) String() string {
	if int(p) < len(priorityNames) {
		return priorityNames[p]
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// Filter selects the priorities a setup pass brings up.
type Filter map[Priority]bool

func Priorities(p ...Priority) Filter {
	f := make(Filter)
	for _, x := range p {
		f[x] = true
	}
	return f
}

var (
	DefaultFilter    = Priorities(Default, Thermal, Dpm, Cooling, Led)
	BackgroundFilter = Priorities(Power, Background)
	// All matches every priority.
	All Filter = nil
)

func (f Filter) Match(p Priority) bool { return f == nil || f[p] }

// Node is anything embedding a Component.
type Node interface {
	Base() *Component
}

// Component holds the driver, inventory and children of a device.
type Component struct {
	Name     string
	Priority Priority
	Driver   driver.Driver
	Inv      *inventory.Inventory
	Quirks   []Quirk

	parent   Node
	children []Node
}

func New(name string) *Component {
	return &Component{Name: name}
}

func (c *Component) Base() *Component { return c }

func (c *Component) String() string {
	if len(c.Name) > 0 {
		return c.Name
	}
	if c.Driver != nil {
		return c.Driver.String()
	}
	return "Component"
}

func (c *Component) Parent() Node     { return c.parent }
func (c *Component) Children() []Node { return append([]Node(nil), c.children...) }

// Inventory returns the inventory objects of this component register in.
func (c *Component) Inventory() *inventory.Inventory {
	if c.Inv == nil {
		c.Inv = inventory.New()
	}
	return c.Inv
}

// Add appends child to parent. The child inherits the parent inventory,
// unless meta inventories are configured, and at least its priority.
func Add[T Node](parent Node, child T) T {
	p, c := parent.Base(), child.Base()
	if c.Priority < p.Priority {
		c.Priority = p.Priority
	}
	if c.Inv == nil {
		if config.Get().UseMetainventory {
			c.Inv = inventory.New()
		} else {
			c.Inv = p.Inventory()
		}
	}
	c.parent = parent
	p.children = append(p.children, child)
	return child
}

// Walk visits n and its descendants depth first, skipping the subtrees
// of nodes f rejects.
func Walk(n Node, f Filter, fn func(Node) error) error {
	if !f.Match(n.Base().Priority) {
		return nil
	}
	if err := fn(n); err != nil {
		return err
	}
	for _, child := range n.Base().children {
		if err := Walk(child, f, fn); err != nil {
			return err
		}
	}
	return nil
}

// Descendants lists the nodes below n in walk order.
func Descendants(n Node, f Filter) []Node {
	var l []Node
	Walk(n, f, func(x Node) error {
		if x != n {
			l = append(l, x)
		}
		return nil
	})
	return l
}

// Find returns the first descendant of type T.
func Find[T Node](n Node) (T, bool) {
	var found T
	var ok bool
	Walk(n, All, func(x Node) error {
		if t, is := x.(T); is && !ok {
			found, ok = t, true
		}
		return nil
	})
	return found, ok
}

// FindAll returns every descendant of type T in walk order.
func FindAll[T Node](n Node) []T {
	var l []T
	Walk(n, All, func(x Node) error {
		if t, is := x.(T); is {
			l = append(l, t)
		}
		return nil
	})
	return l
}

// Inventories returns the distinct inventories of the tree.
func Inventories(n Node) []inventory.Reader {
	seen := make(map[*inventory.Inventory]bool)
	var l []inventory.Reader
	Walk(n, All, func(x Node) error {
		inv := x.Base().Inventory()
		if !seen[inv] {
			seen[inv] = true
			l = append(l, inv)
		}
		return nil
	})
	return l
}

// Check panics when a child has a lower priority than its parent.
func Check(n Node) {
	Walk(n, All, func(x Node) error {
		for _, child := range x.Base().children {
			if child.Base().Priority < x.Base().Priority {
				panic(fmt.Errorf("%s: child %s has priority %s below %s",
					x.Base(), child.Base(), child.Base().Priority,
					x.Base().Priority))
			}
		}
		return nil
	})
}
