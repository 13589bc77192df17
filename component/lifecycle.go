// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package component

import (
	"fmt"
	"time"
)

// Optional hooks of a Node, called after its driver.
type (
	Setupper interface {
		Setup() error
	}
	Cleaner interface {
		Clean() error
	}
	Refresher interface {
		Refresh() error
	}
	Resetter interface {
		ResetIn() error
		ResetOut() error
	}
	Waiter interface {
		WaitForIt(timeout time.Duration) error
	}
)

// Setup brings up every node of the tree whose priority f matches: its
// driver, its Setup hook and its immediate quirks, then its subtree, then
// the driver's finish.
func Setup(n Node, f Filter) error {
	c := n.Base()
	match := f.Match(c.Priority)
	if match {
		if err := setupOne(n); err != nil {
			return err
		}
	}
	for _, child := range c.children {
		if err := Setup(child, f); err != nil {
			return err
		}
	}
	if match && c.Driver != nil {
		if err := c.Driver.Finish(); err != nil {
			return fmt.Errorf("%s: finish: %w", c, err)
		}
	}
	return nil
}

func setupOne(n Node) error {
	c := n.Base()
	log.Debug("setting up %s (%s)", c, c.Priority)
	if c.Driver != nil {
		if err := c.Driver.Setup(); err != nil {
			return fmt.Errorf("%s: setup: %w", c, err)
		}
	}
	if s, ok := n.(Setupper); ok {
		if err := s.Setup(); err != nil {
			return fmt.Errorf("%s: setup: %w", c, err)
		}
	}
	return ApplyQuirks(n, false)
}

// Clean tears the tree down children first, in reverse declaration order.
// It continues past failures and returns the first.
func Clean(n Node) (err error) {
	c := n.Base()
	keep := func(e error) {
		if e != nil {
			log.Error("%s: clean: %v", c, e)
			if err == nil {
				err = e
			}
		}
	}
	for i := len(c.children) - 1; i >= 0; i-- {
		keep(Clean(c.children[i]))
	}
	if cl, ok := n.(Cleaner); ok {
		keep(cl.Clean())
	}
	if c.Driver != nil {
		keep(c.Driver.Clean())
	}
	return
}

// Refresh resyncs the tree after a hotplug event.
func Refresh(n Node) error {
	c := n.Base()
	for _, child := range c.children {
		if err := Refresh(child); err != nil {
			return err
		}
	}
	if r, ok := n.(Refresher); ok {
		if err := r.Refresh(); err != nil {
			return err
		}
	}
	if c.Driver != nil {
		return c.Driver.Refresh()
	}
	return nil
}

// ResetIn puts the children in reset before the node itself.
func ResetIn(n Node) error {
	c := n.Base()
	for _, child := range c.children {
		if err := ResetIn(child); err != nil {
			return err
		}
	}
	if r, ok := n.(Resetter); ok {
		return r.ResetIn()
	}
	return nil
}

// ResetOut releases the node before its children.
func ResetOut(n Node) error {
	if r, ok := n.(Resetter); ok {
		if err := r.ResetOut(); err != nil {
			return err
		}
	}
	for _, child := range n.Base().children {
		if err := ResetOut(child); err != nil {
			return err
		}
	}
	return nil
}

// WaitForIt blocks until every device of the tree appeared.
func WaitForIt(n Node, timeout time.Duration) error {
	if w, ok := n.(Waiter); ok {
		if err := w.WaitForIt(timeout); err != nil {
			return err
		}
	}
	for _, child := range n.Base().children {
		if err := WaitForIt(child, timeout); err != nil {
			return err
		}
	}
	return nil
}
