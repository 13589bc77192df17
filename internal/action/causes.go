// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package action

import (
	"fmt"
	"io"

	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/lock"
	"github.com/platinasystems/sysplat/inventory"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/reloadcause"
)

// CausePath is where the reload cause history of the box is kept.
func CausePath() string {
	return config.Get().Flash("reboot-cause/platform/causes.json")
}

// LinecardCausePath keeps the history of the linecard in slotId.
func LinecardCausePath(slotId int) string {
	return config.Get().Flash(fmt.Sprintf("reboot-cause/linecard%d/causes.json",
		slotId))
}

// Causes opens the reload cause history of the box under the platform
// lock. With process set, a new report is built from the providers of inv.
func Causes(inv inventory.Reader, process bool) (*reloadcause.Manager, error) {
	var (
		m         *reloadcause.Manager
		providers []reloadcause.Provider
	)
	if process && inv != nil {
		providers = inv.ReloadCauseProviders()
	}
	err := lock.New(config.Get().LockFile).Do(func() (err error) {
		m, err = reloadcause.Open("platform", CausePath(), providers,
			process)
		return
	})
	return m, err
}

// LinecardCauses opens the reload cause history of card, pulling new
// causes from its own providers when process is set.
func LinecardCauses(card *modular.Card, process bool) (*reloadcause.Manager, error) {
	var providers []reloadcause.Provider
	if process {
		providers = card.InventoryReader().ReloadCauseProviders()
	}
	name := fmt.Sprint("linecard", card.SlotId())
	var m *reloadcause.Manager
	err := card.Locked(func() (err error) {
		m, err = reloadcause.Open(name, LinecardCausePath(card.SlotId()),
			providers, process)
		return
	})
	return m, err
}

// Reports returns the last report, or all with history.
func Reports(m *reloadcause.Manager, history bool) []*reloadcause.Report {
	if history {
		return m.AllReports()
	}
	if r := m.LastReport(); r != nil {
		return []*reloadcause.Report{r}
	}
	return []*reloadcause.Report{}
}

// PrintCauses lists the causes of reports the way reboot-cause does.
func PrintCauses(w io.Writer, reports []*reloadcause.Report) {
	var causes []*reloadcause.Entry
	for _, r := range reports {
		if r.Cause != nil {
			causes = append(causes, r.Cause)
		}
	}
	if len(causes) == 0 {
		fmt.Fprintln(w, "No reboot cause detected")
		return
	}
	fmt.Fprintln(w, "Found reboot cause(s):")
	fmt.Fprintln(w, "----------------------")
	for _, c := range causes {
		fmt.Fprintln(w, c)
	}
}
