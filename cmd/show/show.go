// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package show prints the platform inventory as text or JSON.
package show

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/sysplat"
	"github.com/platinasystems/sysplat/config"
	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/lang"
	"github.com/platinasystems/sysplat/modular"
	"github.com/platinasystems/sysplat/onie"
	"github.com/platinasystems/sysplat/platform"
	"github.com/platinasystems/sysplat/prefdl"
)

type Command struct {
	s *sysplat.Sysplat
}

func (*Command) String() string { return "show" }

func (*Command) Usage() string {
	return `show [-j | --json] [-p | --pretty] SUBJECT ITEM

	platform {status|eeprom [--onie]|environment|power|xcvr|reboot-cause [--history]}
	chassis {summary|eeprom}
	linecard [-i ID]... {status|eeprom|environment|reboot-cause}
	fabric [-i ID]... {status|eeprom|environment}
	supported`
}

func (*Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "show platform information",
	}
}

func (*Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `DESCRIPTION
	Print the inventory of the platform, of the chassis or of its
	cards. JSON output is an object of version 1 whose renderers
	member maps each item to its data.

OPTIONS
	-j, --json
		print JSON
	-p, --pretty
		indent the JSON, the default on a terminal
	--onie
		print the platform eeprom as ONIE TLV codes`,
	}
}

func (c *Command) Sysplat(s *sysplat.Sysplat) { c.s = s }

func (c *Command) Main(args ...string) error {
	flag, args := flags.New(args, "-j", "--json", "-p", "--pretty")
	w := action.Stdout(c.s)
	sh := &Show{
		W:      w,
		Json:   flag.ByName["-j"] || flag.ByName["--json"],
		Pretty: flag.ByName["-p"] || flag.ByName["--pretty"],
	}
	if f, ok := w.(*os.File); ok && !sh.Pretty {
		sh.Pretty = isatty.IsTerminal(f.Fd())
	}
	if len(args) == 0 {
		return sysplat.Errorf("missing subject")
	}
	subject, args := args[0], args[1:]
	if subject == "supported" {
		if len(args) > 0 {
			return sysplat.Errorf("unexpected %v", args)
		}
		return sh.Render(Supported(action.Registry()))
	}
	switch subject {
	case "platform", "chassis", "linecard", "fabric":
	default:
		return sysplat.Errorf("%s: unknown subject", subject)
	}
	p, err := action.Platform()
	if err != nil {
		return err
	}
	r, err := Item(p, subject, args)
	if err != nil {
		return err
	}
	return sh.Render(r)
}

// Item returns the renderer of the subject item named by args.
func Item(p platform.Platform, subject string, args []string) (Renderer, error) {
	switch subject {
	case "platform":
		return platformItem(p, args)
	case "chassis":
		return chassisItem(p, args)
	case "linecard":
		return cardItem(p, modular.Linecard, args)
	case "fabric":
		return cardItem(p, modular.Fabric, args)
	}
	return Renderer{}, sysplat.Errorf("%s: unknown subject", subject)
}

func item(args []string) (string, error) {
	if len(args) == 0 {
		return "", sysplat.Errorf("missing item")
	}
	if len(args) > 1 {
		return "", sysplat.Errorf("unexpected %v", args[1:])
	}
	return args[0], nil
}

func platformItem(p platform.Platform, args []string) (Renderer, error) {
	flag, args := flags.New(args, "--history", "--onie")
	name, err := item(args)
	if err != nil {
		return Renderer{}, err
	}
	inv := p.InventoryReader()
	switch name {
	case "status":
		return Status(action.Summarize(p)), nil
	case "eeprom":
		if flag.ByName["--onie"] {
			e := onie.New(platform.SystemEeprom(), onie.Environment())
			return Eeproms([]map[string]string{e.Data()}), nil
		}
		return Eeproms([]map[string]string{p.Eeprom()}), nil
	case "environment":
		return Environment(action.Environment(inv)), nil
	case "power":
		return Power(action.Power(inv)), nil
	case "xcvr":
		return Xcvrs(action.Xcvrs(inv)), nil
	case "reboot-cause":
		reports := []RebootCause{}
		if !config.Get().InSimulation() {
			m, err := action.Causes(inv, false)
			if err != nil {
				return Renderer{}, err
			}
			reports = append(reports, RebootCause{
				Name:    "platform",
				Reports: action.Reports(m, flag.ByName["--history"]),
			})
		}
		return RebootCauses(reports), nil
	}
	return Renderer{}, sysplat.Errorf("%s: unknown platform item", name)
}

func chassisItem(p platform.Platform, args []string) (Renderer, error) {
	name, err := item(args)
	if err != nil {
		return Renderer{}, err
	}
	ch, err := action.Chassis(p)
	if err != nil {
		return Renderer{}, err
	}
	switch name {
	case "summary", "status":
		return ChassisSummary(Summarize(ch)), nil
	case "eeprom":
		return Eeproms([]map[string]string{ch.Eeprom()}), nil
	}
	return Renderer{}, sysplat.Errorf("%s: unknown chassis item", name)
}

func cardItem(p platform.Platform, kind modular.Kind, args []string) (Renderer, error) {
	parm, args := parms.New(args, "-i", "--id")
	var a action.CardArgs
	for _, s := range []string{parm.ByName["-i"], parm.ByName["--id"]} {
		ids, err := action.ParseIds(s)
		if err != nil {
			return Renderer{}, err
		}
		a.Ids = append(a.Ids, ids...)
	}
	name, err := item(args)
	if err != nil {
		return Renderer{}, err
	}
	ch, err := action.Chassis(p)
	if err != nil {
		return Renderer{}, err
	}
	cards, err := action.Cards(ch, kind, a.Ids)
	if err != nil {
		return Renderer{}, err
	}
	return Cards(kind, name, cards)
}

// Cards renders item of each card.
func Cards(kind modular.Kind, name string, cards []*modular.Card) (Renderer, error) {
	switch name {
	case "status":
		l := []action.CardReport{}
		for _, card := range cards {
			l = append(l, action.Card(card, false))
		}
		return CardStatus(l), nil
	case "eeprom":
		l := []map[string]string{}
		for _, card := range cards {
			m := card.Eeprom()
			m["SlotId"] = fmt.Sprint(card.SlotId())
			l = append(l, m)
		}
		return Eeproms(l), nil
	case "environment":
		var env action.EnvironmentReport
		env.Temps = []action.TempReport{}
		env.Fans = []action.FanReport{}
		for _, card := range cards {
			r := action.Environment(card.InventoryReader())
			env.Temps = append(env.Temps, r.Temps...)
			env.Fans = append(env.Fans, r.Fans...)
		}
		return Environment(env), nil
	case "reboot-cause":
		if kind != modular.Linecard {
			break
		}
		l := []RebootCause{}
		for _, card := range cards {
			m, err := action.LinecardCauses(card, false)
			if err != nil {
				return Renderer{}, err
			}
			l = append(l, RebootCause{
				Name:    card.String(),
				Reports: action.Reports(m, true),
			})
		}
		return RebootCauses(l), nil
	}
	return Renderer{}, sysplat.Errorf("%s: unknown %s item", name, kind)
}

// CardSummary is one slot line of the chassis summary.
type CardSummary struct {
	SlotId  int    `json:"slotId"`
	Present bool   `json:"present"`
	Sku     string `json:"sku,omitempty"`
	Serial  string `json:"serial,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ChassisReport struct {
	Sku       string        `json:"sku"`
	Serial    string        `json:"serial"`
	Linecards []CardSummary `json:"linecards"`
	Fabrics   []CardSummary `json:"fabrics"`
}

func cardSummary(slot *modular.CardSlot) CardSummary {
	s := CardSummary{SlotId: slot.Id}
	if !slot.Presence() {
		return s
	}
	s.Present = true
	p, err := slot.Prefdl()
	switch {
	case errors.Is(err, prefdl.ErrInvalid), errors.Is(err, prefdl.ErrCrc):
		s.Error = "invalid prefdl"
	case err != nil:
		s.Error = "IO Error"
	default:
		m := p.Map()
		s.Sku, s.Serial = m["SKU"], m["SerialNumber"]
	}
	return s
}

// Summarize lists the linecard and fabric slots of ch with the identity of
// the cards plugged.
func Summarize(ch *modular.Chassis) ChassisReport {
	m := ch.Eeprom()
	r := ChassisReport{
		Sku:       m["SKU"],
		Serial:    m["SerialNumber"],
		Linecards: []CardSummary{},
		Fabrics:   []CardSummary{},
	}
	if ch.Active == nil {
		return r
	}
	for i, slot := range ch.Active.LinecardSlots {
		if i < ch.Dims.Linecards {
			r.Linecards = append(r.Linecards, cardSummary(slot))
		}
	}
	for i, slot := range ch.Active.FabricSlots {
		if i < ch.Dims.Fabrics {
			r.Fabrics = append(r.Fabrics, cardSummary(slot))
		}
	}
	return r
}

// Supported maps each registered product name to its skus.
func Supported(r *platform.Registry) Renderer {
	data := map[string][]string{}
	for _, d := range r.Descriptors() {
		skus := append([]string{}, d.Skus...)
		sort.Strings(skus)
		data[d.Name] = skus
	}
	return Renderer{
		Name: "supported",
		Data: data,
		Text: func(w io.Writer) {
			names := make([]string, 0, len(data))
			for name := range data {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(w, name)
				for _, sku := range data[name] {
					fmt.Fprintf(w, " - %s\n", sku)
				}
			}
		},
	}
}
