// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package show

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/platinasystems/sysplat/internal/action"
	"github.com/platinasystems/sysplat/reloadcause"
)

// Version of the JSON output.
const Version = 1

// Renderer is an item: its JSON data and its text form.
type Renderer struct {
	Name string
	Data interface{}
	Text func(io.Writer)
}

type Show struct {
	W            io.Writer
	Json, Pretty bool
}

type envelope struct {
	Version   int                    `json:"version"`
	Renderers map[string]interface{} `json:"renderers"`
}

func (sh *Show) Render(rs ...Renderer) error {
	if !sh.Json {
		for _, r := range rs {
			r.Text(sh.W)
		}
		return nil
	}
	e := envelope{
		Version:   Version,
		Renderers: make(map[string]interface{}, len(rs)),
	}
	for _, r := range rs {
		e.Renderers[r.Name] = r.Data
	}
	return action.PrintJson(sh.W, e, sh.Pretty)
}

func table(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	dashes := make([]string, len(header))
	for i, h := range header {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))
	return tw
}

func row(w io.Writer, cols ...interface{}) {
	s := make([]string, len(cols))
	for i, c := range cols {
		s[i] = value(c)
	}
	fmt.Fprintln(w, strings.Join(s, "\t"))
}

func value(v interface{}) string {
	switch x := v.(type) {
	case *float64:
		if x == nil {
			return action.NA
		}
		return fmt.Sprint(*x)
	case string:
		if len(x) == 0 {
			return action.NA
		}
	}
	return fmt.Sprint(v)
}

func Eeproms(l []map[string]string) Renderer {
	return Renderer{
		Name: "eeprom",
		Data: l,
		Text: func(w io.Writer) {
			for i, m := range l {
				if i > 0 {
					fmt.Fprintln(w)
				}
				keys := make([]string, 0, len(m))
				for k := range m {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "%s: %s\n", k, m[k])
				}
			}
		},
	}
}

func Environment(env action.EnvironmentReport) Renderer {
	return Renderer{
		Name: "environment",
		Data: env,
		Text: func(w io.Writer) {
			if len(env.Temps) > 0 {
				tw := table(w, "Name", "Temp", "Alert", "Critical")
				for _, t := range env.Temps {
					row(tw, t.Name, t.Value, t.High, t.Critical)
				}
				tw.Flush()
			}
			if len(env.Fans) > 0 {
				fmt.Fprintln(w)
				tw := table(w, "Name", "Status", "Speed", "Rpm", "Direction")
				for _, f := range env.Fans {
					row(tw, f.Name, f.Status, f.Speed, f.Rpm, f.Direction)
				}
				tw.Flush()
			}
		},
	}
}

func Power(p action.PowerReport) Renderer {
	return Renderer{
		Name: "power",
		Data: p,
		Text: func(w io.Writer) {
			fmt.Fprintln(w, "Power Supplies:")
			for _, s := range p.Slots {
				fmt.Fprintf(w, "  PSU%d\n", s.SlotId)
				fmt.Fprintf(w, "    Present: %t\n", s.Present)
				fmt.Fprintf(w, "    Status: %t (%s)\n", s.Status, s.Led)
				fmt.Fprintf(w, "    Model: %s\n", s.Model)
				fmt.Fprintf(w, "    Serial: %s\n", s.Serial)
			}
			if len(p.Rails) > 0 {
				fmt.Fprintln(w, "Rails:")
				for _, r := range p.Rails {
					fmt.Fprintf(w, "  %s\n", r.Name)
					fmt.Fprintf(w, "    Voltage: %s Volts\n", value(r.Voltage))
					fmt.Fprintf(w, "    Current: %s Amps\n", value(r.Current))
					fmt.Fprintf(w, "    Power: %s Watts\n", value(r.Power))
				}
			}
			fmt.Fprintln(w, "Power Controllers:")
			for _, d := range p.Dpms {
				fmt.Fprintf(w, "  %s\n", d.Component)
				fmt.Fprintf(w, "    Version: %s\n", d.Version)
			}
		},
	}
}

func Xcvrs(l []action.XcvrReport) Renderer {
	return Renderer{
		Name: "xcvr",
		Data: l,
		Text: func(w io.Writer) {
			tw := table(w, "Id", "Type", "Present", "LpMode", "Reset",
				"TxDisable", "TxFault", "RxLos", "Addr")
			for _, x := range l {
				row(tw, x.Id, x.Type, x.Present, x.LpMode, x.Reset,
					x.TxDisable, x.TxFault, x.RxLos, x.Addr)
			}
			tw.Flush()
		},
	}
}

// RebootCause is the report history of a platform or linecard.
type RebootCause struct {
	Name    string                `json:"name"`
	Reports []*reloadcause.Report `json:"reports"`
}

func RebootCauses(l []RebootCause) Renderer {
	return Renderer{
		Name: "reboot-cause",
		Data: l,
		Text: func(w io.Writer) {
			for _, rc := range l {
				if len(l) > 1 {
					fmt.Fprintln(w, rc.Name)
				}
				for _, r := range rc.Reports {
					if c := r.Cause; c != nil {
						fmt.Fprintf(w, "%s %s (%s)\n", c.Time, c.Cause,
							c.Description)
					}
				}
			}
		},
	}
}

func CardStatus(l []action.CardReport) Renderer {
	return Renderer{
		Name: "status",
		Data: l,
		Text: func(w io.Writer) {
			for _, c := range l {
				fmt.Fprintf(w, "%s(slotId=%d)\n", c.Name, c.SlotId)
				fmt.Fprintf(w, "  present: %t\n", c.Present)
				fmt.Fprintf(w, "  on: %t\n", c.Powered)
				fmt.Fprintf(w, "  detected: %t\n", c.Detected)
				if c.Kind == "linecard" {
					fmt.Fprintf(w, "  hasCpu: %t\n", c.Lcpu)
				}
			}
		},
	}
}

func ChassisSummary(r ChassisReport) Renderer {
	card := func(w io.Writer, s CardSummary) {
		switch {
		case !s.Present:
			fmt.Fprintf(w, "  %d: not present\n", s.SlotId)
		case len(s.Error) > 0:
			fmt.Fprintf(w, "  %d: %s\n", s.SlotId, s.Error)
		default:
			fmt.Fprintf(w, "  %d: %s (%s)\n", s.SlotId, s.Sku, s.Serial)
		}
	}
	return Renderer{
		Name: "summary",
		Data: r,
		Text: func(w io.Writer) {
			fmt.Fprintf(w, "Sku: %s\n", r.Sku)
			fmt.Fprintf(w, "Serial: %s\n", r.Serial)
			fmt.Fprintln(w, "Linecards:")
			for _, s := range r.Linecards {
				card(w, s)
			}
			fmt.Fprintln(w, "Fabrics:")
			for _, s := range r.Fabrics {
				card(w, s)
			}
		},
	}
}

// Status is the platform summary platformd serves.
func Status(s action.Summary) Renderer {
	return Renderer{
		Name: "status",
		Data: s,
		Text: func(w io.Writer) {
			fmt.Fprintf(w, "Platform: %s\n", s.Platform)
			fmt.Fprintf(w, "Sku: %s\n", value(s.Eeprom["SKU"]))
			fmt.Fprintf(w, "Serial: %s\n", value(s.Eeprom["SerialNumber"]))
			fmt.Fprintf(w, "Xcvrs: %d\n", len(s.Xcvrs))
			fmt.Fprintf(w, "Psus: %d\n", len(s.Power.Slots))
			fmt.Fprintf(w, "Fans: %d\n", len(s.Environment.Fans))
			fmt.Fprintf(w, "Temperatures: %d\n", len(s.Environment.Temps))
			for i, wd := range s.Watchdogs {
				fmt.Fprintf(w, "Watchdog%d: enabled=%t timeout=%d remaining=%d\n",
					i, wd.Enabled, wd.Timeout, wd.Remaining)
			}
			if len(s.Firmware) > 0 {
				tw := table(w, "Component", "Version", "Description")
				for _, f := range s.Firmware {
					row(tw, f.Component, f.Version, f.Description)
				}
				tw.Flush()
			}
		},
	}
}
