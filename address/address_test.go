// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package address

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/platinasystems/sysplat/internal/sysfs"
)

func TestStrings(t *testing.T) {
	for _, x := range []struct {
		s    string
		want string
	}{
		{I2c(3, 0x50).String(), "3-0050"},
		{I2c(12, 0x4e).SysfsPath(), "/sys/bus/i2c/devices/12-004e"},
		{PciAddr{0, 2, 0, 0}.String(), "0000:02:00.0"},
		{PciAddr{1, 0xa, 0x1f, 3}.SysfsPath(),
			"/sys/bus/pci/devices/0001:0a:1f.3"},
		{MdioRef{Master: 1, Bus: 2, DevIdx: 3}.String(), "mdio1_2_3"},
		{C45.String(), "c45"},
	} {
		if x.s != x.want {
			t.Errorf("got %q want %q", x.s, x.want)
		}
	}
}

func TestParsePci(t *testing.T) {
	a, err := ParsePci("0000:05:00.1")
	if err != nil {
		t.Fatal(err)
	}
	if a != (PciAddr{0, 5, 0, 1}) {
		t.Error("got", a)
	}
	if _, err = ParsePci("nope"); err == nil {
		t.Error("expected error")
	}
}

func TestNamedBus(t *testing.T) {
	dir, err := ioutil.TempDir("", "address")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	defer func(root string) { sysfs.Root = root }(sysfs.Root)
	sysfs.Root = dir

	mk := func(id, name string) {
		d := filepath.Join(dir, AdapterClass, "i2c-"+id)
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
		ioutil.WriteFile(filepath.Join(d, "name"), []byte(name+"\n"), 0644)
	}
	mk("0", "i801")
	mk("10", "scd bus")
	mk("2", "scd bus")

	b := NewNamedBus("scd bus", false)
	if id := b.BusId(); id != 2 {
		t.Error("first scd bus", id)
	}
	b2 := &NamedBus{Name: "scd bus", Idx: 1, id: -1}
	if id := b2.BusId(); id != 10 {
		t.Error("second scd bus", id)
	}
	if s := b.I2cAddr(0x21).String(); s != "2-0021" {
		t.Error(s)
	}

	mk("1", "scd bus")
	if id := b.BusId(); id != 2 {
		t.Error("cached id", id)
	}
	b.Refresh()
	if id := b.BusId(); id != 1 {
		t.Error("refreshed id", id)
	}

	if id := NewNamedBus("scd bus", true).BusId(); id != 1 {
		t.Error("simulated", id)
	}
	if id := NewNamedBus("absent", false).BusId(); id != -1 {
		t.Error("absent", id)
	}
}
