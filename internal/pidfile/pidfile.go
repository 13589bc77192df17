// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pidfile records daemon pids in the platform tmpfs.
package pidfile

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/platinasystems/sysplat/config"
)

func Dir() string { return config.Get().Tmpfs("pids") }

// Path returns Dir + "/" + name + ".pid".
func Path(name string) string {
	return filepath.Join(Dir(), name+".pid")
}

// New records the pid of the calling process as name.
func New(name string) (string, error) {
	fn := Path(name)
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return "", err
	}
	return fn, ioutil.WriteFile(fn, []byte(fmt.Sprintln(os.Getpid())), 0644)
}

// Read returns the pid recorded as name.
func Read(name string) (int, error) {
	b, err := ioutil.ReadFile(Path(name))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

func Remove(name string) error {
	err := os.Remove(Path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
