// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package modular

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/platinasystems/sysplat/config"
)

// ProvisionMode is how a linecard cpu gets its configuration.
type ProvisionMode int

const (
	ProvisionNone ProvisionMode = iota
	ProvisionStatic
)

func (m ProvisionMode) String() string {
	switch m {
	case ProvisionNone:
		return "none"
	case ProvisionStatic:
		return "static"
	}
	return fmt.Sprintf("ProvisionMode(%d)", int(m))
}

func ParseProvisionMode(s string) (ProvisionMode, error) {
	switch strings.ToLower(s) {
	case "none":
		return ProvisionNone, nil
	case "static":
		return ProvisionStatic, nil
	}
	return ProvisionNone, fmt.Errorf("%q: unknown provision mode", s)
}

const provisionFile = ".provision"

// ProvisionPath is the marker whose presence makes a slot provisioned.
func ProvisionPath(slotId int) string {
	return config.Get().Flash(filepath.Join("provision", strconv.Itoa(slotId),
		provisionFile))
}

func ReadProvision(slotId int) ProvisionMode {
	if _, err := os.Stat(ProvisionPath(slotId)); err == nil {
		return ProvisionStatic
	}
	return ProvisionNone
}

func SetProvision(slotId int, mode ProvisionMode) error {
	path := ProvisionPath(slotId)
	switch mode {
	case ProvisionNone:
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	case ProvisionStatic:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		return os.WriteFile(path, nil, 0644)
	}
	return fmt.Errorf("slot %d: %s: unsupported", slotId, mode)
}
