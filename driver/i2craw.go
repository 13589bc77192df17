// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package driver

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	i2cRdwr = 0x0707
	i2cMRd  = 0x0001
)

type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   *byte
}

type i2cRdwrData struct {
	msgs  *i2cMsg
	nmsgs uint32
}

// Transfer writes w then, after a repeated start, reads len(r) bytes. It
// bypasses SMBus for clients whose protocol needs more than a command byte
// before the read.
func (d *I2cUser) Transfer(w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev := fmt.Sprint("/dev/i2c-", d.Addr.BusId())
	f, err := os.OpenFile(dev, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	var msgs []i2cMsg
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{
			addr: d.Addr.Address,
			len:  uint16(len(w)),
			buf:  &w[0],
		})
	}
	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{
			addr:  d.Addr.Address,
			flags: i2cMRd,
			len:   uint16(len(r)),
			buf:   &r[0],
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	data := i2cRdwrData{msgs: &msgs[0], nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), i2cRdwr,
		uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return fmt.Errorf("%s: transfer: %w", d.Addr, errno)
	}
	log.Io("%s.transfer(%x) = %x", d.Addr, w, r)
	return nil
}
