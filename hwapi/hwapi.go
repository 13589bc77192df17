// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package hwapi is the hardware api revision of a board, as found in its
// prefdl, used to tell apart builds of the same sku.
package hwapi

import (
	"fmt"
	"strconv"
	"strings"
)

// HwApi is a major.minor revision. Missing trailing parts compare as zero
// so HwApi{2} equals HwApi{2, 0}.
type HwApi []int

func New(values ...int) HwApi { return HwApi(values) }

// Parse reads the dotted decimal form, such as 02.00.
func Parse(s string) (HwApi, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return nil, fmt.Errorf("empty hwapi")
	}
	var h HwApi
	for _, part := range strings.Split(s, ".") {
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("hwapi %q: %w", s, err)
		}
		h = append(h, v)
	}
	return h, nil
}

func (h HwApi) at(i int) int {
	if i < len(h) {
		return h[i]
	}
	return 0
}

// Compare returns -1, 0 or 1 as h sorts before, with or after o.
func (h HwApi) Compare(o HwApi) int {
	n := len(h)
	if len(o) > n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		a, b := h.at(i), o.at(i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

func (h HwApi) Equal(o HwApi) bool { return h.Compare(o) == 0 }
func (h HwApi) Less(o HwApi) bool  { return h.Compare(o) < 0 }
func (h HwApi) LessEqual(o HwApi) bool {
	return h.Compare(o) <= 0
}
func (h HwApi) Greater(o HwApi) bool { return h.Compare(o) > 0 }
func (h HwApi) GreaterEqual(o HwApi) bool {
	return h.Compare(o) >= 0
}

func (h HwApi) Major() int { return h.at(0) }
func (h HwApi) Minor() int { return h.at(1) }

func (h HwApi) MajorOnly() HwApi { return HwApi{h.Major()} }

func (h HwApi) format(verb string) string {
	parts := make([]string, len(h))
	for i, v := range h {
		parts[i] = fmt.Sprintf(verb, v)
	}
	return strings.Join(parts, ".")
}

// String is the prefdl form, two decimal digits per part.
func (h HwApi) String() string { return h.format("%02d") }

// Hex is the onie form, two hex digits per part.
func (h HwApi) Hex() string { return h.format("%02x") }

func (h HwApi) GoString() string { return "HwApi(" + h.format("%d") + ")" }
