// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cooling

import "github.com/prometheus/client_golang/prometheus"

// Metrics exports the last demand of each zone and the last speed set on
// each fan.
type Metrics struct {
	ZoneDemand *prometheus.GaugeVec
	FanSpeed   *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ZoneDemand: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sysplat",
				Subsystem: "cooling",
				Name:      "zone_demand",
				Help:      "Cooling demand of a thermal zone, 0 to 1",
			}, []string{"zone"}),
		FanSpeed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sysplat",
				Subsystem: "cooling",
				Name:      "fan_speed_percent",
				Help:      "Fan speed last requested by the cooling algorithm",
			}, []string{"fan"}),
	}
	if reg != nil {
		reg.MustRegister(m.ZoneDemand, m.FanSpeed)
	}
	return m
}
