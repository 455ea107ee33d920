// Copyright 2026 The IPEngine Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the §7 observability counters
// {forwarded, localDelivered, multicast, dropped, unroutable} plus a
// reassembly occupancy gauge, as Prometheus collectors (grounded on the
// teacher's router/metrics.go).
type Metrics struct {
	Forwarded         prometheus.Counter
	LocalDelivered    prometheus.Counter
	Multicast         prometheus.Counter
	Dropped           *prometheus.CounterVec // labeled by "reason"
	Unroutable        prometheus.Counter
	ReassemblyEntries prometheus.Gauge
	ReassemblyBytes   prometheus.Gauge
}

// NewMetrics registers and returns a fresh set of engine metrics against
// reg. Pass prometheus.NewRegistry() in tests to avoid collisions with
// the default global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Forwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipengine_forwarded_total",
			Help: "Total number of datagrams routed as unicast (forwarded or locally originated).",
		}),
		LocalDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipengine_local_delivered_total",
			Help: "Total number of datagrams delivered to a local higher-layer protocol.",
		}),
		Multicast: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipengine_multicast_forwarded_total",
			Help: "Total number of multicast datagrams that passed the RPF check and were fanned out.",
		}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ipengine_dropped_total",
			Help: "Total number of datagrams dropped, by reason.",
		}, []string{"reason"}),
		Unroutable: factory.NewCounter(prometheus.CounterOpts{
			Name: "ipengine_unroutable_total",
			Help: "Total number of datagrams for which no route could be determined.",
		}),
		ReassemblyEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ipengine_reassembly_entries",
			Help: "Number of in-flight reassembly entries.",
		}),
		ReassemblyBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ipengine_reassembly_bytes",
			Help: "Bytes currently buffered across all in-flight reassembly entries.",
		}),
	}
}
