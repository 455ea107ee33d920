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

// Package mgmtapi implements the process's http status API: a handful
// of read-only JSON endpoints over the engine's interface table,
// configuration, and §7 counters, in the same chi-router-plus-cors shape
// the router's own mgmtapi package uses.
package mgmtapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/netlayer/ipengine/internal/engine"
)

// Server serves the status API.
type Server struct {
	Engine     *engine.Engine
	Interfaces engine.InterfaceTable
	Metrics    *engine.Metrics
}

// Handler builds the chi router the server listens with.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))
	r.Get("/interfaces", s.getInterfaces)
	r.Get("/status/info", s.getInfo)
	r.Get("/status/config", s.getConfig)
	r.Get("/status/counters", s.getCounters)
	return r
}

type interfaceInfo struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	MTU              int    `json:"mtu"`
	Loopback         bool   `json:"loopback"`
	BroadcastCapable bool   `json:"broadcast_capable"`
	MulticastCapable bool   `json:"multicast_capable"`
	IEEE802          bool   `json:"ieee802"`
	Address          string `json:"address"`
}

func (s *Server) getInterfaces(w http.ResponseWriter, r *http.Request) {
	var out []interfaceInfo
	for _, i := range s.Interfaces.All() {
		out = append(out, interfaceInfo{
			ID:               i.ID,
			Name:             i.Name,
			MTU:              i.GetMTU(),
			Loopback:         i.Loopback,
			BroadcastCapable: i.BroadcastCapable,
			MulticastCapable: i.MulticastCapable,
			IEEE802:          i.IEEE802,
			Address:          i.Address.String(),
		})
	}
	writeJSON(w, out)
}

type infoResponse struct {
	Running        bool `json:"running"`
	InterfaceCount int  `json:"interface_count"`
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, infoResponse{
		Running:        s.Engine.IsRunning(),
		InterfaceCount: len(s.Interfaces.All()),
	})
}

type configResponse struct {
	TimeToLive               uint8   `json:"time_to_live"`
	MulticastTimeToLive      uint8   `json:"multicast_time_to_live"`
	FragmentTimeoutSeconds   float64 `json:"fragment_timeout_seconds"`
	ForceBroadcast           bool    `json:"force_broadcast"`
	UseProxyARP              bool    `json:"use_proxy_arp"`
	ReassemblySweepSeconds   float64 `json:"reassembly_sweep_interval_seconds"`
	FragmentsCarryFullPacket bool    `json:"fragments_carry_full_packet"`
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	opts := s.Engine.Options()
	writeJSON(w, configResponse{
		TimeToLive:               opts.TimeToLive,
		MulticastTimeToLive:      opts.MulticastTimeToLive,
		FragmentTimeoutSeconds:   opts.FragmentTimeout.Seconds(),
		ForceBroadcast:           opts.ForceBroadcast,
		UseProxyARP:              opts.UseProxyARP,
		ReassemblySweepSeconds:   opts.ReassemblySweepInterval.Seconds(),
		FragmentsCarryFullPacket: opts.FragmentsCarryFullPacket,
	})
}

type countersResponse struct {
	Forwarded         float64            `json:"forwarded"`
	LocalDelivered    float64            `json:"local_delivered"`
	Multicast         float64            `json:"multicast"`
	Unroutable        float64            `json:"unroutable"`
	DroppedByReason   map[string]float64 `json:"dropped_by_reason"`
	ReassemblyEntries float64            `json:"reassembly_entries"`
	ReassemblyBytes   float64            `json:"reassembly_bytes"`
}

func (s *Server) getCounters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, countersResponse{
		Forwarded:         counterValue(s.Metrics.Forwarded),
		LocalDelivered:    counterValue(s.Metrics.LocalDelivered),
		Multicast:         counterValue(s.Metrics.Multicast),
		Unroutable:        counterValue(s.Metrics.Unroutable),
		DroppedByReason:   counterVecValues(s.Metrics.Dropped),
		ReassemblyEntries: gaugeValue(s.Metrics.ReassemblyEntries),
		ReassemblyBytes:   gaugeValue(s.Metrics.ReassemblyBytes),
	})
}

// counterValue and gaugeValue read a Prometheus collector's current
// value directly, the same way the client library's own exposition
// handler does, without going through the text format.
func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// counterVecValues reads every label combination currently registered
// on cv, keyed by its "reason" label value.
func counterVecValues(cv *prometheus.CounterVec) map[string]float64 {
	out := make(map[string]float64)
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()
	for metric := range ch {
		var m dto.Metric
		if err := metric.Write(&m); err != nil {
			continue
		}
		reason := "unknown"
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "reason" {
				reason = lp.GetValue()
			}
		}
		out[reason] = m.GetCounter().GetValue()
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
