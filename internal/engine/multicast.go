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
	"net/netip"

	"github.com/netlayer/ipengine/pkg/ipv4"
)

// forwardMulticast implements §4.G: RPF-check a multicast datagram
// arriving on fromIfaceID, then fan a duplicate out to each eligible
// child interface of its best-match route.
func (e *Engine) forwardMulticast(d *ipv4.Datagram, fromIfaceID int) {
	route, ok := e.routes.LookupMulticast(d.Src, d.Dst)
	if !ok {
		e.metrics.Unroutable.Inc()
		return
	}

	if !e.passesRPF(route, d.Src, fromIfaceID) {
		e.dropped("rpf")
		return
	}

	e.metrics.Multicast.Inc()
	for _, child := range route.Children {
		if child.InterfaceID == fromIfaceID {
			continue
		}
		childIface, ok := e.ifaces.Get(child.InterfaceID)
		if !ok {
			continue
		}
		if d.TTL <= childIface.MulticastTTLThreshold {
			continue
		}
		if child.Leaf && !childIface.HasJoined(d.Dst) {
			continue
		}
		e.emitVia(d.Duplicate(), child.InterfaceID, d.Dst)
	}
	// The original is never itself emitted; every fan-out target got its
	// own duplicate (§4.G step 4, "always delete the original").
}

// passesRPF implements §4.G step 2: a declared parent interface must
// match fromIfaceID exactly; absent a parent, the unicast table's
// shortest-path interface toward the source must match instead.
func (e *Engine) passesRPF(route MulticastRoute, src netip.Addr, fromIfaceID int) bool {
	if route.ParentInterface != nil {
		return *route.ParentInterface == fromIfaceID
	}
	spIfaceID, ok := e.routes.ShortestPathInterface(src)
	return ok && spIfaceID == fromIfaceID
}
