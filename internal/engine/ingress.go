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

	"github.com/netlayer/ipengine/internal/log"
	"github.com/netlayer/ipengine/pkg/ipv4"
)

// ingress implements §4.E: header-corruption check, then dispatch on
// destination. It is only ever invoked from drainPending, which bounds
// the loopback/tunnel re-entry described in §9 Design Notes to a work
// loop rather than recursion.
func (e *Engine) ingress(ifaceID int, d *ipv4.Datagram, hasBitError bool) {
	iface, ok := e.ifaces.Get(ifaceID)
	if !ok {
		log.Error("ingress on unknown interface", "iface", ifaceID)
		e.dropped("unknown_interface")
		return
	}

	if hasBitError {
		r := e.randFloat64()
		if d.ByteLength > 0 && r <= float64(d.HeaderLen)/float64(d.ByteLength) {
			e.icmp.ParameterProblem(d)
			return
		}
	}

	switch {
	case iface.Loopback:
		e.localDeliver(d, ifaceID)

	case ipv4.IsMulticast(d.Dst):
		e.ingressMulticast(d, iface)

	case e.routes.IsLocalAddress(d.Dst) || !iface.HasAddress():
		e.localDeliver(d, ifaceID)

	case d.Dst == ipv4.Broadcast || e.isSubnetBroadcast(d.Dst):
		e.ingressBroadcast(d, ifaceID)

	case !e.routes.IsIPForwardingEnabled():
		e.dropped("forwarding_disabled")

	default:
		e.routeUnicast(d, nil, netip.Addr{})
	}
}

// ingressMulticast implements the multicast branch of §4.E step 3.
func (e *Engine) ingressMulticast(d *ipv4.Datagram, iface *Interface) {
	deliverLocal := iface.HasJoined(d.Dst) ||
		(e.routes.IsMulticastForwardingEnabled() && d.Protocol == ipv4.ProtoIGMP)
	if deliverLocal {
		e.localDeliver(d.Duplicate(), iface.ID)
	}

	if !e.routes.IsIPForwardingEnabled() || ipv4.IsLinkLocalMulticast(d.Dst) {
		e.dropped("multicast_not_forwarded")
		return
	}
	if d.TTL == 0 {
		e.dropped("ttl")
		return
	}
	e.forwardMulticast(d, iface.ID)
}

// isSubnetBroadcast reports whether dst is a subnet broadcast address the
// routing table recognizes, regardless of which interface owns it.
func (e *Engine) isSubnetBroadcast(dst netip.Addr) bool {
	_, ok := e.routes.MatchBroadcast(dst)
	return ok
}

// ingressBroadcast implements §4.E step 4: a directed-broadcast
// duplicate is re-emitted on the subnet's owning interface when it
// differs from the one the datagram arrived on, then the original is
// always locally delivered.
func (e *Engine) ingressBroadcast(d *ipv4.Datagram, fromIfaceID int) {
	if ownerIfaceID, ok := e.routes.MatchBroadcast(d.Dst); ok &&
		ownerIfaceID != fromIfaceID && e.routes.IsIPForwardingEnabled() {
		e.emitVia(d.Duplicate(), ownerIfaceID, ipv4.Broadcast)
	}
	e.localDeliver(d, fromIfaceID)
}
