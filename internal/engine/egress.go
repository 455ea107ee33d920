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

// routeUnicast implements §4.F steps 1-4: resolve an egress interface and
// next hop from an optional hint pair, then hand off to the
// fragmentation producer. ifaceHint and nextHop are both optional; a nil
// ifaceHint means "no interface hint" and an invalid nextHop means "no
// next-hop hint".
func (e *Engine) routeUnicast(d *ipv4.Datagram, ifaceHint *int, nextHop netip.Addr) {
	var ifaceID int

	switch {
	case ifaceHint != nil:
		ifaceID = *ifaceHint
		iface, ok := e.ifaces.Get(ifaceID)
		if !ok {
			e.unroutable(d)
			return
		}
		if !nextHop.IsValid() || nextHop.IsUnspecified() {
			nextHop = netip.Addr{}
			if iface.BroadcastCapable {
				if routeIfaceID, gw, ok := e.routes.LookupUnicast(d.Dst); ok && routeIfaceID == ifaceID {
					nextHop = gw
				}
			}
		}

	default:
		routeIfaceID, gw, ok := e.routes.LookupUnicast(d.Dst)
		if !ok {
			e.unroutable(d)
			return
		}
		ifaceID, nextHop = routeIfaceID, gw
	}

	e.metrics.Forwarded.Inc()
	e.emitVia(d, ifaceID, nextHop)
}

// unroutable implements §4.F step 3 / §7's unroutable-destination error.
func (e *Engine) unroutable(d *ipv4.Datagram) {
	e.metrics.Unroutable.Inc()
	e.icmp.DestinationUnreachable(d, ipv4.CodeHostUnreachable)
}

// emitVia hands d to the fragmentation producer for egress interface
// ifaceID with the given next hop. Apart from counting an unknown ifaceID
// as unroutable, it has no metrics side effect of its own — callers
// (routeUnicast, the multicast forwarder, HL ingress) count the attempt
// under whichever counter fits their own call site.
func (e *Engine) emitVia(d *ipv4.Datagram, ifaceID int, nextHop netip.Addr) {
	iface, ok := e.ifaces.Get(ifaceID)
	if !ok {
		e.unroutable(d)
		return
	}
	sink := &fragSink{engine: e, ifaceID: ifaceID, nextHop: nextHop}
	ipv4.FragmentAndEmit(d, ipv4EgressInterface{iface}, e.icmp, sink)
}

// fragSink adapts the fragmentation producer's per-fragment Emit
// callback to sendDatagramToOutput, carrying the egress decision
// (interface + next hop) that FragmentAndEmit itself has no reason to
// know about (§9, "Host integration seam").
type fragSink struct {
	engine  *Engine
	ifaceID int
	nextHop netip.Addr
}

func (s *fragSink) Emit(d *ipv4.Datagram) {
	s.engine.sendDatagramToOutput(s.ifaceID, s.nextHop, d)
}

// sendDatagramToOutput implements §4.F step 4's final-delivery rules.
func (e *Engine) sendDatagramToOutput(ifaceID int, nextHop netip.Addr, d *ipv4.Datagram) {
	iface, ok := e.ifaces.Get(ifaceID)
	if !ok {
		e.dropped("unknown_interface")
		return
	}

	switch {
	case iface.Loopback:
		e.pending = append(e.pending, pendingIngress{ifaceID: ifaceID, d: d})

	case !iface.IEEE802:
		e.sink.EmitToInterface(ifaceID, d, nil)

	default:
		e.sendToIEEE802(iface, nextHop, d)
	}
}

// sendToIEEE802 implements the IEEE-802 branch of §4.F step 4: resolve
// the next-hop MAC via ARP, synchronously if possible, otherwise park the
// datagram with the ARP collaborator until ResumeFromARP fires.
func (e *Engine) sendToIEEE802(iface *Interface, nextHop netip.Addr, d *ipv4.Datagram) {
	if !nextHop.IsValid() || nextHop.IsUnspecified() {
		if !e.opts.UseProxyARP {
			e.dropped("no_next_hop")
			return
		}
		nextHop = d.Dst
	}

	if mac, ok := e.arp.Resolve(iface.ID, nextHop); ok {
		frame := &LinkFrame{DstMAC: mac, EtherType: ipv4EtherType}
		e.sink.EmitToInterface(iface.ID, d, frame)
		return
	}

	pending := &PendingFrame{IfaceID: iface.ID, NextHop: nextHop, Datagram: d}
	e.sink.RequestARP(pending)
	e.arp.RequestResolution(iface.ID, nextHop, pending)
}
