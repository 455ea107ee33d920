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
	"time"

	"github.com/netlayer/ipengine/internal/serrors"
	"github.com/netlayer/ipengine/pkg/ipv4"
)

// FromTransport is the from-transport ingress gate (§6): a higher-layer
// protocol is handing payload down to be encapsulated and sent (§4.H).
// It returns an error only for the configuration fault §7 marks fatal
// (an explicit source address bound to no local interface); every other
// outcome (no route, no egress) is handled internally via ICMP/counters.
func (e *Engine) FromTransport(req ipv4.SendRequest, payload []byte, now time.Time) error {
	if !e.running {
		return nil
	}
	e.clock = now

	if req.SrcAddr.IsValid() && !req.SrcAddr.IsUnspecified() {
		if _, ok := e.ifaces.MatchingSourceAddress(req.SrcAddr); !ok {
			return serrors.New("source address bound to no interface", "src", req.SrcAddr)
		}
	}

	d := e.buildOutboundDatagram(req, payload)
	e.dispatchOutbound(d, req)
	e.drainPending()
	return nil
}

// buildOutboundDatagram implements §4.H's construction rules for a raw
// HL payload: minimum header, fields copied from req, a fresh
// identification, and the documented TTL-selection order.
func (e *Engine) buildOutboundDatagram(req ipv4.SendRequest, payload []byte) *ipv4.Datagram {
	d := &ipv4.Datagram{HeaderLen: ipv4.MinHeaderLen}
	d.TOS = req.TypeOfService
	d.DontFragment = req.DontFragment
	d.Protocol = req.Protocol
	d.ID = e.nextIdentification()
	d.MoreFragments = false
	d.FragOffset = 0
	d.Src = req.SrcAddr
	d.Dst = req.DestAddr
	d.TTL = e.selectTTL(req)
	d.Encapsulate(payload)
	return d
}

// selectTTL implements §4.H's TTL-selection order: explicit hint > 0;
// else link-local multicast gets TTL 1; else multicast gets the
// configured multicast default; else the configured unicast default.
func (e *Engine) selectTTL(req ipv4.SendRequest) uint8 {
	switch {
	case req.TimeToLive > 0:
		return req.TimeToLive
	case ipv4.IsLinkLocalMulticast(req.DestAddr):
		return 1
	case ipv4.IsMulticast(req.DestAddr):
		return e.opts.MulticastTimeToLive
	default:
		return e.opts.TimeToLive
	}
}

// dispatchOutbound implements §4.H's dispatch rules.
func (e *Engine) dispatchOutbound(d *ipv4.Datagram, req ipv4.SendRequest) {
	switch {
	case ipv4.IsMulticast(d.Dst):
		e.dispatchOutboundMulticast(d, req)

	case e.routes.IsLocalAddress(d.Dst):
		if lb, ok := e.ifaces.Loopback(); ok {
			e.emitVia(d, lb.ID, netip.Addr{})
		} else {
			e.dropped("no_loopback")
		}

	case d.Dst == ipv4.Broadcast:
		e.dispatchOutboundBroadcast(d, req)

	default:
		e.routeUnicast(d, req.InterfaceID, req.NextHopAddr)
	}
}

// dispatchOutboundMulticast implements §4.H's multicast egress-selection
// chain and the multicast-loop rule.
func (e *Engine) dispatchOutboundMulticast(d *ipv4.Datagram, req ipv4.SendRequest) {
	ifaceID, ok := e.selectMulticastEgress(req, d)
	if !ok {
		e.metrics.Unroutable.Inc()
		e.dropped("unroutable")
		return
	}

	loop := req.WantsMulticastLoop()
	egressIsLoopback := false
	if iface, ok := e.ifaces.Get(ifaceID); ok {
		egressIsLoopback = iface.Loopback
	}
	if loop && !egressIsLoopback {
		if lb, ok := e.ifaces.Loopback(); ok {
			e.pending = append(e.pending, pendingIngress{ifaceID: lb.ID, d: d.Duplicate()})
		}
	}

	e.emitVia(d, ifaceID, netip.Addr{})
}

// selectMulticastEgress implements §4.H's outgoing-interface selection
// order: MULTICAST_IF hint > routing-table lookup > interface matching
// the source address > first multicast-capable interface.
func (e *Engine) selectMulticastEgress(req ipv4.SendRequest, d *ipv4.Datagram) (int, bool) {
	if req.InterfaceID != nil {
		return *req.InterfaceID, true
	}
	if ifaceID, _, ok := e.routes.LookupUnicast(d.Dst); ok {
		return ifaceID, true
	}
	if iface, ok := e.ifaces.MatchingSourceAddress(d.Src); ok {
		return iface.ID, true
	}
	if iface, ok := e.ifaces.FirstMulticastCapable(); ok {
		return iface.ID, true
	}
	return 0, false
}

// dispatchOutboundBroadcast implements §4.H's broadcast branch: emit to
// the hinted interface, or, if forceBroadcast is configured, to every
// interface including loopback.
func (e *Engine) dispatchOutboundBroadcast(d *ipv4.Datagram, req ipv4.SendRequest) {
	if req.InterfaceID != nil {
		e.emitVia(d, *req.InterfaceID, ipv4.Broadcast)
		return
	}
	if !e.opts.ForceBroadcast {
		e.dropped("no_broadcast_hint")
		return
	}
	for _, iface := range e.ifaces.All() {
		e.emitVia(d.Duplicate(), iface.ID, ipv4.Broadcast)
	}
}
