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
	"github.com/netlayer/ipengine/internal/log"
	"github.com/netlayer/ipengine/pkg/ipv4"
)

// localDeliver implements §4.I: reassemble if necessary, then dispatch
// to ICMP's hard-wired handling, the IP-in-IP tunnel-decapsulation
// reinjection, or the generic protocol demux.
func (e *Engine) localDeliver(d *ipv4.Datagram, ifaceID int) {
	if d.FragOffset != 0 || d.MoreFragments {
		complete, ok := e.reasm.AddFragment(d, e.clock)
		if !ok {
			return
		}
		d = complete
	}

	e.metrics.LocalDelivered.Inc()

	switch d.Protocol {
	case ipv4.ProtoICMP:
		e.deliverICMP(d, ifaceID)
	case ipv4.ProtoIPinIP:
		e.deliverTunneled(d, ifaceID)
	default:
		e.deliverToProtocol(d, ifaceID, d.Protocol)
	}
}

// deliverICMP implements §4.I's ICMP special case: error-class messages
// are redelivered to the egress slot of the protocol that produced the
// datagram the error describes; everything else goes to whichever slot
// is registered for ProtoICMP itself.
func (e *Engine) deliverICMP(d *ipv4.Datagram, ifaceID int) {
	msg, ok := ipv4.DecodeICMPPayload(d.Payload)
	if !ok {
		log.Debug("dropping malformed ICMP payload")
		return
	}

	protocol := ipv4.ProtoICMP
	var orig *ipv4.Datagram
	if msg.Class == ipv4.ICMPClassError {
		protocol = msg.OrigProtocol
		orig = msg.OrigDatagram
	}

	slot, ok := e.demux.Lookup(protocol)
	if !ok || !e.sink.TransportConnected(slot) {
		e.icmp.DestinationUnreachable(d, ipv4.CodeProtocolUnreachable)
		return
	}

	info := ipv4.RecvInfo{
		Protocol:           protocol,
		SrcAddr:            d.Src,
		DestAddr:           d.Dst,
		TypeOfService:      d.TOS,
		IngressInterfaceID: ifaceID,
		TimeToLive:         d.TTL,
		OrigDatagram:       orig,
	}
	e.sink.EmitToTransport(slot, info, d.Decapsulate())
}

// deliverTunneled implements §4.I's IP-in-IP branch: decapsulate the
// inner datagram and reinject it into the ingress pipeline, via the work
// queue rather than a direct recursive call (§9, "Loopback reentry" —
// the same bound applies to tunnel decapsulation).
func (e *Engine) deliverTunneled(d *ipv4.Datagram, ifaceID int) {
	inner, ok := ipv4.UnwrapTunneled(d.Payload)
	if !ok {
		log.Debug("dropping malformed tunneled payload")
		return
	}
	e.pending = append(e.pending, pendingIngress{ifaceID: ifaceID, d: inner})
}

// deliverToProtocol implements §4.I's generic case: decapsulate and hand
// to the registered, connected egress slot, or request a
// protocol-unreachable ICMP if there isn't one.
func (e *Engine) deliverToProtocol(d *ipv4.Datagram, ifaceID int, protocol uint8) {
	slot, ok := e.demux.Lookup(protocol)
	if !ok || !e.sink.TransportConnected(slot) {
		e.icmp.DestinationUnreachable(d, ipv4.CodeProtocolUnreachable)
		return
	}
	info := ipv4.RecvInfo{
		Protocol:           protocol,
		SrcAddr:            d.Src,
		DestAddr:           d.Dst,
		TypeOfService:      d.TOS,
		IngressInterfaceID: ifaceID,
		TimeToLive:         d.TTL,
	}
	e.sink.EmitToTransport(slot, info, d.Decapsulate())
}
