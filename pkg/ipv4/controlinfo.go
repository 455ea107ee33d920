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

package ipv4

import "net/netip"

// SendRequest is the control-info contract from a higher-layer protocol
// down to the engine (§6, "Control-info contract (HL->IPv4)"). Only
// DestAddr and Protocol are required; the rest are optional hints with
// documented defaults applied by the HL-ingress path (§4.H).
type SendRequest struct {
	DestAddr netip.Addr
	Protocol uint8

	SrcAddr netip.Addr // optional; zero value means "unset"

	// InterfaceID, if non-nil, pins the egress interface (the spec's
	// MULTICAST_IF / interface-hint mechanism).
	InterfaceID *int

	// NextHopAddr, if valid, is used as the next hop only together with
	// InterfaceID; without an interface hint the route's gateway is used.
	NextHopAddr netip.Addr

	TypeOfService uint8
	DontFragment  bool

	// TimeToLive is a hint; 0 means "use the configured default" per
	// §4.H's TTL-selection order.
	TimeToLive uint8

	// MulticastLoop defaults to true per §6 when left nil; HL callers
	// that want to suppress the loopback copy of their own multicast
	// traffic set it to a pointer to false explicitly. A plain bool
	// can't distinguish "unset" from "explicit false", and the spec's
	// default is true, not Go's zero value.
	MulticastLoop *bool
}

// WantsMulticastLoop resolves SendRequest.MulticastLoop against its
// documented default of true.
func (r SendRequest) WantsMulticastLoop() bool {
	return r.MulticastLoop == nil || *r.MulticastLoop
}

// RecvInfo is the control-info contract the engine hands to a higher-layer
// protocol on local delivery (§6, "Control-info contract (IPv4->HL)").
type RecvInfo struct {
	Protocol uint8
	SrcAddr  netip.Addr
	DestAddr netip.Addr

	TypeOfService uint8

	// IngressInterfaceID is the id of the interface the datagram arrived
	// on; locally originated traffic reports the loopback interface's id.
	IngressInterfaceID int

	TimeToLive uint8

	// OrigDatagram is set only when redelivering an ICMP error so the HL
	// protocol that produced the failing datagram can match it back to
	// a connection (§4.I).
	OrigDatagram *Datagram
}
