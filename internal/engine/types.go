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

// Package engine wires the ipv4 package's datagram, reassembly,
// fragmentation, and demux-table pieces into the rest of the pipeline:
// ingress dispatch, unicast/multicast egress, higher-layer ingress, and
// lifecycle (§4.E-§4.I). It treats the routing table, interface table,
// ARP cache, and ICMP service as external collaborators behind narrow
// interfaces (§1, §9 Design Notes: "Host integration seam").
package engine

import (
	"net"
	"net/netip"

	"github.com/mdlayher/ethernet"

	"github.com/netlayer/ipengine/pkg/ipv4"
)

// Interface is the interface descriptor of §3: identity, MTU, and the
// capability bits the pipeline branches on.
type Interface struct {
	ID   int
	Name string
	MTU  int

	Loopback         bool
	BroadcastCapable bool
	MulticastCapable bool
	// IEEE802 marks interfaces that need MAC resolution via ARP before a
	// frame can leave (§4.F); non-802 interfaces (e.g. point-to-point
	// tunnels) are handed datagrams directly.
	IEEE802 bool

	Address          netip.Addr
	NetworkBroadcast netip.Addr

	MulticastTTLThreshold uint8
	joinedGroups          map[netip.Addr]struct{}
}

// GetMTU returns the interface MTU; ipv4EgressInterface exposes it as the
// MTU method that ipv4.EgressInterface requires.
func (i *Interface) GetMTU() int { return i.MTU }

// IsLoopback implements ipv4.EgressInterface.
func (i *Interface) IsLoopback() bool { return i.Loopback }

// IPv4Address implements ipv4.EgressInterface.
func (i *Interface) IPv4Address() netip.Addr { return i.Address }

// HasAddress reports whether the interface has an assigned IPv4 address
// yet; false models a DHCP-in-progress interface (§4.E).
func (i *Interface) HasAddress() bool { return i.Address.IsValid() && !i.Address.IsUnspecified() }

// Join adds group to the interface's joined multicast groups.
func (i *Interface) Join(group netip.Addr) {
	if i.joinedGroups == nil {
		i.joinedGroups = make(map[netip.Addr]struct{})
	}
	i.joinedGroups[group] = struct{}{}
}

// Leave removes group from the interface's joined multicast groups.
func (i *Interface) Leave(group netip.Addr) {
	delete(i.joinedGroups, group)
}

// HasJoined reports whether a local listener on this interface has
// joined group.
func (i *Interface) HasJoined(group netip.Addr) bool {
	_, ok := i.joinedGroups[group]
	return ok
}

// ipv4EtherType is the EtherType a LinkFrame carries when the payload is
// an IPv4 datagram (§4.F, "attach a link-layer control-info... ethertype").
const ipv4EtherType = ethernet.EtherTypeIPv4

// ipv4EgressInterface adapts *Interface to ipv4.EgressInterface, whose
// MTU() method name collides with the field access pattern used
// elsewhere in this package.
type ipv4EgressInterface struct{ *Interface }

func (a ipv4EgressInterface) MTU() int { return a.Interface.MTU }

// InterfaceTable is the external collaborator that resolves interface
// ids to descriptors (§3, "out of scope: interface table lookup").
type InterfaceTable interface {
	Get(id int) (*Interface, bool)
	Loopback() (*Interface, bool)
	All() []*Interface
	// MatchingSourceAddress returns the interface whose assigned
	// address equals addr, used by §4.H's MULTICAST_IF fallback chain.
	MatchingSourceAddress(addr netip.Addr) (*Interface, bool)
	// FirstMulticastCapable returns any multicast-capable interface,
	// the last resort in §4.H's outgoing-interface selection order.
	FirstMulticastCapable() (*Interface, bool)
}

// MulticastChild is one fan-out target of a multicast route (§3).
type MulticastChild struct {
	InterfaceID int
	Leaf        bool
}

// MulticastRoute is the best-match multicast route for (origin, group)
// (§3). ParentInterface is nil when the route declares no parent, in
// which case RPF falls back to the unicast shortest-path interface
// toward the source (§4.G step 2).
type MulticastRoute struct {
	ParentInterface *int
	Children        []MulticastChild
}

// RoutingTable is the external unicast/multicast routing collaborator
// (§3). It is consulted synchronously and never re-enters the engine.
type RoutingTable interface {
	// LookupUnicast returns the best-match route's egress interface id
	// and gateway (invalid if the route has none, i.e. the destination
	// is directly attached).
	LookupUnicast(dst netip.Addr) (ifaceID int, gateway netip.Addr, ok bool)
	LookupMulticast(origin, group netip.Addr) (MulticastRoute, bool)
	IsLocalAddress(addr netip.Addr) bool
	// MatchBroadcast reports whether addr is a subnet broadcast address
	// known to the table, and if so, which interface owns that subnet.
	MatchBroadcast(addr netip.Addr) (ifaceID int, ok bool)
	IsMulticastForwardingEnabled() bool
	IsIPForwardingEnabled() bool
	// ShortestPathInterface returns the interface that would be used to
	// reach src, for RPF when a multicast route declares no parent.
	ShortestPathInterface(src netip.Addr) (ifaceID int, ok bool)
}

// LinkFrame is the Ieee802Frame tagged variant of §9's control-info
// split: the link-layer addressing an IEEE-802 interface needs once ARP
// has resolved a next hop.
type LinkFrame struct {
	DstMAC    net.HardwareAddr
	EtherType ethernet.EtherType
}

// PendingFrame is the ArpResolutionPending tagged variant: the datagram
// and routing decision handed to the ARP collaborator while resolution
// is outstanding. Per §5, ownership of Datagram transfers to ARP for the
// duration of the gap; the engine keeps no copy.
type PendingFrame struct {
	IfaceID  int
	NextHop  netip.Addr
	Datagram *ipv4.Datagram
}

// ARP is the external address-resolution collaborator (§1). Resolve is a
// synchronous best-effort cache lookup; RequestResolution starts
// asynchronous resolution, after which the caller is expected to invoke
// Engine.ResumeFromARP once a reply arrives (§4.F).
type ARP interface {
	Resolve(ifaceID int, nextHop netip.Addr) (mac net.HardwareAddr, ok bool)
	RequestResolution(ifaceID int, nextHop netip.Addr, pending *PendingFrame)
}

// ICMP is the external ICMP-generation collaborator (§1, §7). It takes a
// datagram and an error classification; ICMP message construction itself
// is entirely its responsibility.
type ICMP interface {
	TimeExceeded(d *ipv4.Datagram)
	DestinationUnreachable(d *ipv4.Datagram, code ipv4.ICMPUnreachableCode)
	ParameterProblem(d *ipv4.Datagram)
}

// Sink is the narrow set of capabilities the pipeline emits through
// (§9, Design Notes: "Host integration seam"), making the engine
// testable against a recording fake instead of a live link layer.
type Sink interface {
	// EmitToInterface hands d to interface ifaceID's egress queue. frame
	// is non-nil only when the interface is IEEE-802 and ARP has
	// already resolved the next hop (§4.F).
	EmitToInterface(ifaceID int, d *ipv4.Datagram, frame *LinkFrame)
	// EmitToTransport delivers payload to higher-layer egress slot.
	EmitToTransport(slot int, info ipv4.RecvInfo, payload []byte)
	// RequestARP hands resolution + the pending datagram to the ARP
	// egress gate (§6).
	RequestARP(pending *PendingFrame)
	// TransportConnected reports whether the higher-layer egress slot is
	// currently attached to anything, used by local-deliver (§4.I) to
	// decide between delivery and a protocol-unreachable ICMP.
	TransportConnected(slot int) bool
}
