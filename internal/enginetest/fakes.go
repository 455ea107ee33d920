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

// Package enginetest provides hand-rolled fakes for the engine package's
// collaborator interfaces (InterfaceTable, RoutingTable, ARP, ICMP,
// Sink), so the pipeline can be exercised without a live link layer,
// per the narrow-sink host-integration-seam design.
package enginetest

import (
	"net"
	"net/netip"

	"github.com/netlayer/ipengine/internal/engine"
	"github.com/netlayer/ipengine/pkg/ipv4"
)

// Interfaces is a fake engine.InterfaceTable backed by a plain map.
type Interfaces struct {
	byID map[int]*engine.Interface
}

// NewInterfaces builds a fake interface table from the given interfaces.
func NewInterfaces(ifaces ...*engine.Interface) *Interfaces {
	t := &Interfaces{byID: make(map[int]*engine.Interface)}
	for _, i := range ifaces {
		t.byID[i.ID] = i
	}
	return t
}

func (t *Interfaces) Get(id int) (*engine.Interface, bool) { i, ok := t.byID[id]; return i, ok }

func (t *Interfaces) Loopback() (*engine.Interface, bool) {
	for _, i := range t.byID {
		if i.Loopback {
			return i, true
		}
	}
	return nil, false
}

func (t *Interfaces) All() []*engine.Interface {
	out := make([]*engine.Interface, 0, len(t.byID))
	for _, i := range t.byID {
		out = append(out, i)
	}
	return out
}

func (t *Interfaces) MatchingSourceAddress(addr netip.Addr) (*engine.Interface, bool) {
	for _, i := range t.byID {
		if i.Address == addr {
			return i, true
		}
	}
	return nil, false
}

func (t *Interfaces) FirstMulticastCapable() (*engine.Interface, bool) {
	for _, i := range t.byID {
		if i.MulticastCapable {
			return i, true
		}
	}
	return nil, false
}

// Routes is a fake engine.RoutingTable driven by explicit fixtures set on
// its exported fields; tests populate only what the scenario needs.
type Routes struct {
	Unicast          map[netip.Addr]unicastRoute
	Multicast        map[[2]netip.Addr]engine.MulticastRoute
	LocalAddresses   map[netip.Addr]bool
	BroadcastOwners  map[netip.Addr]int
	MulticastFwd     bool
	IPForwarding     bool
	ShortestPathIfID map[netip.Addr]int
}

type unicastRoute struct {
	ifaceID int
	gateway netip.Addr
}

// NewRoutes returns an empty fake routing table with IP forwarding on.
func NewRoutes() *Routes {
	return &Routes{
		Unicast:          make(map[netip.Addr]unicastRoute),
		Multicast:        make(map[[2]netip.Addr]engine.MulticastRoute),
		LocalAddresses:   make(map[netip.Addr]bool),
		BroadcastOwners:  make(map[netip.Addr]int),
		ShortestPathIfID: make(map[netip.Addr]int),
		IPForwarding:     true,
	}
}

// SetUnicastRoute registers a best-match unicast route for dst.
func (r *Routes) SetUnicastRoute(dst netip.Addr, ifaceID int, gateway netip.Addr) {
	r.Unicast[dst] = unicastRoute{ifaceID: ifaceID, gateway: gateway}
}

// SetMulticastRoute registers a best-match multicast route for
// (origin, group).
func (r *Routes) SetMulticastRoute(origin, group netip.Addr, route engine.MulticastRoute) {
	r.Multicast[[2]netip.Addr{origin, group}] = route
}

func (r *Routes) LookupUnicast(dst netip.Addr) (int, netip.Addr, bool) {
	rt, ok := r.Unicast[dst]
	return rt.ifaceID, rt.gateway, ok
}

func (r *Routes) LookupMulticast(origin, group netip.Addr) (engine.MulticastRoute, bool) {
	rt, ok := r.Multicast[[2]netip.Addr{origin, group}]
	return rt, ok
}

func (r *Routes) IsLocalAddress(addr netip.Addr) bool { return r.LocalAddresses[addr] }

func (r *Routes) MatchBroadcast(addr netip.Addr) (int, bool) {
	ifaceID, ok := r.BroadcastOwners[addr]
	return ifaceID, ok
}

func (r *Routes) IsMulticastForwardingEnabled() bool { return r.MulticastFwd }
func (r *Routes) IsIPForwardingEnabled() bool        { return r.IPForwarding }

func (r *Routes) ShortestPathInterface(src netip.Addr) (int, bool) {
	ifaceID, ok := r.ShortestPathIfID[src]
	return ifaceID, ok
}

// ARP is a fake engine.ARP: resolutions are pre-seeded, and
// RequestResolution just records the pending frame for the test to
// inspect and later resolve by calling Resume via the engine directly.
type ARP struct {
	Table   map[netip.Addr]net.HardwareAddr
	Pending []*engine.PendingFrame
}

func NewARP() *ARP {
	return &ARP{Table: make(map[netip.Addr]net.HardwareAddr)}
}

func (a *ARP) Resolve(ifaceID int, nextHop netip.Addr) (net.HardwareAddr, bool) {
	mac, ok := a.Table[nextHop]
	return mac, ok
}

func (a *ARP) RequestResolution(ifaceID int, nextHop netip.Addr, pending *engine.PendingFrame) {
	a.Pending = append(a.Pending, pending)
}

// ICMP is a fake engine.ICMP that records every call for assertions.
type ICMP struct {
	TimeExceededCalls           []*ipv4.Datagram
	DestinationUnreachableCalls []DestinationUnreachableCall
	ParameterProblemCalls       []*ipv4.Datagram
}

type DestinationUnreachableCall struct {
	Datagram *ipv4.Datagram
	Code     ipv4.ICMPUnreachableCode
}

func (i *ICMP) TimeExceeded(d *ipv4.Datagram) {
	i.TimeExceededCalls = append(i.TimeExceededCalls, d)
}

func (i *ICMP) DestinationUnreachable(d *ipv4.Datagram, code ipv4.ICMPUnreachableCode) {
	i.DestinationUnreachableCalls = append(i.DestinationUnreachableCalls, DestinationUnreachableCall{d, code})
}

func (i *ICMP) ParameterProblem(d *ipv4.Datagram) {
	i.ParameterProblemCalls = append(i.ParameterProblemCalls, d)
}

// EmittedFrame is one recorded call to Sink.EmitToInterface.
type EmittedFrame struct {
	IfaceID  int
	Datagram *ipv4.Datagram
	Frame    *engine.LinkFrame
}

// DeliveredPayload is one recorded call to Sink.EmitToTransport.
type DeliveredPayload struct {
	Slot    int
	Info    ipv4.RecvInfo
	Payload []byte
}

// Sink is a fake engine.Sink that records everything emitted through it,
// for tests to assert against, and reports slots in ConnectedSlots as
// connected (all others as not).
type Sink struct {
	Emitted        []EmittedFrame
	Delivered      []DeliveredPayload
	ARPRequests    []*engine.PendingFrame
	ConnectedSlots map[int]bool
}

func NewSink() *Sink {
	return &Sink{ConnectedSlots: make(map[int]bool)}
}

func (s *Sink) EmitToInterface(ifaceID int, d *ipv4.Datagram, frame *engine.LinkFrame) {
	s.Emitted = append(s.Emitted, EmittedFrame{IfaceID: ifaceID, Datagram: d, Frame: frame})
}

func (s *Sink) EmitToTransport(slot int, info ipv4.RecvInfo, payload []byte) {
	s.Delivered = append(s.Delivered, DeliveredPayload{Slot: slot, Info: info, Payload: payload})
}

func (s *Sink) RequestARP(pending *engine.PendingFrame) {
	s.ARPRequests = append(s.ARPRequests, pending)
}

func (s *Sink) TransportConnected(slot int) bool {
	return s.ConnectedSlots[slot]
}
