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

package main

import (
	"net"
	"net/netip"

	"github.com/netlayer/ipengine/internal/engine"
	"github.com/netlayer/ipengine/internal/log"
	"github.com/netlayer/ipengine/pkg/ipv4"
)

// The stubs below give realMain something concrete to run the engine
// against before any real link layer is wired up. Interface table,
// routing table population, ARP, and a live link layer are all external
// collaborators out of scope for this module; this is the minimal
// satisfying implementation of their contracts, logging instead of
// acting.

func newEmptyInterfaceTable() *staticInterfaces {
	lo := &engine.Interface{
		ID:       0,
		Name:     "lo0",
		MTU:      65536,
		Loopback: true,
		Address:  netip.MustParseAddr("127.0.0.1"),
	}
	return &staticInterfaces{byID: map[int]*engine.Interface{0: lo}}
}

type staticInterfaces struct {
	byID map[int]*engine.Interface
}

func (t *staticInterfaces) Get(id int) (*engine.Interface, bool) { i, ok := t.byID[id]; return i, ok }

func (t *staticInterfaces) Loopback() (*engine.Interface, bool) {
	for _, i := range t.byID {
		if i.Loopback {
			return i, true
		}
	}
	return nil, false
}

func (t *staticInterfaces) All() []*engine.Interface {
	out := make([]*engine.Interface, 0, len(t.byID))
	for _, i := range t.byID {
		out = append(out, i)
	}
	return out
}

func (t *staticInterfaces) MatchingSourceAddress(addr netip.Addr) (*engine.Interface, bool) {
	for _, i := range t.byID {
		if i.Address == addr {
			return i, true
		}
	}
	return nil, false
}

func (t *staticInterfaces) FirstMulticastCapable() (*engine.Interface, bool) {
	for _, i := range t.byID {
		if i.MulticastCapable {
			return i, true
		}
	}
	return nil, false
}

type noopRoutes struct{}

func newEmptyRoutingTable() noopRoutes { return noopRoutes{} }

func (noopRoutes) LookupUnicast(netip.Addr) (int, netip.Addr, bool) { return 0, netip.Addr{}, false }
func (noopRoutes) LookupMulticast(netip.Addr, netip.Addr) (engine.MulticastRoute, bool) {
	return engine.MulticastRoute{}, false
}
func (noopRoutes) IsLocalAddress(addr netip.Addr) bool          { return addr == netip.MustParseAddr("127.0.0.1") }
func (noopRoutes) MatchBroadcast(netip.Addr) (int, bool)        { return 0, false }
func (noopRoutes) IsMulticastForwardingEnabled() bool           { return false }
func (noopRoutes) IsIPForwardingEnabled() bool                  { return false }
func (noopRoutes) ShortestPathInterface(netip.Addr) (int, bool) { return 0, false }

type noopARP struct{}

func newEmptyARP() noopARP { return noopARP{} }

func (noopARP) Resolve(int, netip.Addr) (net.HardwareAddr, bool) { return nil, false }
func (noopARP) RequestResolution(int, netip.Addr, *engine.PendingFrame) {
	log.Debug("ARP resolution requested but no ARP collaborator is wired")
}

type loggingICMP struct{}

func newEmptyICMP() loggingICMP { return loggingICMP{} }

func (loggingICMP) TimeExceeded(d *ipv4.Datagram) {
	log.Debug("ICMP time exceeded", "src", d.Src, "dst", d.Dst)
}

func (loggingICMP) DestinationUnreachable(d *ipv4.Datagram, code ipv4.ICMPUnreachableCode) {
	log.Debug("ICMP destination unreachable", "src", d.Src, "dst", d.Dst, "code", code)
}

func (loggingICMP) ParameterProblem(d *ipv4.Datagram) {
	log.Debug("ICMP parameter problem", "src", d.Src, "dst", d.Dst)
}

type loggingSink struct{}

func newEmptySink() loggingSink { return loggingSink{} }

func (loggingSink) EmitToInterface(ifaceID int, d *ipv4.Datagram, frame *engine.LinkFrame) {
	log.Debug("emit to interface", "iface", ifaceID, "dst", d.Dst)
}

func (loggingSink) EmitToTransport(slot int, info ipv4.RecvInfo, payload []byte) {
	log.Debug("deliver to transport", "slot", slot, "protocol", info.Protocol)
}

func (loggingSink) RequestARP(pending *engine.PendingFrame) {
	log.Debug("request ARP", "iface", pending.IfaceID, "next_hop", pending.NextHop)
}

func (loggingSink) TransportConnected(slot int) bool { return false }
