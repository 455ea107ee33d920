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

package engine_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netlayer/ipengine/internal/engine"
	"github.com/netlayer/ipengine/internal/enginetest"
	"github.com/netlayer/ipengine/pkg/ipv4"
)

func TestIngressLocalDestinationIsDelivered(t *testing.T) {
	eth0 := &engine.Interface{ID: 1, Name: "eth0", MTU: 1500, Address: netip.MustParseAddr("10.0.0.1")}
	ifaces := enginetest.NewInterfaces(loopbackInterface(), eth0)
	routes := enginetest.NewRoutes()
	routes.LocalAddresses[eth0.Address] = true
	sink := enginetest.NewSink()
	sink.ConnectedSlots[3] = true

	e := newTestEngine(ifaces, routes, enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())
	e.RegisterProtocol(ipv4.ProtoUDP, 3)

	d := ipv4.New([]byte("hi"))
	d.Protocol = ipv4.ProtoUDP
	d.Src = netip.MustParseAddr("10.0.0.2")
	d.Dst = eth0.Address
	e.FromQueue(eth0.ID, d, false, time.Now())

	require.Len(t, sink.Delivered, 1)
	assert.Equal(t, []byte("hi"), sink.Delivered[0].Payload)
}

func TestIngressUnknownDestinationIsRouted(t *testing.T) {
	eth0 := &engine.Interface{ID: 1, Name: "eth0", MTU: 1500, Address: netip.MustParseAddr("10.0.0.1")}
	eth1 := &engine.Interface{ID: 2, Name: "eth1", MTU: 1500, Address: netip.MustParseAddr("10.0.1.1")}
	ifaces := enginetest.NewInterfaces(loopbackInterface(), eth0, eth1)
	routes := enginetest.NewRoutes()
	dst := netip.MustParseAddr("10.0.2.9")
	routes.SetUnicastRoute(dst, eth1.ID, netip.Addr{})
	sink := enginetest.NewSink()

	e := newTestEngine(ifaces, routes, enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())

	d := ipv4.New([]byte("hi"))
	d.Src = netip.MustParseAddr("10.0.0.2")
	d.Dst = dst
	d.TTL = 64
	e.FromQueue(eth0.ID, d, false, time.Now())

	require.Len(t, sink.Emitted, 1)
	assert.Equal(t, eth1.ID, sink.Emitted[0].IfaceID)
}

func TestIngressForwardingDisabledDropsTransit(t *testing.T) {
	eth0 := &engine.Interface{ID: 1, Name: "eth0", MTU: 1500, Address: netip.MustParseAddr("10.0.0.1")}
	eth1 := &engine.Interface{ID: 2, Name: "eth1", MTU: 1500, Address: netip.MustParseAddr("10.0.1.1")}
	ifaces := enginetest.NewInterfaces(loopbackInterface(), eth0, eth1)
	routes := enginetest.NewRoutes()
	routes.IPForwarding = false
	dst := netip.MustParseAddr("10.0.2.9")
	routes.SetUnicastRoute(dst, eth1.ID, netip.Addr{})
	sink := enginetest.NewSink()

	e := newTestEngine(ifaces, routes, enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())

	d := ipv4.New([]byte("hi"))
	d.Src = netip.MustParseAddr("10.0.0.2")
	d.Dst = dst
	d.TTL = 64
	e.FromQueue(eth0.ID, d, false, time.Now())

	assert.Empty(t, sink.Emitted)
	assert.Empty(t, sink.Delivered)
}

func TestIngressDirectedBroadcastIsDuplicatedAndDelivered(t *testing.T) {
	eth0 := &engine.Interface{ID: 1, Name: "eth0", MTU: 1500, Address: netip.MustParseAddr("10.0.0.1"), BroadcastCapable: true}
	subnetBroadcast := netip.MustParseAddr("10.0.0.255")
	ifaces := enginetest.NewInterfaces(loopbackInterface(), eth0)
	routes := enginetest.NewRoutes()
	routes.BroadcastOwners[subnetBroadcast] = eth0.ID
	sink := enginetest.NewSink()
	sink.ConnectedSlots[2] = true

	d := ipv4.New([]byte("hi"))
	d.Protocol = ipv4.ProtoUDP
	d.Src = netip.MustParseAddr("10.0.0.5")
	d.Dst = subnetBroadcast
	d.TTL = 64
	// Arrives from a different (addressed) interface than the one owning
	// the subnet, so a duplicate goes back out eth0 (§4.E step 4).
	otherIface := &engine.Interface{ID: 3, Name: "other", MTU: 1500, Address: netip.MustParseAddr("10.0.3.1")}
	ifaces = enginetest.NewInterfaces(loopbackInterface(), eth0, otherIface)
	e := newTestEngine(ifaces, routes, enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())
	e.RegisterProtocol(ipv4.ProtoUDP, 2)
	e.FromQueue(otherIface.ID, d, false, time.Now())

	require.Len(t, sink.Emitted, 1)
	assert.Equal(t, eth0.ID, sink.Emitted[0].IfaceID)
	require.Len(t, sink.Delivered, 1)
}

func TestIngressMulticastNotForwardedWhenLinkLocal(t *testing.T) {
	eth0 := &engine.Interface{ID: 1, Name: "eth0", MTU: 1500, Address: netip.MustParseAddr("10.0.0.1"), MulticastCapable: true}
	ifaces := enginetest.NewInterfaces(loopbackInterface(), eth0)
	routes := enginetest.NewRoutes()
	routes.MulticastFwd = true
	sink := enginetest.NewSink()

	e := newTestEngine(ifaces, routes, enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())

	d := ipv4.New([]byte("hi"))
	d.Src = netip.MustParseAddr("10.0.0.5")
	d.Dst = netip.MustParseAddr("224.0.0.251") // link-local, never forwarded
	d.TTL = 64
	e.FromQueue(eth0.ID, d, false, time.Now())

	assert.Empty(t, sink.Emitted)
}
