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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netlayer/ipengine/internal/engine"
	"github.com/netlayer/ipengine/internal/enginetest"
	"github.com/netlayer/ipengine/pkg/ipv4"
)

func newTestEngine(ifaces *enginetest.Interfaces, routes *enginetest.Routes, arp *enginetest.ARP, icmp *enginetest.ICMP, sink *enginetest.Sink) *engine.Engine {
	return engine.New(engine.DefaultOptions(), engine.Collaborators{
		Interfaces: ifaces,
		Routes:     routes,
		ARP:        arp,
		ICMP:       icmp,
		Sink:       sink,
		Metrics:    engine.NewMetrics(prometheus.NewRegistry()),
	})
}

func loopbackInterface() *engine.Interface {
	return &engine.Interface{
		ID:       0,
		Name:     "lo",
		MTU:      65535,
		Loopback: true,
		Address:  netip.MustParseAddr("127.0.0.1"),
	}
}

func TestUpFailsWithoutLoopback(t *testing.T) {
	e := newTestEngine(enginetest.NewInterfaces(), enginetest.NewRoutes(), enginetest.NewARP(), &enginetest.ICMP{}, enginetest.NewSink())
	err := e.Up()
	assert.Error(t, err)
}

func TestUpDownLifecycle(t *testing.T) {
	sink := enginetest.NewSink()
	sink.ConnectedSlots[1] = true
	ifaces := enginetest.NewInterfaces(loopbackInterface())
	e := newTestEngine(ifaces, enginetest.NewRoutes(), enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())
	e.RegisterProtocol(ipv4.ProtoUDP, 1)

	e.Down()

	// A datagram arriving after Down is silently dropped, not delivered.
	d := ipv4.New([]byte("x"))
	d.Protocol = ipv4.ProtoUDP
	d.Src = netip.MustParseAddr("127.0.0.1")
	d.Dst = netip.MustParseAddr("127.0.0.1")
	e.FromQueue(0, d, false, time.Now())
	assert.Empty(t, sink.Delivered)
}

func TestUpSucceedsAfterCrash(t *testing.T) {
	e := newTestEngine(enginetest.NewInterfaces(loopbackInterface()), enginetest.NewRoutes(), enginetest.NewARP(), &enginetest.ICMP{}, enginetest.NewSink())
	require.NoError(t, e.Up())
	e.Crash()

	err := e.Up()
	require.NoError(t, err, "the pending queue must be empty again after Crash")
}

func TestRegisterProtocolTakesEffectBeforeNextDelivery(t *testing.T) {
	sink := enginetest.NewSink()
	sink.ConnectedSlots[7] = true
	ifaces := enginetest.NewInterfaces(loopbackInterface())
	routes := enginetest.NewRoutes()
	routes.LocalAddresses[netip.MustParseAddr("127.0.0.1")] = true

	e := newTestEngine(ifaces, routes, enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())

	e.RegisterProtocol(ipv4.ProtoUDP, 7)

	d := ipv4.New([]byte("payload"))
	d.Protocol = ipv4.ProtoUDP
	d.Src = netip.MustParseAddr("127.0.0.1")
	d.Dst = netip.MustParseAddr("127.0.0.1")
	e.FromQueue(0, d, false, time.Now())

	require.Len(t, sink.Delivered, 1)
	assert.Equal(t, 7, sink.Delivered[0].Slot)
}

func TestIdentificationMonotonicAcrossSends(t *testing.T) {
	eth0 := &engine.Interface{ID: 1, Name: "eth0", MTU: 1500, Address: netip.MustParseAddr("10.0.0.1")}
	ifaces := enginetest.NewInterfaces(loopbackInterface(), eth0)
	routes := enginetest.NewRoutes()
	dst := netip.MustParseAddr("10.0.0.9")
	routes.SetUnicastRoute(dst, eth0.ID, netip.Addr{})
	sink := enginetest.NewSink()

	e := newTestEngine(ifaces, routes, enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())

	req := ipv4.SendRequest{DestAddr: dst, Protocol: ipv4.ProtoUDP}
	require.NoError(t, e.FromTransport(req, []byte("a"), time.Now()))
	require.NoError(t, e.FromTransport(req, []byte("b"), time.Now()))

	require.Len(t, sink.Emitted, 2)
	first := sink.Emitted[0].Datagram.ID
	second := sink.Emitted[1].Datagram.ID
	assert.NotEqual(t, first, second)
	assert.Equal(t, uint16(first+1), second)
}
