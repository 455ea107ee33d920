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

func TestLocalDeliverUnregisteredProtocolRequestsUnreachable(t *testing.T) {
	lo := loopbackInterface()
	ifaces := enginetest.NewInterfaces(lo)
	icmp := &enginetest.ICMP{}
	sink := enginetest.NewSink()

	e := newTestEngine(ifaces, enginetest.NewRoutes(), enginetest.NewARP(), icmp, sink)
	require.NoError(t, e.Up())

	d := ipv4.New([]byte("x"))
	d.Protocol = ipv4.ProtoTCP
	d.Src = lo.Address
	d.Dst = lo.Address
	e.FromQueue(lo.ID, d, false, time.Now())

	assert.Empty(t, sink.Delivered)
	require.Len(t, icmp.DestinationUnreachableCalls, 1)
	assert.Equal(t, ipv4.CodeProtocolUnreachable, icmp.DestinationUnreachableCalls[0].Code)
}

func TestLocalDeliverConnectedSlotReceivesDecapsulatedPayload(t *testing.T) {
	lo := loopbackInterface()
	ifaces := enginetest.NewInterfaces(lo)
	sink := enginetest.NewSink()
	sink.ConnectedSlots[4] = true

	e := newTestEngine(ifaces, enginetest.NewRoutes(), enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())
	e.RegisterProtocol(ipv4.ProtoTCP, 4)

	d := ipv4.New([]byte("payload bytes"))
	d.Protocol = ipv4.ProtoTCP
	d.Src = lo.Address
	d.Dst = lo.Address
	d.TOS = 3
	e.FromQueue(lo.ID, d, false, time.Now())

	require.Len(t, sink.Delivered, 1)
	got := sink.Delivered[0]
	assert.Equal(t, 4, got.Slot)
	assert.Equal(t, []byte("payload bytes"), got.Payload)
	assert.Equal(t, lo.Address, got.Info.SrcAddr)
	assert.Equal(t, uint8(3), got.Info.TypeOfService)
}

func TestLocalDeliverRegisteredButDisconnectedSlotRequestsUnreachable(t *testing.T) {
	lo := loopbackInterface()
	ifaces := enginetest.NewInterfaces(lo)
	icmp := &enginetest.ICMP{}
	sink := enginetest.NewSink() // slot never marked connected

	e := newTestEngine(ifaces, enginetest.NewRoutes(), enginetest.NewARP(), icmp, sink)
	require.NoError(t, e.Up())
	e.RegisterProtocol(ipv4.ProtoTCP, 4)

	d := ipv4.New([]byte("x"))
	d.Protocol = ipv4.ProtoTCP
	d.Src = lo.Address
	d.Dst = lo.Address
	e.FromQueue(lo.ID, d, false, time.Now())

	assert.Empty(t, sink.Delivered)
	require.Len(t, icmp.DestinationUnreachableCalls, 1)
}

func TestLocalDeliverReassemblesFragmentsBeforeDispatch(t *testing.T) {
	lo := loopbackInterface()
	ifaces := enginetest.NewInterfaces(lo)
	sink := enginetest.NewSink()
	sink.ConnectedSlots[6] = true

	e := newTestEngine(ifaces, enginetest.NewRoutes(), enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())
	e.RegisterProtocol(ipv4.ProtoUDP, 6)

	now := time.Now()
	first := &ipv4.Datagram{
		Src: lo.Address, Dst: lo.Address, ID: 77, HeaderLen: ipv4.MinHeaderLen,
		FragOffset: 0, MoreFragments: true, Protocol: ipv4.ProtoUDP,
	}
	first.Encapsulate([]byte("ABCDEFGH")) // 8 bytes: one 8-byte fragment-offset unit
	e.FromQueue(lo.ID, first, false, now)
	assert.Empty(t, sink.Delivered, "incomplete fragment set: nothing delivered yet")

	last := &ipv4.Datagram{
		Src: lo.Address, Dst: lo.Address, ID: 77, HeaderLen: ipv4.MinHeaderLen,
		FragOffset: 1, MoreFragments: false, Protocol: ipv4.ProtoUDP,
	}
	last.Encapsulate([]byte("world"))
	e.FromQueue(lo.ID, last, false, now)

	require.Len(t, sink.Delivered, 1)
	assert.Equal(t, []byte("ABCDEFGHworld"), sink.Delivered[0].Payload)
}

func TestLocalDeliverTunneledPayloadReinjectsInner(t *testing.T) {
	lo := loopbackInterface()
	ifaces := enginetest.NewInterfaces(lo)
	sink := enginetest.NewSink()
	sink.ConnectedSlots[8] = true

	e := newTestEngine(ifaces, enginetest.NewRoutes(), enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())
	e.RegisterProtocol(ipv4.ProtoUDP, 8)

	inner := ipv4.New([]byte("inner payload"))
	inner.Protocol = ipv4.ProtoUDP
	inner.Src = lo.Address
	inner.Dst = lo.Address

	outer := ipv4.New(ipv4.WrapTunneled(inner))
	outer.Protocol = ipv4.ProtoIPinIP
	outer.Src = lo.Address
	outer.Dst = lo.Address
	e.FromQueue(lo.ID, outer, false, time.Now())

	require.Len(t, sink.Delivered, 1)
	assert.Equal(t, []byte("inner payload"), sink.Delivered[0].Payload)
}

func TestLocalDeliverICMPErrorRedeliversToOriginalProtocol(t *testing.T) {
	lo := loopbackInterface()
	ifaces := enginetest.NewInterfaces(lo)
	sink := enginetest.NewSink()
	sink.ConnectedSlots[9] = true

	e := newTestEngine(ifaces, enginetest.NewRoutes(), enginetest.NewARP(), &enginetest.ICMP{}, sink)
	require.NoError(t, e.Up())
	e.RegisterProtocol(ipv4.ProtoUDP, 9)

	failing := ipv4.New([]byte("original datagram"))
	failing.Protocol = ipv4.ProtoUDP
	failing.Src = netip.MustParseAddr("10.0.0.2")
	failing.Dst = lo.Address

	msg := ipv4.EncodeICMPPayload(ipv4.ICMPPayload{
		Class:        ipv4.ICMPClassError,
		OrigProtocol: ipv4.ProtoUDP,
		OrigDatagram: failing,
	})
	icmpDatagram := ipv4.New(msg)
	icmpDatagram.Protocol = ipv4.ProtoICMP
	icmpDatagram.Src = netip.MustParseAddr("10.0.0.254")
	icmpDatagram.Dst = lo.Address
	e.FromQueue(lo.ID, icmpDatagram, false, time.Now())

	require.Len(t, sink.Delivered, 1)
	assert.Equal(t, 9, sink.Delivered[0].Slot, "redelivered to UDP's slot, not ICMP's own")
	require.NotNil(t, sink.Delivered[0].Info.OrigDatagram)
	assert.Equal(t, []byte("original datagram"), sink.Delivered[0].Info.OrigDatagram.Payload)
}
