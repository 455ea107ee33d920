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

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInterface struct {
	mtu      int
	loopback bool
	addr     netip.Addr
}

func (f fakeInterface) MTU() int                { return f.mtu }
func (f fakeInterface) IsLoopback() bool        { return f.loopback }
func (f fakeInterface) IPv4Address() netip.Addr { return f.addr }

type recordingICMP struct {
	timeExceeded []*Datagram
	unreachable  []ICMPUnreachableCode
}

func (r *recordingICMP) TimeExceeded(d *Datagram) { r.timeExceeded = append(r.timeExceeded, d) }
func (r *recordingICMP) DestinationUnreachable(d *Datagram, code ICMPUnreachableCode) {
	r.unreachable = append(r.unreachable, code)
}

type recordingSink struct {
	emitted []*Datagram
}

func (s *recordingSink) Emit(d *Datagram) { s.emitted = append(s.emitted, d) }

func TestFragmentAndEmitBasicSplit(t *testing.T) {
	d := New(make([]byte, 3000))
	d.HeaderLen = MinHeaderLen
	d.Src = netip.MustParseAddr("10.0.0.1")
	d.Dst = netip.MustParseAddr("10.0.0.2")
	d.TTL = 64
	d.SetByteLength()

	ie := fakeInterface{mtu: 1500, addr: netip.MustParseAddr("10.0.0.1")}
	icmp := &recordingICMP{}
	sink := &recordingSink{}

	FragmentAndEmit(d, ie, icmp, sink)

	// fragmentLength = floor((1500-20)/8)*8 = 1480; a 3000-byte payload
	// needs three such pieces (1480 + 1480 + 40), not two — the last
	// fragment only ever shrinks to fit, it never grows past fragmentLength.
	require.Len(t, sink.emitted, 3)
	assert.Equal(t, uint16(0), sink.emitted[0].FragOffset)
	assert.True(t, sink.emitted[0].MoreFragments)
	assert.Equal(t, uint16(185), sink.emitted[1].FragOffset)
	assert.True(t, sink.emitted[1].MoreFragments)
	assert.Equal(t, uint16(370), sink.emitted[2].FragOffset)
	assert.False(t, sink.emitted[2].MoreFragments)
	assert.Equal(t, uint16(63), sink.emitted[0].TTL)

	total := 0
	for _, f := range sink.emitted {
		total += int(f.ByteLength) - MinHeaderLen
	}
	assert.Equal(t, 3000, total)
}

func TestFragmentAndEmitDFViolation(t *testing.T) {
	d := New(make([]byte, 3000))
	d.DontFragment = true
	d.Src = netip.MustParseAddr("10.0.0.1")
	d.TTL = 64

	ie := fakeInterface{mtu: 1500, addr: netip.MustParseAddr("10.0.0.1")}
	icmp := &recordingICMP{}
	sink := &recordingSink{}

	FragmentAndEmit(d, ie, icmp, sink)

	assert.Empty(t, sink.emitted)
	require.Len(t, icmp.unreachable, 1)
	assert.Equal(t, CodeFragmentationNeeded, icmp.unreachable[0])
}

func TestFragmentAndEmitTTLExpiry(t *testing.T) {
	d := New([]byte("x"))
	d.TTL = 1

	ie := fakeInterface{mtu: 1500, addr: netip.MustParseAddr("10.0.0.1")}
	icmp := &recordingICMP{}
	sink := &recordingSink{}

	FragmentAndEmit(d, ie, icmp, sink)

	assert.Empty(t, sink.emitted)
	require.Len(t, icmp.timeExceeded, 1)
}

func TestFragmentAndEmitLoopbackSkipsTTLAndFragmentation(t *testing.T) {
	d := New(make([]byte, 3000))
	d.TTL = 1
	d.Src = netip.MustParseAddr("127.0.0.1")

	ie := fakeInterface{mtu: 1500, loopback: true, addr: netip.MustParseAddr("127.0.0.1")}
	icmp := &recordingICMP{}
	sink := &recordingSink{}

	FragmentAndEmit(d, ie, icmp, sink)

	require.Len(t, sink.emitted, 1)
	assert.Equal(t, uint16(1), sink.emitted[0].TTL, "loopback never decrements TTL")
	assert.Empty(t, icmp.timeExceeded)
}

func TestFragmentAndEmitFillsUnspecifiedSource(t *testing.T) {
	d := New([]byte("x"))
	d.TTL = 64

	ie := fakeInterface{mtu: 1500, addr: netip.MustParseAddr("192.0.2.1")}
	icmp := &recordingICMP{}
	sink := &recordingSink{}

	FragmentAndEmit(d, ie, icmp, sink)

	require.Len(t, sink.emitted, 1)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), sink.emitted[0].Src)
}

func TestFragmentAndEmitRefragmentationAddsBaseOffset(t *testing.T) {
	d := New(make([]byte, 3000))
	d.FragOffset = 200 // already a fragment of a larger original
	d.MoreFragments = true
	d.TTL = 64
	d.Src = netip.MustParseAddr("10.0.0.1")

	ie := fakeInterface{mtu: 1500, addr: netip.MustParseAddr("10.0.0.1")}
	icmp := &recordingICMP{}
	sink := &recordingSink{}

	FragmentAndEmit(d, ie, icmp, sink)

	require.Len(t, sink.emitted, 3)
	assert.Equal(t, uint16(200), sink.emitted[0].FragOffset)
	assert.Equal(t, uint16(200+185), sink.emitted[1].FragOffset)
	assert.Equal(t, uint16(200+370), sink.emitted[2].FragOffset)
	assert.True(t, sink.emitted[2].MoreFragments, "original MF propagates to the last emitted fragment")
}
