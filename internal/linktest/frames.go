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

// Package linktest builds realistic Ethernet+IPv4 byte frames with
// gopacket, for tests that want to exercise the boundary between a
// link-layer capture and the typed Datagram value this module operates
// on internally. The engine and ipv4 packages never parse these bytes
// themselves (§3: "does not serialize or parse bytes directly"); this
// package exists purely so tests can start from something a real NIC
// would have handed them and derive the equivalent Datagram by hand,
// checking the two representations agree.
package linktest

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/netlayer/ipengine/pkg/ipv4"
)

// BuildEthernetIPv4Frame serializes an Ethernet frame carrying an IPv4
// header equivalent to d, with payload as the IPv4 payload.
func BuildEthernetIPv4Frame(src, dst net.HardwareAddr, d *ipv4.Datagram) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      uint8(d.HeaderLen / 4),
		TOS:      d.TOS,
		Length:   d.ByteLength,
		Id:       d.ID,
		TTL:      d.TTL,
		Protocol: layers.IPProtocol(d.Protocol),
		SrcIP:    addrToIP(d.Src),
		DstIP:    addrToIP(d.Dst),
	}
	if d.DontFragment {
		ip.Flags |= layers.IPv4DontFragment
	}
	if d.MoreFragments {
		ip.Flags |= layers.IPv4MoreFragments
	}
	ip.FragOffset = d.FragOffset

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: false, ComputeChecksums: true}
	err := gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload(d.Payload))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseEthernetIPv4Frame decodes a captured frame back into the
// equivalent typed Datagram, dropping the Ethernet envelope.
func ParseEthernetIPv4Frame(frame []byte) (*ipv4.Datagram, error) {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)
	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return nil, errNoIPv4Layer
	}
	ip := ipLayer.(*layers.IPv4)

	d := &ipv4.Datagram{
		HeaderLen:     uint8(ip.IHL) * 4,
		ByteLength:    ip.Length,
		TOS:           ip.TOS,
		ID:            ip.Id,
		DontFragment:  ip.Flags&layers.IPv4DontFragment != 0,
		MoreFragments: ip.Flags&layers.IPv4MoreFragments != 0,
		FragOffset:    ip.FragOffset,
		TTL:           ip.TTL,
		Protocol:      uint8(ip.Protocol),
		Src:           ipToAddr(ip.SrcIP),
		Dst:           ipToAddr(ip.DstIP),
	}
	d.Encapsulate(append([]byte(nil), ip.Payload...))
	return d, nil
}

var errNoIPv4Layer = errNoIPv4LayerType("frame carries no IPv4 layer")

type errNoIPv4LayerType string

func (e errNoIPv4LayerType) Error() string { return string(e) }

func addrToIP(a netip.Addr) net.IP {
	if !a.IsValid() {
		return net.IPv4zero
	}
	b := a.As4()
	return net.IPv4(b[0], b[1], b[2], b[3])
}

func ipToAddr(ip net.IP) netip.Addr {
	ip4 := ip.To4()
	if ip4 == nil {
		return netip.Addr{}
	}
	return netip.AddrFrom4([4]byte{ip4[0], ip4[1], ip4[2], ip4[3]})
}

