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

// Package ipv4 holds the datagram value type and the three pieces of the
// pipeline that operate on it in isolation from the rest of the engine:
// the reassembly buffer, the fragmentation producer, and the
// protocol-demultiplexing table. None of these manipulate wire bytes; the
// IPv4 header lives here as a typed Go value, as spec'd.
package ipv4

import (
	"net/netip"
)

// MinHeaderLen is the minimum IPv4 header length in bytes (no options).
const MinHeaderLen = 20

// Broadcast is the limited-broadcast address 255.255.255.255.
var Broadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// Datagram is the IPv4 header plus its encapsulated higher-layer payload,
// manipulated as a typed value rather than a byte buffer (§3, §4.A).
type Datagram struct {
	Src           netip.Addr
	Dst           netip.Addr
	TOS           uint8
	ID            uint16
	DontFragment  bool
	MoreFragments bool
	// FragOffset is the fragment offset in 8-byte units, per the wire
	// format's convention (§3, Glossary: "Fragment offset").
	FragOffset uint16
	TTL        uint8
	Protocol   uint8
	// HeaderLen is the header length in bytes; always >= MinHeaderLen.
	HeaderLen uint8
	// ByteLength is the total datagram length (header + payload) in
	// bytes. Kept in sync with Payload by SetByteLength.
	ByteLength uint16

	Payload []byte
}

// New builds a datagram with the minimum header length and the given
// payload already encapsulated.
func New(payload []byte) *Datagram {
	d := &Datagram{HeaderLen: MinHeaderLen}
	d.Encapsulate(payload)
	return d
}

// Encapsulate takes ownership of payload, replacing whatever payload the
// datagram held, and recomputes ByteLength.
func (d *Datagram) Encapsulate(payload []byte) {
	d.Payload = payload
	d.SetByteLength()
}

// Decapsulate releases the payload, returning it, and zeroes ByteLength
// back down to the bare header.
func (d *Datagram) Decapsulate() []byte {
	p := d.Payload
	d.Payload = nil
	d.SetByteLength()
	return p
}

// SetByteLength recomputes ByteLength as HeaderLen + len(Payload), per
// the §4.A invariant that total length minus header length equals
// payload length.
func (d *Datagram) SetByteLength() {
	d.ByteLength = uint16(d.HeaderLen) + uint16(len(d.Payload))
}

// PayloadLen is the number of payload bytes, i.e. ByteLength - HeaderLen.
func (d *Datagram) PayloadLen() int {
	return int(d.ByteLength) - int(d.HeaderLen)
}

// FragByteOffset is FragOffset converted to bytes.
func (d *Datagram) FragByteOffset() int {
	return int(d.FragOffset) * 8
}

// Duplicate returns a deep copy of d: header fields and an independent
// copy of the payload bytes, so mutating the copy never affects the
// original (§3: "Duplicated datagrams... are deep-copied").
func (d *Datagram) Duplicate() *Datagram {
	cp := *d
	if d.Payload != nil {
		cp.Payload = append([]byte(nil), d.Payload...)
	}
	return &cp
}

// IsMulticast reports whether dst is in the 224.0.0.0/4 multicast range.
func IsMulticast(dst netip.Addr) bool {
	if !dst.Is4() {
		return false
	}
	b := dst.As4()
	return b[0] >= 224 && b[0] <= 239
}

// IsLinkLocalMulticast reports whether dst is in 224.0.0.0/24, the
// link-local multicast block that routers never forward off-link.
func IsLinkLocalMulticast(dst netip.Addr) bool {
	if !dst.Is4() {
		return false
	}
	b := dst.As4()
	return b[0] == 224 && b[1] == 0 && b[2] == 0
}
