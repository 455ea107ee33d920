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

// ICMPUnreachableCode enumerates the DESTINATION_UNREACHABLE codes the
// engine requests (§4.C, §7); the fragmentation producer itself requests
// only CodeFragmentationNeeded.
type ICMPUnreachableCode int

const (
	// CodeHostUnreachable is used when no route/interface was found.
	CodeHostUnreachable ICMPUnreachableCode = 1
	// CodeFragmentationNeeded is used when DF is set and the datagram
	// exceeds the egress MTU.
	CodeFragmentationNeeded ICMPUnreachableCode = 4
	// CodeProtocolUnreachable is used at local-deliver when no HL egress
	// is registered and connected for the protocol.
	CodeProtocolUnreachable ICMPUnreachableCode = 2
)

// ICMPService is the narrow interface the fragmentation producer (and the
// rest of the engine) uses to request ICMP error generation. ICMP
// construction itself is out of scope (§1); this is the contract with
// that external collaborator (§9, Design Notes: "Host integration seam").
type ICMPService interface {
	TimeExceeded(d *Datagram)
	DestinationUnreachable(d *Datagram, code ICMPUnreachableCode)
}

// EgressInterface is the subset of an interface descriptor (§3) the
// fragmentation producer needs: its MTU, loopback-ness, and assigned
// address for source fill-in.
type EgressInterface interface {
	MTU() int
	IsLoopback() bool
	IPv4Address() netip.Addr
}

// Sink is the narrow capability the fragmentation producer fans its
// output fragments into. §9, Design Notes, "Host integration seam":
// concrete sinks range from a per-interface egress queue to a test
// recorder.
type Sink interface {
	Emit(d *Datagram)
}

// FragmentAndEmit implements §4.C: it fills in an unspecified source
// address, applies the TTL discipline, and either emits d unchanged, asks
// icmp for a DF-violation/TTL-exceeded error, or splits d into MTU-fitting
// fragments and emits each of them to sink. It always consumes d: callers
// must not use d again afterward.
func FragmentAndEmit(d *Datagram, ie EgressInterface, icmp ICMPService, sink Sink) {
	if !d.Src.IsValid() || d.Src.IsUnspecified() {
		d.Src = ie.IPv4Address()
	}

	if !ie.IsLoopback() {
		if d.TTL > 0 {
			d.TTL--
		}
		if d.TTL == 0 {
			icmp.TimeExceeded(d)
			return
		}
	}

	mtu := ie.MTU()
	if int(d.ByteLength) <= mtu {
		sink.Emit(d)
		return
	}

	if d.DontFragment {
		icmp.DestinationUnreachable(d, CodeFragmentationNeeded)
		return
	}

	if ie.IsLoopback() {
		sink.Emit(d)
		return
	}

	emitFragments(d, mtu, sink)
}

// emitFragments implements §4.C steps 6-7: split d's payload into
// MTU-fitting pieces, each an 8-byte-aligned fragment of the original
// header, and hand each to sink. d is destroyed (its payload is sliced
// into the fragments; the caller must not reuse it).
func emitFragments(d *Datagram, mtu int, sink Sink) {
	fragLen := ((mtu - int(d.HeaderLen)) / 8) * 8
	if fragLen <= 0 {
		// MTU smaller than one 8-byte unit of payload past the header;
		// nothing sane to emit. Treat as undeliverable at this MTU.
		return
	}

	baseOffset := int(d.FragOffset) // already in 8-byte units; re-fragmentation case (§4.C edge case)
	payload := d.Payload
	for offset := 0; offset < len(payload); offset += fragLen {
		end := offset + fragLen
		last := end >= len(payload)
		if last {
			end = len(payload)
		}

		frag := *d
		frag.FragOffset = uint16(baseOffset) + uint16(offset/8)
		frag.MoreFragments = !last || d.MoreFragments
		frag.Payload = payload[offset:end]
		frag.SetByteLength()
		sink.Emit(&frag)
	}
}
