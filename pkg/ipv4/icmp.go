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

import "bytes"
import "encoding/gob"

// ICMPClass distinguishes the two ways local delivery treats an incoming
// ICMP datagram (§4.I): an error-class message carries a copy of the
// datagram that provoked it and is redelivered to whichever higher-layer
// protocol owned that datagram; an informational message goes to
// whatever egress slot is registered for ProtoICMP itself. Full ICMP
// message parsing is out of scope; this is the minimal shared contract
// between whatever produces ICMP payloads and the local-deliver demux.
type ICMPClass uint8

const (
	ICMPClassInfo ICMPClass = iota
	ICMPClassError
)

// ICMPPayload is the decoded form of an IPv4 datagram's payload when its
// Protocol is ProtoICMP (§4.I).
type ICMPPayload struct {
	Class ICMPClass
	// OrigProtocol is the protocol number of the datagram embedded in an
	// error-class message; meaningless when Class is ICMPClassInfo.
	OrigProtocol uint8
	// OrigDatagram is threaded through to the redelivered RecvInfo so the
	// owning protocol can match the error back to a connection.
	OrigDatagram *Datagram
}

// EncodeICMPPayload serializes p into a Datagram payload. Any producer of
// ICMP traffic inside this module (the ICMP HL-protocol egress slot) uses
// this encoding so DecodeICMPPayload can demultiplex incoming ICMP
// without parsing a wire format that is otherwise out of scope.
func EncodeICMPPayload(p ICMPPayload) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil
	}
	return buf.Bytes()
}

// DecodeICMPPayload is the inverse of EncodeICMPPayload.
func DecodeICMPPayload(payload []byte) (ICMPPayload, bool) {
	var p ICMPPayload
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&p); err != nil {
		return ICMPPayload{}, false
	}
	return p, true
}
