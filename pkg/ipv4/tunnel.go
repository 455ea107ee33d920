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

// WrapTunneled encodes inner as the payload of an IP-in-IP (ProtoIPinIP)
// datagram. Since this module never serializes a datagram to wire bytes
// during ordinary processing (§4.A), a tunnel's payload is instead this
// package's own encoding of the inner datagram value, letting
// UnwrapTunneled hand local delivery back a typed *Datagram to reinject
// (§4.I).
func WrapTunneled(inner *Datagram) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(inner); err != nil {
		return nil
	}
	return buf.Bytes()
}

// UnwrapTunneled is the inverse of WrapTunneled.
func UnwrapTunneled(payload []byte) (*Datagram, bool) {
	var d Datagram
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&d); err != nil {
		return nil, false
	}
	return &d, true
}
