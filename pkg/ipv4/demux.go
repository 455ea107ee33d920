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

// ProtocolTable maps an IPv4 protocol number to the higher-layer egress
// slot it should be delivered to (§4.D). It is a plain map: the engine's
// single-threaded event loop (§5) guarantees registration events are
// processed before any subsequent non-registration event, so the table
// never needs its own locking.
type ProtocolTable struct {
	slots map[uint8]int
}

// NewProtocolTable returns an empty table.
func NewProtocolTable() *ProtocolTable {
	return &ProtocolTable{slots: make(map[uint8]int)}
}

// Register maps protocol to egress slot, replacing any prior mapping for
// the same protocol number (§4.D).
func (t *ProtocolTable) Register(protocol uint8, slot int) {
	t.slots[protocol] = slot
}

// Unregister removes any mapping for protocol.
func (t *ProtocolTable) Unregister(protocol uint8) {
	delete(t.slots, protocol)
}

// Lookup returns the egress slot registered for protocol, and whether one
// was found.
func (t *ProtocolTable) Lookup(protocol uint8) (int, bool) {
	slot, ok := t.slots[protocol]
	return slot, ok
}
