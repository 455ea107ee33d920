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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtocolTableRegisterLookup(t *testing.T) {
	tbl := NewProtocolTable()
	_, ok := tbl.Lookup(ProtoUDP)
	assert.False(t, ok)

	tbl.Register(ProtoUDP, 3)
	slot, ok := tbl.Lookup(ProtoUDP)
	assert.True(t, ok)
	assert.Equal(t, 3, slot)
}

func TestProtocolTableReplacesOnDuplicateRegister(t *testing.T) {
	tbl := NewProtocolTable()
	tbl.Register(ProtoTCP, 1)
	tbl.Register(ProtoTCP, 2)
	slot, ok := tbl.Lookup(ProtoTCP)
	assert.True(t, ok)
	assert.Equal(t, 2, slot)
}

func TestProtocolTableUnregister(t *testing.T) {
	tbl := NewProtocolTable()
	tbl.Register(ProtoICMP, 0)
	tbl.Unregister(ProtoICMP)
	_, ok := tbl.Lookup(ProtoICMP)
	assert.False(t, ok)
}
