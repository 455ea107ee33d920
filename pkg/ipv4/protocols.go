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

// IANA protocol numbers the local-deliver path (§4.I) hard-codes
// behavior for.
const (
	ProtoICMP  uint8 = 1
	ProtoIGMP  uint8 = 2
	ProtoIPinIP uint8 = 4
	ProtoTCP   uint8 = 6
	ProtoUDP   uint8 = 17
)
