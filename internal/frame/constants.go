// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

// Frame markers
const (
	Header  = 0x7B // First byte of every frame
	Trailer = 0x7D // Last byte of every frame
)

// Frame size limits
const (
	MaxPayload     = 64                   // Fixed buffer capacity of the satellite link
	Overhead       = 5                    // header + command + length + checksum + trailer
	MinFrameLength = Overhead             // zero-length payload
	MaxFrameLength = MaxPayload + Overhead // largest frame on the wire
)

// WakeupSequence is written to the LED controller once at startup, before
// normal framing begins. It is not a valid frame (its length byte exceeds
// MaxPayload) so a decoder on the other side can never mistake it for one.
var WakeupSequence = [11]byte{0x7b, 0x10, 0x43, 0x10, 0x03, 0x00, 0x00, 0x7d, 0x02, 0x01, 0x02}
